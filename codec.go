package uhdr

// Codec collaborators. The core treats base codecs as opaque endpoints:
// the assembler drives them through these narrow interfaces. HEIF codec
// failures surface wrapped as ErrEncode/ErrDecode; JPEG codec errors are
// returned as the codec reports them, unwrapped (the built-in codec reports
// its own encode and decode failures as ErrEncode/ErrDecode).

// DecodedImage is the result of decompressing a base image.
type DecodedImage struct {
	Pixels *PixelBuffer
	ICC    [][]byte
	EXIF   []byte
	XMP    []byte
}

// JPEGCodec compresses and decompresses JPEG images. Compress accepts
// YUV 4:2:0 and monochrome buffers (the latter used for gain maps) and
// attaches the given raw ICC APP2 payloads when non-empty.
type JPEGCodec interface {
	Compress(buf *PixelBuffer, quality int, icc [][]byte) ([]byte, error)
	Decompress(data []byte) (*DecodedImage, error)
}

// HEIFImage is the result of reading a HEIC or AVIF container.
type HEIFImage struct {
	// Primary is YUV420 for 8-bit content, P010 for 10-bit content.
	Primary *PixelBuffer
	// BitDepth is the primary item's luma bits per pixel, 8 or 10.
	BitDepth int
	// GainMap and Metadata are set when the container carries a gain map
	// secondary item.
	GainMap  *PixelBuffer
	Metadata *GainMapMetadata
	EXIF     []byte
}

// HEIFCodec writes and reads HEIC (HEVC-backed) or AVIF (AV1-backed)
// containers. Encode adds primary as the primary item and, when gainmap is
// non-nil, attaches it as a secondary item with the ISO 21496-1 metadata
// record (see encodeISOMetadata). No implementation ships with this
// module; callers provide one.
type HEIFCodec interface {
	Encode(primary, gainmap *PixelBuffer, meta *GainMapMetadata, quality int) ([]byte, error)
	Decode(data []byte) (*HEIFImage, error)
}
