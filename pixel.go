package uhdr

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// PixelFormat identifies a supported pixel buffer layout.
type PixelFormat int

const (
	FormatUnspecified PixelFormat = iota
	// FormatP010 is 10-bit YUV 4:2:0: each sample occupies the most
	// significant 10 bits of a little-endian 16-bit word, chroma rows are
	// interleaved UVUV.
	FormatP010
	// FormatYUV420 is planar 8-bit Y followed by planar U and V at half
	// resolution in each axis.
	FormatYUV420
	// FormatMonochrome is a single 8-bit plane.
	FormatMonochrome
	// FormatRGBA8888 is interleaved 8-bit RGBA.
	FormatRGBA8888
	// FormatRGBAF16 is interleaved half-float RGBA.
	FormatRGBAF16
	// FormatRGBA1010102 packs RGB in 10 bits each plus 2 alpha bits into a
	// little-endian 32-bit word.
	FormatRGBA1010102
	// FormatRGB10Planar stores three planar channels of 10-bit samples,
	// one little-endian 16-bit word per sample, R plane then G then B.
	FormatRGB10Planar
)

// ColorGamut identifies a supported color gamut.
type ColorGamut int

const (
	GamutUnspecified ColorGamut = iota
	GamutBT709
	GamutP3
	GamutBT2100
)

// ColorTransfer identifies a supported transfer function.
type ColorTransfer int

const (
	TransferUnspecified ColorTransfer = iota
	TransferSRGB
	TransferLinear
	TransferHLG
	TransferPQ
)

// gainMapScaleFactor is the fixed ratio between base image and gain map
// dimensions on generation.
const gainMapScaleFactor = 4

// PixelBuffer describes a raw image with owned or borrowed plane storage.
// Strides are in samples, not bytes. When UV is nil for a chroma-carrying
// format the chroma plane immediately follows the luma plane in Data.
type PixelBuffer struct {
	Format PixelFormat
	Width  int
	Height int
	Gamut  ColorGamut

	// Data is the backing storage when the buffer owns its allocation.
	Data []byte
	// Y holds luma or primary samples (interleaved formats use only Y).
	Y []byte
	// UV holds chroma samples: planar U then V for YUV420, interleaved
	// UVUV 16-bit words for P010. Nil for monochrome and RGBA layouts.
	UV []byte

	YStride  int
	UVStride int
}

// bytesPerSample returns the storage width of one luma/primary sample.
func (f PixelFormat) bytesPerSample() int {
	switch f {
	case FormatP010, FormatRGB10Planar:
		return 2
	case FormatRGBA8888, FormatRGBA1010102:
		return 4
	case FormatRGBAF16:
		return 8
	default:
		return 1
	}
}

// NewPixelBuffer allocates a packed buffer for the given layout. Strides
// equal the minimum valid values.
func NewPixelBuffer(format PixelFormat, width, height int, gamut ColorGamut) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrUnsupportedWidthHeight, "%dx%d", width, height)
	}
	b := &PixelBuffer{Format: format, Width: width, Height: height, Gamut: gamut}
	bps := format.bytesPerSample()
	switch format {
	case FormatYUV420:
		if width%2 != 0 || height%2 != 0 {
			return nil, errors.Wrapf(ErrUnsupportedWidthHeight, "odd dimensions %dx%d for 4:2:0", width, height)
		}
		b.YStride = width
		b.UVStride = width / 2
		lumaSize := width * height
		chromaSize := (width / 2) * (height / 2) * 2
		b.Data = make([]byte, lumaSize+chromaSize)
		b.Y = b.Data[:lumaSize]
		b.UV = b.Data[lumaSize:]
	case FormatP010:
		if width%2 != 0 || height%2 != 0 {
			return nil, errors.Wrapf(ErrUnsupportedWidthHeight, "odd dimensions %dx%d for P010", width, height)
		}
		b.YStride = width
		b.UVStride = width
		lumaSize := width * height * 2
		chromaSize := width * (height / 2) * 2
		b.Data = make([]byte, lumaSize+chromaSize)
		b.Y = b.Data[:lumaSize]
		b.UV = b.Data[lumaSize:]
	case FormatMonochrome:
		b.YStride = width
		b.Data = make([]byte, width*height)
		b.Y = b.Data
	case FormatRGBA8888, FormatRGBAF16, FormatRGBA1010102:
		b.YStride = width
		b.Data = make([]byte, width*height*bps)
		b.Y = b.Data
	case FormatRGB10Planar:
		b.YStride = width
		b.Data = make([]byte, width*height*2*3)
		b.Y = b.Data
	default:
		return nil, errors.Wrapf(ErrInvalidOutputFormat, "format %d", format)
	}
	return b, nil
}

// validate checks the descriptor invariants for use as a pipeline input.
// A nil UV on a YUV420 or P010 buffer is pointed at the chroma plane that
// follows the luma plane in Data.
func (b *PixelBuffer) validate() error {
	if b == nil || b.Y == nil {
		return ErrBadPointer
	}
	if b.Width <= 0 || b.Height <= 0 {
		return errors.Wrapf(ErrUnsupportedWidthHeight, "%dx%d", b.Width, b.Height)
	}
	if b.YStride < b.Width {
		return errors.Wrapf(ErrInvalidStride, "luma stride %d < width %d", b.YStride, b.Width)
	}
	switch b.Format {
	case FormatYUV420:
		if b.Width%2 != 0 || b.Height%2 != 0 {
			return errors.Wrapf(ErrUnsupportedWidthHeight, "odd dimensions %dx%d for 4:2:0", b.Width, b.Height)
		}
		if b.UV == nil && len(b.Data) > b.YStride*b.Height {
			b.UV = b.Data[b.YStride*b.Height:]
		}
		if b.UV == nil {
			return ErrBadPointer
		}
		if b.UVStride < b.Width/2 {
			return errors.Wrapf(ErrInvalidStride, "chroma stride %d < %d", b.UVStride, b.Width/2)
		}
	case FormatP010:
		if b.Width%2 != 0 || b.Height%2 != 0 {
			return errors.Wrapf(ErrUnsupportedWidthHeight, "odd dimensions %dx%d for P010", b.Width, b.Height)
		}
		if b.UV == nil && len(b.Data) > b.YStride*b.Height*2 {
			b.UV = b.Data[b.YStride*b.Height*2:]
		}
		if b.UV == nil {
			return ErrBadPointer
		}
		if b.UVStride < b.Width {
			return errors.Wrapf(ErrInvalidStride, "chroma stride %d < width %d", b.UVStride, b.Width)
		}
	}
	return nil
}

// y8 returns the 8-bit luma sample at (x, y).
func (b *PixelBuffer) y8(x, y int) uint8 {
	return b.Y[y*b.YStride+x]
}

// u8 and v8 address the planar 4:2:0 chroma grid at chroma coordinates.
func (b *PixelBuffer) u8(cx, cy int) uint8 {
	return b.UV[cy*b.UVStride+cx]
}

func (b *PixelBuffer) v8(cx, cy int) uint8 {
	return b.UV[(b.Height/2)*b.UVStride+cy*b.UVStride+cx]
}

func (b *PixelBuffer) setY8(x, y int, v uint8) {
	b.Y[y*b.YStride+x] = v
}

func (b *PixelBuffer) setU8(cx, cy int, v uint8) {
	b.UV[cy*b.UVStride+cx] = v
}

func (b *PixelBuffer) setV8(cx, cy int, v uint8) {
	b.UV[(b.Height/2)*b.UVStride+cy*b.UVStride+cx] = v
}

// y16 returns the raw 16-bit P010 luma word at (x, y).
func (b *PixelBuffer) y16(x, y int) uint16 {
	off := (y*b.YStride + x) * 2
	return binary.LittleEndian.Uint16(b.Y[off:])
}

// uv16 returns the raw 16-bit P010 chroma words at chroma coordinates.
func (b *PixelBuffer) uv16(cx, cy int) (u, v uint16) {
	off := (cy*b.UVStride + 2*cx) * 2
	return binary.LittleEndian.Uint16(b.UV[off:]), binary.LittleEndian.Uint16(b.UV[off+2:])
}

func (b *PixelBuffer) setY16(x, y int, v uint16) {
	off := (y*b.YStride + x) * 2
	binary.LittleEndian.PutUint16(b.Y[off:], v)
}

func (b *PixelBuffer) setUV16(cx, cy int, u, v uint16) {
	off := (cy*b.UVStride + 2*cx) * 2
	binary.LittleEndian.PutUint16(b.UV[off:], u)
	binary.LittleEndian.PutUint16(b.UV[off+2:], v)
}

func (b *PixelBuffer) setRGBA8888(x, y int, r, g, bl, a uint8) {
	off := (y*b.YStride + x) * 4
	b.Y[off] = r
	b.Y[off+1] = g
	b.Y[off+2] = bl
	b.Y[off+3] = a
}

func (b *PixelBuffer) rgba8888(x, y int) (r, g, bl, a uint8) {
	off := (y*b.YStride + x) * 4
	return b.Y[off], b.Y[off+1], b.Y[off+2], b.Y[off+3]
}

func (b *PixelBuffer) setRGBAF16(x, y int, r, g, bl, a float32) {
	off := (y*b.YStride + x) * 8
	binary.LittleEndian.PutUint16(b.Y[off:], halfFromFloat32(r))
	binary.LittleEndian.PutUint16(b.Y[off+2:], halfFromFloat32(g))
	binary.LittleEndian.PutUint16(b.Y[off+4:], halfFromFloat32(bl))
	binary.LittleEndian.PutUint16(b.Y[off+6:], halfFromFloat32(a))
}

func (b *PixelBuffer) rgbaF16(x, y int) (r, g, bl, a float32) {
	off := (y*b.YStride + x) * 8
	return float32FromHalf(binary.LittleEndian.Uint16(b.Y[off:])),
		float32FromHalf(binary.LittleEndian.Uint16(b.Y[off+2:])),
		float32FromHalf(binary.LittleEndian.Uint16(b.Y[off+4:])),
		float32FromHalf(binary.LittleEndian.Uint16(b.Y[off+6:]))
}

func (b *PixelBuffer) setRGBA1010102(x, y int, r, g, bl uint32) {
	off := (y*b.YStride + x) * 4
	word := (r & 0x3FF) | (g&0x3FF)<<10 | (bl&0x3FF)<<20 | 0x3<<30
	binary.LittleEndian.PutUint32(b.Y[off:], word)
}

func (b *PixelBuffer) rgba1010102(x, y int) (r, g, bl uint32) {
	off := (y*b.YStride + x) * 4
	word := binary.LittleEndian.Uint32(b.Y[off:])
	return word & 0x3FF, (word >> 10) & 0x3FF, (word >> 20) & 0x3FF
}

// rgb10PlaneSize is the byte length of one FormatRGB10Planar channel plane.
func (b *PixelBuffer) rgb10PlaneSize() int {
	return b.YStride * b.Height * 2
}

func (b *PixelBuffer) setRGB10Planar(x, y int, r, g, bl uint16) {
	plane := b.rgb10PlaneSize()
	off := (y*b.YStride + x) * 2
	binary.LittleEndian.PutUint16(b.Y[off:], r&0x3FF)
	binary.LittleEndian.PutUint16(b.Y[plane+off:], g&0x3FF)
	binary.LittleEndian.PutUint16(b.Y[2*plane+off:], bl&0x3FF)
}

func (b *PixelBuffer) rgb10Planar(x, y int) (r, g, bl uint16) {
	plane := b.rgb10PlaneSize()
	off := (y*b.YStride + x) * 2
	return binary.LittleEndian.Uint16(b.Y[off:]),
		binary.LittleEndian.Uint16(b.Y[plane+off:]),
		binary.LittleEndian.Uint16(b.Y[2*plane+off:])
}

// CompressedImage is an opaque encoded byte range with its declared gamut.
type CompressedImage struct {
	Data  []byte
	Gamut ColorGamut
}
