package uhdr

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/pkg/errors"
)

// stdJPEGCodec is the built-in JPEG collaborator backed by the standard
// image/jpeg package. ICC payloads are spliced in as APP2 segments after
// encoding, since the standard encoder does not write them.
type stdJPEGCodec struct{}

// NewJPEGCodec returns the default JPEG collaborator.
func NewJPEGCodec() JPEGCodec {
	return stdJPEGCodec{}
}

func (stdJPEGCodec) Compress(buf *PixelBuffer, quality int, icc [][]byte) ([]byte, error) {
	if buf == nil {
		return nil, ErrBadPointer
	}
	if quality < 0 || quality > 100 {
		return nil, ErrInvalidQuality
	}

	var img image.Image
	switch buf.Format {
	case FormatYUV420:
		ycc := image.NewYCbCr(image.Rect(0, 0, buf.Width, buf.Height), image.YCbCrSubsampleRatio420)
		for y := 0; y < buf.Height; y++ {
			copy(ycc.Y[y*ycc.YStride:], buf.Y[y*buf.YStride:y*buf.YStride+buf.Width])
		}
		for cy := 0; cy < buf.Height/2; cy++ {
			for cx := 0; cx < buf.Width/2; cx++ {
				ycc.Cb[cy*ycc.CStride+cx] = buf.u8(cx, cy)
				ycc.Cr[cy*ycc.CStride+cx] = buf.v8(cx, cy)
			}
		}
		img = ycc
	case FormatMonochrome:
		gray := image.NewGray(image.Rect(0, 0, buf.Width, buf.Height))
		for y := 0; y < buf.Height; y++ {
			copy(gray.Pix[y*gray.Stride:], buf.Y[y*buf.YStride:y*buf.YStride+buf.Width])
		}
		img = gray
	default:
		return nil, errors.Wrap(ErrUnsupportedFeature, "jpeg codec accepts YUV420 and monochrome")
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(ErrEncode, err.Error())
	}
	if len(icc) == 0 {
		return out.Bytes(), nil
	}

	// Re-emit with the ICC segments directly after SOI.
	data := out.Bytes()
	var withICC bytes.Buffer
	withICC.Write(data[:2])
	for _, seg := range icc {
		writeAppSegment(&withICC, markerAPP2, seg)
	}
	withICC.Write(data[2:])
	return withICC.Bytes(), nil
}

func (stdJPEGCodec) Decompress(data []byte) (*DecodedImage, error) {
	if len(data) == 0 {
		return nil, ErrBadPointer
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}

	var buf *PixelBuffer
	switch src := img.(type) {
	case *image.YCbCr:
		buf, err = yCbCrToBuffer(src)
	case *image.Gray:
		buf, err = NewPixelBuffer(FormatMonochrome, src.Bounds().Dx(), src.Bounds().Dy(), GamutBT709)
		if err == nil {
			for y := 0; y < buf.Height; y++ {
				copy(buf.Y[y*buf.YStride:], src.Pix[y*src.Stride:y*src.Stride+buf.Width])
			}
		}
	default:
		return nil, errors.Wrap(ErrDecode, "unsupported jpeg pixel model")
	}
	if err != nil {
		return nil, err
	}

	out := &DecodedImage{Pixels: buf}
	if app1, app2, segErr := extractAppSegments(data); segErr == nil {
		for _, seg := range app1 {
			if bytes.HasPrefix(seg, exifSig) && out.EXIF == nil {
				out.EXIF = append([]byte(nil), seg...)
			}
		}
		if xmp := findXMP(app1); xmp != nil {
			out.XMP = append([]byte(nil), xmp...)
		}
		for _, seg := range app2 {
			if bytes.HasPrefix(seg, iccSig) {
				out.ICC = append(out.ICC, append([]byte(nil), seg...))
			}
		}
	}
	return out, nil
}

// yCbCrToBuffer converts a decoded YCbCr image to a 4:2:0 pixel buffer,
// subsampling denser chroma layouts by point sampling.
func yCbCrToBuffer(src *image.YCbCr) (*PixelBuffer, error) {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	if w%2 != 0 || h%2 != 0 {
		// Odd dimensions are truncated to even by dropping the last
		// row/column, as 4:2:0 buffers need even sizes.
		w -= w % 2
		h -= h % 2
	}
	if w == 0 || h == 0 {
		return nil, errors.Wrap(ErrDecode, "image too small")
	}
	buf, err := NewPixelBuffer(FormatYUV420, w, h, GamutBT709)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		copy(buf.Y[y*buf.YStride:], src.Y[y*src.YStride:y*src.YStride+w])
	}
	for cy := 0; cy < h/2; cy++ {
		for cx := 0; cx < w/2; cx++ {
			off := chromaOffset(src, cx, cy)
			buf.setU8(cx, cy, src.Cb[off])
			buf.setV8(cx, cy, src.Cr[off])
		}
	}
	return buf, nil
}

func chromaOffset(src *image.YCbCr, cx, cy int) int {
	switch src.SubsampleRatio {
	case image.YCbCrSubsampleRatio420:
		return cy*src.CStride + cx
	case image.YCbCrSubsampleRatio422:
		return 2*cy*src.CStride + cx
	case image.YCbCrSubsampleRatio444:
		return 2*cy*src.CStride + 2*cx
	case image.YCbCrSubsampleRatio440:
		return cy*src.CStride + 2*cx
	default:
		return cy*src.CStride + cx
	}
}
