package uhdr

// ToneMap produces an SDR YUV 4:2:0 surrogate from a P010 buffer of equal
// dimensions by dropping the low two bits of each 10-bit sample. This
// conservative reduction keeps downstream gain map generation reproducible;
// a perceptual tone curve is a possible future replacement.
func ToneMap(hdr *PixelBuffer) (*PixelBuffer, error) {
	if hdr == nil {
		return nil, ErrBadPointer
	}
	if err := hdr.validate(); err != nil {
		return nil, err
	}
	if hdr.Format != FormatP010 {
		return nil, ErrInvalidOutputFormat
	}

	out, err := NewPixelBuffer(FormatYUV420, hdr.Width, hdr.Height, hdr.Gamut)
	if err != nil {
		return nil, err
	}

	for y := 0; y < hdr.Height; y++ {
		row := out.Y[y*out.YStride : y*out.YStride+out.YStride]
		for x := 0; x < hdr.Width; x++ {
			row[x] = uint8((hdr.y16(x, y) >> 6) >> 2)
		}
		for x := hdr.Width; x < out.YStride; x++ {
			row[x] = 0
		}
	}
	for cy := 0; cy < hdr.Height/2; cy++ {
		for cx := 0; cx < hdr.Width/2; cx++ {
			u, v := hdr.uv16(cx, cy)
			out.setU8(cx, cy, uint8((u>>6)>>2))
			out.setV8(cx, cy, uint8((v>>6)>>2))
		}
	}
	return out, nil
}
