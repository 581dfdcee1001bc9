package uhdr

import "github.com/pkg/errors"

// MirrorAxis selects the mirroring direction.
type MirrorAxis int

const (
	// MirrorHorizontal flips columns (left-right).
	MirrorHorizontal MirrorAxis = iota
	// MirrorVertical flips rows (top-bottom).
	MirrorVertical
)

// Effect is a geometric edit applied to a base image and its gain map as a
// linked pair. Implementations are the closed set of variants below.
type Effect interface {
	isEffect()
}

// Crop keeps the inclusive pixel rectangle [Left, Right] x [Top, Bottom].
type Crop struct {
	Left, Right, Top, Bottom int
}

// Mirror flips the image around the given axis.
type Mirror struct {
	Axis MirrorAxis
}

// Rotate turns the image clockwise by 90, 180 or 270 degrees.
type Rotate struct {
	Degrees int
}

// Resize scales to the given dimensions with nearest-neighbor sampling.
type Resize struct {
	Width, Height int
}

func (Crop) isEffect()   {}
func (Mirror) isEffect() {}
func (Rotate) isEffect() {}
func (Resize) isEffect() {}

// maxEditBufferSize bounds intermediate edit results to 4K 4:2:0 frames.
const maxEditBufferSize = 3840 * 2160 * 3 / 2

// AddEffects applies the ordered effect list to src and returns the final
// image. Mirror and Rotate affect a base image and its gain map alike; Crop
// and Resize take absolute pixel parameters, so the gain map copy of a list
// needs them divided by the base/map ratio (see scaleEffectForMap).
func AddEffects(src *PixelBuffer, effects []Effect) (*PixelBuffer, error) {
	if src == nil {
		return nil, ErrBadPointer
	}
	if err := src.validate(); err != nil {
		return nil, err
	}
	if src.Format != FormatYUV420 && src.Format != FormatMonochrome {
		return nil, errors.Wrap(ErrUnsupportedFeature, "effects operate on YUV420 and monochrome buffers")
	}

	cur := src
	for _, e := range effects {
		var (
			next *PixelBuffer
			err  error
		)
		switch ef := e.(type) {
		case Crop:
			next, err = cropBuffer(cur, ef)
		case Mirror:
			next, err = mirrorBuffer(cur, ef.Axis)
		case Rotate:
			next, err = rotateBuffer(cur, ef.Degrees)
		case Resize:
			next, err = resizeBuffer(cur, ef.Width, ef.Height)
		default:
			err = errors.Wrap(ErrUnsupportedFeature, "unknown effect")
		}
		if err != nil {
			return nil, err
		}
		if len(next.Data) > maxEditBufferSize {
			return nil, errors.Wrapf(ErrBufferTooSmall, "intermediate %dx%d exceeds the edit buffer", next.Width, next.Height)
		}
		cur = next
	}
	if cur == src {
		// Empty effect list: hand back a copy so the caller owns it.
		out, err := NewPixelBuffer(src.Format, src.Width, src.Height, src.Gamut)
		if err != nil {
			return nil, err
		}
		copyPlanes(out, src)
		return out, nil
	}
	return cur, nil
}

func copyPlanes(dst, src *PixelBuffer) {
	for y := 0; y < src.Height; y++ {
		copy(dst.Y[y*dst.YStride:], src.Y[y*src.YStride:y*src.YStride+src.Width*src.Format.bytesPerSample()])
	}
	if src.Format != FormatYUV420 {
		return
	}
	for cy := 0; cy < src.Height/2; cy++ {
		for cx := 0; cx < src.Width/2; cx++ {
			dst.setU8(cx, cy, src.u8(cx, cy))
			dst.setV8(cx, cy, src.v8(cx, cy))
		}
	}
}

func cropBuffer(src *PixelBuffer, c Crop) (*PixelBuffer, error) {
	if c.Left < 0 || c.Left > c.Right || c.Right >= src.Width ||
		c.Top < 0 || c.Top > c.Bottom || c.Bottom >= src.Height {
		return nil, errors.Wrapf(ErrInvalidCropping, "rect %d..%d x %d..%d in %dx%d",
			c.Left, c.Right, c.Top, c.Bottom, src.Width, src.Height)
	}
	w := c.Right - c.Left + 1
	h := c.Bottom - c.Top + 1
	if src.Format == FormatYUV420 && (w%2 != 0 || h%2 != 0) {
		return nil, errors.Wrapf(ErrInvalidCropping, "odd crop %dx%d for 4:2:0", w, h)
	}

	out, err := NewPixelBuffer(src.Format, w, h, src.Gamut)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		srcOff := (c.Top + y) * src.YStride
		copy(out.Y[y*out.YStride:y*out.YStride+w], src.Y[srcOff+c.Left:srcOff+c.Left+w])
	}
	if src.Format == FormatYUV420 {
		cl := c.Left / 2
		ct := c.Top / 2
		for cy := 0; cy < h/2; cy++ {
			for cx := 0; cx < w/2; cx++ {
				out.setU8(cx, cy, src.u8(cl+cx, ct+cy))
				out.setV8(cx, cy, src.v8(cl+cx, ct+cy))
			}
		}
	}
	return out, nil
}

func mirrorBuffer(src *PixelBuffer, axis MirrorAxis) (*PixelBuffer, error) {
	out, err := NewPixelBuffer(src.Format, src.Width, src.Height, src.Gamut)
	if err != nil {
		return nil, err
	}
	w, h := src.Width, src.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if axis == MirrorVertical {
				out.setY8(x, y, src.y8(x, h-1-y))
			} else {
				out.setY8(x, y, src.y8(w-1-x, y))
			}
		}
	}
	if src.Format == FormatYUV420 {
		cw, ch := w/2, h/2
		for cy := 0; cy < ch; cy++ {
			for cx := 0; cx < cw; cx++ {
				if axis == MirrorVertical {
					out.setU8(cx, cy, src.u8(cx, ch-1-cy))
					out.setV8(cx, cy, src.v8(cx, ch-1-cy))
				} else {
					out.setU8(cx, cy, src.u8(cw-1-cx, cy))
					out.setV8(cx, cy, src.v8(cw-1-cx, cy))
				}
			}
		}
	}
	return out, nil
}

func rotateBuffer(src *PixelBuffer, degrees int) (*PixelBuffer, error) {
	if degrees != 90 && degrees != 180 && degrees != 270 {
		return nil, errors.Wrapf(ErrInvalidCropping, "rotation %d degrees", degrees)
	}
	w, h := src.Width, src.Height
	ow, oh := w, h
	if degrees != 180 {
		ow, oh = h, w
	}
	out, err := NewPixelBuffer(src.Format, ow, oh, src.Gamut)
	if err != nil {
		return nil, err
	}

	rotate8 := func(get func(x, y int) uint8, set func(x, y int, v uint8), ow, oh, w, h int) {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				switch degrees {
				case 90:
					set(x, y, get(y, h-1-x))
				case 180:
					set(x, y, get(w-1-x, h-1-y))
				case 270:
					set(x, y, get(w-1-y, x))
				}
			}
		}
	}

	rotate8(src.y8, out.setY8, ow, oh, w, h)
	if src.Format == FormatYUV420 {
		rotate8(src.u8, out.setU8, ow/2, oh/2, w/2, h/2)
		rotate8(src.v8, out.setV8, ow/2, oh/2, w/2, h/2)
	}
	return out, nil
}

func resizeBuffer(src *PixelBuffer, nw, nh int) (*PixelBuffer, error) {
	if nw <= 0 || nh <= 0 {
		return nil, errors.Wrapf(ErrInvalidCropping, "resize to %dx%d", nw, nh)
	}
	if src.Format == FormatYUV420 && (nw%2 != 0 || nh%2 != 0) {
		return nil, errors.Wrapf(ErrInvalidCropping, "odd resize %dx%d for 4:2:0", nw, nh)
	}
	out, err := NewPixelBuffer(src.Format, nw, nh, src.Gamut)
	if err != nil {
		return nil, err
	}

	nearest := func(get func(x, y int) uint8, set func(x, y int, v uint8), ow, oh, w, h int) {
		for y := 0; y < oh; y++ {
			sy := y * h / oh
			for x := 0; x < ow; x++ {
				set(x, y, get(x*w/ow, sy))
			}
		}
	}

	nearest(src.y8, out.setY8, nw, nh, src.Width, src.Height)
	if src.Format == FormatYUV420 {
		nearest(src.u8, out.setU8, nw/2, nh/2, src.Width/2, src.Height/2)
		nearest(src.v8, out.setV8, nw/2, nh/2, src.Width/2, src.Height/2)
	}
	return out, nil
}
