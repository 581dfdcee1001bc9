package uhdr

import "math"

// encodeGain maps an SDR/HDR luminance pair (in nits) to an 8-bit gain map
// sample. log2Min and log2Max are precomputed from the metadata boosts.
func encodeGain(ySdr, yHdr float32, meta *GainMapMetadata, log2Min, log2Max float32) uint8 {
	ratio := float32(1.0)
	if denom := ySdr + meta.OffsetSDR; denom > 0 {
		ratio = (yHdr + meta.OffsetHDR) / denom
	}
	if ratio < meta.MinContentBoost {
		ratio = meta.MinContentBoost
	}
	if ratio > meta.MaxContentBoost {
		ratio = meta.MaxContentBoost
	}
	g := float32(0)
	if log2Max != log2Min {
		g = (log2f(ratio) - log2Min) / (log2Max - log2Min)
	}
	if meta.Gamma != 1 {
		g = powf(g, 1.0/meta.Gamma)
	}
	v := g * 255.0
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}

// applyGain recovers HDR linear RGB from SDR linear RGB and a normalized
// gain sample, limiting the boost to the display capability.
func applyGain(e rgb, gain float32, meta *GainMapMetadata, displayBoost float32) rgb {
	if meta.Gamma != 1 {
		gain = powf(gain, meta.Gamma)
	}
	logBoost := log2f(meta.MinContentBoost)*(1.0-gain) + log2f(meta.MaxContentBoost)*gain
	gainFactor := exp2f(logBoost)
	if gainFactor > displayBoost {
		gainFactor = displayBoost
	}
	return rgb{
		r: (e.r+meta.OffsetSDR)*gainFactor - meta.OffsetHDR,
		g: (e.g+meta.OffsetSDR)*gainFactor - meta.OffsetHDR,
		b: (e.b+meta.OffsetSDR)*gainFactor - meta.OffsetHDR,
	}
}

// gainLUT precomputes the effective gain factor for every 8-bit map sample
// under fixed metadata and display boost.
type gainLUT struct {
	factors [256]float32
}

func newGainLUT(meta *GainMapMetadata, displayBoost float32) *gainLUT {
	l := &gainLUT{}
	logMin := log2f(meta.MinContentBoost)
	logMax := log2f(meta.MaxContentBoost)
	for i := range l.factors {
		g := float32(i) / 255.0
		if meta.Gamma != 1 {
			g = powf(g, meta.Gamma)
		}
		f := exp2f(logMin*(1.0-g) + logMax*g)
		if f > displayBoost {
			f = displayBoost
		}
		l.factors[i] = f
	}
	return l
}

func (l *gainLUT) apply(e rgb, sample uint8, meta *GainMapMetadata) rgb {
	f := l.factors[sample]
	return rgb{
		r: (e.r+meta.OffsetSDR)*f - meta.OffsetHDR,
		g: (e.g+meta.OffsetSDR)*f - meta.OffsetHDR,
		b: (e.b+meta.OffsetSDR)*f - meta.OffsetHDR,
	}
}

// shepardsIDW holds an inverse-distance-weighted interpolation table for an
// integral map scale factor. For each sub-pixel offset it stores four
// weights, one per enclosing gain map sample, normalized to sum to 1.
type shepardsIDW struct {
	scale   int
	weights []float32 // scale*scale entries of 4 weights
}

func newShepardsIDW(scale int) *shepardsIDW {
	t := &shepardsIDW{scale: scale, weights: make([]float32, scale*scale*4)}
	anchors := [4][2]float32{
		{0, 0},
		{float32(scale), 0},
		{0, float32(scale)},
		{float32(scale), float32(scale)},
	}
	for dy := 0; dy < scale; dy++ {
		for dx := 0; dx < scale; dx++ {
			base := (dy*scale + dx) * 4
			exact := -1
			var sum float32
			var w [4]float32
			for i, a := range anchors {
				ddx := float32(dx) - a[0]
				ddy := float32(dy) - a[1]
				d := float32(math.Sqrt(float64(ddx*ddx + ddy*ddy)))
				if d == 0 {
					exact = i
					break
				}
				w[i] = 1.0 / d
				sum += w[i]
			}
			if exact >= 0 {
				t.weights[base+exact] = 1
				continue
			}
			for i := range w {
				t.weights[base+i] = w[i] / sum
			}
		}
	}
	return t
}

// sample interpolates the gain map at base-image coordinates (x, y).
func (t *shepardsIDW) sample(gm *PixelBuffer, x, y int) float32 {
	gx := x / t.scale
	gy := y / t.scale
	dx := x - gx*t.scale
	dy := y - gy*t.scale

	gx1 := gx + 1
	gy1 := gy + 1
	if gx1 >= gm.Width {
		gx1 = gm.Width - 1
	}
	if gy1 >= gm.Height {
		gy1 = gm.Height - 1
	}

	base := (dy*t.scale + dx) * 4
	v := t.weights[base]*float32(gm.y8(gx, gy)) +
		t.weights[base+1]*float32(gm.y8(gx1, gy)) +
		t.weights[base+2]*float32(gm.y8(gx, gy1)) +
		t.weights[base+3]*float32(gm.y8(gx1, gy1))
	return v / 255.0
}

// sampleMapBilinear interpolates the gain map at normalized coordinates for
// non-integral scale factors.
func sampleMapBilinear(gm *PixelBuffer, fx, fy float32) float32 {
	px := fx*float32(gm.Width) - 0.5
	py := fy*float32(gm.Height) - 0.5
	if px < 0 {
		px = 0
	}
	if py < 0 {
		py = 0
	}
	x0 := int(px)
	y0 := int(py)
	x1 := x0 + 1
	y1 := y0 + 1
	if x0 >= gm.Width {
		x0 = gm.Width - 1
	}
	if y0 >= gm.Height {
		y0 = gm.Height - 1
	}
	if x1 >= gm.Width {
		x1 = gm.Width - 1
	}
	if y1 >= gm.Height {
		y1 = gm.Height - 1
	}
	wx := px - float32(x0)
	wy := py - float32(y0)

	top := float32(gm.y8(x0, y0))*(1-wx) + float32(gm.y8(x1, y0))*wx
	bot := float32(gm.y8(x0, y1))*(1-wx) + float32(gm.y8(x1, y1))*wx
	return (top*(1-wy) + bot*wy) / 255.0
}
