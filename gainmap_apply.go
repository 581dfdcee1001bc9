package uhdr

import "github.com/pkg/errors"

// GainMapApplyOptions controls gain map application.
type GainMapApplyOptions struct {
	// OutputFormat selects the output layout: FormatRGBA8888 renders the
	// SDR base image, FormatRGBAF16 and FormatRGB10Planar render linear
	// HDR, FormatRGBA1010102 renders HLG or PQ encoded HDR per Transfer.
	OutputFormat PixelFormat
	// Transfer selects the HDR output encoding for FormatRGBA1010102
	// (HLG or PQ) and must be linear or unspecified for FormatRGBAF16 and
	// FormatRGB10Planar.
	Transfer ColorTransfer
	// MaxDisplayBoost is the display's HDR headroom, >= 1. Zero means
	// "use the full content range".
	MaxDisplayBoost float32
	// Workers caps internal parallelism; 0 selects min(NumCPU, 4).
	Workers int
}

// ApplyGainMap renders an output buffer from an SDR YUV 4:2:0 base image,
// a monochrome gain map and its metadata. The SDR input is demosaiced with
// BT.601 coefficients, matching images sourced from a JPEG decode.
func ApplyGainMap(sdr, gainmap *PixelBuffer, meta *GainMapMetadata, opts *GainMapApplyOptions) (*PixelBuffer, error) {
	if sdr == nil || gainmap == nil || meta == nil {
		return nil, ErrBadPointer
	}
	if err := sdr.validate(); err != nil {
		return nil, err
	}
	if err := gainmap.validate(); err != nil {
		return nil, err
	}
	if sdr.Format != FormatYUV420 || gainmap.Format != FormatMonochrome {
		return nil, errors.Wrap(ErrUnsupportedFeature, "applier needs YUV420 base and monochrome map")
	}
	if err := meta.validateForApply(); err != nil {
		return nil, err
	}
	if gainmap.Width > sdr.Width || gainmap.Height > sdr.Height {
		return nil, errors.Wrapf(ErrUnsupportedMapScaleFactor, "map %dx%d exceeds base %dx%d",
			gainmap.Width, gainmap.Height, sdr.Width, sdr.Height)
	}

	var o GainMapApplyOptions
	if opts != nil {
		o = *opts
	}
	if o.MaxDisplayBoost != 0 && o.MaxDisplayBoost < 1.0 {
		return nil, ErrInvalidDisplayBoost
	}

	switch o.OutputFormat {
	case FormatRGBA8888:
		return renderSDR(sdr, defaultWorkers(o.Workers))
	case FormatRGBAF16, FormatRGB10Planar:
		if o.Transfer != TransferLinear && o.Transfer != TransferUnspecified {
			return nil, errors.Wrap(ErrUnsupportedFeature, "F16 and planar 10-bit outputs are linear only")
		}
	case FormatRGBA1010102:
		if o.Transfer != TransferHLG && o.Transfer != TransferPQ {
			return nil, ErrInvalidTransfer
		}
	default:
		return nil, ErrInvalidOutputFormat
	}

	displayBoost := meta.MaxContentBoost
	if o.MaxDisplayBoost != 0 && o.MaxDisplayBoost < displayBoost {
		displayBoost = o.MaxDisplayBoost
	}
	lut := newGainLUT(meta, displayBoost)

	// Integral and equal axis ratios get Shepard inverse-distance
	// weighting; anything else falls back to bilinear sampling.
	scale := 0
	if sdr.Width%gainmap.Width == 0 && sdr.Height%gainmap.Height == 0 &&
		sdr.Width/gainmap.Width == sdr.Height/gainmap.Height {
		scale = sdr.Width / gainmap.Width
	}
	var idw *shepardsIDW
	jobRows := kJobSzInRows
	if scale > 1 {
		idw = newShepardsIDW(scale)
		jobRows = scale
	}

	out, err := NewPixelBuffer(o.OutputFormat, sdr.Width, sdr.Height, sdr.Gamut)
	if err != nil {
		return nil, err
	}

	var outOetf func(float32) float32
	switch o.Transfer {
	case TransferHLG:
		outOetf = hlgOetf
	case TransferPQ:
		outOetf = pqOetf
	}

	invW := 1.0 / float32(sdr.Width)
	invH := 1.0 / float32(sdr.Height)

	renderRows := func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < sdr.Width; x++ {
				sy, su, sv := sampleYUV444(sdr, x, y)
				base := yuv601ToRGB(sy, su, sv)
				base = rgb{
					r: srgbInvOetfLUT(base.r),
					g: srgbInvOetfLUT(base.g),
					b: srgbInvOetfLUT(base.b),
				}

				var hdr rgb
				switch {
				case scale == 1:
					hdr = lut.apply(base, gainmap.y8(x, y), meta)
				case idw != nil:
					g := idw.sample(gainmap, x, y)
					hdr = applyGain(base, g, meta, displayBoost)
				default:
					g := sampleMapBilinear(gainmap, (float32(x)+0.5)*invW, (float32(y)+0.5)*invH)
					hdr = applyGain(base, g, meta, displayBoost)
				}

				// Normalize into [0, 1] against the display boost.
				hdr.r = clamp01(hdr.r / displayBoost)
				hdr.g = clamp01(hdr.g / displayBoost)
				hdr.b = clamp01(hdr.b / displayBoost)

				switch o.OutputFormat {
				case FormatRGBAF16:
					out.setRGBAF16(x, y, hdr.r, hdr.g, hdr.b, 1.0)
				case FormatRGB10Planar:
					out.setRGB10Planar(x, y,
						uint16(hdr.r*1023.0+0.5),
						uint16(hdr.g*1023.0+0.5),
						uint16(hdr.b*1023.0+0.5))
				default:
					out.setRGBA1010102(x, y,
						uint32(outOetf(hdr.r)*1023.0+0.5),
						uint32(outOetf(hdr.g)*1023.0+0.5),
						uint32(outOetf(hdr.b)*1023.0+0.5))
				}
			}
		}
	}

	runRowJobs(sdr.Height, jobRows, defaultWorkers(o.Workers), renderRows)
	return out, nil
}

// renderSDR converts the base image to interleaved RGBA without applying
// the gain map.
func renderSDR(sdr *PixelBuffer, workers int) (*PixelBuffer, error) {
	out, err := NewPixelBuffer(FormatRGBA8888, sdr.Width, sdr.Height, sdr.Gamut)
	if err != nil {
		return nil, err
	}
	renderRows := func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < sdr.Width; x++ {
				sy, su, sv := sampleYUV444(sdr, x, y)
				c := yuv601ToRGB(sy, su, sv)
				out.setRGBA8888(x, y,
					uint8(c.r*255.0+0.5),
					uint8(c.g*255.0+0.5),
					uint8(c.b*255.0+0.5),
					255)
			}
		}
	}
	runRowJobs(sdr.Height, kJobSzInRows, workers, renderRows)
	return out, nil
}
