package uhdr

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

const (
	sdrWhiteNits = 203.0
	hlgMaxNits   = 1000.0
	pqMaxNits    = 10000.0
)

// kJobSzInRows is the height of one parallel job in base image rows. It is
// a multiple of the map scale factor so each job owns whole map rows.
const kJobSzInRows = 16

// GainMapGenOptions controls gain map generation.
type GainMapGenOptions struct {
	// Transfer is the HDR input's transfer function: linear, HLG or PQ.
	Transfer ColorTransfer
	// SDRIsBT601 forces BT.601 YUV coefficients for the SDR input, as
	// required for images sourced from a JPEG decode.
	SDRIsBT601 bool
	// Workers caps internal parallelism; 0 selects min(NumCPU, 4).
	Workers int
}

func defaultWorkers(requested int) int {
	if requested > 0 {
		return requested
	}
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// GenerateGainMap derives a monochrome gain map at 1/4 resolution per axis
// plus its metadata from an SDR YUV 4:2:0 image and an HDR P010 image of
// equal dimensions.
func GenerateGainMap(sdr, hdr *PixelBuffer, opts *GainMapGenOptions) (*PixelBuffer, *GainMapMetadata, error) {
	if sdr == nil || hdr == nil {
		return nil, nil, ErrBadPointer
	}
	if err := sdr.validate(); err != nil {
		return nil, nil, err
	}
	if err := hdr.validate(); err != nil {
		return nil, nil, err
	}
	if sdr.Format != FormatYUV420 || hdr.Format != FormatP010 {
		return nil, nil, errors.Wrap(ErrUnsupportedFeature, "generator needs YUV420 SDR and P010 HDR")
	}
	if sdr.Width != hdr.Width || sdr.Height != hdr.Height {
		return nil, nil, errors.Wrapf(ErrResolutionMismatch, "%dx%d vs %dx%d", sdr.Width, sdr.Height, hdr.Width, hdr.Height)
	}
	if sdr.Gamut == GamutUnspecified || hdr.Gamut == GamutUnspecified {
		return nil, nil, ErrInvalidGamut
	}
	if sdr.Width%gainMapScaleFactor != 0 || sdr.Height%gainMapScaleFactor != 0 {
		return nil, nil, errors.Wrapf(ErrUnsupportedWidthHeight, "%dx%d not divisible by %d", sdr.Width, sdr.Height, gainMapScaleFactor)
	}

	var o GainMapGenOptions
	if opts != nil {
		o = *opts
	}
	hdrInvOetf, err := invOetfForTransfer(o.Transfer)
	if err != nil {
		return nil, nil, err
	}
	hdrWhiteNits := float32(hlgMaxNits)
	if o.Transfer == TransferPQ {
		hdrWhiteNits = pqMaxNits
	}

	meta := &GainMapMetadata{
		Version:         metadataVersion,
		MinContentBoost: 1.0,
		MaxContentBoost: hdrWhiteNits / sdrWhiteNits,
		Gamma:           1.0,
		HDRCapacityMin:  1.0,
		HDRCapacityMax:  hdrWhiteNits / sdrWhiteNits,
	}
	log2Min := log2f(meta.MinContentBoost)
	log2Max := log2f(meta.MaxContentBoost)

	gm, err := NewPixelBuffer(FormatMonochrome, sdr.Width/gainMapScaleFactor, sdr.Height/gainMapScaleFactor, GamutUnspecified)
	if err != nil {
		return nil, nil, err
	}

	sdrYuvToRGB := yuvToRGBForGamut(sdr.Gamut)
	if o.SDRIsBT601 {
		sdrYuvToRGB = yuv601ToRGB
	}
	hdrYuvToRGB := yuvToRGBForGamut(hdr.Gamut)
	hdrToSdrGamut := gamutConversion(hdr.Gamut, sdr.Gamut)
	luminance := luminanceForGamut(sdr.Gamut)

	genRows := func(mapStart, mapEnd int) {
		for my := mapStart; my < mapEnd; my++ {
			y := my * gainMapScaleFactor
			for mx := 0; mx < gm.Width; mx++ {
				x := mx * gainMapScaleFactor

				sy, su, sv := sampleYUV444(sdr, x, y)
				rgbSdr := sdrYuvToRGB(sy, su, sv)
				rgbSdr = rgb{
					r: srgbInvOetfLUT(rgbSdr.r),
					g: srgbInvOetfLUT(rgbSdr.g),
					b: srgbInvOetfLUT(rgbSdr.b),
				}
				ySdr := luminance(rgbSdr) * sdrWhiteNits

				hy, hu, hv := sampleP010(hdr, x, y)
				rgbHdr := hdrYuvToRGB(hy, hu, hv)
				rgbHdr = rgb{
					r: hdrInvOetf(rgbHdr.r),
					g: hdrInvOetf(rgbHdr.g),
					b: hdrInvOetf(rgbHdr.b),
				}
				rgbHdr = hdrToSdrGamut(rgbHdr)
				yHdr := luminance(rgbHdr) * hdrWhiteNits

				gm.setY8(mx, my, encodeGain(ySdr, yHdr, meta, log2Min, log2Max))
			}
		}
	}

	runRowJobs(gm.Height, kJobSzInRows/gainMapScaleFactor, defaultWorkers(o.Workers), genRows)
	return gm, meta, nil
}

// runRowJobs partitions [0, rows) into jobs of jobRows rows and drains them
// with workers-1 goroutines plus the calling thread.
func runRowJobs(rows, jobRows, workers int, fn func(start, end int)) {
	if jobRows < 1 {
		jobRows = 1
	}
	q := newJobQueue()
	for start := 0; start < rows; start += jobRows {
		end := start + jobRows
		if end > rows {
			end = rows
		}
		q.Enqueue(start, end)
	}
	q.MarkDone()

	work := func() {
		for {
			job, ok := q.Dequeue()
			if !ok {
				return
			}
			fn(job.start, job.end)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			work()
		}()
	}
	work()
	wg.Wait()
}

// sampleYUV444 reads a 4:2:0 pixel with 4:4:4 chroma upsampling: luma from
// the addressed pixel, chroma bilinearly filtered from the co-sited
// neighborhood so the half-resolution grid stays consistent.
func sampleYUV444(b *PixelBuffer, x, y int) (yv, u, v float32) {
	yv = float32(b.y8(x, y)) / 255.0

	cx := x / 2
	cy := y / 2
	cw := b.Width / 2
	ch := b.Height / 2

	// The nearest diagonal chroma neighbor depends on which quadrant of
	// the chroma cell the luma pixel falls in.
	nx := cx + 1
	if x%2 == 0 {
		nx = cx - 1
	}
	ny := cy + 1
	if y%2 == 0 {
		ny = cy - 1
	}
	if nx < 0 {
		nx = 0
	}
	if nx >= cw {
		nx = cw - 1
	}
	if ny < 0 {
		ny = 0
	}
	if ny >= ch {
		ny = ch - 1
	}

	bilerp := func(c00, c10, c01, c11 uint8) float32 {
		return (9.0*float32(c00) + 3.0*float32(c10) + 3.0*float32(c01) + float32(c11)) / 16.0
	}
	u = bilerp(b.u8(cx, cy), b.u8(nx, cy), b.u8(cx, ny), b.u8(nx, ny))/255.0 - 0.5
	v = bilerp(b.v8(cx, cy), b.v8(nx, cy), b.v8(cx, ny), b.v8(nx, ny))/255.0 - 0.5
	return yv, u, v
}

// sampleP010 reads a P010 pixel, shifting words right by 6 to obtain the
// 10-bit samples and mapping them to [0, 1].
func sampleP010(b *PixelBuffer, x, y int) (yv, u, v float32) {
	yv = float32(b.y16(x, y)>>6) / 1023.0
	cu, cv := b.uv16(x/2, y/2)
	u = float32(cu>>6)/1023.0 - 0.5
	v = float32(cv>>6)/1023.0 - 0.5
	return yv, u, v
}
