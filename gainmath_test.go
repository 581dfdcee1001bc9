package uhdr

import (
	"math"
	"testing"
)

func testMetadata() *GainMapMetadata {
	return &GainMapMetadata{
		Version:         metadataVersion,
		MinContentBoost: 1.0,
		MaxContentBoost: hlgMaxNits / sdrWhiteNits,
		Gamma:           1.0,
		HDRCapacityMin:  1.0,
		HDRCapacityMax:  hlgMaxNits / sdrWhiteNits,
	}
}

func TestEncodeApplyGainRoundTrip(t *testing.T) {
	meta := testMetadata()
	log2Min := log2f(meta.MinContentBoost)
	log2Max := log2f(meta.MaxContentBoost)

	for _, ratio := range []float32{1.0, 1.5, 2.0, 3.3, 4.9} {
		sample := encodeGain(sdrWhiteNits, sdrWhiteNits*ratio, meta, log2Min, log2Max)
		out := applyGain(rgb{r: 1, g: 1, b: 1}, float32(sample)/255.0, meta, meta.MaxContentBoost)
		if math.Abs(float64(out.r/ratio-1)) > 0.02 {
			t.Fatalf("ratio %v: recovered %v", ratio, out.r)
		}
		if out.r != out.g || out.r != out.b {
			t.Fatalf("monochrome gain must scale channels equally: %+v", out)
		}
	}
}

func TestEncodeGainSaturates(t *testing.T) {
	meta := testMetadata()
	log2Min := log2f(meta.MinContentBoost)
	log2Max := log2f(meta.MaxContentBoost)

	if got := encodeGain(sdrWhiteNits, sdrWhiteNits*100, meta, log2Min, log2Max); got != 255 {
		t.Fatalf("above-range ratio = %d, want 255", got)
	}
	if got := encodeGain(sdrWhiteNits, sdrWhiteNits*0.1, meta, log2Min, log2Max); got != 0 {
		t.Fatalf("below-range ratio = %d, want 0", got)
	}
}

func TestApplyGainDisplayBoostClamp(t *testing.T) {
	meta := testMetadata()
	out := applyGain(rgb{r: 1, g: 1, b: 1}, 1.0, meta, 2.0)
	if math.Abs(float64(out.r-2.0)) > 1e-5 {
		t.Fatalf("display boost clamp: got %v, want 2", out.r)
	}
}

func TestGainWithGammaRoundTrip(t *testing.T) {
	// The gamma branch is a derived property: encoding with 1/gamma and
	// applying with gamma must cancel out.
	meta := testMetadata()
	meta.Gamma = 2.2
	log2Min := log2f(meta.MinContentBoost)
	log2Max := log2f(meta.MaxContentBoost)

	for _, ratio := range []float32{1.2, 2.0, 4.0} {
		sample := encodeGain(sdrWhiteNits, sdrWhiteNits*ratio, meta, log2Min, log2Max)
		out := applyGain(rgb{r: 1, g: 1, b: 1}, float32(sample)/255.0, meta, meta.MaxContentBoost)
		if math.Abs(float64(out.r/ratio-1)) > 0.03 {
			t.Fatalf("gamma roundtrip ratio %v: recovered %v", ratio, out.r)
		}
	}
}

func TestGainLUTMatchesApplyGain(t *testing.T) {
	meta := testMetadata()
	lut := newGainLUT(meta, meta.MaxContentBoost)
	in := rgb{r: 0.5, g: 0.25, b: 1}
	for s := 0; s < 256; s++ {
		want := applyGain(in, float32(s)/255.0, meta, meta.MaxContentBoost)
		got := lut.apply(in, uint8(s), meta)
		if math.Abs(float64(got.r-want.r)) > 1e-4 ||
			math.Abs(float64(got.g-want.g)) > 1e-4 ||
			math.Abs(float64(got.b-want.b)) > 1e-4 {
			t.Fatalf("sample %d: lut %+v, exact %+v", s, got, want)
		}
	}
}

func TestShepardsIDWWeightsNormalized(t *testing.T) {
	table := newShepardsIDW(4)
	for i := 0; i < 16; i++ {
		sum := float32(0)
		for j := 0; j < 4; j++ {
			w := table.weights[i*4+j]
			if w < 0 {
				t.Fatalf("negative weight at %d", i*4+j)
			}
			sum += w
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Fatalf("offset %d: weights sum to %v", i, sum)
		}
	}
	// Exact hit on a map sample uses only that sample.
	if table.weights[0] != 1 {
		t.Fatalf("origin offset weight = %v, want 1", table.weights[0])
	}
}

func TestShepardsIDWUniformMap(t *testing.T) {
	gm, err := NewPixelBuffer(FormatMonochrome, 8, 8, GamutUnspecified)
	if err != nil {
		t.Fatal(err)
	}
	for i := range gm.Y {
		gm.Y[i] = 100
	}
	table := newShepardsIDW(4)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			got := table.sample(gm, x, y)
			if math.Abs(float64(got-100.0/255.0)) > 1e-5 {
				t.Fatalf("uniform map sample at (%d,%d) = %v", x, y, got)
			}
		}
	}
}

func TestSampleMapBilinearBounds(t *testing.T) {
	gm, err := NewPixelBuffer(FormatMonochrome, 5, 3, GamutUnspecified)
	if err != nil {
		t.Fatal(err)
	}
	for i := range gm.Y {
		gm.Y[i] = 200
	}
	for _, pos := range [][2]float32{{0, 0}, {0.5, 0.5}, {0.999, 0.999}} {
		got := sampleMapBilinear(gm, pos[0], pos[1])
		if math.Abs(float64(got-200.0/255.0)) > 1e-5 {
			t.Fatalf("bilinear at %v = %v", pos, got)
		}
	}
}
