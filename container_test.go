package uhdr

import (
	"bytes"
	"errors"
	"testing"
)

// encodeTestJPEG compresses a small gray image for container tests.
func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := grayYUV(t, w, h, 128)
	data, err := NewJPEGCodec().Compress(buf, 85, nil)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func encodeTestGainMapJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	gm := flatGainMap(t, w, h, 200)
	data, err := NewJPEGCodec().Compress(gm, gainMapQuality, nil)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestAssembleAndSplitContainer(t *testing.T) {
	primary := encodeTestJPEG(t, 64, 64)
	gainmap := encodeTestGainMapJPEG(t, 16, 16)
	meta := testMetadata()

	container, err := assembleJPEGR(primary, gainmap, meta, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(container) <= len(primary)+len(gainmap) {
		t.Fatalf("container too small: %d", len(container))
	}

	split, err := SplitContainer(container)
	if err != nil {
		t.Fatal(err)
	}
	if split.Meta == nil {
		t.Fatal("metadata missing after split")
	}
	if split.Meta.MaxContentBoost < meta.MaxContentBoost*0.99 ||
		split.Meta.MaxContentBoost > meta.MaxContentBoost*1.01 {
		t.Fatalf("max boost %v, want ~%v", split.Meta.MaxContentBoost, meta.MaxContentBoost)
	}

	// Component images must be well-formed JPEGs.
	for name, img := range map[string][]byte{"primary": split.PrimaryJPEG, "gainmap": split.GainMapJPEG} {
		if len(img) < 4 || img[0] != markerStart || img[1] != markerSOI ||
			img[len(img)-2] != markerStart || img[len(img)-1] != markerEOI {
			t.Fatalf("%s image markers invalid", name)
		}
	}

	dec, err := NewJPEGCodec().Decompress(split.GainMapJPEG)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Pixels.Format != FormatMonochrome || dec.Pixels.Width != 16 || dec.Pixels.Height != 16 {
		t.Fatalf("gainmap decode %d %dx%d", dec.Pixels.Format, dec.Pixels.Width, dec.Pixels.Height)
	}
}

func TestContainerMPFRanges(t *testing.T) {
	primary := encodeTestJPEG(t, 64, 64)
	gainmap := encodeTestGainMapJPEG(t, 16, 16)

	container, err := assembleJPEGR(primary, gainmap, testMetadata(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ranges, ok := scanImagesByMPF(container)
	if !ok {
		t.Fatal("MPF fast path did not resolve")
	}
	if len(ranges) != 2 {
		t.Fatalf("ranges = %d", len(ranges))
	}
	if ranges[0][0] != 0 {
		t.Fatalf("primary start = %d", ranges[0][0])
	}
	if ranges[1][1] != len(container) {
		t.Fatalf("secondary end = %d, len = %d", ranges[1][1], len(container))
	}
}

func TestContainerCarriesEXIF(t *testing.T) {
	primary := encodeTestJPEG(t, 32, 32)
	gainmap := encodeTestGainMapJPEG(t, 8, 8)
	exif := append(append([]byte(nil), exifSig...), 0xAA, 0xBB, 0xCC)

	container, err := assembleJPEGR(primary, gainmap, testMetadata(), exif, nil)
	if err != nil {
		t.Fatal(err)
	}
	gotExif, _, err := extractExifAndICC(container)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotExif, exif) {
		t.Fatalf("exif roundtrip: got %x", gotExif)
	}
}

func TestIsJPEGR(t *testing.T) {
	primary := encodeTestJPEG(t, 32, 32)
	gainmap := encodeTestGainMapJPEG(t, 8, 8)
	container, err := assembleJPEGR(primary, gainmap, testMetadata(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := IsJPEGR(bytes.NewReader(container))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("container not detected as JPEG/R")
	}

	ok, err = IsJPEGR(bytes.NewReader(primary))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("plain JPEG misdetected as JPEG/R")
	}
}

func TestSplitContainerOnPlainJPEG(t *testing.T) {
	primary := encodeTestJPEG(t, 32, 32)
	if _, err := SplitContainer(primary); !errors.Is(err, ErrGainMapImageNotFound) {
		t.Fatalf("error = %v", err)
	}
}

func TestSniffImageKind(t *testing.T) {
	if got := sniffImageKind(encodeTestJPEG(t, 32, 32)); got != imageKindJPEG {
		t.Fatalf("jpeg sniff = %d", got)
	}
	isobmff := []byte{0, 0, 0, 24, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c', 0, 0, 0, 0}
	if got := sniffImageKind(isobmff); got != imageKindISOBMFF {
		t.Fatalf("isobmff sniff = %d", got)
	}
	if got := isobmffBrand(isobmff); got != "heic" {
		t.Fatalf("brand = %q", got)
	}
	if got := sniffImageKind([]byte{1, 2, 3, 4}); got != imageKindUnknown {
		t.Fatalf("unknown sniff = %d", got)
	}
}

func TestJoinContainerRequiresMetadata(t *testing.T) {
	primary := encodeTestJPEG(t, 32, 32)
	gainmap := encodeTestGainMapJPEG(t, 8, 8)
	if _, err := JoinContainer(primary, gainmap, nil, nil, nil); !errors.Is(err, ErrBadPointer) {
		t.Fatalf("error = %v", err)
	}
}

func TestJPEGCodecMonochrome(t *testing.T) {
	gm := flatGainMap(t, 320, 240, 180)
	data, err := NewJPEGCodec().Compress(gm, 85, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty single-channel JPEG")
	}
	dec, err := NewJPEGCodec().Decompress(data)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Pixels.Format != FormatMonochrome || dec.Pixels.Width != 320 || dec.Pixels.Height != 240 {
		t.Fatalf("mono decode %d %dx%d", dec.Pixels.Format, dec.Pixels.Width, dec.Pixels.Height)
	}
}

func TestJPEGCodecOddChromaStride(t *testing.T) {
	// 318 wide: chroma rows are 159 samples, exercising non-aligned strides.
	buf := grayYUV(t, 318, 240, 90)
	data, err := NewJPEGCodec().Compress(buf, 90, nil)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewJPEGCodec().Decompress(data)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Pixels.Width != 318 || dec.Pixels.Height != 240 {
		t.Fatalf("decode %dx%d", dec.Pixels.Width, dec.Pixels.Height)
	}
}

func TestJPEGCodecRejectsBadQuality(t *testing.T) {
	buf := grayYUV(t, 32, 32, 128)
	if _, err := NewJPEGCodec().Compress(buf, 101, nil); !errors.Is(err, ErrInvalidQuality) {
		t.Fatalf("error = %v", err)
	}
	if _, err := NewJPEGCodec().Compress(buf, -1, nil); !errors.Is(err, ErrInvalidQuality) {
		t.Fatalf("error = %v", err)
	}
}
