package uhdr

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ISO 21496-1 gain map metadata record. Numeric fields are rational N/D;
// gamma and offsets use a fixed 10^6 denominator, boosts and headroom use
// continued-fraction reduction of their log2 values. The monochrome core
// always writes a single channel.

const (
	isoIsMultiChannelMask = 1 << 7
	isoUseBaseColorMask   = 1 << 6

	isoFixedDenominator = 1000000
)

type isoMetadataFrac struct {
	GainMapMinN      int32
	GainMapMinD      uint32
	GainMapMaxN      int32
	GainMapMaxD      uint32
	GammaN           uint32
	GammaD           uint32
	BaseOffsetN      int32
	BaseOffsetD      uint32
	AltOffsetN       int32
	AltOffsetD       uint32
	BaseHdrHeadroomN uint32
	BaseHdrHeadroomD uint32
	AltHdrHeadroomN  uint32
	AltHdrHeadroomD  uint32
}

// buildISOPayload serializes metadata into an APP2 payload with the ISO
// namespace prefix.
func buildISOPayload(meta *GainMapMetadata) ([]byte, error) {
	encoded, err := encodeISOMetadata(meta)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(isoNamespace)+1+len(encoded))
	payload = append(payload, []byte(isoNamespace)...)
	payload = append(payload, 0)
	payload = append(payload, encoded...)
	return payload, nil
}

func encodeISOMetadata(meta *GainMapMetadata) ([]byte, error) {
	if meta == nil {
		return nil, ErrBadPointer
	}
	var frac isoMetadataFrac
	if err := metadataToFrac(meta, &frac); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 64)
	writeU16 := func(v uint16) { out = append(out, byte(v>>8), byte(v)) }
	writeU32 := func(v uint32) {
		out = append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	writeS32 := func(v int32) { writeU32(uint32(v)) }

	writeU16(0) // min_version
	writeU16(0) // writer_version
	out = append(out, isoUseBaseColorMask)

	writeU32(frac.BaseHdrHeadroomN)
	writeU32(frac.BaseHdrHeadroomD)
	writeU32(frac.AltHdrHeadroomN)
	writeU32(frac.AltHdrHeadroomD)
	writeS32(frac.GainMapMinN)
	writeU32(frac.GainMapMinD)
	writeS32(frac.GainMapMaxN)
	writeU32(frac.GainMapMaxD)
	writeU32(frac.GammaN)
	writeU32(frac.GammaD)
	writeS32(frac.BaseOffsetN)
	writeU32(frac.BaseOffsetD)
	writeS32(frac.AltOffsetN)
	writeU32(frac.AltOffsetD)
	return out, nil
}

func decodeISOMetadata(in []byte) (*GainMapMetadata, error) {
	pos := 0
	readU16 := func() (uint16, error) {
		if pos+2 > len(in) {
			return 0, errors.Wrap(ErrMetadata, "iso metadata truncated")
		}
		v := binary.BigEndian.Uint16(in[pos:])
		pos += 2
		return v, nil
	}
	readU32 := func() (uint32, error) {
		if pos+4 > len(in) {
			return 0, errors.Wrap(ErrMetadata, "iso metadata truncated")
		}
		v := binary.BigEndian.Uint32(in[pos:])
		pos += 4
		return v, nil
	}
	readS32 := func() (int32, error) {
		v, err := readU32()
		return int32(v), err
	}

	minVer, err := readU16()
	if err != nil {
		return nil, err
	}
	if minVer != 0 {
		return nil, errors.Wrapf(ErrMetadata, "unsupported iso min_version %d", minVer)
	}
	if _, err = readU16(); err != nil {
		return nil, err
	}
	if pos >= len(in) {
		return nil, errors.Wrap(ErrMetadata, "iso metadata truncated")
	}
	flags := in[pos]
	pos++
	if flags&isoIsMultiChannelMask != 0 {
		return nil, errors.Wrap(ErrUnsupportedFeature, "multi-channel gain map metadata")
	}
	useCommon := flags&8 != 0

	var frac isoMetadataFrac
	if useCommon {
		common, err := readU32()
		if err != nil {
			return nil, err
		}
		frac.BaseHdrHeadroomD = common
		frac.AltHdrHeadroomD = common
		frac.GainMapMinD = common
		frac.GainMapMaxD = common
		frac.GammaD = common
		frac.BaseOffsetD = common
		frac.AltOffsetD = common
		if frac.BaseHdrHeadroomN, err = readU32(); err != nil {
			return nil, err
		}
		if frac.AltHdrHeadroomN, err = readU32(); err != nil {
			return nil, err
		}
		if frac.GainMapMinN, err = readS32(); err != nil {
			return nil, err
		}
		if frac.GainMapMaxN, err = readS32(); err != nil {
			return nil, err
		}
		if frac.GammaN, err = readU32(); err != nil {
			return nil, err
		}
		if frac.BaseOffsetN, err = readS32(); err != nil {
			return nil, err
		}
		if frac.AltOffsetN, err = readS32(); err != nil {
			return nil, err
		}
	} else {
		if frac.BaseHdrHeadroomN, err = readU32(); err != nil {
			return nil, err
		}
		if frac.BaseHdrHeadroomD, err = readU32(); err != nil {
			return nil, err
		}
		if frac.AltHdrHeadroomN, err = readU32(); err != nil {
			return nil, err
		}
		if frac.AltHdrHeadroomD, err = readU32(); err != nil {
			return nil, err
		}
		if frac.GainMapMinN, err = readS32(); err != nil {
			return nil, err
		}
		if frac.GainMapMinD, err = readU32(); err != nil {
			return nil, err
		}
		if frac.GainMapMaxN, err = readS32(); err != nil {
			return nil, err
		}
		if frac.GainMapMaxD, err = readU32(); err != nil {
			return nil, err
		}
		if frac.GammaN, err = readU32(); err != nil {
			return nil, err
		}
		if frac.GammaD, err = readU32(); err != nil {
			return nil, err
		}
		if frac.BaseOffsetN, err = readS32(); err != nil {
			return nil, err
		}
		if frac.BaseOffsetD, err = readU32(); err != nil {
			return nil, err
		}
		if frac.AltOffsetN, err = readS32(); err != nil {
			return nil, err
		}
		if frac.AltOffsetD, err = readU32(); err != nil {
			return nil, err
		}
	}

	meta := &GainMapMetadata{Version: metadataVersion}
	if err := fracToMetadata(&frac, meta); err != nil {
		return nil, err
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return meta, nil
}

func fracToMetadata(from *isoMetadataFrac, to *GainMapMetadata) error {
	div := func(n int32, d uint32) (float32, error) {
		if d == 0 {
			return 0, errors.Wrap(ErrMetadata, "zero denominator")
		}
		return float32(n) / float32(d), nil
	}
	udiv := func(n, d uint32) (float32, error) {
		if d == 0 {
			return 0, errors.Wrap(ErrMetadata, "zero denominator")
		}
		return float32(n) / float32(d), nil
	}

	v, err := div(from.GainMapMinN, from.GainMapMinD)
	if err != nil {
		return err
	}
	to.MinContentBoost = exp2f(v)
	if v, err = div(from.GainMapMaxN, from.GainMapMaxD); err != nil {
		return err
	}
	to.MaxContentBoost = exp2f(v)
	if to.Gamma, err = udiv(from.GammaN, from.GammaD); err != nil {
		return err
	}
	if to.OffsetSDR, err = div(from.BaseOffsetN, from.BaseOffsetD); err != nil {
		return err
	}
	if to.OffsetHDR, err = div(from.AltOffsetN, from.AltOffsetD); err != nil {
		return err
	}
	if v, err = udiv(from.BaseHdrHeadroomN, from.BaseHdrHeadroomD); err != nil {
		return err
	}
	to.HDRCapacityMin = exp2f(v)
	if v, err = udiv(from.AltHdrHeadroomN, from.AltHdrHeadroomD); err != nil {
		return err
	}
	to.HDRCapacityMax = exp2f(v)
	return nil
}

func metadataToFrac(from *GainMapMetadata, to *isoMetadataFrac) error {
	var err error
	if to.GainMapMinN, to.GainMapMinD, err = floatToSignedFraction(log2f(from.MinContentBoost)); err != nil {
		return err
	}
	if to.GainMapMaxN, to.GainMapMaxD, err = floatToSignedFraction(log2f(from.MaxContentBoost)); err != nil {
		return err
	}
	to.GammaN = uint32(math.Round(float64(from.Gamma) * isoFixedDenominator))
	to.GammaD = isoFixedDenominator
	to.BaseOffsetN = int32(math.Round(float64(from.OffsetSDR) * isoFixedDenominator))
	to.BaseOffsetD = isoFixedDenominator
	to.AltOffsetN = int32(math.Round(float64(from.OffsetHDR) * isoFixedDenominator))
	to.AltOffsetD = isoFixedDenominator
	if to.BaseHdrHeadroomN, to.BaseHdrHeadroomD, err = floatToUnsignedFraction(log2f(from.HDRCapacityMin)); err != nil {
		return err
	}
	if to.AltHdrHeadroomN, to.AltHdrHeadroomD, err = floatToUnsignedFraction(log2f(from.HDRCapacityMax)); err != nil {
		return err
	}
	return nil
}

func floatToSignedFraction(v float32) (int32, uint32, error) {
	const maxInt32 = int32(^uint32(0) >> 1)
	num, den, ok := floatToFractionImpl(math.Abs(float64(v)), uint32(maxInt32))
	if !ok {
		return 0, 0, errors.Wrap(ErrMetadata, "signed fraction overflow")
	}
	n := int32(num)
	if v < 0 {
		n = -n
	}
	return n, den, nil
}

func floatToUnsignedFraction(v float32) (uint32, uint32, error) {
	num, den, ok := floatToFractionImpl(float64(v), ^uint32(0))
	if !ok {
		return 0, 0, errors.Wrap(ErrMetadata, "unsigned fraction overflow")
	}
	return num, den, nil
}

// floatToFractionImpl approximates v as num/den using continued fractions.
func floatToFractionImpl(v float64, maxNumerator uint32) (uint32, uint32, bool) {
	if math.IsNaN(v) || v < 0 || v > float64(maxNumerator) {
		return 0, 0, false
	}
	var maxD uint64
	if v <= 1 {
		maxD = uint64(^uint32(0))
	} else {
		maxD = uint64(math.Floor(float64(maxNumerator) / v))
	}

	den := uint32(1)
	prevD := uint32(0)
	currentV := v - math.Floor(v)
	const maxIter = 39
	for iter := 0; iter < maxIter; iter++ {
		numeratorDouble := float64(den) * v
		if numeratorDouble > float64(maxNumerator) {
			return 0, 0, false
		}
		num := uint32(math.Round(numeratorDouble))
		if math.Abs(numeratorDouble-float64(num)) == 0.0 || currentV == 0 {
			return num, den, true
		}
		currentV = 1.0 / currentV
		newD := float64(prevD) + math.Floor(currentV)*float64(den)
		if newD > float64(maxD) {
			return num, den, true
		}
		prevD = den
		if newD > float64(^uint32(0)) {
			return 0, 0, false
		}
		den = uint32(newD)
		currentV -= math.Floor(currentV)
	}
	return uint32(math.Round(float64(den) * v)), den, true
}
