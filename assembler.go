package uhdr

import "github.com/pkg/errors"

// OutputCodec enumerates the convertible output targets.
type OutputCodec int

const (
	CodecJPEG OutputCodec = iota
	CodecJPEGR
	CodecHEIC
	CodecHEICR
	CodecHEIC10Bit
	CodecAVIF
	CodecAVIFR
	CodecAVIF10Bit
	CodecRawPixels
)

func (c OutputCodec) isHEIF() bool {
	switch c {
	case CodecHEIC, CodecHEICR, CodecHEIC10Bit, CodecAVIF, CodecAVIFR, CodecAVIF10Bit:
		return true
	}
	return false
}

const (
	defaultBaseQuality = 95
	gainMapQuality     = 85
)

// ConvertConfig selects the output of Assembler.Convert.
type ConvertConfig struct {
	Codec OutputCodec
	// PixelFormat selects the layout for CodecRawPixels outputs.
	PixelFormat PixelFormat
	// Transfer is the HDR transfer function: the input's encoding when
	// generating a gain map, the output encoding for HDR raw pixels.
	Transfer ColorTransfer
	// Quality in [0, 100]; zero selects the default.
	Quality int
	// MaxDisplayBoost limits HDR reconstruction, >= 1 when set.
	MaxDisplayBoost float32
	// Effects are applied in order to the base image and gain map pair.
	Effects []Effect
}

// ConvertOutput carries either encoded bytes or a pixel buffer, depending
// on the requested codec.
type ConvertOutput struct {
	Bytes  []byte
	Pixels *PixelBuffer
}

// Assembler accumulates pipeline inputs and lazily materializes whatever a
// requested output needs, memoizing intermediates across calls. It is not
// safe for concurrent use; one conversion runs at a time.
type Assembler struct {
	jpegCodec JPEGCodec
	heifCodec HEIFCodec
	workers   int

	sdrCompressed     *CompressedImage
	hdrCompressed     *CompressedImage
	sdrRaw            *PixelBuffer
	hdrRaw            *PixelBuffer
	gainMapRaw        *PixelBuffer
	gainMapCompressed *CompressedImage
	meta              *GainMapMetadata
	exif              []byte
	icc               [][]byte
	sdrIsBT601        bool

	outputs []*PixelBuffer
}

// AssemblerOption configures a new Assembler.
type AssemblerOption func(*Assembler)

// WithJPEGCodec replaces the built-in JPEG collaborator.
func WithJPEGCodec(c JPEGCodec) AssemblerOption {
	return func(a *Assembler) { a.jpegCodec = c }
}

// WithHEIFCodec registers a HEIC/AVIF collaborator; without one the HEIF
// output codecs are unavailable.
func WithHEIFCodec(c HEIFCodec) AssemblerOption {
	return func(a *Assembler) { a.heifCodec = c }
}

// WithWorkers pins internal parallelism, mainly for deterministic tests.
func WithWorkers(n int) AssemblerOption {
	return func(a *Assembler) { a.workers = n }
}

// NewAssembler creates an empty pipeline.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{jpegCodec: NewJPEGCodec()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// AddCompressed sniffs and ingests a compressed image: a plain JPEG, a
// JPEG/R container, or (with a registered HEIF collaborator) a HEIC/AVIF
// container. Populated slots keep their first value.
func (a *Assembler) AddCompressed(data []byte) error {
	if len(data) == 0 {
		return ErrBadPointer
	}
	switch sniffImageKind(data) {
	case imageKindJPEG:
		return a.addCompressedJPEG(data)
	case imageKindISOBMFF:
		return a.addCompressedHEIF(data)
	default:
		return ErrNoImagesFound
	}
}

func (a *Assembler) addCompressedJPEG(data []byte) error {
	split, err := SplitContainer(data)
	if err == nil {
		if a.sdrCompressed == nil {
			a.sdrCompressed = &CompressedImage{Data: split.PrimaryJPEG, Gamut: GamutBT709}
		}
		if a.gainMapCompressed == nil {
			a.gainMapCompressed = &CompressedImage{Data: split.GainMapJPEG}
		}
		if a.meta == nil {
			a.meta = split.Meta
		}
		if a.gainMapRaw == nil {
			dec, decErr := a.jpegCodec.Decompress(split.GainMapJPEG)
			if decErr != nil {
				return decErr
			}
			if dec.Pixels.Format != FormatMonochrome {
				return errors.Wrap(ErrUnsupportedFeature, "non-monochrome gain map")
			}
			a.gainMapRaw = dec.Pixels
		}
	} else if a.sdrCompressed == nil {
		a.sdrCompressed = &CompressedImage{Data: append([]byte(nil), data...), Gamut: GamutBT709}
	}
	a.sdrIsBT601 = true

	primary := data
	if a.sdrCompressed != nil {
		primary = a.sdrCompressed.Data
	}
	exif, icc, err := extractExifAndICC(primary)
	if err != nil {
		return err
	}
	if a.exif == nil {
		a.exif = exif
	}
	if a.icc == nil {
		a.icc = icc
	}
	return nil
}

func (a *Assembler) addCompressedHEIF(data []byte) error {
	if a.heifCodec == nil {
		return errors.Wrapf(ErrUnsupportedFeature, "no HEIF codec for brand %q", isobmffBrand(data))
	}
	img, err := a.heifCodec.Decode(data)
	if err != nil {
		return errors.Wrap(ErrDecode, err.Error())
	}
	switch img.BitDepth {
	case 10:
		if a.hdrRaw == nil {
			a.hdrRaw = img.Primary
		}
		if a.hdrCompressed == nil {
			a.hdrCompressed = &CompressedImage{Data: append([]byte(nil), data...), Gamut: img.Primary.Gamut}
		}
	case 8:
		if a.sdrRaw == nil {
			a.sdrRaw = img.Primary
		}
		if a.sdrCompressed == nil {
			a.sdrCompressed = &CompressedImage{Data: append([]byte(nil), data...), Gamut: img.Primary.Gamut}
		}
	default:
		return errors.Wrapf(ErrDecode, "unsupported bit depth %d", img.BitDepth)
	}
	if img.GainMap != nil && a.gainMapRaw == nil {
		a.gainMapRaw = img.GainMap
	}
	if img.Metadata != nil && a.meta == nil {
		a.meta = img.Metadata
	}
	if img.EXIF != nil && a.exif == nil {
		a.exif = img.EXIF
	}
	return nil
}

// AddUncompressed ingests a raw P010 (HDR) or YUV 4:2:0 (SDR) buffer. Each
// slot accepts the first writer; later values are ignored silently.
func (a *Assembler) AddUncompressed(buf *PixelBuffer) error {
	if buf == nil {
		return ErrBadPointer
	}
	if err := buf.validate(); err != nil {
		return err
	}
	switch buf.Format {
	case FormatP010:
		if a.hdrRaw == nil {
			a.hdrRaw = buf
		}
	case FormatYUV420:
		if a.sdrRaw == nil {
			a.sdrRaw = buf
		}
	default:
		return errors.Wrap(ErrUnsupportedFeature, "raw inputs are P010 or YUV420")
	}
	return nil
}

// AddExif stores the EXIF payload. A second EXIF source is an error.
func (a *Assembler) AddExif(data []byte) error {
	if len(data) == 0 {
		return ErrBadPointer
	}
	if a.exif != nil {
		return ErrMultipleExifs
	}
	a.exif = append([]byte(nil), data...)
	return nil
}

// GainMap returns the stored gain map image, if any.
func (a *Assembler) GainMap() *PixelBuffer { return a.gainMapRaw }

// GainMapMetadata returns the stored gain map metadata, if any.
func (a *Assembler) GainMapMetadata() *GainMapMetadata { return a.meta }

// Exif returns the stored EXIF payload, if any.
func (a *Assembler) Exif() []byte { return a.exif }

// Reset drops all slots and owned buffers.
func (a *Assembler) Reset() {
	*a = Assembler{jpegCodec: a.jpegCodec, heifCodec: a.heifCodec, workers: a.workers}
}

// Convert materializes the requested output, reusing whatever artifacts
// are already present and deriving the rest.
func (a *Assembler) Convert(cfg ConvertConfig) (*ConvertOutput, error) {
	if cfg.Quality < 0 || cfg.Quality > 100 {
		return nil, ErrInvalidQuality
	}
	if cfg.MaxDisplayBoost != 0 && cfg.MaxDisplayBoost < 1.0 {
		return nil, ErrInvalidDisplayBoost
	}
	quality := cfg.Quality
	if quality == 0 {
		quality = defaultBaseQuality
	}

	if cfg.Codec.isHEIF() && a.heifCodec == nil {
		return nil, errors.Wrap(ErrUnsupportedFeature, "no HEIF codec registered")
	}

	switch cfg.Codec {
	case CodecJPEG:
		return a.convertJPEG(cfg, quality)
	case CodecJPEGR:
		return a.convertJPEGR(cfg, quality)
	case CodecHEIC, CodecAVIF:
		return a.convertHEIFBase(cfg, quality)
	case CodecHEIC10Bit, CodecAVIF10Bit:
		return a.convertHEIF10Bit(cfg, quality)
	case CodecHEICR, CodecAVIFR:
		return a.convertHEIFR(cfg, quality)
	case CodecRawPixels:
		return a.convertRawPixels(cfg)
	default:
		return nil, ErrInvalidOutputFormat
	}
}

func (a *Assembler) convertJPEG(cfg ConvertConfig, quality int) (*ConvertOutput, error) {
	if len(cfg.Effects) == 0 && cfg.Quality == 0 && a.sdrCompressed != nil {
		// Zero-copy: the stored compressed base already satisfies the
		// request.
		return &ConvertOutput{Bytes: a.sdrCompressed.Data}, nil
	}
	base, err := a.ensureSDRRaw()
	if err != nil {
		return nil, err
	}
	base, err = a.applyEffects(base, cfg.Effects)
	if err != nil {
		return nil, err
	}
	data, err := a.jpegCodec.Compress(base, quality, a.icc)
	if err != nil {
		return nil, err
	}
	return &ConvertOutput{Bytes: data}, nil
}

func (a *Assembler) convertJPEGR(cfg ConvertConfig, quality int) (*ConvertOutput, error) {
	if len(cfg.Effects) == 0 && cfg.Quality == 0 &&
		a.sdrCompressed != nil && a.gainMapCompressed != nil && a.meta != nil {
		data, err := assembleJPEGR(a.sdrCompressed.Data, a.gainMapCompressed.Data, a.meta, a.exif, a.icc)
		if err != nil {
			return nil, err
		}
		return &ConvertOutput{Bytes: data}, nil
	}

	base, err := a.ensureSDRRaw()
	if err != nil {
		return nil, err
	}
	gm, meta, err := a.ensureGainMap(cfg.Transfer)
	if err != nil {
		return nil, err
	}
	base, gm, err = a.applyEffectsPair(base, gm, cfg.Effects)
	if err != nil {
		return nil, err
	}

	baseJPEG, err := a.jpegCodec.Compress(base, quality, a.icc)
	if err != nil {
		return nil, err
	}
	gmJPEG, err := a.jpegCodec.Compress(gm, gainMapQuality, nil)
	if err != nil {
		return nil, err
	}
	data, err := assembleJPEGR(baseJPEG, gmJPEG, meta, a.exif, a.icc)
	if err != nil {
		return nil, err
	}
	return &ConvertOutput{Bytes: data}, nil
}

func (a *Assembler) convertHEIFBase(cfg ConvertConfig, quality int) (*ConvertOutput, error) {
	base, err := a.ensureSDRRaw()
	if err != nil {
		return nil, err
	}
	base, err = a.applyEffects(base, cfg.Effects)
	if err != nil {
		return nil, err
	}
	data, err := a.heifCodec.Encode(base, nil, nil, quality)
	if err != nil {
		return nil, errors.Wrap(ErrEncode, err.Error())
	}
	return &ConvertOutput{Bytes: data}, nil
}

func (a *Assembler) convertHEIF10Bit(cfg ConvertConfig, quality int) (*ConvertOutput, error) {
	if a.hdrRaw == nil {
		return nil, errors.Wrap(ErrInsufficientResource, "10-bit output needs HDR input")
	}
	if len(cfg.Effects) != 0 {
		return nil, errors.Wrap(ErrUnsupportedFeature, "effects on 10-bit primaries")
	}
	data, err := a.heifCodec.Encode(a.hdrRaw, nil, nil, quality)
	if err != nil {
		return nil, errors.Wrap(ErrEncode, err.Error())
	}
	return &ConvertOutput{Bytes: data}, nil
}

func (a *Assembler) convertHEIFR(cfg ConvertConfig, quality int) (*ConvertOutput, error) {
	base, err := a.ensureSDRRaw()
	if err != nil {
		return nil, err
	}
	gm, meta, err := a.ensureGainMap(cfg.Transfer)
	if err != nil {
		return nil, err
	}
	base, gm, err = a.applyEffectsPair(base, gm, cfg.Effects)
	if err != nil {
		return nil, err
	}
	data, err := a.heifCodec.Encode(base, gm, meta, quality)
	if err != nil {
		return nil, errors.Wrap(ErrEncode, err.Error())
	}
	return &ConvertOutput{Bytes: data}, nil
}

func (a *Assembler) convertRawPixels(cfg ConvertConfig) (*ConvertOutput, error) {
	switch cfg.PixelFormat {
	case FormatYUV420:
		base, err := a.ensureSDRRaw()
		if err != nil {
			return nil, err
		}
		if len(cfg.Effects) == 0 {
			return &ConvertOutput{Pixels: base}, nil
		}
		out, err := a.applyEffects(base, cfg.Effects)
		if err != nil {
			return nil, err
		}
		return &ConvertOutput{Pixels: out}, nil

	case FormatP010:
		if a.hdrRaw == nil {
			return nil, errors.Wrap(ErrInsufficientResource, "no HDR input")
		}
		if len(cfg.Effects) != 0 {
			return nil, errors.Wrap(ErrUnsupportedFeature, "effects on P010")
		}
		return &ConvertOutput{Pixels: a.hdrRaw}, nil

	case FormatMonochrome:
		if a.gainMapRaw == nil {
			return nil, ErrGainMapImageNotFound
		}
		if len(cfg.Effects) == 0 {
			return &ConvertOutput{Pixels: a.gainMapRaw}, nil
		}
		out, err := a.applyEffects(a.gainMapRaw, cfg.Effects)
		if err != nil {
			return nil, err
		}
		return &ConvertOutput{Pixels: out}, nil

	case FormatRGBA8888:
		base, err := a.ensureSDRRaw()
		if err != nil {
			return nil, err
		}
		if len(cfg.Effects) != 0 {
			return nil, errors.Wrap(ErrUnsupportedFeature, "effects on RGBA8888 decode")
		}
		out, err := renderSDR(base, defaultWorkers(a.workers))
		if err != nil {
			return nil, err
		}
		a.outputs = append(a.outputs, out)
		return &ConvertOutput{Pixels: out}, nil

	case FormatRGBAF16, FormatRGB10Planar, FormatRGBA1010102:
		if cfg.PixelFormat != FormatRGBA1010102 &&
			cfg.Transfer != TransferLinear && cfg.Transfer != TransferUnspecified {
			return nil, errors.Wrap(ErrUnsupportedFeature, "F16 and planar 10-bit outputs are linear only")
		}
		base, err := a.ensureSDRRaw()
		if err != nil {
			return nil, err
		}
		gm, meta, err := a.ensureGainMap(cfg.Transfer)
		if err != nil {
			return nil, err
		}
		base, gm, err = a.applyEffectsPair(base, gm, cfg.Effects)
		if err != nil {
			return nil, err
		}
		transfer := cfg.Transfer
		if cfg.PixelFormat != FormatRGBA1010102 {
			transfer = TransferLinear
		}
		out, err := ApplyGainMap(base, gm, meta, &GainMapApplyOptions{
			OutputFormat:    cfg.PixelFormat,
			Transfer:        transfer,
			MaxDisplayBoost: cfg.MaxDisplayBoost,
			Workers:         a.workers,
		})
		if err != nil {
			return nil, err
		}
		a.outputs = append(a.outputs, out)
		return &ConvertOutput{Pixels: out}, nil

	default:
		return nil, ErrInvalidOutputFormat
	}
}

// ensureSDRRaw materializes the raw SDR slot: decoding the compressed base
// when present, tone-mapping the HDR input otherwise.
func (a *Assembler) ensureSDRRaw() (*PixelBuffer, error) {
	if a.sdrRaw != nil {
		return a.sdrRaw, nil
	}
	if a.sdrCompressed != nil {
		dec, err := a.jpegCodec.Decompress(a.sdrCompressed.Data)
		if err != nil {
			return nil, err
		}
		if dec.Pixels.Format != FormatYUV420 {
			return nil, errors.Wrap(ErrUnsupportedFeature, "non-YUV base image")
		}
		a.sdrRaw = dec.Pixels
		a.sdrIsBT601 = true
		if a.exif == nil {
			a.exif = dec.EXIF
		}
		if a.icc == nil {
			a.icc = dec.ICC
		}
		return a.sdrRaw, nil
	}
	if a.hdrRaw != nil {
		sdr, err := ToneMap(a.hdrRaw)
		if err != nil {
			return nil, err
		}
		a.sdrRaw = sdr
		return a.sdrRaw, nil
	}
	return nil, errors.Wrap(ErrInsufficientResource, "no SDR source")
}

// ensureGainMap materializes the gain map and metadata, generating them
// from the SDR+HDR pair when absent.
func (a *Assembler) ensureGainMap(transfer ColorTransfer) (*PixelBuffer, *GainMapMetadata, error) {
	if a.gainMapRaw != nil && a.meta != nil {
		return a.gainMapRaw, a.meta, nil
	}
	if a.hdrRaw == nil {
		return nil, nil, errors.Wrap(ErrInsufficientResource, "no HDR input for gain map")
	}
	sdr, err := a.ensureSDRRaw()
	if err != nil {
		return nil, nil, err
	}
	gm, meta, err := GenerateGainMap(sdr, a.hdrRaw, &GainMapGenOptions{
		Transfer:   transfer,
		SDRIsBT601: a.sdrIsBT601,
		Workers:    a.workers,
	})
	if err != nil {
		return nil, nil, err
	}
	a.gainMapRaw = gm
	a.meta = meta
	return gm, meta, nil
}

// applyEffects runs the effect list on a single buffer, keeping the stored
// slot untouched.
func (a *Assembler) applyEffects(src *PixelBuffer, effects []Effect) (*PixelBuffer, error) {
	if len(effects) == 0 {
		return src, nil
	}
	out, err := AddEffects(src, effects)
	if err != nil {
		return nil, err
	}
	a.outputs = append(a.outputs, out)
	return out, nil
}

// applyEffectsPair runs the effect list on the base image and its gain
// map, scaling positional parameters to the map's resolution.
func (a *Assembler) applyEffectsPair(base, gm *PixelBuffer, effects []Effect) (*PixelBuffer, *PixelBuffer, error) {
	if len(effects) == 0 {
		return base, gm, nil
	}
	if base.Width%gm.Width != 0 || base.Height%gm.Height != 0 ||
		base.Width/gm.Width != base.Height/gm.Height {
		return nil, nil, errors.Wrapf(ErrUnsupportedMapScaleFactor, "base %dx%d map %dx%d",
			base.Width, base.Height, gm.Width, gm.Height)
	}
	ratio := base.Width / gm.Width

	outBase, err := a.applyEffects(base, effects)
	if err != nil {
		return nil, nil, err
	}
	mapEffects := make([]Effect, 0, len(effects))
	for _, e := range effects {
		mapEffects = append(mapEffects, scaleEffectForMap(e, ratio))
	}
	outMap, err := a.applyEffects(gm, mapEffects)
	if err != nil {
		return nil, nil, err
	}
	return outBase, outMap, nil
}

// scaleEffectForMap rescales positional effect parameters by the base to
// map resolution ratio. Both images stay dimensionally consistent when the
// crop's Left, Top, Right+1 and Bottom+1 and the resize targets are
// multiples of the ratio; otherwise the truncating division leaves a
// non-integral base/map ratio.
func scaleEffectForMap(e Effect, ratio int) Effect {
	switch ef := e.(type) {
	case Crop:
		return Crop{
			Left:   ef.Left / ratio,
			Right:  (ef.Right+1)/ratio - 1,
			Top:    ef.Top / ratio,
			Bottom: (ef.Bottom+1)/ratio - 1,
		}
	case Resize:
		return Resize{Width: ef.Width / ratio, Height: ef.Height / ratio}
	default:
		return e
	}
}
