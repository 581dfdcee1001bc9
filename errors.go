package uhdr

import "errors"

// Error kinds surfaced by the pipeline. Operations return one of these
// sentinels (possibly wrapped with context); match with errors.Is.
var (
	ErrBadPointer                = errors.New("uhdr: nil or missing input")
	ErrUnsupportedWidthHeight    = errors.New("uhdr: unsupported image dimensions")
	ErrInvalidGamut              = errors.New("uhdr: invalid color gamut")
	ErrInvalidStride             = errors.New("uhdr: invalid plane stride")
	ErrInvalidTransfer           = errors.New("uhdr: invalid transfer function")
	ErrResolutionMismatch        = errors.New("uhdr: image resolution mismatch")
	ErrInvalidQuality            = errors.New("uhdr: quality out of range")
	ErrInvalidDisplayBoost       = errors.New("uhdr: display boost must be >= 1")
	ErrInvalidOutputFormat       = errors.New("uhdr: invalid output pixel format")
	ErrBadMetadata               = errors.New("uhdr: bad gain map metadata")
	ErrInvalidCropping           = errors.New("uhdr: invalid edit parameters")
	ErrEncode                    = errors.New("uhdr: encode failed")
	ErrDecode                    = errors.New("uhdr: decode failed")
	ErrGainMapImageNotFound      = errors.New("uhdr: gain map image not found")
	ErrBufferTooSmall            = errors.New("uhdr: buffer too small")
	ErrMetadata                  = errors.New("uhdr: metadata serialization failed")
	ErrNoImagesFound             = errors.New("uhdr: no images found")
	ErrMultipleExifs             = errors.New("uhdr: multiple exif blocks")
	ErrUnsupportedMapScaleFactor = errors.New("uhdr: unsupported gain map scale factor")
	ErrUnsupportedFeature        = errors.New("uhdr: unsupported feature")
	ErrInsufficientResource      = errors.New("uhdr: insufficient inputs for requested output")
	ErrUnknown                   = errors.New("uhdr: unknown error")
)
