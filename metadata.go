package uhdr

import "github.com/pkg/errors"

const metadataVersion = "1.0"

// GainMapMetadata holds the scalar parameters that, together with the gain
// map image, reconstruct HDR from the SDR base image. All fields hold linear
// values; boosts and capacities are log2-encoded on the wire, while gamma
// and offsets are written as is.
type GainMapMetadata struct {
	Version         string
	MaxContentBoost float32
	MinContentBoost float32
	Gamma           float32
	OffsetSDR       float32
	OffsetHDR       float32
	HDRCapacityMin  float32
	HDRCapacityMax  float32
}

// Validate checks the model invariants.
func (m *GainMapMetadata) Validate() error {
	if m == nil {
		return ErrBadPointer
	}
	if m.MinContentBoost < 0 || m.MaxContentBoost < m.MinContentBoost {
		return errors.Wrapf(ErrBadMetadata, "content boost range [%g, %g]", m.MinContentBoost, m.MaxContentBoost)
	}
	if m.HDRCapacityMin < 1.0 || m.HDRCapacityMax < m.HDRCapacityMin {
		return errors.Wrapf(ErrBadMetadata, "hdr capacity range [%g, %g]", m.HDRCapacityMin, m.HDRCapacityMax)
	}
	if m.Gamma <= 0 {
		return errors.Wrapf(ErrBadMetadata, "gamma %g", m.Gamma)
	}
	return nil
}

// validateForApply enforces the stricter preconditions of the gain map
// applier on top of Validate.
func (m *GainMapMetadata) validateForApply() error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Version != metadataVersion {
		return errors.Wrapf(ErrBadMetadata, "unsupported version %q", m.Version)
	}
	if m.Gamma != 1.0 {
		return errors.Wrapf(ErrBadMetadata, "unsupported gamma %g", m.Gamma)
	}
	if m.OffsetSDR != 0 || m.OffsetHDR != 0 {
		return errors.Wrap(ErrBadMetadata, "nonzero offsets unsupported")
	}
	if m.HDRCapacityMin != m.MinContentBoost || m.HDRCapacityMax != m.MaxContentBoost {
		return errors.Wrap(ErrBadMetadata, "hdr capacity must match content boost range")
	}
	return nil
}
