package uhdr

// SplitResult holds the components of a JPEG/R container.
type SplitResult struct {
	PrimaryJPEG []byte
	GainMapJPEG []byte
	Meta        *GainMapMetadata
}

// SplitContainer extracts the primary and gain map JPEG images and the gain
// map metadata from a JPEG/R container. The ISO 21496-1 record is preferred
// over XMP when both are present.
func SplitContainer(data []byte) (*SplitResult, error) {
	ranges, err := scanImages(data)
	if err != nil {
		return nil, err
	}
	if len(ranges) < 2 {
		return nil, ErrGainMapImageNotFound
	}
	res := &SplitResult{
		PrimaryJPEG: append([]byte(nil), data[ranges[0][0]:ranges[0][1]]...),
		GainMapJPEG: append([]byte(nil), data[ranges[1][0]:ranges[1][1]]...),
	}

	app1, app2, err := extractAppSegments(res.GainMapJPEG)
	if err != nil {
		return nil, err
	}
	if iso := findISO(app2); iso != nil {
		res.Meta, err = decodeISOMetadata(iso[len(isoNamespace)+1:])
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	if xmp := findXMP(app1); xmp != nil {
		res.Meta, err = parseXMP(xmp)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	return nil, ErrBadMetadata
}

// JoinContainer assembles a JPEG/R container from component JPEG images,
// metadata and optional EXIF/ICC payloads.
func JoinContainer(primaryJPEG, gainmapJPEG []byte, meta *GainMapMetadata, exif []byte, icc [][]byte) ([]byte, error) {
	if meta == nil {
		return nil, ErrBadPointer
	}
	return assembleJPEGR(primaryJPEG, gainmapJPEG, meta, exif, icc)
}
