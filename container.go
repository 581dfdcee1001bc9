package uhdr

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
	markerAPP2  = 0xE2
)

const (
	xmpNamespace = "http://ns.adobe.com/xap/1.0/"
	isoNamespace = "urn:iso:std:iso:ts:21496:-1"
)

var (
	exifSig = []byte{'E', 'x', 'i', 'f', 0, 0}
	iccSig  = []byte{'I', 'C', 'C', '_', 'P', 'R', 'O', 'F', 'I', 'L', 'E', 0}
)

// assembleJPEGR builds the two-image JPEG/R container:
// SOI, EXIF, primary XMP, ICC, MPF, base payload, then the secondary image
// with its XMP and ISO 21496-1 metadata.
func assembleJPEGR(primaryJPEG, gainmapJPEG []byte, meta *GainMapMetadata, exif []byte, icc [][]byte) ([]byte, error) {
	if len(primaryJPEG) < 2 || len(gainmapJPEG) < 2 {
		return nil, errors.Wrap(ErrEncode, "invalid component JPEG")
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	xmpSecondary := buildGainMapXMP(meta)
	isoSecondary, err := buildISOPayload(meta)
	if err != nil {
		return nil, err
	}
	secondaryImageSize := len(gainmapJPEG) + appSize(xmpSecondary) + appSize(isoSecondary)
	xmpPrimary := buildPrimaryXMP(meta, secondaryImageSize)

	var out bytes.Buffer
	writeSOI := func() {
		out.WriteByte(markerStart)
		out.WriteByte(markerSOI)
	}

	writeSOI()
	if len(exif) > 0 {
		writeAppSegment(&out, markerAPP1, exif)
	}
	writeAppSegment(&out, markerAPP1, xmpPrimary)
	for _, seg := range icc {
		writeAppSegment(&out, markerAPP2, seg)
	}

	mpfLen := 4 + calculateMPFSize()
	primaryImageSize := out.Len() + mpfLen + len(primaryJPEG) - 2
	// The secondary offset in MPF is relative to the TIFF header inside
	// the MPF payload, which starts 8 bytes into the segment.
	secondaryOffset := primaryImageSize - out.Len() - 8
	mpf := generateMPF(primaryImageSize, 0, secondaryImageSize, secondaryOffset)
	writeAppSegment(&out, markerAPP2, mpf)

	out.Write(primaryJPEG[2:])

	writeSOI()
	writeAppSegment(&out, markerAPP1, xmpSecondary)
	writeAppSegment(&out, markerAPP2, isoSecondary)
	out.Write(gainmapJPEG[2:])

	return out.Bytes(), nil
}

// scanImages locates the JPEG byte ranges in a container: through the MPF
// index when present, by brute-force SOI scanning otherwise.
func scanImages(data []byte) ([][2]int, error) {
	if ranges, ok := scanImagesByMPF(data); ok {
		return ranges, nil
	}
	var ranges [][2]int
	i := 0
	for i+1 < len(data) {
		if data[i] == markerStart && data[i+1] == markerSOI {
			end, err := findJPEGEnd(data, i)
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, [2]int{i, end})
			i = end
			continue
		}
		i++
	}
	if len(ranges) == 0 {
		return nil, ErrNoImagesFound
	}
	return ranges, nil
}

func scanImagesByMPF(data []byte) ([][2]int, bool) {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return nil, false
	}
	primarySize, secondarySize, secondaryOffset, ok := findMPFInfo(data)
	if !ok {
		return nil, false
	}
	if primarySize <= 0 || secondarySize <= 0 {
		return nil, false
	}
	secondaryEnd := secondaryOffset + secondarySize
	if primarySize > len(data) || secondaryEnd > len(data) || secondaryOffset < 0 {
		return nil, false
	}
	if secondaryOffset+1 >= len(data) || data[secondaryOffset] != markerStart || data[secondaryOffset+1] != markerSOI {
		return nil, false
	}
	return [][2]int{{0, primarySize}, {secondaryOffset, secondaryEnd}}, true
}

func findMPFInfo(data []byte) (primarySize, secondarySize, secondaryOffset int, ok bool) {
	pos := 2
	for pos+3 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		switch marker {
		case markerSOI:
			continue
		case markerEOI, markerSOS:
			return 0, 0, 0, false
		}
		if marker >= 0xD0 && marker <= 0xD7 || marker == 0x01 {
			continue
		}
		if pos+1 >= len(data) {
			return 0, 0, 0, false
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return 0, 0, 0, false
		}
		segStart := pos + 2
		segEnd := pos + segLen
		if marker == markerAPP2 && bytes.HasPrefix(data[segStart:segEnd], mpfSig) {
			info, err := parseMPF(data[segStart:segEnd])
			if err != nil {
				return 0, 0, 0, false
			}
			tiffHeaderAbs := segStart + len(mpfSig)
			return info.primarySize, info.secondarySize, tiffHeaderAbs + info.secondaryOffset, true
		}
		pos = segEnd
	}
	return 0, 0, 0, false
}

func findJPEGEnd(data []byte, start int) (int, error) {
	if start+1 >= len(data) || data[start] != markerStart || data[start+1] != markerSOI {
		return 0, errors.Wrap(ErrDecode, "not a JPEG SOI")
	}
	pos := start + 2
	inScan := false
	for pos+1 < len(data) {
		if !inScan {
			if data[pos] != markerStart {
				pos++
				continue
			}
			for pos < len(data) && data[pos] == markerStart {
				pos++
			}
			if pos >= len(data) {
				break
			}
			marker := data[pos]
			pos++
			switch marker {
			case markerSOI:
				continue
			case markerEOI:
				return pos, nil
			case markerSOS:
				if pos+1 >= len(data) {
					return 0, errors.Wrap(ErrDecode, "truncated SOS")
				}
				pos += int(binary.BigEndian.Uint16(data[pos:]))
				inScan = true
				continue
			}
			if marker >= 0xD0 && marker <= 0xD7 || marker == 0x01 {
				continue
			}
			if pos+1 >= len(data) {
				return 0, errors.Wrap(ErrDecode, "truncated marker segment")
			}
			segLen := int(binary.BigEndian.Uint16(data[pos:]))
			if segLen < 2 {
				return 0, errors.Wrap(ErrDecode, "invalid marker length")
			}
			pos += segLen
			continue
		}

		if data[pos] == markerStart {
			if pos+1 >= len(data) {
				return 0, errors.Wrap(ErrDecode, "truncated scan data")
			}
			next := data[pos+1]
			switch {
			case next == 0x00 || (next >= 0xD0 && next <= 0xD7):
				pos += 2
				continue
			case next == markerEOI:
				return pos + 2, nil
			default:
				pos += 2
				if pos+1 >= len(data) {
					return 0, errors.Wrap(ErrDecode, "truncated marker in scan")
				}
				segLen := int(binary.BigEndian.Uint16(data[pos:]))
				if segLen < 2 {
					return 0, errors.Wrap(ErrDecode, "invalid marker length in scan")
				}
				pos += segLen
				continue
			}
		}
		pos++
	}
	return 0, errors.Wrap(ErrDecode, "no EOI found")
}

// extractAppSegments collects APP1 and APP2 payloads up to the first SOS.
func extractAppSegments(jpegData []byte) (app1, app2 [][]byte, err error) {
	if len(jpegData) < 4 || jpegData[0] != markerStart || jpegData[1] != markerSOI {
		return nil, nil, errors.Wrap(ErrDecode, "invalid JPEG")
	}
	pos := 2
	for pos+3 < len(jpegData) {
		if jpegData[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(jpegData) && jpegData[pos] == markerStart {
			pos++
		}
		if pos >= len(jpegData) {
			break
		}
		marker := jpegData[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 {
			continue
		}
		if pos+1 >= len(jpegData) {
			return nil, nil, errors.Wrap(ErrDecode, "truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(jpegData[pos:]))
		if segLen < 2 || pos+segLen > len(jpegData) {
			return nil, nil, errors.Wrap(ErrDecode, "invalid segment length")
		}
		segStart := pos + 2
		segEnd := pos + segLen
		switch marker {
		case markerAPP1:
			app1 = append(app1, append([]byte(nil), jpegData[segStart:segEnd]...))
		case markerAPP2:
			app2 = append(app2, append([]byte(nil), jpegData[segStart:segEnd]...))
		}
		pos = segEnd
	}
	return app1, app2, nil
}

func findXMP(app1 [][]byte) []byte {
	prefix := append([]byte(xmpNamespace), 0)
	for _, seg := range app1 {
		if bytes.HasPrefix(seg, prefix) {
			return seg
		}
	}
	return nil
}

func findISO(app2 [][]byte) []byte {
	prefix := append([]byte(isoNamespace), 0)
	for _, seg := range app2 {
		if bytes.HasPrefix(seg, prefix) {
			return seg
		}
	}
	return nil
}

// extractExifAndICC returns the EXIF APP1 payload and the ordered ICC APP2
// payloads of a JPEG.
func extractExifAndICC(jpegData []byte) ([]byte, [][]byte, error) {
	app1, app2, err := extractAppSegments(jpegData)
	if err != nil {
		return nil, nil, err
	}
	var exif []byte
	for _, seg := range app1 {
		if bytes.HasPrefix(seg, exifSig) {
			exif = append([]byte(nil), seg...)
			break
		}
	}
	type iccSegment struct {
		seq  int
		data []byte
	}
	var segs []iccSegment
	for _, seg := range app2 {
		if bytes.HasPrefix(seg, iccSig) && len(seg) >= len(iccSig)+2 {
			segs = append(segs, iccSegment{seq: int(seg[len(iccSig)]), data: append([]byte(nil), seg...)})
		}
	}
	if len(segs) == 0 {
		return exif, nil, nil
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].seq < segs[j].seq })
	icc := make([][]byte, 0, len(segs))
	for _, s := range segs {
		icc = append(icc, s.data)
	}
	return exif, icc, nil
}

func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) {
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	length := uint16(len(payload) + 2)
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(payload)
}

func appSize(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	return 4 + len(payload)
}
