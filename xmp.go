package uhdr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	reVersion   = regexp.MustCompile(`hdrgm:Version="([^"]+)"`)
	reGainMin   = regexp.MustCompile(`hdrgm:GainMapMin="([^"]+)"`)
	reGainMax   = regexp.MustCompile(`hdrgm:GainMapMax="([^"]+)"`)
	reGamma     = regexp.MustCompile(`hdrgm:Gamma="([^"]+)"`)
	reOffsetSDR = regexp.MustCompile(`hdrgm:OffsetSDR="([^"]+)"`)
	reOffsetHDR = regexp.MustCompile(`hdrgm:OffsetHDR="([^"]+)"`)
	reHDRCapMin = regexp.MustCompile(`hdrgm:HDRCapacityMin="([^"]+)"`)
	reHDRCapMax = regexp.MustCompile(`hdrgm:HDRCapacityMax="([^"]+)"`)
	reBaseIsHDR = regexp.MustCompile(`hdrgm:BaseRenditionIsHDR="([^"]+)"`)
)

// parseXMP extracts gain map metadata from a gain-map APP1 payload. Boosts
// and capacities are log2-encoded on the wire and converted back to linear.
func parseXMP(app1 []byte) (*GainMapMetadata, error) {
	if len(app1) < len(xmpNamespace)+2 {
		return nil, errors.Wrap(ErrBadMetadata, "xmp block too small")
	}
	if !strings.HasPrefix(string(app1), xmpNamespace+"\x00") {
		return nil, errors.Wrap(ErrBadMetadata, "xmp namespace mismatch")
	}
	xml := string(app1[len(xmpNamespace)+1:])

	meta := &GainMapMetadata{
		Version:         metadataVersion,
		MinContentBoost: 1,
		MaxContentBoost: 1,
		Gamma:           1,
		HDRCapacityMin:  1,
		HDRCapacityMax:  1,
	}

	getStr := func(re *regexp.Regexp) (string, bool) {
		m := re.FindStringSubmatch(xml)
		if len(m) != 2 {
			return "", false
		}
		return m[1], true
	}
	getFloat := func(re *regexp.Regexp) (float32, bool, error) {
		str, ok := getStr(re)
		if !ok {
			return 0, false, nil
		}
		v, err := strconv.ParseFloat(str, 32)
		if err != nil {
			return 0, true, errors.Wrapf(ErrBadMetadata, "bad xmp number %q", str)
		}
		return float32(v), true, nil
	}

	if v, ok := getStr(reVersion); ok {
		meta.Version = v
	} else {
		return nil, errors.Wrap(ErrBadMetadata, "xmp missing version")
	}

	if v, ok, err := getFloat(reGainMax); err != nil {
		return nil, err
	} else if ok {
		meta.MaxContentBoost = exp2f(v)
	} else {
		return nil, errors.Wrap(ErrBadMetadata, "xmp missing GainMapMax")
	}
	if v, ok, err := getFloat(reHDRCapMax); err != nil {
		return nil, err
	} else if ok {
		meta.HDRCapacityMax = exp2f(v)
	} else {
		return nil, errors.Wrap(ErrBadMetadata, "xmp missing HDRCapacityMax")
	}
	if v, ok, err := getFloat(reGainMin); err != nil {
		return nil, err
	} else if ok {
		meta.MinContentBoost = exp2f(v)
	}
	if v, ok, err := getFloat(reGamma); err != nil {
		return nil, err
	} else if ok {
		meta.Gamma = v
	}
	if v, ok, err := getFloat(reOffsetSDR); err != nil {
		return nil, err
	} else if ok {
		meta.OffsetSDR = v
	}
	if v, ok, err := getFloat(reOffsetHDR); err != nil {
		return nil, err
	} else if ok {
		meta.OffsetHDR = v
	}
	if v, ok, err := getFloat(reHDRCapMin); err != nil {
		return nil, err
	} else if ok {
		meta.HDRCapacityMin = exp2f(v)
	}
	if v, ok := getStr(reBaseIsHDR); ok && v == "True" {
		return nil, errors.Wrap(ErrUnsupportedFeature, "HDR base rendition")
	}

	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return meta, nil
}

// buildGainMapXMP produces the APP1 payload for the secondary image.
func buildGainMapXMP(meta *GainMapMetadata) []byte {
	format := func(v float32) string {
		return strconv.FormatFloat(float64(v), 'g', 6, 32)
	}
	xml := fmt.Sprintf(
		`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"><rdf:Description xmlns:hdrgm="http://ns.adobe.com/hdr-gain-map/1.0/" hdrgm:Version="%s" hdrgm:GainMapMin="%s" hdrgm:GainMapMax="%s" hdrgm:Gamma="%s" hdrgm:OffsetSDR="%s" hdrgm:OffsetHDR="%s" hdrgm:HDRCapacityMin="%s" hdrgm:HDRCapacityMax="%s" hdrgm:BaseRenditionIsHDR="False"/></rdf:RDF></x:xmpmeta>`,
		meta.Version,
		format(log2f(meta.MinContentBoost)),
		format(log2f(meta.MaxContentBoost)),
		format(meta.Gamma),
		format(meta.OffsetSDR),
		format(meta.OffsetHDR),
		format(log2f(meta.HDRCapacityMin)),
		format(log2f(meta.HDRCapacityMax)),
	)
	out := make([]byte, 0, len(xmpNamespace)+1+len(xml))
	out = append(out, []byte(xmpNamespace)...)
	out = append(out, 0)
	out = append(out, xml...)
	return out
}

// buildPrimaryXMP produces the APP1 payload for the container header: the
// directory of the two images plus the secondary image length in bytes.
func buildPrimaryXMP(meta *GainMapMetadata, secondaryImageSize int) []byte {
	xml := fmt.Sprintf(
		`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"><rdf:Description xmlns:Container="http://ns.google.com/photos/1.0/container/" xmlns:Item="http://ns.google.com/photos/1.0/container/item/" xmlns:hdrgm="http://ns.adobe.com/hdr-gain-map/1.0/" hdrgm:Version="%s"><Container:Directory><rdf:Seq><rdf:li rdf:parseType="Resource"><Container:Item Item:Semantic="Primary" Item:Mime="image/jpeg"/></rdf:li><rdf:li rdf:parseType="Resource"><Container:Item Item:Semantic="GainMap" Item:Mime="image/jpeg" Item:Length="%d"/></rdf:li></rdf:Seq></Container:Directory></rdf:Description></rdf:RDF></x:xmpmeta>`,
		meta.Version,
		secondaryImageSize,
	)
	out := make([]byte, 0, len(xmpNamespace)+1+len(xml))
	out = append(out, []byte(xmpNamespace)...)
	out = append(out, 0)
	out = append(out, xml...)
	return out
}
