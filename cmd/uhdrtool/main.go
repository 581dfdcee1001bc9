package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/vearutop/uhdr"
)

var logger *zap.Logger

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	switch os.Args[1] {
	case "encode":
		err = runEncode(os.Args[2:])
	case "decode":
		err = runDecode(os.Args[2:])
	case "detect":
		err = runDetect(os.Args[2:])
	case "split":
		err = runSplit(os.Args[2:])
	case "preview":
		err = runPreview(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: uhdrtool <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  encode  -sdr base.jpg -hdr hdr.p010 -w 1280 -h 720 -transfer hlg -out out.jpg [-q 95]")
	fmt.Fprintln(os.Stderr, "  decode  -in uhdr.jpg [-primary-out p.jpg] [-gainmap-out g.jpg] [-meta-out meta.json]")
	fmt.Fprintln(os.Stderr, "  detect  -in input.jpg")
	fmt.Fprintln(os.Stderr, "  split   -in uhdr.jpg -primary-out p.jpg -gainmap-out g.jpg")
	fmt.Fprintln(os.Stderr, "  preview -in uhdr.jpg -w 320 -h 240 -out thumb.jpg [-q 85]")
}

func runEncode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	sdrPath := fs.String("sdr", "", "SDR base JPEG")
	hdrPath := fs.String("hdr", "", "raw P010 HDR input")
	width := fs.Int("w", 0, "HDR width")
	height := fs.Int("h", 0, "HDR height")
	transfer := fs.String("transfer", "hlg", "HDR transfer: hlg, pq or linear")
	quality := fs.Int("q", 0, "base quality")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *hdrPath == "" || *width <= 0 || *height <= 0 || *outPath == "" {
		fs.Usage()
		return fmt.Errorf("encode: -hdr, -w, -h and -out are required")
	}

	tf, err := parseTransfer(*transfer)
	if err != nil {
		return err
	}
	hdr, err := readP010(*hdrPath, *width, *height)
	if err != nil {
		return err
	}

	a := uhdr.NewAssembler()
	if err := a.AddUncompressed(hdr); err != nil {
		return err
	}
	if *sdrPath != "" {
		data, err := os.ReadFile(filepath.Clean(*sdrPath))
		if err != nil {
			return err
		}
		if err := a.AddCompressed(data); err != nil {
			return err
		}
	}

	out, err := a.Convert(uhdr.ConvertConfig{
		Codec:    uhdr.CodecJPEGR,
		Transfer: tf,
		Quality:  *quality,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*outPath), out.Bytes, 0o644); err != nil {
		return err
	}
	logger.Info("encoded",
		zap.String("out", *outPath),
		zap.Int("size", len(out.Bytes)),
		zap.Int("width", *width),
		zap.Int("height", *height))
	return nil
}

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	primaryOut := fs.String("primary-out", "", "write primary JPEG")
	gainmapOut := fs.String("gainmap-out", "", "write gain map JPEG")
	metaOut := fs.String("meta-out", "", "write metadata JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		fs.Usage()
		return fmt.Errorf("decode: -in is required")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	split, err := uhdr.SplitContainer(data)
	if err != nil {
		return err
	}
	if *primaryOut != "" {
		if err := os.WriteFile(filepath.Clean(*primaryOut), split.PrimaryJPEG, 0o644); err != nil {
			return err
		}
	}
	if *gainmapOut != "" {
		if err := os.WriteFile(filepath.Clean(*gainmapOut), split.GainMapJPEG, 0o644); err != nil {
			return err
		}
	}
	if *metaOut != "" {
		j, err := json.MarshalIndent(split.Meta, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Clean(*metaOut), j, 0o644); err != nil {
			return err
		}
	}
	logger.Info("decoded",
		zap.Int("primary_size", len(split.PrimaryJPEG)),
		zap.Int("gainmap_size", len(split.GainMapJPEG)),
		zap.Float32("max_content_boost", split.Meta.MaxContentBoost))
	return nil
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	inPath := fs.String("in", "", "input image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		fs.Usage()
		return fmt.Errorf("detect: -in is required")
	}
	f, err := os.Open(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	ok, err := uhdr.IsJPEGR(f)
	if err != nil {
		return err
	}
	fmt.Println(ok)
	return nil
}

func runSplit(args []string) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	primaryOut := fs.String("primary-out", "", "write primary JPEG")
	gainmapOut := fs.String("gainmap-out", "", "write gain map JPEG")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *primaryOut == "" || *gainmapOut == "" {
		fs.Usage()
		return fmt.Errorf("split: -in, -primary-out and -gainmap-out are required")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	split, err := uhdr.SplitContainer(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*primaryOut), split.PrimaryJPEG, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*gainmapOut), split.GainMapJPEG, 0o644)
}

func runPreview(args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	width := fs.Uint("w", 0, "preview width")
	height := fs.Uint("h", 0, "preview height")
	quality := fs.Int("q", 85, "preview quality")
	outPath := fs.String("out", "", "output JPEG")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" || *width == 0 || *height == 0 {
		fs.Usage()
		return fmt.Errorf("preview: -in, -out, -w and -h are required")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	split, err := uhdr.SplitContainer(data)
	if err != nil {
		return err
	}
	img, err := jpeg.Decode(bytes.NewReader(split.PrimaryJPEG))
	if err != nil {
		return err
	}
	thumb := resize.Resize(*width, *height, img, resize.Bilinear)
	var out bytes.Buffer
	if err := jpeg.Encode(&out, thumb, &jpeg.Options{Quality: *quality}); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*outPath), out.Bytes(), 0o644); err != nil {
		return err
	}
	logger.Info("preview written", zap.String("out", *outPath), zap.Int("size", out.Len()))
	return nil
}

func parseTransfer(s string) (uhdr.ColorTransfer, error) {
	switch s {
	case "hlg":
		return uhdr.TransferHLG, nil
	case "pq":
		return uhdr.TransferPQ, nil
	case "linear":
		return uhdr.TransferLinear, nil
	default:
		return uhdr.TransferUnspecified, fmt.Errorf("unknown transfer %q", s)
	}
}

// readP010 loads a raw little-endian P010 dump: luma plane then interleaved
// chroma, packed with minimal strides.
func readP010(path string, width, height int) (*uhdr.PixelBuffer, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	buf, err := uhdr.NewPixelBuffer(uhdr.FormatP010, width, height, uhdr.GamutBT2100)
	if err != nil {
		return nil, err
	}
	want := len(buf.Data)
	if len(data) < want {
		return nil, fmt.Errorf("p010 file too small: %d < %d", len(data), want)
	}
	copy(buf.Data, data[:want])
	return buf, nil
}
