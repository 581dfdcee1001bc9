package uhdr_test

import (
	"fmt"

	"github.com/vearutop/uhdr"
)

func ExampleGenerateGainMap() {
	sdr, err := uhdr.NewPixelBuffer(uhdr.FormatYUV420, 1280, 720, uhdr.GamutBT709)
	if err != nil {
		fmt.Println(err)
		return
	}
	hdr, err := uhdr.NewPixelBuffer(uhdr.FormatP010, 1280, 720, uhdr.GamutBT2100)
	if err != nil {
		fmt.Println(err)
		return
	}

	gm, meta, err := uhdr.GenerateGainMap(sdr, hdr, &uhdr.GainMapGenOptions{
		Transfer: uhdr.TransferHLG,
		Workers:  1,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("gain map %dx%d, max boost %.3f\n", gm.Width, gm.Height, meta.MaxContentBoost)

	// Output:
	// gain map 320x180, max boost 4.926
}

func ExampleAssembler_Convert() {
	hdr, err := uhdr.NewPixelBuffer(uhdr.FormatP010, 640, 480, uhdr.GamutBT2100)
	if err != nil {
		fmt.Println(err)
		return
	}

	a := uhdr.NewAssembler(uhdr.WithWorkers(1))
	if err := a.AddUncompressed(hdr); err != nil {
		fmt.Println(err)
		return
	}
	out, err := a.Convert(uhdr.ConvertConfig{
		Codec:    uhdr.CodecJPEGR,
		Transfer: uhdr.TransferHLG,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("container:", len(out.Bytes) > 0)

	// Output:
	// container: true
}
