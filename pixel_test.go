package uhdr

import (
	"errors"
	"testing"
)

func TestNewPixelBufferLayouts(t *testing.T) {
	cases := []struct {
		format   PixelFormat
		w, h     int
		dataSize int
		uvOffset int
	}{
		{format: FormatYUV420, w: 320, h: 240, dataSize: 320*240 + 160*120*2, uvOffset: 320 * 240},
		{format: FormatP010, w: 320, h: 240, dataSize: 320*240*2 + 320*120*2, uvOffset: 320 * 240 * 2},
		{format: FormatMonochrome, w: 80, h: 60, dataSize: 80 * 60},
		{format: FormatRGBA8888, w: 16, h: 16, dataSize: 16 * 16 * 4},
		{format: FormatRGBAF16, w: 16, h: 16, dataSize: 16 * 16 * 8},
		{format: FormatRGBA1010102, w: 16, h: 16, dataSize: 16 * 16 * 4},
		{format: FormatRGB10Planar, w: 16, h: 16, dataSize: 16 * 16 * 2 * 3},
	}
	for _, c := range cases {
		buf, err := NewPixelBuffer(c.format, c.w, c.h, GamutBT709)
		if err != nil {
			t.Fatalf("format %d: %v", c.format, err)
		}
		if len(buf.Data) != c.dataSize {
			t.Fatalf("format %d: data size %d, want %d", c.format, len(buf.Data), c.dataSize)
		}
		if err := buf.validate(); err != nil {
			t.Fatalf("format %d: validate: %v", c.format, err)
		}
	}
}

func TestNewPixelBufferRejectsOddChromaDims(t *testing.T) {
	if _, err := NewPixelBuffer(FormatYUV420, 321, 240, GamutBT709); !errors.Is(err, ErrUnsupportedWidthHeight) {
		t.Fatalf("odd width error = %v", err)
	}
	if _, err := NewPixelBuffer(FormatP010, 320, 241, GamutBT709); !errors.Is(err, ErrUnsupportedWidthHeight) {
		t.Fatalf("odd height error = %v", err)
	}
}

func TestValidateStrides(t *testing.T) {
	buf, err := NewPixelBuffer(FormatYUV420, 64, 64, GamutBT709)
	if err != nil {
		t.Fatal(err)
	}
	buf.YStride = 32
	if err := buf.validate(); !errors.Is(err, ErrInvalidStride) {
		t.Fatalf("short luma stride error = %v", err)
	}
	buf.YStride = 64
	buf.UVStride = 16
	if err := buf.validate(); !errors.Is(err, ErrInvalidStride) {
		t.Fatalf("short chroma stride error = %v", err)
	}
}

func TestP010SampleAccessors(t *testing.T) {
	buf, err := NewPixelBuffer(FormatP010, 4, 4, GamutBT2100)
	if err != nil {
		t.Fatal(err)
	}
	buf.setY16(1, 2, 512<<6)
	if got := buf.y16(1, 2); got != 512<<6 {
		t.Fatalf("y16 = %d", got)
	}
	buf.setUV16(1, 1, 300<<6, 700<<6)
	u, v := buf.uv16(1, 1)
	if u != 300<<6 || v != 700<<6 {
		t.Fatalf("uv16 = %d, %d", u, v)
	}
}

func TestYUV420ChromaAccessors(t *testing.T) {
	buf, err := NewPixelBuffer(FormatYUV420, 8, 8, GamutBT709)
	if err != nil {
		t.Fatal(err)
	}
	buf.setU8(3, 2, 77)
	buf.setV8(3, 2, 99)
	if got := buf.u8(3, 2); got != 77 {
		t.Fatalf("u8 = %d", got)
	}
	if got := buf.v8(3, 2); got != 99 {
		t.Fatalf("v8 = %d", got)
	}
	// U and V planes must not alias.
	if got := buf.u8(3, 2); got == buf.v8(3, 2) {
		t.Fatalf("chroma planes alias")
	}
}

func TestRGB10PlanarAccessors(t *testing.T) {
	buf, err := NewPixelBuffer(FormatRGB10Planar, 4, 4, GamutBT2100)
	if err != nil {
		t.Fatal(err)
	}
	buf.setRGB10Planar(2, 3, 1023, 512, 1)
	r, g, b := buf.rgb10Planar(2, 3)
	if r != 1023 || g != 512 || b != 1 {
		t.Fatalf("planar readback %d %d %d", r, g, b)
	}
	// Channels live in separate planes.
	if other, _, _ := buf.rgb10Planar(1, 3); other != 0 {
		t.Fatalf("neighbor sample contaminated: %d", other)
	}
}

func TestRGBA1010102Packing(t *testing.T) {
	buf, err := NewPixelBuffer(FormatRGBA1010102, 2, 2, GamutBT2100)
	if err != nil {
		t.Fatal(err)
	}
	buf.setRGBA1010102(1, 1, 1023, 512, 1)
	r, g, b := buf.rgba1010102(1, 1)
	if r != 1023 || g != 512 || b != 1 {
		t.Fatalf("unpacked %d %d %d", r, g, b)
	}
}
