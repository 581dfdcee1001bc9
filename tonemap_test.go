package uhdr

import (
	"errors"
	"testing"
)

func TestToneMapBitReduction(t *testing.T) {
	hdr, err := NewPixelBuffer(FormatP010, 8, 8, GamutBT2100)
	if err != nil {
		t.Fatal(err)
	}
	// Fill every luma sample with a distinct 10-bit value.
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := uint16((y*8 + x) * 15)
			hdr.setY16(x, y, v<<6)
		}
	}
	for cy := 0; cy < 4; cy++ {
		for cx := 0; cx < 4; cx++ {
			hdr.setUV16(cx, cy, uint16(cy*100)<<6, uint16(cx*200)<<6)
		}
	}

	sdr, err := ToneMap(hdr)
	if err != nil {
		t.Fatal(err)
	}
	if sdr.Format != FormatYUV420 || sdr.Width != 8 || sdr.Height != 8 {
		t.Fatalf("output %d %dx%d", sdr.Format, sdr.Width, sdr.Height)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			word := hdr.y16(x, y)
			want := uint8((word >> 6) >> 2)
			if got := sdr.y8(x, y); got != want {
				t.Fatalf("luma (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
	for cy := 0; cy < 4; cy++ {
		for cx := 0; cx < 4; cx++ {
			u, v := hdr.uv16(cx, cy)
			if got := sdr.u8(cx, cy); got != uint8((u>>6)>>2) {
				t.Fatalf("u (%d,%d) = %d", cx, cy, got)
			}
			if got := sdr.v8(cx, cy); got != uint8((v>>6)>>2) {
				t.Fatalf("v (%d,%d) = %d", cx, cy, got)
			}
		}
	}
}

func TestToneMapPreservesGamut(t *testing.T) {
	hdr, err := NewPixelBuffer(FormatP010, 16, 16, GamutBT2100)
	if err != nil {
		t.Fatal(err)
	}
	sdr, err := ToneMap(hdr)
	if err != nil {
		t.Fatal(err)
	}
	if sdr.Gamut != GamutBT2100 {
		t.Fatalf("gamut = %d", sdr.Gamut)
	}
}

func TestToneMapRejectsNonP010(t *testing.T) {
	sdr, err := NewPixelBuffer(FormatYUV420, 16, 16, GamutBT709)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ToneMap(sdr); !errors.Is(err, ErrInvalidOutputFormat) {
		t.Fatalf("error = %v", err)
	}
	if _, err := ToneMap(nil); !errors.Is(err, ErrBadPointer) {
		t.Fatalf("nil error = %v", err)
	}
}
