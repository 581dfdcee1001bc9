package uhdr

import "gonum.org/v1/gonum/mat"

// Gamut conversion matrices are derived once from the chromaticity
// coordinates of each gamut's primaries and the D65 white point, so every
// ordered pair stays mutually consistent: convert(from, to) applies
// inv(M_to) * M_from where M maps linear RGB to CIE XYZ.

type chromaticity struct {
	x, y float64
}

type gamutPrimaries struct {
	r, g, b chromaticity
}

var (
	d65White = chromaticity{x: 0.3127, y: 0.3290}

	bt709Primaries = gamutPrimaries{
		r: chromaticity{0.640, 0.330},
		g: chromaticity{0.300, 0.600},
		b: chromaticity{0.150, 0.060},
	}
	p3Primaries = gamutPrimaries{
		r: chromaticity{0.680, 0.320},
		g: chromaticity{0.265, 0.690},
		b: chromaticity{0.150, 0.060},
	}
	bt2100Primaries = gamutPrimaries{
		r: chromaticity{0.708, 0.292},
		g: chromaticity{0.170, 0.797},
		b: chromaticity{0.131, 0.046},
	}
)

func xyzCol(c chromaticity) []float64 {
	return []float64{c.x / c.y, 1.0, (1.0 - c.x - c.y) / c.y}
}

// rgbToXYZMatrix assembles the RGB->XYZ matrix for a primary set with the
// D65 white point.
func rgbToXYZMatrix(p gamutPrimaries) *mat.Dense {
	rc, gc, bc := xyzCol(p.r), xyzCol(p.g), xyzCol(p.b)
	unscaled := mat.NewDense(3, 3, []float64{
		rc[0], gc[0], bc[0],
		rc[1], gc[1], bc[1],
		rc[2], gc[2], bc[2],
	})
	white := mat.NewVecDense(3, xyzCol(d65White))

	var scale mat.VecDense
	if err := scale.SolveVec(unscaled, white); err != nil {
		panic("uhdr: singular primary matrix: " + err.Error())
	}

	out := mat.NewDense(3, 3, nil)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			out.Set(row, col, unscaled.At(row, col)*scale.AtVec(col))
		}
	}
	return out
}

type gamutMatrix [9]float32

func (m *gamutMatrix) apply(v rgb) rgb {
	return rgb{
		r: m[0]*v.r + m[1]*v.g + m[2]*v.b,
		g: m[3]*v.r + m[4]*v.g + m[5]*v.b,
		b: m[6]*v.r + m[7]*v.g + m[8]*v.b,
	}
}

var gamutPairMatrices map[[2]ColorGamut]*gamutMatrix

func init() {
	toXYZ := map[ColorGamut]*mat.Dense{
		GamutBT709:  rgbToXYZMatrix(bt709Primaries),
		GamutP3:     rgbToXYZMatrix(p3Primaries),
		GamutBT2100: rgbToXYZMatrix(bt2100Primaries),
	}
	gamuts := []ColorGamut{GamutBT709, GamutP3, GamutBT2100}

	gamutPairMatrices = make(map[[2]ColorGamut]*gamutMatrix, len(gamuts)*len(gamuts))
	for _, from := range gamuts {
		for _, to := range gamuts {
			if from == to {
				continue
			}
			var inv, conv mat.Dense
			if err := inv.Inverse(toXYZ[to]); err != nil {
				panic("uhdr: non-invertible gamut matrix: " + err.Error())
			}
			conv.Mul(&inv, toXYZ[from])

			var gm gamutMatrix
			for row := 0; row < 3; row++ {
				for col := 0; col < 3; col++ {
					gm[row*3+col] = float32(conv.At(row, col))
				}
			}
			gamutPairMatrices[[2]ColorGamut{from, to}] = &gm
		}
	}
}

// gamutConversion returns a function converting linear RGB between gamuts.
// Identity when source equals destination.
func gamutConversion(from, to ColorGamut) func(rgb) rgb {
	if from == to {
		return func(v rgb) rgb { return v }
	}
	m, ok := gamutPairMatrices[[2]ColorGamut{from, to}]
	if !ok {
		return func(v rgb) rgb { return v }
	}
	return m.apply
}
