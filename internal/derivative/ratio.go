package derivative

import "math"

// snapTolerance is the relative distance within which a ratio snaps to a common one.
const snapTolerance = 0.05

var commonRatios = []float64{
	1.0,
	5.0 / 4.0, 4.0 / 3.0, 3.0 / 2.0, 16.0 / 10.0, 16.0 / 9.0, 2.0, 21.0 / 9.0,
	4.0 / 5.0, 3.0 / 4.0, 2.0 / 3.0, 10.0 / 16.0, 9.0 / 16.0, 1.0 / 2.0,
}

// AspectRatio returns width/height snapped to the nearest common ratio when within
// 5%, otherwise rounded to two decimals. Zero dimensions yield 0.
func AspectRatio(width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	raw := float64(width) / float64(height)

	best, bestDist := 0.0, math.MaxFloat64
	for _, c := range commonRatios {
		dist := math.Abs(raw-c) / c
		if dist < bestDist {
			best, bestDist = c, dist
		}
	}
	if bestDist <= snapTolerance {
		return round2(best)
	}
	return round2(raw)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
