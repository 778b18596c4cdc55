package stability

import "math"

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance1 is the population variance.
func variance1(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return ss / float64(len(values))
}

// dispersion is std/|mean|, falling back to std when the mean is zero.
func dispersion(values []float64) float64 {
	std := math.Sqrt(variance1(values))
	if m := math.Abs(mean(values)); m > 0 {
		return std / m
	}
	return std
}

// relativeVariance is variance/mean², i.e. dispersion squared.
func relativeVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	d := dispersion(values)
	return d * d
}

// slope of the least-squares line through (i, values[i]).
func slope(values []float64) float64 {
	n := float64(len(values))
	xm := (n - 1) / 2
	ym := mean(values)
	var sxy, sxx float64
	for i, v := range values {
		dx := float64(i) - xm
		sxy += dx * (v - ym)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0
	}
	return sxy / sxx
}

// predictability is the R² of a linear fit; a flat or too short series scores 0.
func predictability(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	n := float64(len(values))
	xm := (n - 1) / 2
	ym := mean(values)
	var sxy, sxx, syy float64
	for i, v := range values {
		dx, dy := float64(i)-xm, v-ym
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	r := sxy / math.Sqrt(sxx*syy)
	return r * r
}

// convergenceRate is the relative variance reduction from the first half of the
// history to the second. Positive means converging.
func convergenceRate(values []float64) *float64 {
	if len(values) < 3 {
		return nil
	}
	mid := len(values) / 2
	early, late := values[:mid], values[mid:]
	if len(early) < 2 || len(late) < 2 {
		return nil
	}
	ev := variance1(early)
	if ev == 0 {
		return nil
	}
	rate := (ev - variance1(late)) / ev
	return &rate
}

func directions(values []float64) []int {
	dirs := make([]int, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		switch {
		case values[i] > values[i-1]:
			dirs = append(dirs, 1)
		case values[i] < values[i-1]:
			dirs = append(dirs, -1)
		default:
			dirs = append(dirs, 0)
		}
	}
	return dirs
}

// isOscillating reports direction reversals on at least half of the steps.
func isOscillating(values []float64) bool {
	if len(values) < 4 {
		return false
	}
	dirs := directions(values)
	changes := 0
	for i := 1; i < len(dirs); i++ {
		if dirs[i] != 0 && dirs[i-1] != 0 && dirs[i] != dirs[i-1] {
			changes++
		}
	}
	return float64(changes) >= float64(len(dirs))*0.5
}

// oscillationFrequency is the inverse mean spacing of local extrema.
func oscillationFrequency(values []float64) *float64 {
	if len(values) < 4 {
		return nil
	}
	var peaks []int
	for i := 1; i < len(values)-1; i++ {
		up := values[i] > values[i-1] && values[i] > values[i+1]
		down := values[i] < values[i-1] && values[i] < values[i+1]
		if up || down {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) < 2 {
		return nil
	}
	avg := float64(peaks[len(peaks)-1]-peaks[0]) / float64(len(peaks)-1)
	if avg <= 0 {
		return nil
	}
	f := 1.0 / avg
	return &f
}

// noiseLevel is the variance of first differences.
func noiseLevel(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	diffs := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diffs[i-1] = values[i] - values[i-1]
	}
	return variance1(diffs)
}
