package assumption

import "math"

// Linspace returns n evenly spaced values over [lo, hi], both ends included.
// A range symmetric about zero with odd n has exactly 0 at its midpoint.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	if n%2 == 1 && lo == -hi {
		out[n/2] = 0
	}
	return out
}

// Path builds a horizon-length path from start to end following the trend shape.
func Path(trend TrendType, start, end float64, horizon int) []float64 {
	if horizon <= 0 {
		return nil
	}
	switch trend {
	case TrendConstant:
		return fill(start, horizon)
	case TrendExponential:
		// Geometric interpolation of the gap toward end; falls back to linear when signs differ.
		if start <= 0 || end <= 0 {
			return Linspace(start, end, horizon)
		}
		out := make([]float64, horizon)
		if horizon == 1 {
			out[0] = start
			return out
		}
		ratio := math.Pow(end/start, 1.0/float64(horizon-1))
		v := start
		for i := range out {
			out[i] = v
			v *= ratio
		}
		out[horizon-1] = end
		return out
	case TrendSCurve:
		out := make([]float64, horizon)
		if horizon == 1 {
			out[0] = start
			return out
		}
		for i := range out {
			x := float64(i) / float64(horizon-1)
			// smoothstep
			w := x * x * (3 - 2*x)
			out[i] = start + (end-start)*w
		}
		return out
	default:
		return Linspace(start, end, horizon)
	}
}

// MergePath places an explicit prefix in front of a tail that runs linearly from the
// last prefix value to end. Prefix entries past the horizon are ignored.
func MergePath(prefix []float64, end float64, horizon int) []float64 {
	if horizon <= 0 {
		return nil
	}
	if len(prefix) == 0 {
		return nil
	}
	k := len(prefix)
	if k > horizon {
		k = horizon
	}
	out := make([]float64, horizon)
	copy(out, prefix[:k])
	if k == horizon {
		return out
	}
	// tail includes the prefix's last value as its anchor
	tail := Linspace(prefix[k-1], end, horizon-k+1)
	copy(out[k:], tail[1:])
	return out
}

// SmoothTail rewrites path[from:] so it glides from path[from-1] to target over the remaining years.
// It returns a new slice; path is not modified.
func SmoothTail(path []float64, from int, target float64) []float64 {
	out := make([]float64, len(path))
	copy(out, path)
	if from <= 0 || from >= len(path) {
		return out
	}
	tail := Linspace(path[from-1], target, len(path)-from+1)
	copy(out[from:], tail[1:])
	return out
}

func fill(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
