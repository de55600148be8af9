package ta

import "math"

// SMA is the mean of the trailing n values.
func SMA(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(n)
}

// SampleStdDev is the standard deviation (ddof=1) of the trailing n values.
func SampleStdDev(vals []float64, n int) float64 {
	if len(vals) < n || n < 2 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n-1))
}

// PctChange returns simple returns; the result has len(vals)-1 entries.
func PctChange(vals []float64) []float64 {
	if len(vals) < 2 {
		return nil
	}
	out := make([]float64, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		prev := vals[i-1]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(vals[i]) {
			out[i-1] = math.NaN()
			continue
		}
		out[i-1] = vals[i]/prev - 1
	}
	return out
}

// RollingZScore standardizes each value against the trailing window ending at
// it: (x - mean) / sample std. NaN inputs are excluded from the window. Output
// is NaN until minPeriods valid observations are available or when the
// window has zero dispersion.
func RollingZScore(vals []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(vals))
	if window < 2 {
		window = 2
	}
	if minPeriods < 2 {
		minPeriods = 2
	}
	if minPeriods > window {
		minPeriods = window
	}

	var sum, sumSq float64
	count := 0
	for i, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			sumSq += v * v
			count++
		}
		if j := i - window; j >= 0 && !math.IsNaN(vals[j]) {
			sum -= vals[j]
			sumSq -= vals[j] * vals[j]
			count--
		}

		if count < minPeriods || math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		n := float64(count)
		mean := sum / n
		variance := (sumSq - n*mean*mean) / (n - 1)
		if variance <= 1e-12*math.Max(1, mean*mean) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (v - mean) / math.Sqrt(variance)
	}
	return out
}
