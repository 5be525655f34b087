package preprocess

import "math"

// Interpolate fills NaN entries of values in place by linear interpolation
// over row positions. Leading and trailing gaps take the nearest valid
// value. Returns the number of cells filled; a column without any valid
// value is left untouched.
func Interpolate(values []float64) int {
	prev := -1
	filled := 0
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		switch {
		case prev == -1:
			for j := 0; j < i; j++ {
				values[j] = v
			}
			filled += i
		case i-prev > 1:
			start := values[prev]
			step := (v - start) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				values[j] = start + step*float64(j-prev)
			}
			filled += i - prev - 1
		}
		prev = i
	}

	if prev == -1 {
		return 0
	}
	for j := prev + 1; j < len(values); j++ {
		values[j] = values[prev]
		filled++
	}
	return filled
}

// FillMean replaces remaining NaN entries with the mean of the valid ones,
// or with zero when there are none. Returns the number of cells filled and
// whether any valid value existed.
func FillMean(values []float64) (int, bool) {
	sum, count := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			count++
		}
	}
	mean := 0.0
	if count > 0 {
		mean = sum / float64(count)
	}

	filled := 0
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = mean
			filled++
		}
	}
	return filled, count > 0
}
