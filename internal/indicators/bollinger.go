package indicators

import "math"

// BollingerBands computes upper/middle/lower bands over a sliding window.
// Middle is the simple moving average; band width is deviation times the
// population standard deviation (divide by N) of the same window. All three
// slices have length len(closes)-period+1, aligned to the window end.
func BollingerBands(closes []float64, period int, deviation float64) (upper, middle, lower []float64) {
	if period <= 0 || len(closes) < period {
		return nil, nil, nil
	}
	n := len(closes) - period + 1
	upper = make([]float64, n)
	middle = make([]float64, n)
	lower = make([]float64, n)

	for i := 0; i < n; i++ {
		window := closes[i : i+period]

		mean := 0.0
		for _, c := range window {
			mean += c
		}
		mean /= float64(period)

		variance := 0.0
		for _, c := range window {
			diff := c - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + deviation*std
		lower[i] = mean - deviation*std
	}
	return upper, middle, lower
}
