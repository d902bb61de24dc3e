package indicators

// MovingAverage computes the simple moving average over a sliding window of
// period. The result has length len(closes)-period+1 and is aligned to the
// end of each window; no leading NaN padding.
func MovingAverage(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}
	out := make([]float64, 0, len(closes)-period+1)
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}
