package engine

// Score coefficients
const (
	scoreCoef     = 0.0083
	lossCoef      = 0.083
	lossFloor     = 0.83
	hitWeight     = 8.3
	holdingWeight = 0.83
)

// returnPoints rewards moderate returns quadratically and large returns
// cubically; flat or losing pairs are penalized linearly.
func returnPoints(ar float64) float64 {
	switch {
	case ar > 0 && ar < 20:
		return ar*ar*scoreCoef - ar*scoreCoef
	case ar >= 20:
		return (ar*ar*ar*scoreCoef - ar*ar*scoreCoef) * scoreCoef
	default:
		return -ar*lossCoef - lossFloor
	}
}

// Score blends hit rate, average return and a short-holding bonus.
// sampleSize must be positive and the holding time non-zero; callers check.
func Score(s PairStatistic, sampleSize float64) float64 {
	ht := float64(s.HoldingTime)
	return float64(s.HitPoint)/sampleSize*hitWeight +
		returnPoints(s.AverageReturn) +
		((100/ht)/100)*holdingWeight
}
