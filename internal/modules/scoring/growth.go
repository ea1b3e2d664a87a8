package scoring

// GrowthPotentialScore maps a percentage price change onto a 1-100
// "room to grow" score. Deep recent drops score high, strong run-ups score
// low; segments are linearly interpolated between fixed endpoints.
func GrowthPotentialScore(changePct float64) float64 {
	switch {
	case changePct <= -100:
		return 100
	case changePct <= -40:
		return lerp(changePct, -100, -40, 100, 90)
	case changePct <= -15:
		return lerp(changePct, -40, -15, 90, 75)
	case changePct <= -2:
		return lerp(changePct, -15, -2, 74, 66)
	case changePct <= 2:
		return lerp(changePct, -2, 2, 65, 55)
	case changePct <= 15:
		return lerp(changePct, 2, 15, 54, 40)
	case changePct <= 40:
		return lerp(changePct, 15, 40, 39, 11)
	default:
		return 1
	}
}

func lerp(x, x0, x1, y0, y1 float64) float64 {
	return y0 + (x-x0)/(x1-x0)*(y1-y0)
}
