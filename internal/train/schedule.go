package train

import "math"

// Schedule maps the base learning rate and the epoch index to the rate
// used for that epoch. Schedules are stateless.
type Schedule func(baseLR float64, epoch int) float64

// Constant keeps the base learning rate throughout.
func Constant() Schedule {
	return func(baseLR float64, _ int) float64 {
		return baseLR
	}
}

// Exponential decays the rate by gamma per epoch, never below floor.
func Exponential(gamma, floor float64) Schedule {
	return func(baseLR float64, epoch int) float64 {
		return math.Max(baseLR*math.Pow(gamma, float64(epoch)), floor)
	}
}

// Cosine follows a half cosine from the base rate down to
// minFactor*base over decaySteps epochs, then stays at the minimum.
func Cosine(decaySteps int, minFactor float64) Schedule {
	return func(baseLR float64, epoch int) float64 {
		minLR := minFactor * baseLR
		if epoch >= decaySteps {
			return minLR
		}
		cos := math.Cos(math.Pi * float64(epoch) / float64(decaySteps))
		return minLR + (baseLR-minLR)*(1+cos)/2
	}
}
