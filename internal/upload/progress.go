package upload

const (
	// MaxStep bounds a single synthetic progress increment.
	MaxStep = 15.0
	// Ceiling is the highest value synthetic progress reaches before the transfer completes.
	Ceiling = 90.0
)

// Estimate advances current by step without passing Ceiling. Negative steps are ignored
// so the estimate never moves backwards.
func Estimate(current, step float64) float64 {
	if step < 0 {
		step = 0
	}
	if step > MaxStep {
		step = MaxStep
	}
	next := current + step
	if next > Ceiling {
		next = Ceiling
	}
	if next < current {
		return current
	}
	return next
}
