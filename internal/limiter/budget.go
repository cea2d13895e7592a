package limiter

import (
	"math"
	"time"
)

// Budget is a positive admission rate in operations per second.
type Budget struct {
	Rate float64
}

// NewBudget validates rate and returns the budget.
func NewBudget(rate float64) (Budget, error) {
	if err := validateRate("rate", rate); err != nil {
		return Budget{}, err
	}
	return Budget{Rate: rate}, nil
}

// Interval is the minimum spacing between admissions, rounded up to the
// nanosecond so that a computed wait is never shorter than 1/rate.
func (b Budget) Interval() time.Duration {
	return intervalFor(b.Rate)
}

func intervalFor(rate float64) time.Duration {
	if !(rate > 0) || math.IsInf(rate, 1) {
		return 0
	}
	return time.Duration(math.Ceil(float64(time.Second) / rate))
}

func validateRate(field string, rate float64) error {
	if !(rate > 0) || math.IsInf(rate, 1) {
		return &ConfigurationError{Field: field, Value: rate, Err: ErrInvalidRate}
	}
	return nil
}
