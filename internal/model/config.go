package model

import (
	"fmt"

	"github.com/hamaji/taxikko/internal/common"
)

// Historical defaults applied when a stored config is malformed. These are
// deliberate, documented fallbacks, not silent clamps: Normalize reports the
// substitution to its caller.
const (
	DefaultShimebiDay        = 20
	DefaultBusinessStartHour = 9
)

// BillingPeriodConfig drives both the business-date resolver and the billing
// period calculator. ShimebiDay is the day-of-month a billing period closes on
// (0 means "last day of month"); BusinessStartHour is the local hour a
// business day begins.
type BillingPeriodConfig struct {
	ShimebiDay        int // 0, or 1..28
	BusinessStartHour int // 0..23
}

// Validate reports whether the config is within its documented ranges.
func (c BillingPeriodConfig) Validate() error {
	if c.ShimebiDay < 0 || c.ShimebiDay > 28 {
		return fmt.Errorf("%w: shimebi day %d outside {0} ∪ [1,28]", common.ErrInvalidConfig, c.ShimebiDay)
	}
	if c.BusinessStartHour < 0 || c.BusinessStartHour > 23 {
		return fmt.Errorf("%w: business start hour %d outside [0,23]", common.ErrInvalidConfig, c.BusinessStartHour)
	}
	return nil
}

// Normalize returns a config with any out-of-range field replaced by its
// historical default, along with an ErrInvalidConfig-wrapped error describing
// each substitution. A nil error means the config was already valid.
func (c BillingPeriodConfig) Normalize() (BillingPeriodConfig, error) {
	err := c.Validate()
	if err == nil {
		return c, nil
	}
	if c.ShimebiDay < 0 || c.ShimebiDay > 28 {
		c.ShimebiDay = DefaultShimebiDay
	}
	if c.BusinessStartHour < 0 || c.BusinessStartHour > 23 {
		c.BusinessStartHour = DefaultBusinessStartHour
	}
	return c, err
}
