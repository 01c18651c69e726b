package tuition

import "github.com/xraph/tuition/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Period is re-exported from types package.
type Period = types.Period

// PeriodType is re-exported from types package.
type PeriodType = types.PeriodType

// Re-export Money constructors
var (
	EUR  = types.EUR
	USD  = types.USD
	GBP  = types.GBP
	CHF  = types.CHF
	Zero = types.Zero
	Sum  = types.Sum
)

// Re-export period constructors
var (
	NewPeriod   = types.NewPeriod
	MonthPeriod = types.MonthPeriod
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
