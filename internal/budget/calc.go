package budget

import "math"

// favorabilityTolerance treats variances this close to zero as neutral.
const favorabilityTolerance = 1e-6

// AccountTypeExpense flips the favorability comparison: overspending
// an expense budget is bad, exceeding a revenue budget is good.
const AccountTypeExpense = "expense"

// Favorability classifies a variance sign by account nature.
type Favorability string

const (
	Favorable   Favorability = "favorable"
	Unfavorable Favorability = "unfavorable"
	Neutral     Favorability = "neutral"
)

// VarianceResult holds variance = actual - budgeted and the percentage
// of budget consumed. VariancePct is nil when budgeted is exactly zero:
// the percentage is undefined, not infinite and not an error.
type VarianceResult struct {
	Variance    float64  `json:"variance"`
	VariancePct *float64 `json:"variance_pct"`
}

// CalculateVariance computes the variance pair for one actual/budgeted
// amount. Pure and stateless.
func CalculateVariance(actual, budgeted float64) VarianceResult {
	result := VarianceResult{Variance: actual - budgeted}
	if budgeted != 0 {
		pct := (actual / budgeted) * 100.0
		result.VariancePct = &pct
	}
	return result
}

// ClassifyFavorability labels a variance for the given account type.
// Expense accounts invert the sign: spending more than budgeted is
// unfavorable, while any other account type treats a positive variance
// as favorable.
func ClassifyFavorability(accountType string, actual, budgeted float64) Favorability {
	variance := actual - budgeted
	if math.Abs(variance) < favorabilityTolerance {
		return Neutral
	}
	if accountType == AccountTypeExpense {
		if variance > 0 {
			return Unfavorable
		}
		return Favorable
	}
	if variance < 0 {
		return Unfavorable
	}
	return Favorable
}
