// Package calculator turns a total amount and configured gateway limits into
// an ordered installment plan. It is pure: no state, no I/O.
package calculator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidAmount is returned when the total is zero, negative, or
	// carries more precision than the currency's minor unit allows.
	ErrInvalidAmount = errors.New("amount must be positive and within currency precision")

	// ErrSplitLimitExceeded is returned when the amount cannot be split
	// under the configured ceiling and installment-count limits. Not
	// retryable without changing configuration.
	ErrSplitLimitExceeded = errors.New("amount cannot be split under current limits")

	// ErrPlanInconsistent is returned when a built plan violates the sum
	// invariant. This is a defect, never a caller error; the plan must be
	// discarded rather than persisted.
	ErrPlanInconsistent = errors.New("installment plan does not reconcile to the total")
)

// Limits holds the configured splitting constraints.
type Limits struct {
	// MaxSingleAmount is the gateway's single-transaction ceiling.
	MaxSingleAmount float64

	// BufferFraction is headroom kept below the ceiling (e.g. 0.05 keeps
	// installments at or below 95% of MaxSingleAmount).
	BufferFraction float64

	// MinInstallmentAmount is the smallest installment worth issuing an
	// order for.
	MinInstallmentAmount float64

	// MaxInstallments bounds how many installments one obligation may be
	// split into.
	MaxInstallments int

	// MinorUnits is the currency's decimal precision (2 for INR/USD, 0 for
	// JPY). Every installment amount is rounded to this precision.
	MinorUnits int
}

// EffectiveMax is the largest amount a single installment may carry once the
// buffer headroom is applied.
func (l Limits) EffectiveMax() float64 {
	return l.MaxSingleAmount * (1 - l.BufferFraction)
}

// Installment is one entry of a split plan.
type Installment struct {
	Sequence    int
	Amount      float64
	Description string
}

// BuildPlan partitions totalAmount into an ordered series of installments,
// each at or below the effective ceiling.
//
// Amounts are divided greedily: each non-final installment takes an equal
// share of what remains, clamped to [MinInstallmentAmount, EffectiveMax] and
// rounded to the currency's minor unit; the final installment takes whatever
// remains. Folding the rounding residual into the last installment keeps
// early installments close to the ceiling (fewest installments) while
// guaranteeing the plan sums to totalAmount exactly, with no correction pass.
func BuildPlan(totalAmount float64, limits Limits) ([]Installment, error) {
	if totalAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !alignedToMinorUnit(totalAmount, limits.MinorUnits) {
		return nil, fmt.Errorf("%w: %v has sub-%d-decimal precision", ErrInvalidAmount, totalAmount, limits.MinorUnits)
	}

	effectiveMax := limits.EffectiveMax()
	if totalAmount <= effectiveMax {
		return []Installment{{
			Sequence:    1,
			Amount:      roundToMinorUnit(totalAmount, limits.MinorUnits),
			Description: "Installment 1 of 1",
		}}, nil
	}

	n := int(math.Ceil(totalAmount / effectiveMax))
	if n > limits.MaxInstallments {
		return nil, fmt.Errorf("%w: %d installments needed, %d allowed",
			ErrSplitLimitExceeded, n, limits.MaxInstallments)
	}

	plan := make([]Installment, 0, n)
	remaining := totalAmount
	for i := 1; i < n; i++ {
		amount := remaining / float64(n-i+1)
		if amount < limits.MinInstallmentAmount {
			amount = limits.MinInstallmentAmount
		}
		if amount > effectiveMax {
			amount = effectiveMax
		}
		amount = roundToMinorUnit(amount, limits.MinorUnits)

		plan = append(plan, Installment{
			Sequence:    i,
			Amount:      amount,
			Description: fmt.Sprintf("Installment %d of %d", i, n),
		})
		remaining -= amount
	}

	// The final installment absorbs the rounding residual so the plan
	// reconciles to the cent/paisa.
	final := roundToMinorUnit(remaining, limits.MinorUnits)
	plan = append(plan, Installment{
		Sequence:    n,
		Amount:      final,
		Description: fmt.Sprintf("Installment %d of %d", n, n),
	})

	if err := validatePlan(plan, totalAmount, effectiveMax); err != nil {
		return nil, err
	}
	return plan, nil
}

// validatePlan enforces the sum and ceiling invariants on a built plan. A
// violation here aborts plan creation; an inconsistent plan must never reach
// the ledger.
func validatePlan(plan []Installment, totalAmount, effectiveMax float64) error {
	var sum float64
	for i, inst := range plan {
		if inst.Sequence != i+1 {
			return fmt.Errorf("%w: sequence %d at position %d", ErrPlanInconsistent, inst.Sequence, i)
		}
		if inst.Amount <= 0 {
			return fmt.Errorf("%w: installment %d has amount %v", ErrPlanInconsistent, inst.Sequence, inst.Amount)
		}
		if inst.Amount > effectiveMax+amountEpsilon {
			return fmt.Errorf("%w: installment %d exceeds ceiling: %v > %v",
				ErrPlanInconsistent, inst.Sequence, inst.Amount, effectiveMax)
		}
		sum += inst.Amount
	}
	if math.Abs(sum-totalAmount) > amountEpsilon {
		return fmt.Errorf("%w: installments sum to %v, want %v", ErrPlanInconsistent, sum, totalAmount)
	}
	return nil
}

// amountEpsilon absorbs float64 noise when comparing monetary amounts that
// have already been rounded to the minor unit.
const amountEpsilon = 0.01

func roundToMinorUnit(amount float64, minorUnits int) float64 {
	factor := math.Pow(10, float64(minorUnits))
	return math.Round(amount*factor) / factor
}

// alignedToMinorUnit reports whether amount is representable at the given
// decimal precision. Callers must state amounts exactly; the engine never
// guesses whether a value was meant in minor units.
func alignedToMinorUnit(amount float64, minorUnits int) bool {
	return math.Abs(amount-roundToMinorUnit(amount, minorUnits)) < 1e-9*math.Max(1, math.Abs(amount))
}
