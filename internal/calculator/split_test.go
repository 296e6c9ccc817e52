package calculator

import (
	"errors"
	"math"
	"testing"
)

func gatewayLimits() Limits {
	return Limits{
		MaxSingleAmount:      1_000_000,
		BufferFraction:       0,
		MinInstallmentAmount: 10_000,
		MaxInstallments:      10,
		MinorUnits:           2,
	}
}

func TestBuildPlan(t *testing.T) {
	tests := []struct {
		name        string
		totalAmount float64
		limits      Limits
		wantErr     error
		wantAmounts []float64
	}{
		{
			name:        "amount under ceiling yields single installment",
			totalAmount: 800_000,
			limits:      gatewayLimits(),
			wantAmounts: []float64{800_000},
		},
		{
			name:        "amount exactly at ceiling yields single installment",
			totalAmount: 1_000_000,
			limits:      gatewayLimits(),
			wantAmounts: []float64{1_000_000},
		},
		{
			name:        "triple split at the ceiling",
			totalAmount: 3_000_000,
			limits:      gatewayLimits(),
			wantAmounts: []float64{1_000_000, 1_000_000, 1_000_000},
		},
		{
			name:        "buffer fraction lowers the effective ceiling",
			totalAmount: 1_000_000,
			limits: Limits{
				MaxSingleAmount:      1_000_000,
				BufferFraction:       0.05,
				MinInstallmentAmount: 10_000,
				MaxInstallments:      10,
				MinorUnits:           2,
			},
			wantAmounts: []float64{500_000, 500_000},
		},
		{
			name:        "too many installments needed",
			totalAmount: 15_000_000,
			limits:      gatewayLimits(),
			wantErr:     ErrSplitLimitExceeded,
		},
		{
			name:        "zero amount rejected",
			totalAmount: 0,
			limits:      gatewayLimits(),
			wantErr:     ErrInvalidAmount,
		},
		{
			name:        "negative amount rejected",
			totalAmount: -500,
			limits:      gatewayLimits(),
			wantErr:     ErrInvalidAmount,
		},
		{
			name:        "sub-minor-unit precision rejected",
			totalAmount: 100.005,
			limits:      gatewayLimits(),
			wantErr:     ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := BuildPlan(tt.totalAmount, tt.limits)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("BuildPlan() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildPlan() failed: %v", err)
			}

			if len(plan) != len(tt.wantAmounts) {
				t.Fatalf("got %d installments, want %d", len(plan), len(tt.wantAmounts))
			}
			for i, inst := range plan {
				if inst.Sequence != i+1 {
					t.Errorf("installment %d has sequence %d, want %d", i, inst.Sequence, i+1)
				}
				if math.Abs(inst.Amount-tt.wantAmounts[i]) > 0.01 {
					t.Errorf("installment %d amount = %v, want %v", i+1, inst.Amount, tt.wantAmounts[i])
				}
			}
		})
	}
}

// The sum invariant must hold for any total: installments reconcile to the
// total exactly, even when equal division does not land on a minor unit.
func TestBuildPlan_SumInvariant(t *testing.T) {
	limits := gatewayLimits()
	totals := []float64{
		1_000_000.01,
		2_500_000,
		3_333_333.33,
		7_777_777.77,
		9_999_999.99,
		1_000.01 * 1_500, // 1,500,015: awkward residuals
	}

	for _, total := range totals {
		plan, err := BuildPlan(total, limits)
		if err != nil {
			t.Fatalf("BuildPlan(%v) failed: %v", total, err)
		}

		var sum float64
		for _, inst := range plan {
			if inst.Amount > limits.EffectiveMax()+0.01 {
				t.Errorf("total %v: installment %d amount %v exceeds ceiling", total, inst.Sequence, inst.Amount)
			}
			sum += inst.Amount
		}
		if math.Abs(sum-total) > 0.01 {
			t.Errorf("total %v: installments sum to %v", total, sum)
		}
	}
}

func TestBuildPlan_SequenceCompleteness(t *testing.T) {
	plan, err := BuildPlan(9_500_000, gatewayLimits())
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	seen := make(map[int]bool, len(plan))
	for _, inst := range plan {
		if seen[inst.Sequence] {
			t.Errorf("duplicate sequence %d", inst.Sequence)
		}
		seen[inst.Sequence] = true
	}
	for seq := 1; seq <= len(plan); seq++ {
		if !seen[seq] {
			t.Errorf("missing sequence %d", seq)
		}
	}
}

func TestBuildPlan_ZeroMinorUnits(t *testing.T) {
	limits := gatewayLimits()
	limits.MinorUnits = 0

	plan, err := BuildPlan(2_500_001, limits)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	var sum float64
	for _, inst := range plan {
		if inst.Amount != math.Trunc(inst.Amount) {
			t.Errorf("installment %d amount %v not a whole unit", inst.Sequence, inst.Amount)
		}
		sum += inst.Amount
	}
	if sum != 2_500_001 {
		t.Errorf("installments sum to %v, want 2500001", sum)
	}
}
