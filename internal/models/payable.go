package models

import "fmt"

// PayableType identifies which kind of marketplace obligation a split group
// pays off. The engine treats the obligation itself as opaque; the type tag
// only routes the final "mark paid" write.
type PayableType string

const (
	// PayableStagePayment is a construction-stage payment request raised by
	// a contractor against a homeowner.
	PayableStagePayment PayableType = "stage_payment"

	// PayableDetailUnlock is the fee a contractor pays to unlock an
	// architect's technical detail drawings.
	PayableDetailUnlock PayableType = "detail_unlock"
)

// Valid reports whether t is a known payable type.
func (t PayableType) Valid() bool {
	switch t {
	case PayableStagePayment, PayableDetailUnlock:
		return true
	}
	return false
}

// ParsePayableType converts a wire string into a PayableType.
func ParsePayableType(s string) (PayableType, error) {
	t := PayableType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown payable type: %q", s)
	}
	return t, nil
}
