package purchasing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/shared"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusDraft             Status = "Draft"
	StatusSent              Status = "Sent"
	StatusConfirmed         Status = "Confirmed"
	StatusShipped           Status = "Shipped"
	StatusPartiallyReceived Status = "PartiallyReceived"
	StatusReceived          Status = "Received"
	StatusCancelled         Status = "Cancelled"
)

// ParseStatus validates a raw status value at the boundary.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusDraft, StatusSent, StatusConfirmed, StatusShipped,
		StatusPartiallyReceived, StatusReceived, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
}

// transitions is the exhaustive edge table of the order state machine.
// Receiving is handled separately: it moves Confirmed/Shipped/PartiallyReceived
// to Received or PartiallyReceived depending on outstanding quantities.
var transitions = map[Status][]Status{
	StatusDraft:             {StatusSent, StatusCancelled},
	StatusSent:              {StatusConfirmed, StatusCancelled},
	StatusConfirmed:         {StatusShipped, StatusPartiallyReceived, StatusReceived, StatusCancelled},
	StatusShipped:           {StatusPartiallyReceived, StatusReceived, StatusCancelled},
	StatusPartiallyReceived: {StatusPartiallyReceived, StatusReceived, StatusCancelled},
	StatusReceived:          nil,
	StatusCancelled:         nil,
}

// CanTransition reports whether the edge from -> to exists.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Receivable reports whether goods may be received in this state.
func (s Status) Receivable() bool {
	return s == StatusConfirmed || s == StatusShipped || s == StatusPartiallyReceived
}

// Deletable reports whether an order in this state may be removed.
func (s Status) Deletable() bool {
	return s == StatusDraft || s == StatusCancelled
}

// PurchaseOrder is the order header. Monetary fields are 2-dp decimals and
// always satisfy total = subtotal + tax + shipping - discount.
type PurchaseOrder struct {
	ID                   int64
	Number               string
	SupplierID           int64
	OrderDate            time.Time
	ExpectedDeliveryDate *time.Time
	ActualDeliveryDate   *time.Time
	Status               Status
	Subtotal             decimal.Decimal
	TaxAmount            decimal.Decimal
	DiscountAmount       decimal.Decimal
	ShippingCost         decimal.Decimal
	TotalAmount          decimal.Decimal
	Currency             string
	PaymentTerms         string
	Notes                string
	InternalNotes        string
	CreatedBy            int64
	RowVersion           int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OrderItem is a purchase order line.
type OrderItem struct {
	ID               int64
	OrderID          int64
	ProductID        int64
	VariantID        int64
	Description      string
	UnitID           int64
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	DiscountPercent  decimal.Decimal
	LineTotal        decimal.Decimal
	QuantityReceived decimal.Decimal
	Notes            string
}

// RemainingQuantity is the outstanding quantity on the line.
func (i OrderItem) RemainingQuantity() decimal.Decimal {
	return i.Quantity.Sub(i.QuantityReceived)
}

// IsFullyReceived reports whether the line is complete.
func (i OrderItem) IsFullyReceived() bool {
	return i.QuantityReceived.GreaterThanOrEqual(i.Quantity)
}

var (
	// ErrNotFound indicates the order, item or product does not exist.
	ErrNotFound = errors.New("purchasing: not found")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("purchasing: invalid state transition")
	// ErrValidation indicates input out of the allowed range.
	ErrValidation = errors.New("purchasing: invalid input")
	// ErrConflict indicates a stale write rejected by the row version check.
	ErrConflict = errors.New("purchasing: concurrent modification detected")
	// ErrDuplicateOrderNumber indicates an order number collision; the caller
	// may retry creation.
	ErrDuplicateOrderNumber = errors.New("purchasing: duplicate order number")
)

func init() {
	shared.MarkSafe(ErrNotFound, ErrInvalidState, ErrValidation, ErrConflict, ErrDuplicateOrderNumber)
}
