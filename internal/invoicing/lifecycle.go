package invoicing

import (
	"time"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// Action is a lifecycle command applied to an invoice. Only MarkPaid and Cancel move
// stock; SetStatus is a display edit.
type Action interface {
	Name() string
}

// SetStatus changes the display status without stock effects.
type SetStatus struct {
	Status Status
	Actor  string
}

// MarkPaid records payment and deducts stock for tracked items.
type MarkPaid struct {
	Actor string
}

// Cancel restores deducted stock and destroys the invoice.
type Cancel struct {
	Actor  string
	Reason string
}

func (SetStatus) Name() string { return "set_status" }
func (MarkPaid) Name() string  { return "mark_paid" }
func (Cancel) Name() string    { return "cancel" }

// actorOf returns the actor recorded on the action.
func actorOf(action Action) string {
	switch a := action.(type) {
	case SetStatus:
		return a.Actor
	case MarkPaid:
		return a.Actor
	case Cancel:
		return a.Actor
	}
	return ""
}

// CheckTransition reports whether action may be applied to an invoice in its current
// status.
func CheckTransition(inv Invoice, action Action) error {
	switch a := action.(type) {
	case MarkPaid:
		if inv.Status == StatusPending || inv.Status == StatusOverdue {
			return nil
		}
		return &shared.InvalidTransitionError{InvoiceID: inv.ID, From: string(inv.Status), Action: "mark paid"}
	case Cancel:
		return nil
	case SetStatus:
		if !a.Status.IsValid() {
			return shared.NewValidationError("status", "must be one of [pending paid overdue]")
		}
		return nil
	case nil:
		return shared.NewValidationError("action", "is required")
	default:
		return shared.NewValidationError("action", "unknown action "+action.Name())
	}
}

// withStatus moves inv to status, maintaining PaidAt.
func (inv Invoice) withStatus(status Status, now time.Time) Invoice {
	inv.Status = status
	inv.UpdatedAt = now
	switch {
	case status == StatusPaid && inv.PaidAt == nil:
		paid := now
		inv.PaidAt = &paid
	case status != StatusPaid:
		inv.PaidAt = nil
	}
	return inv
}
