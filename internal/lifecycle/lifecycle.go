// Package lifecycle holds the order status machine and the table status
// rules that depend on it.
//
// Orders move forward only: pending -> preparing -> ready -> completed.
// The kitchen drives the first two steps. Completion happens only when the
// table is settled, and it may start from any non-completed status.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/mesa-digital/api/internal/enum"
)

var (
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrCompletedViaSettle = errors.New("orders are completed by settling the table")
	ErrUnknownTableStatus = errors.New("unknown table status")
)

// kitchenTransitions lists the moves the kitchen may make.
var kitchenTransitions = map[string]string{
	enum.OrderStatusPending:   enum.OrderStatusPreparing,
	enum.OrderStatusPreparing: enum.OrderStatusReady,
}

// IsValidOrderStatus reports whether s is one of the four order statuses.
func IsValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusPreparing,
		enum.OrderStatusReady, enum.OrderStatusCompleted:
		return true
	}
	return false
}

// IsActive reports whether an order still keeps its table occupied.
func IsActive(status string) bool {
	return status != enum.OrderStatusCompleted
}

// ValidateKitchenTransition checks a status change requested from the
// kitchen board.
func ValidateKitchenTransition(current, next string) error {
	if !IsValidOrderStatus(current) || !IsValidOrderStatus(next) {
		return ErrUnknownStatus
	}
	if next == enum.OrderStatusCompleted {
		return ErrCompletedViaSettle
	}
	if kitchenTransitions[current] != next {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, next)
	}
	return nil
}

// CanComplete reports whether settling the table may complete an order in
// the given status.
func CanComplete(current string) bool {
	return IsValidOrderStatus(current) && current != enum.OrderStatusCompleted
}

// NextKitchenStatus returns the status the kitchen moves an order to next,
// or "" when the kitchen has no further action.
func NextKitchenStatus(current string) string {
	return kitchenTransitions[current]
}

// KitchenStatuses are the statuses shown on the kitchen board.
func KitchenStatuses() []string {
	return []string{enum.OrderStatusPending, enum.OrderStatusPreparing}
}

// ReportStatuses are the statuses counted in sales reports.
func ReportStatuses() []string {
	return []string{enum.OrderStatusPreparing, enum.OrderStatusReady, enum.OrderStatusCompleted}
}

// ValidateTableStatus checks a manually requested table status.
func ValidateTableStatus(s string) error {
	switch s {
	case enum.TableStatusAvailable, enum.TableStatusOccupied, enum.TableStatusReserved:
		return nil
	}
	return ErrUnknownTableStatus
}

// TableStatusAfterSettle is the status a table takes once a settlement
// commits, given how many of its orders are still open.
func TableStatusAfterSettle(openOrders int64) string {
	if openOrders > 0 {
		return enum.TableStatusOccupied
	}
	return enum.TableStatusAvailable
}
