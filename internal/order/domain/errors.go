package domain

import (
	"errors"
	"fmt"
)

// ErrShortCodeTaken signals a short-code unique-constraint hit; the lifecycle
// manager regenerates and retries on it.
var ErrShortCodeTaken = errors.New("short code already taken")

// ErrIdempotencyReplay signals that the idempotency key of a checkout request
// was already recorded, i.e. the order exists from an earlier attempt.
var ErrIdempotencyReplay = errors.New("idempotency key already recorded")

// ValidationError reports bad caller input: empty cart, non-positive quantity,
// unknown or unavailable menu item, invalid report range.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// NotFoundError reports a missing order.
type NotFoundError struct {
	OrderID OrderID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %d not found", e.OrderID)
}

// InvalidTransitionError reports a status change the state machine forbids.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// PersistenceError wraps store failures that are fatal for the request,
// including exhausted short-code retries.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ReportError wraps aggregation failures; partial aggregates are never returned.
type ReportError struct {
	Query string
	Err   error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report: %s: %v", e.Query, e.Err)
}

func (e *ReportError) Unwrap() error { return e.Err }
