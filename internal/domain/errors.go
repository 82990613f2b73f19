package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes exposed to the shell. They are stable strings so the UI can pick a
// toast text without parsing messages.
const (
	CodeInvalidTransition    = "invalid_transition"
	CodeInsufficientCapacity = "insufficient_capacity"
	CodeLocked               = "locked"
	CodeQRNotFound           = "qr_not_found"
	CodeQRMismatch           = "qr_mismatch"
	CodeNoPassengers         = "no_passengers_available"
	CodeMissingCancelReason  = "missing_cancel_reason"
	CodeValidation           = "validation_error"
	CodeNotFound             = "not_found"
	CodeConflict             = "conflict"
	CodeInternal             = "internal_error"
)

// ErrNoSnapshot is returned by snapshot stores when a driver has none saved.
var ErrNoSnapshot = errors.New("no snapshot")

// Lock reasons carried by LockedError.
const (
	LockSeatsLocked             = "seatsLocked"
	LockScanningInProgress      = "scanningInProgress"
	LockAccountUnconfirmed      = "accountUnconfirmed"
	LockSettlementRecalculating = "settlementRecalculating"
)

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

// TransitionError reports an action that is not legal from the current trip state,
// either because the table has no such edge or because its guard failed.
type TransitionError struct {
	From        string
	Action      string
	Legal       []string
	GuardFailed bool
}

func (e TransitionError) Error() string {
	legal := "none"
	if len(e.Legal) > 0 {
		legal = strings.Join(e.Legal, ", ")
	}
	if e.GuardFailed {
		return fmt.Sprintf("transition %s blocked by guard in state %s; legal actions: %s", e.Action, e.From, legal)
	}
	return fmt.Sprintf("transition %s is not allowed from state %s; legal actions: %s", e.Action, e.From, legal)
}

// CapacityError is returned when a seat request exceeds the free seats.
type CapacityError struct {
	Requested int
	Free      int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: requested %d seat(s), %d free", e.Requested, e.Free)
}

// LockedError is returned when a precondition lock blocks the intent.
type LockedError struct {
	Reason string
}

func (e LockedError) Error() string {
	if e.Reason == "" {
		return "locked"
	}
	return "locked: " + e.Reason
}

// QRError distinguishes a QR that was not found from one whose data did not match.
type QRError struct {
	Kind string
	Msg  string
}

func (e QRError) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Kind == CodeQRMismatch:
		return "qr data mismatch"
	default:
		return "qr not found"
	}
}

func NewQRNotFound(msg string) QRError { return QRError{Kind: CodeQRNotFound, Msg: msg} }
func NewQRMismatch(msg string) QRError { return QRError{Kind: CodeQRMismatch, Msg: msg} }

type NoPassengersError struct{}

func (NoPassengersError) Error() string { return "no passengers available for scanning" }

// MissingReasonError is returned when a cancellation has no reason or one that
// does not belong to the cancellation context.
type MissingReasonError struct {
	Context string
	Reason  string
}

func (e MissingReasonError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cancel reason required for %s context", e.Context)
	}
	return fmt.Sprintf("reason %q is not valid for %s context", e.Reason, e.Context)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsCapacity(err error) bool {
	var target CapacityError
	return errors.As(err, &target)
}

// LockReason returns the lock reason when err is a LockedError.
func LockReason(err error) (string, bool) {
	var target LockedError
	if errors.As(err, &target) {
		return target.Reason, true
	}
	return "", false
}

// QRKind returns the QR error kind when err is a QRError.
func QRKind(err error) (string, bool) {
	var target QRError
	if errors.As(err, &target) {
		return target.Kind, true
	}
	return "", false
}

// Code maps an error to its taxonomy code. Unknown errors are internal.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var (
		transition TransitionError
		capacity   CapacityError
		locked     LockedError
		qr         QRError
		noPass     NoPassengersError
		reason     MissingReasonError
	)
	switch {
	case errors.As(err, &transition):
		return CodeInvalidTransition
	case errors.As(err, &capacity):
		return CodeInsufficientCapacity
	case errors.As(err, &locked):
		return CodeLocked
	case errors.As(err, &qr):
		if qr.Kind == CodeQRMismatch {
			return CodeQRMismatch
		}
		return CodeQRNotFound
	case errors.As(err, &noPass):
		return CodeNoPassengers
	case errors.As(err, &reason):
		return CodeMissingCancelReason
	case IsValidation(err):
		return CodeValidation
	case IsNotFound(err):
		return CodeNotFound
	case IsConflict(err):
		return CodeConflict
	default:
		return CodeInternal
	}
}
