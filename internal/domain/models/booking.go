package models

import "time"

// CancelContext selects which reason list applies to a cancellation.
type CancelContext string

const (
	CancelBoarding   CancelContext = "boarding"
	CancelFutureStop CancelContext = "future_stop"
)

// Reasons offered while the passenger is expected at the current stop.
var BoardingCancelReasons = []string{
	"passenger_absent",
	"qr_not_found",
	"passenger_refused",
	"wrong_stop",
}

// Reasons offered for bookings at stops the vehicle has not reached yet.
var FutureStopCancelReasons = []string{
	"passenger_cancelled",
	"route_changed",
	"vehicle_full",
	"duplicate_booking",
}

// CancelReasons returns the reason list for a context.
func CancelReasons(ctx CancelContext) []string {
	switch ctx {
	case CancelBoarding:
		return BoardingCancelReasons
	case CancelFutureStop:
		return FutureStopCancelReasons
	default:
		return nil
	}
}

// Booking is a pre-registered reservation tied to a boarding stop.
type Booking struct {
	ID            int64         `json:"id"`
	PassengerName string        `json:"passenger_name"`
	FromStopIndex int           `json:"from_stop_index"`
	ToStopIndex   int           `json:"to_stop_index"`
	Amount        float64       `json:"amount"`
	Count         int           `json:"count"`
	Reserved      bool          `json:"reserved"`
	Accepted      bool          `json:"accepted"`
	Scanned       bool          `json:"scanned"`
	QRData        *QRPayload    `json:"qr_data,omitempty"`
	QRError       string        `json:"qr_error,omitempty"`
	CancelContext CancelContext `json:"cancel_context,omitempty"`
	CancelReason  string        `json:"cancel_reason,omitempty"`
	BoardedAt     *time.Time    `json:"boarded_at,omitempty"`
}

// Boarded reports whether the booking went through acceptScanned.
func (b Booking) Boarded() bool {
	return b.BoardedAt != nil
}

// AwaitingDecision reports a scanned booking waiting for accept/reject.
func (b Booking) AwaitingDecision() bool {
	return b.Scanned && b.QRError == "" && !b.Boarded()
}
