package models

import "time"

type PassengerState string

const (
	PassengerWaiting     PassengerState = "waiting"
	PassengerSelected    PassengerState = "selected"
	PassengerScanning    PassengerState = "scanning"
	PassengerScanSuccess PassengerState = "scan_success"
	PassengerScanError   PassengerState = "scan_error"
	PassengerAccepted    PassengerState = "accepted"
	PassengerRejected    PassengerState = "rejected"
)

// Terminal reports states after which the passenger leaves the visible queue.
func (s PassengerState) Terminal() bool {
	return s == PassengerAccepted || s == PassengerRejected
}

// QueuePassenger is a walk-up rider processed through a live QR scan.
type QueuePassenger struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	QueuePosition int            `json:"queue_position"`
	TicketCount   int            `json:"ticket_count"`
	State         PassengerState `json:"fsm_state"`
	QRData        *QRPayload     `json:"qr_data,omitempty"`
}

// QRPayload is the content of a payment QR: amount, recipient and issue time.
type QRPayload struct {
	Sum       float64   `json:"sum"`
	Recipient string    `json:"recipient"`
	CreatedAt time.Time `json:"created_at"`
}
