package models

type SeatStatus string

const (
	SeatFree     SeatStatus = "free"
	SeatOccupied SeatStatus = "occupied"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentQR   PaymentMethod = "qr"
)

// Seat is one physical seat of the vehicle.
type Seat struct {
	ID            int           `json:"id"`
	Status        SeatStatus    `json:"status"`
	PassengerName string        `json:"passenger_name,omitempty"`
	FromStop      *int          `json:"from_stop,omitempty"`
	ToStop        *int          `json:"to_stop,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	AmountPaid    float64       `json:"amount_paid,omitempty"`
}

// SeatHolder describes who takes the seats on an occupy call.
// A zero value is a manual adjustment by the driver.
type SeatHolder struct {
	PassengerName string
	FromStop      *int
	ToStop        *int
	PaymentMethod PaymentMethod
	// AmountPaid is the total for the party; it is spread over the seats.
	AmountPaid float64
}
