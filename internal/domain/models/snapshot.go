package models

import "time"

// Vote is a stop-voting entry that counts down once per second.
type Vote struct {
	ID            int64  `json:"id"`
	PassengerName string `json:"passenger_name"`
	SecondsLeft   int    `json:"seconds_left"`
}

// Snapshot is the flat, storage-agnostic capture of a driver's shift.
type Snapshot struct {
	Version          int                 `json:"version"`
	CapturedAt       time.Time           `json:"captured_at"`
	TripState        TripState           `json:"trip_state"`
	TripID           string              `json:"trip_id"`
	StopIndex        int                 `json:"stop_index"`
	VisitedStops     []int               `json:"visited_stops"`
	GeoTracking      bool                `json:"geo_tracking"`
	Seats            []Seat              `json:"seats"`
	ReservedSeats    int                 `json:"reserved_seats"`
	Bookings         []Booking           `json:"bookings"`
	HighlightedID    int64               `json:"highlighted_booking_id,omitempty"`
	Queue            []QueuePassenger    `json:"queue"`
	SelectedID       int64               `json:"selected_passenger_id,omitempty"`
	Settlements      []SettlementPerson  `json:"settlements"`
	StopHistory      map[int]StopHistory `json:"stop_history"`
	Deposit          float64             `json:"deposit"`
	Commission       float64             `json:"commission"`
	LastRecalculated *time.Time          `json:"last_recalculated,omitempty"`
	Balance          float64             `json:"balance"`
	Transactions     []Transaction       `json:"transactions"`
	Votes            map[int][]Vote      `json:"votes"`
	Payment          PaymentStatus       `json:"payment"`
}
