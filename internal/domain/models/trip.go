package models

import "time"

// TripState is the trip-level state of one vehicle shift.
type TripState string

const (
	TripOffline      TripState = "offline"
	TripWaitingStart TripState = "waiting_start"
	TripBoarding     TripState = "boarding"
	TripInTransit    TripState = "in_transit"
	TripArrivedStop  TripState = "arrived_stop"
	TripFinished     TripState = "finished"
)

// TripStates lists every state in lifecycle order.
var TripStates = []TripState{
	TripOffline,
	TripWaitingStart,
	TripBoarding,
	TripInTransit,
	TripArrivedStop,
	TripFinished,
}

func (s TripState) Valid() bool {
	for _, st := range TripStates {
		if s == st {
			return true
		}
	}
	return false
}

// SeatsUnlocked reports whether boarding operations (scans, accepts) are allowed.
func (s TripState) SeatsUnlocked() bool {
	return s == TripBoarding || s == TripArrivedStop
}

// TransitionAction is an intent issued by the driver UI.
type TransitionAction string

const (
	ActionStartShift       TransitionAction = "start_shift"
	ActionStartBoarding    TransitionAction = "start_boarding"
	ActionDepartStop       TransitionAction = "depart_stop"
	ActionArriveStop       TransitionAction = "arrive_stop"
	ActionContinueBoarding TransitionAction = "continue_boarding"
	ActionFinishTrip       TransitionAction = "finish_trip"
	ActionEndShift         TransitionAction = "end_shift"
)

// TripContext is recomputed before every transition attempt.
type TripContext struct {
	CurrentStopIndex      int    `json:"current_stop_index"`
	TotalStops            int    `json:"total_stops"`
	FreeSeats             int    `json:"free_seats"`
	OccupiedSeats         int    `json:"occupied_seats"`
	HasActiveReservations bool   `json:"has_active_reservations"`
	QueueSize             int    `json:"queue_size"`
	IsLastStop            bool   `json:"is_last_stop"`
	TripID                string `json:"trip_id"`
}

// NewTripContext fills IsLastStop from the stop index and stop count.
func NewTripContext(c TripContext) TripContext {
	c.IsLastStop = c.CurrentStopIndex >= c.TotalStops-1
	return c
}

// Stop is one point of the route.
type Stop struct {
	Index int    `json:"index" yaml:"-"`
	Name  string `json:"name" yaml:"name"`
	Time  string `json:"time,omitempty" yaml:"time"`
}

// StopHistory is the per-stop snapshot taken when the vehicle leaves a stop.
type StopHistory struct {
	Reserved int `json:"reserved"`
	Boarded  int `json:"boarded"`
}

// Transaction is one money movement shown on the driver's operations tab.
type Transaction struct {
	ID            int64         `json:"id"`
	Type          string        `json:"type"` // booking, boarding, deposit, withdraw
	Amount        float64       `json:"amount"`
	PassengerName string        `json:"passenger_name,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
}
