package models

import "time"

// EventKind is the closed set of events written to the event sink.
type EventKind string

const (
	EventTransitionSuccess EventKind = "transition:success"
	EventTransitionBlocked EventKind = "transition:blocked"
	EventIntentBlocked     EventKind = "intent:blocked"
	EventScanStart         EventKind = "scan:start"
	EventScanResult        EventKind = "scan:result"
	EventScanError         EventKind = "scan:error"
	EventScanCancelled     EventKind = "scan:cancelled"
	EventQueueAccepted     EventKind = "queue:accepted"
	EventQueueRejected     EventKind = "queue:rejected"
	EventQueueReverted     EventKind = "queue:reverted"
	EventBookingReserved   EventKind = "booking:reserved"
	EventBookingAccepted   EventKind = "booking:accepted"
	EventBookingRejected   EventKind = "booking:rejected"
	EventBookingCancelled  EventKind = "booking:cancelled"
	EventSeatsAdjusted     EventKind = "seats:adjusted"
	EventSettlementRouted  EventKind = "settlement:routed"
	EventSettlementDone    EventKind = "settlement:completed"
	EventSettlementRecalc  EventKind = "settlement:recalculated"
	EventPaymentState      EventKind = "payment:state"
	EventVoteExpired       EventKind = "vote:expired"
	EventSnapshotRestored  EventKind = "snapshot:restored"
)

// Event is one structured entry of the observability channel. Blocked
// intents always carry a Reason.
type Event struct {
	Kind      EventKind      `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	TripID    string         `json:"trip_id,omitempty"`
	OldState  TripState      `json:"old_state,omitempty"`
	NewState  TripState      `json:"new_state,omitempty"`
	Action    string         `json:"action,omitempty"`
	Context   *TripContext   `json:"context,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
