package models

type QueuePanelMode string

const (
	QueueHidden           QueuePanelMode = "hidden"
	QueueActive           QueuePanelMode = "active"
	QueueLocked           QueuePanelMode = "locked"
	QueueScanning         QueuePanelMode = "scanning"
	QueueAwaitingDecision QueuePanelMode = "awaiting_decision"
)

type ReservationPanelMode string

const (
	ReservationHidden     ReservationPanelMode = "hidden"
	ReservationWaiting    ReservationPanelMode = "waiting"
	ReservationConfirming ReservationPanelMode = "confirming"
	ReservationExpired    ReservationPanelMode = "expired"
)

type CashPanelMode string

const (
	CashHidden CashPanelMode = "hidden"
	CashActive CashPanelMode = "active"
	CashLocked CashPanelMode = "locked"
)

// ButtonConfig describes the main trip button.
type ButtonConfig struct {
	Label   string           `json:"label"`
	Action  TransitionAction `json:"action"`
	Enabled bool             `json:"enabled"`
	Variant string           `json:"variant,omitempty"`
}

// PanelVisibility is derived view state; it is never stored.
type PanelVisibility struct {
	MainButton  ButtonConfig         `json:"main_button"`
	Queue       QueuePanelMode       `json:"queue"`
	Reservation ReservationPanelMode `json:"reservation"`
	Cash        CashPanelMode        `json:"cash"`
}

// PanelContext is the trip context plus the sub-panel flags the policy grades on.
type PanelContext struct {
	Trip               TripContext
	ScanInProgress     bool
	AwaitingDecision   bool
	BookingConfirming  bool
	ReservationsMissed bool
	SettlementLocked   bool
}
