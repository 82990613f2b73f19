package services

import "shuttle/internal/domain/models"

type buttonDef struct {
	label   string
	action  models.TransitionAction
	variant string
}

var mainButtons = map[models.TripState]buttonDef{
	models.TripOffline:      {"Start shift", models.ActionStartShift, "primary"},
	models.TripWaitingStart: {"Start boarding", models.ActionStartBoarding, "primary"},
	models.TripBoarding:     {"Depart", models.ActionDepartStop, "primary"},
	models.TripInTransit:    {"Arrived at stop", models.ActionArriveStop, "primary"},
	models.TripFinished:     {"End shift", models.ActionEndShift, "destructive"},
}

// GetPanelVisibility maps the trip state and panel context to the panel modes.
// It is pure; the result depends only on its arguments.
func GetPanelVisibility(state models.TripState, pc models.PanelContext) models.PanelVisibility {
	trip := models.NewTripContext(pc.Trip)
	v := models.PanelVisibility{
		MainButton:  mainButton(state, trip),
		Queue:       models.QueueHidden,
		Reservation: models.ReservationHidden,
		Cash:        models.CashHidden,
	}

	switch state {
	case models.TripInTransit:
		if trip.QueueSize > 0 {
			v.Queue = models.QueueLocked
		}
	case models.TripBoarding, models.TripArrivedStop:
		v.Queue = queueMode(trip, pc)
		v.Reservation = reservationMode(state, trip, pc)
		v.Cash = models.CashActive
		if pc.SettlementLocked {
			v.Cash = models.CashLocked
		}
	}
	return v
}

func mainButton(state models.TripState, trip models.TripContext) models.ButtonConfig {
	def, ok := mainButtons[state]
	if state == models.TripArrivedStop {
		ok = true
		if trip.IsLastStop {
			def = buttonDef{"Finish trip", models.ActionFinishTrip, "success"}
		} else {
			def = buttonDef{"Continue boarding", models.ActionContinueBoarding, "primary"}
		}
	}
	if !ok {
		return models.ButtonConfig{}
	}
	return models.ButtonConfig{
		Label:   def.label,
		Action:  def.action,
		Enabled: CanTransition(state, def.action, trip),
		Variant: def.variant,
	}
}

func queueMode(trip models.TripContext, pc models.PanelContext) models.QueuePanelMode {
	switch {
	case trip.QueueSize == 0:
		return models.QueueHidden
	case pc.AwaitingDecision:
		return models.QueueAwaitingDecision
	case pc.ScanInProgress:
		return models.QueueScanning
	default:
		return models.QueueActive
	}
}

// reservationMode grades the reservation panel. Boarding at the first stop
// always waits since passengers with bookings board there.
func reservationMode(state models.TripState, trip models.TripContext, pc models.PanelContext) models.ReservationPanelMode {
	switch {
	case pc.BookingConfirming:
		return models.ReservationConfirming
	case trip.HasActiveReservations:
		return models.ReservationWaiting
	case state == models.TripBoarding && trip.CurrentStopIndex == 0:
		return models.ReservationWaiting
	case pc.ReservationsMissed:
		return models.ReservationExpired
	default:
		return models.ReservationHidden
	}
}
