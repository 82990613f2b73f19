package services

import (
	"testing"

	"shuttle/internal/domain/models"
)

func TestPanelsHiddenOutsideBoarding(t *testing.T) {
	pc := models.PanelContext{Trip: models.TripContext{TotalStops: 3, QueueSize: 2, HasActiveReservations: true}}
	for _, st := range []models.TripState{models.TripOffline, models.TripWaitingStart, models.TripFinished} {
		v := GetPanelVisibility(st, pc)
		if v.Queue != models.QueueHidden || v.Reservation != models.ReservationHidden || v.Cash != models.CashHidden {
			t.Fatalf("%s: panels must be hidden, got %+v", st, v)
		}
		if !v.MainButton.Enabled {
			t.Fatalf("%s: main button should be enabled, got %+v", st, v.MainButton)
		}
	}
}

func TestQueuePanelGrading(t *testing.T) {
	base := models.PanelContext{Trip: models.TripContext{TotalStops: 3, QueueSize: 1}}

	if v := GetPanelVisibility(models.TripBoarding, base); v.Queue != models.QueueActive {
		t.Fatalf("want active, got %s", v.Queue)
	}
	scanning := base
	scanning.ScanInProgress = true
	if v := GetPanelVisibility(models.TripBoarding, scanning); v.Queue != models.QueueScanning {
		t.Fatalf("want scanning, got %s", v.Queue)
	}
	deciding := scanning
	deciding.AwaitingDecision = true
	if v := GetPanelVisibility(models.TripBoarding, deciding); v.Queue != models.QueueAwaitingDecision {
		t.Fatalf("want awaiting_decision, got %s", v.Queue)
	}
	if v := GetPanelVisibility(models.TripInTransit, base); v.Queue != models.QueueLocked {
		t.Fatalf("want locked while moving, got %s", v.Queue)
	}
	empty := models.PanelContext{Trip: models.TripContext{TotalStops: 3}}
	if v := GetPanelVisibility(models.TripBoarding, empty); v.Queue != models.QueueHidden {
		t.Fatalf("empty queue should hide, got %s", v.Queue)
	}
	if v := GetPanelVisibility(models.TripInTransit, empty); v.Queue != models.QueueHidden {
		t.Fatalf("empty queue in transit should hide, got %s", v.Queue)
	}
}

func TestReservationAndCashModes(t *testing.T) {
	pc := models.PanelContext{Trip: models.TripContext{TotalStops: 3, HasActiveReservations: true}, SettlementLocked: true}
	v := GetPanelVisibility(models.TripArrivedStop, pc)
	if v.Reservation != models.ReservationWaiting || v.Cash != models.CashLocked {
		t.Fatalf("unexpected modes %+v", v)
	}
	pc.BookingConfirming = true
	if v := GetPanelVisibility(models.TripBoarding, pc); v.Reservation != models.ReservationConfirming {
		t.Fatalf("want confirming, got %s", v.Reservation)
	}
	missed := models.PanelContext{Trip: models.TripContext{CurrentStopIndex: 1, TotalStops: 3}, ReservationsMissed: true}
	if v := GetPanelVisibility(models.TripBoarding, missed); v.Reservation != models.ReservationExpired || v.Cash != models.CashActive {
		t.Fatalf("want expired/active, got %+v", v)
	}
}

func TestArrivedStopMainButton(t *testing.T) {
	mid := models.PanelContext{Trip: models.TripContext{CurrentStopIndex: 2, TotalStops: 4}}
	v := GetPanelVisibility(models.TripArrivedStop, mid)
	if v.MainButton.Action != models.ActionContinueBoarding || !v.MainButton.Enabled {
		t.Fatalf("want enabled continue_boarding, got %+v", v.MainButton)
	}
	last := models.PanelContext{Trip: models.TripContext{CurrentStopIndex: 3, TotalStops: 4}}
	v = GetPanelVisibility(models.TripArrivedStop, last)
	if v.MainButton.Action != models.ActionFinishTrip || !v.MainButton.Enabled {
		t.Fatalf("want enabled finish_trip, got %+v", v.MainButton)
	}
}

func TestReservationWaitsAtFirstStop(t *testing.T) {
	first := models.PanelContext{Trip: models.TripContext{TotalStops: 3}}
	if v := GetPanelVisibility(models.TripBoarding, first); v.Reservation != models.ReservationWaiting {
		t.Fatalf("boarding at the first stop should wait, got %s", v.Reservation)
	}
	later := models.PanelContext{Trip: models.TripContext{CurrentStopIndex: 1, TotalStops: 3}}
	if v := GetPanelVisibility(models.TripBoarding, later); v.Reservation != models.ReservationHidden {
		t.Fatalf("later stops without reservations should hide, got %s", v.Reservation)
	}
	if v := GetPanelVisibility(models.TripArrivedStop, later); v.Reservation != models.ReservationHidden {
		t.Fatalf("arrived stop without reservations should hide, got %s", v.Reservation)
	}
}
