package services

import (
	"strings"
	"testing"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

func TestAttemptTransitionHappyPath(t *testing.T) {
	ctx := models.TripContext{TotalStops: 3}
	state := models.TripOffline
	steps := []struct {
		action models.TransitionAction
		stop   int
		want   models.TripState
	}{
		{models.ActionStartShift, 0, models.TripWaitingStart},
		{models.ActionStartBoarding, 0, models.TripBoarding},
		{models.ActionDepartStop, 0, models.TripInTransit},
		{models.ActionArriveStop, 1, models.TripArrivedStop},
		{models.ActionContinueBoarding, 1, models.TripBoarding},
		{models.ActionDepartStop, 1, models.TripInTransit},
		{models.ActionArriveStop, 2, models.TripArrivedStop},
		{models.ActionFinishTrip, 2, models.TripFinished},
		{models.ActionEndShift, 2, models.TripOffline},
	}
	for _, step := range steps {
		ctx.CurrentStopIndex = step.stop
		next, err := AttemptTransition(state, step.action, ctx)
		if err != nil {
			t.Fatalf("%s from %s: unexpected error %v", step.action, state, err)
		}
		if next != step.want {
			t.Fatalf("%s from %s: want %s got %s", step.action, state, step.want, next)
		}
		state = next
	}
}

func TestArrivedStopGuards(t *testing.T) {
	ctx := models.TripContext{CurrentStopIndex: 2, TotalStops: 4}

	next, err := AttemptTransition(models.TripArrivedStop, models.ActionContinueBoarding, ctx)
	if err != nil || next != models.TripBoarding {
		t.Fatalf("continue_boarding should succeed, got %s %v", next, err)
	}

	next, err = AttemptTransition(models.TripArrivedStop, models.ActionFinishTrip, ctx)
	if err == nil {
		t.Fatalf("finish_trip must fail before the last stop")
	}
	if next != models.TripArrivedStop {
		t.Fatalf("state must not change on failure, got %s", next)
	}
	var te domain.TransitionError
	if !asTransition(err, &te) || !te.GuardFailed {
		t.Fatalf("expected guard failure, got %#v", err)
	}
	if len(te.Legal) != 1 || te.Legal[0] != string(models.ActionContinueBoarding) {
		t.Fatalf("unexpected legal actions: %v", te.Legal)
	}

	ctx.CurrentStopIndex = 3
	if _, err := AttemptTransition(models.TripArrivedStop, models.ActionContinueBoarding, ctx); err == nil {
		t.Fatalf("continue_boarding must fail on the last stop")
	}
	if next, err := AttemptTransition(models.TripArrivedStop, models.ActionFinishTrip, ctx); err != nil || next != models.TripFinished {
		t.Fatalf("finish_trip should succeed on last stop, got %s %v", next, err)
	}
}

func TestAttemptTransitionRejectsUnknownEdge(t *testing.T) {
	_, err := AttemptTransition(models.TripOffline, models.ActionDepartStop, models.TripContext{TotalStops: 3})
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.Code(err) != domain.CodeInvalidTransition {
		t.Fatalf("unexpected code %s", domain.Code(err))
	}
	if !strings.Contains(err.Error(), "start_shift") {
		t.Fatalf("error should list legal actions: %v", err)
	}
}

func TestEmptyQueueAndReservationsNeverBlock(t *testing.T) {
	ctx := models.TripContext{TotalStops: 2, QueueSize: 0, HasActiveReservations: false, FreeSeats: 0}
	if !CanTransition(models.TripBoarding, models.ActionDepartStop, ctx) {
		t.Fatalf("depart_stop must not depend on queue or reservations")
	}
}

// Every reachable state stays inside the enum and Finished is only entered when
// the arrival stop was the last one.
func TestTripFSMClosedOverAllSequences(t *testing.T) {
	actions := []models.TransitionAction{
		models.ActionStartShift, models.ActionStartBoarding, models.ActionDepartStop,
		models.ActionArriveStop, models.ActionContinueBoarding, models.ActionFinishTrip,
		models.ActionEndShift,
	}
	const totalStops = 4
	type node struct {
		state models.TripState
		stop  int
	}
	seen := map[node]bool{}
	frontier := []node{{models.TripOffline, 0}}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if !cur.state.Valid() {
			t.Fatalf("reached invalid state %q", cur.state)
		}
		for _, a := range actions {
			ctx := models.TripContext{CurrentStopIndex: cur.stop, TotalStops: totalStops}
			next, err := AttemptTransition(cur.state, a, ctx)
			if err != nil {
				continue
			}
			if next == models.TripFinished && cur.stop != totalStops-1 {
				t.Fatalf("finished reached from stop %d", cur.stop)
			}
			stop := cur.stop
			switch a {
			case models.ActionDepartStop:
				stop++
			case models.ActionEndShift:
				stop = 0
			}
			if stop < totalStops {
				frontier = append(frontier, node{next, stop})
			}
		}
	}
	if !seen[node{models.TripFinished, totalStops - 1}] {
		t.Fatalf("finished state never reached")
	}
}

func asTransition(err error, target *domain.TransitionError) bool {
	te, ok := err.(domain.TransitionError)
	if ok {
		*target = te
	}
	return ok
}
