package services

import (
	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

type tripEdge struct {
	to    models.TripState
	guard func(models.TripContext) bool
}

// tripTable is keyed by source state, then action. Action order per state is
// the order legal actions are reported in.
var tripTable = map[models.TripState][]struct {
	action models.TransitionAction
	edge   tripEdge
}{
	models.TripOffline: {
		{models.ActionStartShift, tripEdge{to: models.TripWaitingStart}},
	},
	models.TripWaitingStart: {
		{models.ActionStartBoarding, tripEdge{to: models.TripBoarding}},
	},
	models.TripBoarding: {
		{models.ActionDepartStop, tripEdge{to: models.TripInTransit}},
	},
	models.TripInTransit: {
		{models.ActionArriveStop, tripEdge{to: models.TripArrivedStop}},
	},
	models.TripArrivedStop: {
		{models.ActionContinueBoarding, tripEdge{
			to:    models.TripBoarding,
			guard: func(c models.TripContext) bool { return !c.IsLastStop },
		}},
		{models.ActionFinishTrip, tripEdge{
			to:    models.TripFinished,
			guard: func(c models.TripContext) bool { return c.IsLastStop },
		}},
	},
	models.TripFinished: {
		{models.ActionEndShift, tripEdge{to: models.TripOffline}},
	},
}

// AttemptTransition is the pure trip state function. It never mutates anything;
// side effects of a successful transition belong to the caller.
func AttemptTransition(state models.TripState, action models.TransitionAction, ctx models.TripContext) (models.TripState, error) {
	ctx = models.NewTripContext(ctx)
	for _, row := range tripTable[state] {
		if row.action != action {
			continue
		}
		if row.edge.guard != nil && !row.edge.guard(ctx) {
			return state, domain.TransitionError{
				From:        string(state),
				Action:      string(action),
				Legal:       actionStrings(AvailableActions(state, ctx)),
				GuardFailed: true,
			}
		}
		return row.edge.to, nil
	}
	return state, domain.TransitionError{
		From:   string(state),
		Action: string(action),
		Legal:  actionStrings(AvailableActions(state, ctx)),
	}
}

// AvailableActions lists the actions whose edge exists and whose guard holds.
func AvailableActions(state models.TripState, ctx models.TripContext) []models.TransitionAction {
	ctx = models.NewTripContext(ctx)
	var out []models.TransitionAction
	for _, row := range tripTable[state] {
		if row.edge.guard == nil || row.edge.guard(ctx) {
			out = append(out, row.action)
		}
	}
	return out
}

// CanTransition reports whether action is legal right now.
func CanTransition(state models.TripState, action models.TransitionAction, ctx models.TripContext) bool {
	_, err := AttemptTransition(state, action, ctx)
	return err == nil
}

func actionStrings(actions []models.TransitionAction) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, string(a))
	}
	return out
}
