package services

import (
	"sort"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

// DefaultVoteSeconds is how long a stop request stays on the board.
const DefaultVoteSeconds = 30

// StopVoting tracks passengers asking the driver to stop. Entries count down
// on Tick and disappear at zero; empty stops are pruned.
type StopVoting struct {
	votes  map[int][]models.Vote
	nextID int64
}

func NewStopVoting() *StopVoting {
	return &StopVoting{votes: map[int][]models.Vote{}, nextID: 1}
}

func (v *StopVoting) Add(stop int, passengerName string, seconds int) (models.Vote, error) {
	if stop < 0 {
		return models.Vote{}, domain.ValidationError{Field: "stop", Msg: "must not be negative"}
	}
	if seconds <= 0 {
		seconds = DefaultVoteSeconds
	}
	vote := models.Vote{ID: v.nextID, PassengerName: passengerName, SecondsLeft: seconds}
	v.nextID++
	v.votes[stop] = append(v.votes[stop], vote)
	return vote, nil
}

// Tick ages every vote by one second and returns the ones that ran out.
func (v *StopVoting) Tick() []models.Vote {
	var expired []models.Vote
	for _, stop := range v.stops() {
		kept := v.votes[stop][:0]
		for _, vote := range v.votes[stop] {
			vote.SecondsLeft--
			if vote.SecondsLeft <= 0 {
				expired = append(expired, vote)
				continue
			}
			kept = append(kept, vote)
		}
		if len(kept) == 0 {
			delete(v.votes, stop)
			continue
		}
		v.votes[stop] = kept
	}
	return expired
}

func (v *StopVoting) Empty() bool { return len(v.votes) == 0 }

// Votes returns a copy of the board.
func (v *StopVoting) Votes() map[int][]models.Vote {
	out := make(map[int][]models.Vote, len(v.votes))
	for stop, list := range v.votes {
		out[stop] = append([]models.Vote(nil), list...)
	}
	return out
}

func (v *StopVoting) Reset() {
	v.votes = map[int][]models.Vote{}
	v.nextID = 1
}

// Restore loads a captured board, dropping entries that already ran out.
func (v *StopVoting) Restore(votes map[int][]models.Vote) {
	v.Reset()
	for stop, list := range votes {
		for _, vote := range list {
			if vote.SecondsLeft <= 0 {
				continue
			}
			v.votes[stop] = append(v.votes[stop], vote)
			if vote.ID >= v.nextID {
				v.nextID = vote.ID + 1
			}
		}
	}
}

func (v *StopVoting) stops() []int {
	out := make([]int, 0, len(v.votes))
	for stop := range v.votes {
		out = append(out, stop)
	}
	sort.Ints(out)
	return out
}
