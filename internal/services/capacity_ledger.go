package services

import (
	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

// DefaultVehicleCapacity is the seat count of the reference vehicle.
const DefaultVehicleCapacity = 6

// CapacityLedger owns the seat array of one vehicle. occupied is a cache of the
// seat array and is re-derived after every mutation; reserved counts seats held
// for reservations that have not boarded yet.
type CapacityLedger struct {
	seats    []models.Seat
	occupied int
	reserved int
	// order of occupation, most recent last, used by Release.
	stack []int
}

func NewCapacityLedger(total int) *CapacityLedger {
	if total <= 0 {
		total = DefaultVehicleCapacity
	}
	seats := make([]models.Seat, total)
	for i := range seats {
		seats[i] = models.Seat{ID: i + 1, Status: models.SeatFree}
	}
	return &CapacityLedger{seats: seats}
}

func (l *CapacityLedger) Total() int    { return len(l.seats) }
func (l *CapacityLedger) Occupied() int { return l.occupied }
func (l *CapacityLedger) Reserved() int { return l.reserved }

// Free is total minus occupied minus seats held for reservations.
func (l *CapacityLedger) Free() int {
	free := len(l.seats) - l.occupied - l.reserved
	if free < 0 {
		return 0
	}
	return free
}

// Seats returns a copy of the seat array.
func (l *CapacityLedger) Seats() []models.Seat {
	out := make([]models.Seat, len(l.seats))
	copy(out, l.seats)
	return out
}

// Occupy assigns n free seats to holder or fails without touching anything.
func (l *CapacityLedger) Occupy(n int, holder models.SeatHolder) error {
	if n <= 0 {
		return domain.ValidationError{Field: "count", Msg: "must be positive"}
	}
	if free := l.Free(); free < n {
		return domain.CapacityError{Requested: n, Free: free}
	}
	l.fill(n, holder)
	return nil
}

// Release frees up to n of the most recently occupied seats. It clamps at zero.
func (l *CapacityLedger) Release(n int) int {
	freed := 0
	for freed < n && len(l.stack) > 0 {
		idx := l.stack[len(l.stack)-1]
		l.stack = l.stack[:len(l.stack)-1]
		if l.seats[idx].Status != models.SeatOccupied {
			continue
		}
		l.clear(idx)
		freed++
	}
	if freed < n {
		// seats restored from a snapshot carry no occupation order
		for i := len(l.seats) - 1; i >= 0 && freed < n; i-- {
			if l.seats[i].Status == models.SeatOccupied {
				l.clear(i)
				freed++
			}
		}
	}
	l.RecomputeOccupied()
	return freed
}

// ReleaseAt frees every seat whose passenger alights at stop.
func (l *CapacityLedger) ReleaseAt(stop int) int {
	freed := 0
	for i := range l.seats {
		s := l.seats[i]
		if s.Status == models.SeatOccupied && s.ToStop != nil && *s.ToStop == stop {
			l.clear(i)
			freed++
		}
	}
	if freed > 0 {
		l.dropFreedFromStack()
	}
	l.RecomputeOccupied()
	return freed
}

// Reserve holds n seats for a reservation.
func (l *CapacityLedger) Reserve(n int) error {
	if n <= 0 {
		return domain.ValidationError{Field: "count", Msg: "must be positive"}
	}
	if free := l.Free(); free < n {
		return domain.CapacityError{Requested: n, Free: free}
	}
	l.reserved += n
	return nil
}

// Unreserve gives back n held seats, clamping at zero.
func (l *CapacityLedger) Unreserve(n int) {
	l.reserved -= n
	if l.reserved < 0 {
		l.reserved = 0
	}
}

// ClaimReserved converts n held seats into occupied seats for holder.
func (l *CapacityLedger) ClaimReserved(n int, holder models.SeatHolder) error {
	if n <= 0 {
		return domain.ValidationError{Field: "count", Msg: "must be positive"}
	}
	if l.reserved < n {
		return domain.CapacityError{Requested: n, Free: l.reserved}
	}
	l.reserved -= n
	l.fill(n, holder)
	return nil
}

// RecomputeOccupied re-derives the occupied counter from the seat array.
func (l *CapacityLedger) RecomputeOccupied() int {
	n := 0
	for _, s := range l.seats {
		if s.Status == models.SeatOccupied {
			n++
		}
	}
	l.occupied = n
	return n
}

// Reset frees every seat and drops all reservations.
func (l *CapacityLedger) Reset() {
	for i := range l.seats {
		l.clear(i)
	}
	l.stack = nil
	l.reserved = 0
	l.occupied = 0
}

// Restore replaces the ledger contents with a captured seat array.
func (l *CapacityLedger) Restore(seats []models.Seat, reserved int) {
	if len(seats) > 0 {
		l.seats = make([]models.Seat, len(seats))
		copy(l.seats, seats)
	}
	l.stack = nil
	l.RecomputeOccupied()
	l.reserved = 0
	if reserved > 0 {
		l.reserved = reserved
	}
	if limit := len(l.seats) - l.occupied; l.reserved > limit {
		l.reserved = limit
	}
}

func (l *CapacityLedger) fill(n int, holder models.SeatHolder) {
	perSeat := 0.0
	if n > 0 {
		perSeat = holder.AmountPaid / float64(n)
	}
	for i := range l.seats {
		if n == 0 {
			break
		}
		if l.seats[i].Status != models.SeatFree {
			continue
		}
		seat := &l.seats[i]
		seat.Status = models.SeatOccupied
		seat.PassengerName = holder.PassengerName
		seat.FromStop = intPtr(holder.FromStop)
		seat.ToStop = intPtr(holder.ToStop)
		seat.PaymentMethod = holder.PaymentMethod
		seat.AmountPaid = perSeat
		l.stack = append(l.stack, i)
		n--
	}
	l.RecomputeOccupied()
}

func (l *CapacityLedger) clear(idx int) {
	l.seats[idx] = models.Seat{ID: l.seats[idx].ID, Status: models.SeatFree}
}

func (l *CapacityLedger) dropFreedFromStack() {
	kept := l.stack[:0]
	for _, idx := range l.stack {
		if l.seats[idx].Status == models.SeatOccupied {
			kept = append(kept, idx)
		}
	}
	l.stack = kept
}

func intPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
