package services

import (
	"math/rand"
	"testing"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

func TestLedgerOccupyScenario(t *testing.T) {
	l := NewCapacityLedger(6)
	if err := l.Occupy(3, models.SeatHolder{PassengerName: "Anna"}); err != nil {
		t.Fatalf("occupy 3: %v", err)
	}
	if l.Occupied() != 3 || l.Free() != 3 {
		t.Fatalf("want occupied=3 free=3, got %d/%d", l.Occupied(), l.Free())
	}
	err := l.Occupy(4, models.SeatHolder{PassengerName: "Boris"})
	if !domain.IsCapacity(err) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if l.Occupied() != 3 {
		t.Fatalf("occupied changed after failure: %d", l.Occupied())
	}
}

func TestLedgerReservationsReduceFree(t *testing.T) {
	l := NewCapacityLedger(6)
	if err := l.Reserve(4); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if l.Free() != 2 {
		t.Fatalf("want free=2, got %d", l.Free())
	}
	if err := l.Occupy(3, models.SeatHolder{}); !domain.IsCapacity(err) {
		t.Fatalf("occupy must respect reserved seats, got %v", err)
	}
	if err := l.ClaimReserved(4, models.SeatHolder{PassengerName: "Group", AmountPaid: 400}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if l.Reserved() != 0 || l.Occupied() != 4 {
		t.Fatalf("want reserved=0 occupied=4, got %d/%d", l.Reserved(), l.Occupied())
	}
	for _, s := range l.Seats()[:4] {
		if s.AmountPaid != 100 {
			t.Fatalf("amount should be spread per seat, got %v", s.AmountPaid)
		}
	}
}

func TestLedgerReleaseClampsAndFreesMostRecent(t *testing.T) {
	l := NewCapacityLedger(6)
	_ = l.Occupy(2, models.SeatHolder{PassengerName: "first"})
	_ = l.Occupy(1, models.SeatHolder{PassengerName: "second"})

	if freed := l.Release(1); freed != 1 {
		t.Fatalf("want 1 freed, got %d", freed)
	}
	for _, s := range l.Seats() {
		if s.PassengerName == "second" {
			t.Fatalf("most recent seat should be released first")
		}
	}
	if freed := l.Release(10); freed != 2 {
		t.Fatalf("want 2 freed, got %d", freed)
	}
	if l.Occupied() != 0 {
		t.Fatalf("occupied must clamp at zero, got %d", l.Occupied())
	}
}

func TestLedgerReleaseAtAlightingStop(t *testing.T) {
	l := NewCapacityLedger(4)
	two, three := 2, 3
	_ = l.Occupy(2, models.SeatHolder{PassengerName: "to2", ToStop: &two})
	_ = l.Occupy(1, models.SeatHolder{PassengerName: "to3", ToStop: &three})

	if freed := l.ReleaseAt(2); freed != 2 {
		t.Fatalf("want 2 freed, got %d", freed)
	}
	if l.Occupied() != 1 {
		t.Fatalf("want 1 occupied, got %d", l.Occupied())
	}
	if freed := l.Release(1); freed != 1 || l.Occupied() != 0 {
		t.Fatalf("release after alighting broke order: freed=%d occupied=%d", freed, l.Occupied())
	}
}

func TestLedgerRandomSequencesKeepBounds(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	l := NewCapacityLedger(6)
	for i := 0; i < 2000; i++ {
		n := r.Intn(5) + 1
		switch r.Intn(4) {
		case 0:
			free := l.Free()
			err := l.Occupy(n, models.SeatHolder{})
			if n > free && err == nil {
				t.Fatalf("occupy(%d) succeeded with free=%d", n, free)
			}
		case 1:
			l.Release(n)
		case 2:
			_ = l.Reserve(n)
		case 3:
			l.Unreserve(n)
		}
		if l.Occupied() < 0 || l.Occupied() > l.Total() {
			t.Fatalf("occupied out of bounds: %d", l.Occupied())
		}
		if l.Occupied()+l.Reserved() > l.Total() {
			t.Fatalf("overbooked: occupied=%d reserved=%d", l.Occupied(), l.Reserved())
		}
		if l.Occupied() != l.RecomputeOccupied() {
			t.Fatalf("occupied cache drifted")
		}
	}
}
