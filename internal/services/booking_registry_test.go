package services

import (
	"testing"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

var openGate = ScanGate{SeatsUnlocked: true, AccountConfirmed: true}

func newRegistryWith(t *testing.T, seats int, bookings ...models.Booking) (*BookingRegistry, *CapacityLedger) {
	t.Helper()
	ledger := NewCapacityLedger(seats)
	reg := NewBookingRegistry(ledger)
	for _, b := range bookings {
		if _, err := reg.Register(b); err != nil {
			t.Fatalf("register %s: %v", b.PassengerName, err)
		}
	}
	return reg, ledger
}

func scanned(t *testing.T, reg *BookingRegistry, id int64, name string, sum float64) {
	t.Helper()
	if _, err := reg.OpenScanner(id, openGate); err != nil {
		t.Fatalf("open scanner: %v", err)
	}
	if _, err := reg.ConfirmScan(id, &models.QRPayload{Sum: sum, Recipient: name}, nil); err != nil {
		t.Fatalf("confirm scan: %v", err)
	}
}

func TestReserveRequiresFreeSeats(t *testing.T) {
	reg, ledger := newRegistryWith(t, 4,
		models.Booking{PassengerName: "Ivan", Count: 3, FromStopIndex: 0, ToStopIndex: 2, Amount: 960},
		models.Booking{PassengerName: "Olga", Count: 2, FromStopIndex: 0, ToStopIndex: 1, Amount: 640},
	)
	b, err := reg.Reserve(1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !b.Reserved || !b.Accepted {
		t.Fatalf("reserve must set reserved and accepted: %+v", b)
	}
	if ledger.Free() != 1 {
		t.Fatalf("want free=1, got %d", ledger.Free())
	}
	if _, err := reg.Reserve(2); !domain.IsCapacity(err) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if _, err := reg.Reserve(1); !domain.IsConflict(err) {
		t.Fatalf("double reserve should conflict, got %v", err)
	}
}

func TestOpenScannerGates(t *testing.T) {
	reg, _ := newRegistryWith(t, 6, models.Booking{PassengerName: "Ivan", Count: 1, ToStopIndex: 1})
	cases := []struct {
		gate   ScanGate
		reason string
	}{
		{ScanGate{SeatsUnlocked: false, AccountConfirmed: true}, domain.LockSeatsLocked},
		{ScanGate{SeatsUnlocked: true, ScanInProgress: true, AccountConfirmed: true}, domain.LockScanningInProgress},
		{ScanGate{SeatsUnlocked: true}, domain.LockAccountUnconfirmed},
	}
	for _, tc := range cases {
		_, err := reg.OpenScanner(1, tc.gate)
		reason, ok := domain.LockReason(err)
		if !ok || reason != tc.reason {
			t.Fatalf("gate %+v: want %s, got %v", tc.gate, tc.reason, err)
		}
	}
}

func TestAcceptScannedTwiceFailsWithoutDoubleAllocation(t *testing.T) {
	reg, ledger := newRegistryWith(t, 6, models.Booking{PassengerName: "Ivan", Count: 2, ToStopIndex: 3, Amount: 640})
	if _, err := reg.Reserve(1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	scanned(t, reg, 1, "Ivan", 640)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b, err := reg.AcceptScanned(1, now)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !b.Boarded() || !b.Accepted || !b.Scanned {
		t.Fatalf("booking not marked boarded: %+v", b)
	}
	if ledger.Occupied() != 2 || ledger.Reserved() != 0 {
		t.Fatalf("want occupied=2 reserved=0, got %d/%d", ledger.Occupied(), ledger.Reserved())
	}

	if _, err := reg.AcceptScanned(1, now); !domain.IsConflict(err) {
		t.Fatalf("second accept must conflict, got %v", err)
	}
	if ledger.Occupied() != 2 {
		t.Fatalf("seats double allocated: %d", ledger.Occupied())
	}
	if _, err := reg.OpenScanner(1, openGate); !domain.IsConflict(err) {
		t.Fatalf("boarded booking must not be scannable, got %v", err)
	}
	if len(reg.All()) != 1 {
		t.Fatalf("boarded booking should stay as history")
	}
}

func TestConfirmScanFailureAttachesKind(t *testing.T) {
	reg, _ := newRegistryWith(t, 6, models.Booking{PassengerName: "Ivan", Count: 1, ToStopIndex: 1})
	_, _ = reg.OpenScanner(1, openGate)
	b, err := reg.ConfirmScan(1, nil, domain.NewQRMismatch("sum differs"))
	if err == nil {
		t.Fatalf("expected scan error back")
	}
	if b.QRError != domain.CodeQRMismatch || b.Scanned {
		t.Fatalf("unexpected booking after failed scan: %+v", b)
	}
	if _, err := reg.AcceptScanned(1, time.Now()); !domain.IsConflict(err) {
		t.Fatalf("accept must be blocked after failed scan, got %v", err)
	}
}

func TestRejectQRNotFoundChainsToHighlightedSibling(t *testing.T) {
	reg, ledger := newRegistryWith(t, 6,
		models.Booking{PassengerName: "Ivan", Count: 1, FromStopIndex: 1, ToStopIndex: 2},
		models.Booking{PassengerName: "Olga", Count: 1, FromStopIndex: 1, ToStopIndex: 3},
		models.Booking{PassengerName: "Petr", Count: 1, FromStopIndex: 2, ToStopIndex: 3},
	)
	_, _ = reg.Reserve(1)

	if err := reg.Highlight(2); err != nil {
		t.Fatalf("highlight: %v", err)
	}
	removed, next, err := reg.RejectScanned(1, "qr_not_found")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if removed.CancelReason != "qr_not_found" {
		t.Fatalf("reason not recorded: %+v", removed)
	}
	if next == nil || next.ID != 2 {
		t.Fatalf("expected sibling 2, got %+v", next)
	}
	if ledger.Reserved() != 0 {
		t.Fatalf("reserved seats must be returned, got %d", ledger.Reserved())
	}

	_ = reg.Highlight(3)
	_, next, _ = reg.RejectScanned(2, "qr_not_found")
	if next != nil {
		t.Fatalf("sibling at another stop must not chain, got %+v", next)
	}
}

func TestRejectWithoutHighlightDoesNotChain(t *testing.T) {
	reg, _ := newRegistryWith(t, 6,
		models.Booking{PassengerName: "Ivan", Count: 1, FromStopIndex: 1, ToStopIndex: 2},
		models.Booking{PassengerName: "Olga", Count: 1, FromStopIndex: 1, ToStopIndex: 3},
	)
	_, next, err := reg.RejectScanned(1, "qr_not_found")
	if err != nil || next != nil {
		t.Fatalf("want no chaining, got %+v %v", next, err)
	}
}

func TestCancelRequiresContextReason(t *testing.T) {
	reg, _ := newRegistryWith(t, 6,
		models.Booking{PassengerName: "Ivan", Count: 1, FromStopIndex: 2, ToStopIndex: 3},
	)
	if _, err := reg.Cancel(1, "", models.CancelFutureStop); domain.Code(err) != domain.CodeMissingCancelReason {
		t.Fatalf("empty reason must fail, got %v", err)
	}
	if _, err := reg.Cancel(1, "passenger_absent", models.CancelFutureStop); domain.Code(err) != domain.CodeMissingCancelReason {
		t.Fatalf("boarding reason must not apply to future stop, got %v", err)
	}
	b, err := reg.Cancel(1, "route_changed", models.CancelFutureStop)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if b.CancelContext != models.CancelFutureStop || len(reg.All()) != 0 {
		t.Fatalf("booking not removed: %+v", b)
	}
}

func TestCancelContextFor(t *testing.T) {
	if CancelContextFor(models.Booking{FromStopIndex: 1}, 1) != models.CancelBoarding {
		t.Fatalf("current stop booking should use boarding reasons")
	}
	if CancelContextFor(models.Booking{FromStopIndex: 3}, 1) != models.CancelFutureStop {
		t.Fatalf("later stop booking should use future stop reasons")
	}
}
