package services

import (
	"testing"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

func scanToSuccess(t *testing.T, q *QueueEngine) models.QueuePassenger {
	t.Helper()
	p, err := q.StartScan()
	if err != nil {
		t.Fatalf("start scan: %v", err)
	}
	p, err = q.ResolveScan(p.ID, true, &models.QRPayload{Sum: float64(p.TicketCount) * 320, Recipient: "Driver"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return p
}

func TestQueueCapacityScenario(t *testing.T) {
	ledger := NewCapacityLedger(6)
	q := NewQueueEngine(ledger)
	_, _ = q.Enqueue("Anna", 3)
	_, _ = q.Enqueue("Boris", 4)

	first := scanToSuccess(t, q)
	if first.Name != "Anna" {
		t.Fatalf("expected first waiting passenger, got %s", first.Name)
	}
	if _, err := q.Accept(first.ID, models.SeatHolder{}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if ledger.Occupied() != 3 || ledger.Free() != 3 {
		t.Fatalf("want occupied=3 free=3, got %d/%d", ledger.Occupied(), ledger.Free())
	}

	second := scanToSuccess(t, q)
	p, err := q.Accept(second.ID, models.SeatHolder{})
	if !domain.IsCapacity(err) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if p.State != models.PassengerScanSuccess {
		t.Fatalf("passenger should stay in scan_success, got %s", p.State)
	}
	if ledger.Occupied() != 3 {
		t.Fatalf("occupied changed: %d", ledger.Occupied())
	}
}

func TestQueueSelectToggleAndStartScanPrefersSelection(t *testing.T) {
	q := NewQueueEngine(NewCapacityLedger(6))
	a, _ := q.Enqueue("Anna", 1)
	b, _ := q.Enqueue("Boris", 1)

	if p, _ := q.Select(b.ID); p.State != models.PassengerSelected {
		t.Fatalf("select should mark selected, got %s", p.State)
	}
	if p, _ := q.Select(a.ID); p.State != models.PassengerSelected {
		t.Fatalf("select should move selection")
	}
	if p, _ := q.Get(b.ID); p.State != models.PassengerWaiting {
		t.Fatalf("previous selection should return to waiting, got %s", p.State)
	}
	if p, _ := q.Select(a.ID); p.State != models.PassengerWaiting {
		t.Fatalf("second click should deselect")
	}
	_, _ = q.Select(b.ID)

	p, err := q.StartScan()
	if err != nil || p.ID != b.ID {
		t.Fatalf("want selected passenger scanned, got %+v %v", p, err)
	}
	if _, err := q.StartScan(); domain.Code(err) != domain.CodeLocked {
		t.Fatalf("second scan must be locked, got %v", err)
	}
}

func TestQueueSelectTerminalIsNoop(t *testing.T) {
	q := NewQueueEngine(NewCapacityLedger(6))
	a, _ := q.Enqueue("Anna", 1)
	_, _ = q.Reject(a.ID)
	p, err := q.Select(a.ID)
	if err != nil || p.State != models.PassengerRejected {
		t.Fatalf("select on terminal passenger must be a no-op, got %+v %v", p, err)
	}
}

func TestQueueStartScanWithoutPassengers(t *testing.T) {
	q := NewQueueEngine(NewCapacityLedger(6))
	if _, err := q.StartScan(); domain.Code(err) != domain.CodeNoPassengers {
		t.Fatalf("want no passengers, got %v", err)
	}
}

func TestQueuePositionsStayContiguous(t *testing.T) {
	q := NewQueueEngine(NewCapacityLedger(6))
	for _, name := range []string{"A", "B", "C", "D"} {
		_, _ = q.Enqueue(name, 1)
	}
	_, _ = q.Reject(2)
	ok := scanToSuccess(t, q)
	_, _ = q.Accept(ok.ID, models.SeatHolder{})

	visible := q.Visible()
	if len(visible) != 2 {
		t.Fatalf("want 2 visible, got %d", len(visible))
	}
	for i, p := range visible {
		if p.QueuePosition != i+1 {
			t.Fatalf("position gap: %+v", visible)
		}
	}
	if visible[0].Name != "C" {
		t.Fatalf("order lost: %+v", visible)
	}
}

func TestQueueErrorRetryAndRevert(t *testing.T) {
	q := NewQueueEngine(NewCapacityLedger(6))
	a, _ := q.Enqueue("Anna", 2)
	_, _ = q.StartScan()
	p, _ := q.ResolveScan(a.ID, false, nil)
	if p.State != models.PassengerScanError {
		t.Fatalf("want scan_error, got %s", p.State)
	}
	if _, err := q.Accept(a.ID, models.SeatHolder{}); !domain.IsConflict(err) {
		t.Fatalf("accept from scan_error must fail, got %v", err)
	}
	if p, _ = q.Retry(a.ID); p.State != models.PassengerScanning {
		t.Fatalf("retry should rescan, got %s", p.State)
	}
	_, _ = q.ResolveScan(a.ID, true, &models.QRPayload{Sum: 640})
	if p, _ = q.Revert(a.ID); p.State != models.PassengerWaiting || p.QRData != nil {
		t.Fatalf("revert should return to waiting, got %+v", p)
	}
}

func TestQueueRestoreResetsScanning(t *testing.T) {
	q := NewQueueEngine(NewCapacityLedger(6))
	q.Restore([]models.QueuePassenger{
		{ID: 4, Name: "A", TicketCount: 1, State: models.PassengerScanning},
		{ID: 7, Name: "B", TicketCount: 1, State: models.PassengerAccepted},
	})
	p, _ := q.Get(4)
	if p.State != models.PassengerWaiting || p.QueuePosition != 1 {
		t.Fatalf("restored scanning passenger should wait, got %+v", p)
	}
	n, _ := q.Enqueue("C", 1)
	if n.ID != 8 {
		t.Fatalf("ids must continue after restore, got %d", n.ID)
	}
}
