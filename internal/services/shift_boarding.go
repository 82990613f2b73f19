package services

import (
	"fmt"
	"slices"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
	"shuttle/internal/utils"
)

func (s *ShiftService) acquireScanLocked(kind scanKind, id int64) {
	s.scanInProgress = true
	s.scanKind = kind
	s.scanTargetID = id
}

func (s *ShiftService) clearScanLocked() {
	s.scanInProgress = false
	s.scanKind = scanNone
	s.scanTargetID = 0
}

// releaseScanLocked cancels whatever scan holds the lock and returns its
// subject to the pre-scan state.
func (s *ShiftService) releaseScanLocked(reason string) {
	s.stopTimerLocked(&s.scanTimer)
	if !s.scanInProgress {
		return
	}
	kind, id := s.scanKind, s.scanTargetID
	switch kind {
	case scanQueue:
		if p, ok := s.queue.Scanning(); ok {
			_, _ = s.queue.CancelScan(p.ID)
		}
	case scanPayment:
		if s.payment.State() == models.PaymentScanQR {
			s.payment.Reset()
			s.emitPaymentLocked()
		}
	}
	s.clearScanLocked()
	s.emitLocked(models.Event{
		Kind:    models.EventScanCancelled,
		Reason:  reason,
		Details: map[string]any{"kind": string(kind), "id": id},
	})
}

// releaseBoardingScanLocked cancels queue and booking scans only; a payment
// dialog is not tied to the stop.
func (s *ShiftService) releaseBoardingScanLocked(reason string) {
	if s.scanKind == scanQueue || s.scanKind == scanBooking {
		s.releaseScanLocked(reason)
	}
}

func (s *ShiftService) boardingGateLocked() error {
	if !s.state.SeatsUnlocked() {
		return domain.LockedError{Reason: domain.LockSeatsLocked}
	}
	if s.scanInProgress {
		return domain.LockedError{Reason: domain.LockScanningInProgress}
	}
	return nil
}

func (s *ShiftService) QueuePassengers() []models.QueuePassenger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Visible()
}

// Enqueue adds a walk-up passenger.
func (s *ShiftService) Enqueue(name string, ticketCount int) (models.QueuePassenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == models.TripOffline {
		return models.QueuePassenger{}, s.rejectLocked("queue_enqueue", domain.LockedError{Reason: domain.LockSeatsLocked})
	}
	p, err := s.queue.Enqueue(name, ticketCount)
	if err != nil {
		return p, s.rejectLocked("queue_enqueue", err)
	}
	return p, nil
}

func (s *ShiftService) SelectPassenger(id int64) (models.QueuePassenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.queue.Select(id)
	if err != nil {
		return p, s.rejectLocked("queue_select", err)
	}
	return p, nil
}

// StartQueueScan takes the scan lock for the selected or first waiting
// passenger. raw is resolved by the verifier after the scan delay.
func (s *ShiftService) StartQueueScan(raw string) (models.QueuePassenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.boardingGateLocked(); err != nil {
		return models.QueuePassenger{}, s.rejectLocked("queue_scan", err)
	}
	p, err := s.queue.StartScan()
	if err != nil {
		return p, s.rejectLocked("queue_scan", err)
	}
	s.beginQueueScanLocked(p, raw)
	return p, nil
}

// RetryQueueScan rescans a passenger whose previous scan failed.
func (s *ShiftService) RetryQueueScan(id int64, raw string) (models.QueuePassenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.boardingGateLocked(); err != nil {
		return models.QueuePassenger{}, s.rejectLocked("queue_retry", err)
	}
	p, err := s.queue.Retry(id)
	if err != nil {
		return p, s.rejectLocked("queue_retry", err)
	}
	s.beginQueueScanLocked(p, raw)
	return p, nil
}

func (s *ShiftService) beginQueueScanLocked(p models.QueuePassenger, raw string) {
	s.acquireScanLocked(scanQueue, p.ID)
	s.emitLocked(models.Event{
		Kind:    models.EventScanStart,
		Details: map[string]any{"kind": string(scanQueue), "id": p.ID, "name": p.Name},
	})
	id := p.ID
	s.scheduleLocked(&s.scanTimer, s.cfg.ScanDelay, func() {
		s.resolveQueueScanLocked(id, raw)
	})
}

func (s *ShiftService) resolveQueueScanLocked(id int64, raw string) {
	p, err := s.queue.Get(id)
	s.clearScanLocked()
	if err != nil || p.State != models.PassengerScanning {
		return
	}
	expected := models.QRPayload{
		Sum:       utils.TicketFare(p.TicketCount, s.cfg.FarePerTicket),
		Recipient: s.cfg.DriverName,
		CreatedAt: s.clock.Now(),
	}
	payload, verr := s.verifier.Verify(raw, expected)
	if verr != nil {
		_, _ = s.queue.ResolveScan(id, false, nil)
		s.emitLocked(models.Event{
			Kind:    models.EventScanError,
			Reason:  verr.Error(),
			Details: map[string]any{"kind": string(scanQueue), "id": id, "code": domain.Code(verr)},
		})
		return
	}
	_, _ = s.queue.ResolveScan(id, true, &payload)
	s.emitLocked(models.Event{
		Kind:    models.EventScanResult,
		Details: map[string]any{"kind": string(scanQueue), "id": id, "sum": payload.Sum},
	})
}

// AcceptQueuePassenger seats a scanned passenger and credits the fare.
func (s *ShiftService) AcceptQueuePassenger(id int64) (models.QueuePassenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.SeatsUnlocked() {
		return models.QueuePassenger{}, s.rejectLocked("queue_accept", domain.LockedError{Reason: domain.LockSeatsLocked})
	}
	p, err := s.queue.Get(id)
	if err != nil {
		return p, s.rejectLocked("queue_accept", err)
	}
	amount := utils.TicketFare(p.TicketCount, s.cfg.FarePerTicket)
	if p.QRData != nil {
		amount = p.QRData.Sum
	}
	from := s.stopIndex
	accepted, err := s.queue.Accept(id, models.SeatHolder{
		PassengerName: p.Name,
		FromStop:      &from,
		PaymentMethod: models.PaymentQR,
		AmountPaid:    amount,
	})
	if err != nil {
		return accepted, s.rejectLocked("queue_accept", err)
	}
	s.recordTxLocked("boarding", amount, p.Name, models.PaymentQR)
	s.emitLocked(models.Event{
		Kind:    models.EventQueueAccepted,
		Details: map[string]any{"id": id, "tickets": p.TicketCount, "amount": amount},
	})
	s.emitLocked(models.Event{Kind: models.EventSeatsAdjusted, Action: "queue_accept", Details: s.seatDetailsLocked(nil)})
	return accepted, nil
}

// RejectQueuePassenger drops a passenger, cancelling a scan in progress for it.
func (s *ShiftService) RejectQueuePassenger(id int64) (models.QueuePassenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanKind == scanQueue && s.scanTargetID == id {
		s.stopTimerLocked(&s.scanTimer)
		s.clearScanLocked()
	}
	p, err := s.queue.Reject(id)
	if err != nil {
		return p, s.rejectLocked("queue_reject", err)
	}
	s.emitLocked(models.Event{Kind: models.EventQueueRejected, Details: map[string]any{"id": id}})
	return p, nil
}

func (s *ShiftService) RevertQueuePassenger(id int64) (models.QueuePassenger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.queue.Revert(id)
	if err != nil {
		return p, s.rejectLocked("queue_revert", err)
	}
	s.emitLocked(models.Event{Kind: models.EventQueueReverted, Details: map[string]any{"id": id}})
	return p, nil
}

// CloseScanner closes any open scanner or payment dialog and releases the scan lock.
func (s *ShiftService) CloseScanner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeDialogLocked("dialog_closed")
}

func (s *ShiftService) closeDialogLocked(reason string) {
	s.releaseScanLocked(reason)
	s.stopTimerLocked(&s.payTimer)
	if s.payment.State() != models.PaymentIdle {
		s.payment.Reset()
		s.emitPaymentLocked()
	}
}

func (s *ShiftService) Bookings() []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings.All()
}

func (s *ShiftService) RegisterBooking(b models.Booking) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.FromStopIndex < 0 || b.ToStopIndex >= len(s.cfg.Stops) {
		return b, s.rejectLocked("booking_register", domain.ValidationError{Field: "stops", Msg: "outside the configured route"})
	}
	out, err := s.bookings.Register(b)
	if err != nil {
		return out, s.rejectLocked("booking_register", err)
	}
	return out, nil
}

func (s *ShiftService) ReserveBooking(id int64) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bookings.Reserve(id)
	if err != nil {
		return b, s.rejectLocked("booking_reserve", err)
	}
	s.emitLocked(models.Event{Kind: models.EventBookingReserved, Details: map[string]any{"id": id, "count": b.Count}})
	s.emitLocked(models.Event{Kind: models.EventSeatsAdjusted, Action: "booking_reserve", Details: s.seatDetailsLocked(nil)})
	return b, nil
}

func (s *ShiftService) HighlightBooking(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bookings.Highlight(id); err != nil {
		return s.rejectLocked("booking_highlight", err)
	}
	return nil
}

// OpenBookingScanner takes the scan lock for a booking.
func (s *ShiftService) OpenBookingScanner(id int64) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.openBookingScannerLocked(id, false)
	if err != nil {
		return b, s.rejectLocked("booking_scan", err)
	}
	return b, nil
}

func (s *ShiftService) openBookingScannerLocked(id int64, auto bool) (models.Booking, error) {
	cur, err := s.bookings.Get(id)
	if err != nil {
		return cur, err
	}
	if cur.FromStopIndex != s.stopIndex {
		return cur, domain.ConflictError{Resource: "booking", Msg: fmt.Sprintf("boards at stop %d, vehicle is at stop %d", cur.FromStopIndex, s.stopIndex)}
	}
	gate := ScanGate{
		SeatsUnlocked:    s.state.SeatsUnlocked(),
		ScanInProgress:   s.scanInProgress,
		AccountConfirmed: s.accountConfirmed,
	}
	b, err := s.bookings.OpenScanner(id, gate)
	if err != nil {
		return b, err
	}
	s.acquireScanLocked(scanBooking, id)
	s.emitLocked(models.Event{
		Kind:    models.EventScanStart,
		Details: map[string]any{"kind": string(scanBooking), "id": id, "auto": auto},
	})
	return b, nil
}

// SubmitBookingScan hands the scanned content of an open booking scanner to
// the verifier after the scan delay.
func (s *ShiftService) SubmitBookingScan(id int64, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanInProgress || s.scanKind != scanBooking || s.scanTargetID != id {
		return s.rejectLocked("booking_scan_submit", domain.ConflictError{Resource: "booking", Msg: "scanner is not open for this booking"})
	}
	if s.pending(&s.scanTimer) {
		return s.rejectLocked("booking_scan_submit", domain.LockedError{Reason: domain.LockScanningInProgress})
	}
	s.scheduleLocked(&s.scanTimer, s.cfg.ScanDelay, func() {
		s.resolveBookingScanLocked(id, raw)
	})
	return nil
}

func (s *ShiftService) resolveBookingScanLocked(id int64, raw string) {
	s.clearScanLocked()
	b, err := s.bookings.Get(id)
	if err != nil {
		return
	}
	expected := models.QRPayload{Sum: b.Amount, Recipient: s.cfg.DriverName, CreatedAt: s.clock.Now()}
	payload, verr := s.verifier.Verify(raw, expected)
	if verr != nil {
		_, _ = s.bookings.ConfirmScan(id, nil, verr)
		s.emitLocked(models.Event{
			Kind:    models.EventScanError,
			Reason:  verr.Error(),
			Details: map[string]any{"kind": string(scanBooking), "id": id, "code": domain.Code(verr)},
		})
		return
	}
	_, _ = s.bookings.ConfirmScan(id, &payload, nil)
	s.emitLocked(models.Event{
		Kind:    models.EventScanResult,
		Details: map[string]any{"kind": string(scanBooking), "id": id, "sum": payload.Sum},
	})
}

// AcceptBooking boards a verified booking and credits its amount.
func (s *ShiftService) AcceptBooking(id int64) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.SeatsUnlocked() {
		return models.Booking{}, s.rejectLocked("booking_accept", domain.LockedError{Reason: domain.LockSeatsLocked})
	}
	b, err := s.bookings.AcceptScanned(id, s.clock.Now())
	if err != nil {
		return b, s.rejectLocked("booking_accept", err)
	}
	s.recordTxLocked("booking", b.Amount, b.PassengerName, models.PaymentQR)
	s.emitLocked(models.Event{Kind: models.EventBookingAccepted, Details: map[string]any{"id": id, "count": b.Count, "amount": b.Amount}})
	s.emitLocked(models.Event{Kind: models.EventSeatsAdjusted, Action: "booking_accept", Details: s.seatDetailsLocked(nil)})
	return b, nil
}

// RejectBooking drops a booking after its scan. When a highlighted sibling at
// the same stop exists and the reason is qr_not_found, its scanner opens next.
func (s *ShiftService) RejectBooking(id int64, reason string) (models.Booking, *models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanKind == scanBooking && s.scanTargetID == id {
		s.stopTimerLocked(&s.scanTimer)
		s.clearScanLocked()
	}
	removed, next, err := s.bookings.RejectScanned(id, reason)
	if err != nil {
		return removed, nil, s.rejectLocked("booking_reject", err)
	}
	s.emitLocked(models.Event{
		Kind:    models.EventBookingRejected,
		Reason:  removed.CancelReason,
		Details: map[string]any{"id": id},
	})
	if next == nil {
		return removed, nil, nil
	}
	opened, err := s.openBookingScannerLocked(next.ID, true)
	if err != nil {
		s.rejectLocked("booking_scan", err)
		return removed, nil, nil
	}
	return removed, &opened, nil
}

// CancelBooking removes a booking with a reason valid for its stop.
func (s *ShiftService) CancelBooking(id int64, reason string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bookings.Get(id)
	if err != nil {
		return b, s.rejectLocked("booking_cancel", err)
	}
	ctx := CancelContextFor(b, s.stopIndex)
	if reason == "" || !slices.Contains(models.CancelReasons(ctx), reason) {
		return b, s.rejectLocked("booking_cancel", domain.MissingReasonError{Context: string(ctx), Reason: reason})
	}
	if s.scanKind == scanBooking && s.scanTargetID == id {
		s.releaseScanLocked("booking_cancel")
	}
	b, err = s.bookings.Cancel(id, reason, ctx)
	if err != nil {
		return b, s.rejectLocked("booking_cancel", err)
	}
	s.emitLocked(models.Event{
		Kind:    models.EventBookingCancelled,
		Reason:  reason,
		Details: map[string]any{"id": id, "context": string(ctx)},
	})
	return b, nil
}
