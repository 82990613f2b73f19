package services

import (
	"fmt"
	"slices"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

// ScanGate carries the preconditions checked before a booking scanner opens.
type ScanGate struct {
	SeatsUnlocked    bool
	ScanInProgress   bool
	AccountConfirmed bool
}

// BookingRegistry keeps the pre-booked passengers of the current shift. Boarded
// bookings stay in the list as history; rejected and cancelled ones are removed.
type BookingRegistry struct {
	ledger      *CapacityLedger
	bookings    []models.Booking
	highlighted int64
	nextID      int64
}

func NewBookingRegistry(ledger *CapacityLedger) *BookingRegistry {
	return &BookingRegistry{ledger: ledger, nextID: 1}
}

// Register adds a pending booking. A zero ID is assigned from the sequence.
func (r *BookingRegistry) Register(b models.Booking) (models.Booking, error) {
	if b.PassengerName == "" {
		return models.Booking{}, domain.ValidationError{Field: "passenger_name", Msg: "required"}
	}
	if b.Count <= 0 {
		return models.Booking{}, domain.ValidationError{Field: "count", Msg: "must be positive"}
	}
	if b.ToStopIndex <= b.FromStopIndex {
		return models.Booking{}, domain.ValidationError{Field: "to_stop_index", Msg: "must be after from_stop_index"}
	}
	if b.ID == 0 {
		b.ID = r.nextID
	}
	if _, ok := r.index(b.ID); ok {
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: fmt.Sprintf("id %d already registered", b.ID)}
	}
	if b.ID >= r.nextID {
		r.nextID = b.ID + 1
	}
	b.Reserved, b.Accepted, b.Scanned = false, false, false
	b.QRData, b.QRError, b.BoardedAt = nil, "", nil
	r.bookings = append(r.bookings, b)
	return b, nil
}

func (r *BookingRegistry) Get(id int64) (models.Booking, error) {
	i, ok := r.index(id)
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return r.bookings[i], nil
}

// All returns a copy of the active and boarded bookings.
func (r *BookingRegistry) All() []models.Booking {
	return slices.Clone(r.bookings)
}

func (r *BookingRegistry) Highlighted() int64 { return r.highlighted }

// Highlight marks the booking the driver is looking at. Zero clears it.
func (r *BookingRegistry) Highlight(id int64) error {
	if id == 0 {
		r.highlighted = 0
		return nil
	}
	if _, ok := r.index(id); !ok {
		return domain.NotFoundError{Resource: "booking"}
	}
	r.highlighted = id
	return nil
}

// Reserve claims seats for the booking ahead of boarding.
func (r *BookingRegistry) Reserve(id int64) (models.Booking, error) {
	i, ok := r.index(id)
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	b := &r.bookings[i]
	if b.Boarded() {
		return *b, domain.ConflictError{Resource: "booking", Msg: "already boarded"}
	}
	if b.Reserved {
		return *b, domain.ConflictError{Resource: "booking", Msg: "already reserved"}
	}
	if err := r.ledger.Reserve(b.Count); err != nil {
		return *b, err
	}
	b.Reserved = true
	b.Accepted = true
	return *b, nil
}

// OpenScanner checks whether a QR scan may start for the booking.
func (r *BookingRegistry) OpenScanner(id int64, gate ScanGate) (models.Booking, error) {
	i, ok := r.index(id)
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	b := &r.bookings[i]
	switch {
	case !gate.SeatsUnlocked:
		return *b, domain.LockedError{Reason: domain.LockSeatsLocked}
	case gate.ScanInProgress:
		return *b, domain.LockedError{Reason: domain.LockScanningInProgress}
	case !gate.AccountConfirmed:
		return *b, domain.LockedError{Reason: domain.LockAccountUnconfirmed}
	}
	if b.Boarded() {
		return *b, domain.ConflictError{Resource: "booking", Msg: "already boarded"}
	}
	b.Scanned = false
	b.QRData = nil
	b.QRError = ""
	return *b, nil
}

// ConfirmScan records the outcome of a scan. On a QR failure the error kind is
// attached to the booking and scanErr is returned so the caller can surface it.
func (r *BookingRegistry) ConfirmScan(id int64, payload *models.QRPayload, scanErr error) (models.Booking, error) {
	i, ok := r.index(id)
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	b := &r.bookings[i]
	if b.Boarded() {
		return *b, domain.ConflictError{Resource: "booking", Msg: "already boarded"}
	}
	if scanErr != nil {
		kind, ok := domain.QRKind(scanErr)
		if !ok {
			kind = domain.CodeQRNotFound
		}
		b.Scanned = false
		b.QRData = nil
		b.QRError = kind
		return *b, scanErr
	}
	if payload == nil {
		b.Scanned = false
		b.QRError = domain.CodeQRNotFound
		return *b, domain.NewQRNotFound("")
	}
	p := *payload
	b.Scanned = true
	b.QRData = &p
	b.QRError = ""
	return *b, nil
}

// AcceptScanned boards the booking. Seats held by the reservation are claimed;
// otherwise fresh seats are occupied. The booking stays as inert history.
func (r *BookingRegistry) AcceptScanned(id int64, now time.Time) (models.Booking, error) {
	i, ok := r.index(id)
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	b := &r.bookings[i]
	if b.Boarded() {
		return *b, domain.ConflictError{Resource: "booking", Msg: "already accepted"}
	}
	if !b.Scanned || b.QRError != "" {
		return *b, domain.ConflictError{Resource: "booking", Msg: "qr not verified"}
	}
	from, to := b.FromStopIndex, b.ToStopIndex
	holder := models.SeatHolder{
		PassengerName: b.PassengerName,
		FromStop:      &from,
		ToStop:        &to,
		PaymentMethod: models.PaymentQR,
		AmountPaid:    b.Amount,
	}
	var err error
	if b.Reserved {
		err = r.ledger.ClaimReserved(b.Count, holder)
	} else {
		err = r.ledger.Occupy(b.Count, holder)
	}
	if err != nil {
		return *b, err
	}
	t := now
	b.BoardedAt = &t
	b.Accepted = true
	b.Scanned = true
	if r.highlighted == id {
		r.highlighted = 0
	}
	return *b, nil
}

// RejectScanned drops the booking after a failed or refused scan. When the
// reason is qr_not_found and another booking at the same stop is highlighted,
// that sibling is returned so the caller can open its scanner next.
func (r *BookingRegistry) RejectScanned(id int64, reason string) (models.Booking, *models.Booking, error) {
	i, ok := r.index(id)
	if !ok {
		return models.Booking{}, nil, domain.NotFoundError{Resource: "booking"}
	}
	b := r.bookings[i]
	if b.Boarded() {
		return b, nil, domain.ConflictError{Resource: "booking", Msg: "already boarded"}
	}
	if reason == "" {
		reason = domain.CodeQRNotFound
	}
	b.CancelContext = models.CancelBoarding
	b.CancelReason = reason
	r.remove(i)

	if reason != domain.CodeQRNotFound || r.highlighted == 0 || r.highlighted == id {
		return b, nil, nil
	}
	j, ok := r.index(r.highlighted)
	if !ok {
		return b, nil, nil
	}
	sibling := r.bookings[j]
	if sibling.FromStopIndex != b.FromStopIndex || sibling.Boarded() {
		return b, nil, nil
	}
	return b, &sibling, nil
}

// Cancel removes a booking with a reason from the context's reason list.
func (r *BookingRegistry) Cancel(id int64, reason string, ctx models.CancelContext) (models.Booking, error) {
	i, ok := r.index(id)
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	if reason == "" || !slices.Contains(models.CancelReasons(ctx), reason) {
		return r.bookings[i], domain.MissingReasonError{Context: string(ctx), Reason: reason}
	}
	b := r.bookings[i]
	if b.Boarded() {
		return b, domain.ConflictError{Resource: "booking", Msg: "already boarded"}
	}
	b.CancelContext = ctx
	b.CancelReason = reason
	r.remove(i)
	return b, nil
}

// CancelContextFor picks the reason list for a booking relative to the current stop.
func CancelContextFor(b models.Booking, currentStop int) models.CancelContext {
	if b.FromStopIndex > currentStop {
		return models.CancelFutureStop
	}
	return models.CancelBoarding
}

// PendingAt lists the bookings boarding at stop that have not boarded yet.
func (r *BookingRegistry) PendingAt(stop int) []models.Booking {
	var out []models.Booking
	for _, b := range r.bookings {
		if b.FromStopIndex == stop && !b.Boarded() {
			out = append(out, b)
		}
	}
	return out
}

func (r *BookingRegistry) HasActiveAt(stop int) bool {
	return len(r.PendingAt(stop)) > 0
}

// HasMissedBefore reports unboarded bookings whose stop is already behind.
func (r *BookingRegistry) HasMissedBefore(stop int) bool {
	for _, b := range r.bookings {
		if b.FromStopIndex < stop && !b.Boarded() {
			return true
		}
	}
	return false
}

// AwaitingDecision reports a booking scanned and waiting for accept/reject.
func (r *BookingRegistry) AwaitingDecision() bool {
	for _, b := range r.bookings {
		if b.AwaitingDecision() {
			return true
		}
	}
	return false
}

// ReservedPendingAt is the party size held by reserved, unscanned bookings at stop.
func (r *BookingRegistry) ReservedPendingAt(stop int) int {
	n := 0
	for _, b := range r.bookings {
		if b.FromStopIndex == stop && b.Reserved && !b.Scanned {
			n += b.Count
		}
	}
	return n
}

// StopCounts returns the reserved and boarded party sizes for stop.
func (r *BookingRegistry) StopCounts(stop int) models.StopHistory {
	var h models.StopHistory
	for _, b := range r.bookings {
		if b.FromStopIndex != stop {
			continue
		}
		if b.Reserved {
			h.Reserved += b.Count
		}
		if b.Boarded() {
			h.Boarded += b.Count
		}
	}
	return h
}

func (r *BookingRegistry) Reset() {
	r.bookings = nil
	r.highlighted = 0
}

// Restore replaces the registry contents with captured bookings.
func (r *BookingRegistry) Restore(bookings []models.Booking, highlighted int64) {
	r.bookings = slices.Clone(bookings)
	r.highlighted = 0
	r.nextID = 1
	for _, b := range r.bookings {
		if b.ID >= r.nextID {
			r.nextID = b.ID + 1
		}
		if b.ID == highlighted {
			r.highlighted = highlighted
		}
	}
}

func (r *BookingRegistry) remove(i int) {
	b := r.bookings[i]
	if b.Reserved && !b.Boarded() {
		r.ledger.Unreserve(b.Count)
	}
	if r.highlighted == b.ID {
		r.highlighted = 0
	}
	r.bookings = slices.Delete(r.bookings, i, i+1)
}

func (r *BookingRegistry) index(id int64) (int, bool) {
	for i, b := range r.bookings {
		if b.ID == id {
			return i, true
		}
	}
	return 0, false
}
