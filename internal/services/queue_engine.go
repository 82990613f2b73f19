package services

import (
	"fmt"
	"slices"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

// QueueEngine runs the walk-up queue. Terminal passengers stay in the backing
// slice for the shift history but are excluded from the visible queue.
type QueueEngine struct {
	ledger     *CapacityLedger
	passengers []models.QueuePassenger
	nextID     int64
}

func NewQueueEngine(ledger *CapacityLedger) *QueueEngine {
	return &QueueEngine{ledger: ledger, nextID: 1}
}

// Enqueue appends a walk-up passenger in the waiting state.
func (q *QueueEngine) Enqueue(name string, ticketCount int) (models.QueuePassenger, error) {
	if name == "" {
		return models.QueuePassenger{}, domain.ValidationError{Field: "name", Msg: "required"}
	}
	if ticketCount <= 0 {
		return models.QueuePassenger{}, domain.ValidationError{Field: "ticket_count", Msg: "must be positive"}
	}
	p := models.QueuePassenger{
		ID:          q.nextID,
		Name:        name,
		TicketCount: ticketCount,
		State:       models.PassengerWaiting,
	}
	q.nextID++
	q.passengers = append(q.passengers, p)
	q.renumber()
	i, _ := q.index(p.ID)
	return q.passengers[i], nil
}

// Visible returns the non-terminal passengers ordered by queue position.
func (q *QueueEngine) Visible() []models.QueuePassenger {
	var out []models.QueuePassenger
	for _, p := range q.passengers {
		if !p.State.Terminal() {
			out = append(out, p)
		}
	}
	return out
}

// All returns every passenger of the shift, terminal ones included.
func (q *QueueEngine) All() []models.QueuePassenger {
	return slices.Clone(q.passengers)
}

func (q *QueueEngine) Size() int { return len(q.Visible()) }

func (q *QueueEngine) Get(id int64) (models.QueuePassenger, error) {
	i, ok := q.index(id)
	if !ok {
		return models.QueuePassenger{}, domain.NotFoundError{Resource: "queue passenger"}
	}
	return q.passengers[i], nil
}

// SelectedID returns the selected passenger or zero.
func (q *QueueEngine) SelectedID() int64 {
	for _, p := range q.passengers {
		if p.State == models.PassengerSelected {
			return p.ID
		}
	}
	return 0
}

// Scanning returns the passenger currently being scanned, if any.
func (q *QueueEngine) Scanning() (models.QueuePassenger, bool) {
	for _, p := range q.passengers {
		if p.State == models.PassengerScanning {
			return p, true
		}
	}
	return models.QueuePassenger{}, false
}

// AwaitingDecision reports a passenger whose scan resolved and who still needs
// accept, reject or revert.
func (q *QueueEngine) AwaitingDecision() bool {
	for _, p := range q.passengers {
		if p.State == models.PassengerScanSuccess || p.State == models.PassengerScanError {
			return true
		}
	}
	return false
}

// Select toggles the selection of a waiting passenger. Only one passenger is
// selected at a time. Passengers in any other state are left untouched.
func (q *QueueEngine) Select(id int64) (models.QueuePassenger, error) {
	i, ok := q.index(id)
	if !ok {
		return models.QueuePassenger{}, domain.NotFoundError{Resource: "queue passenger"}
	}
	p := &q.passengers[i]
	switch p.State {
	case models.PassengerSelected:
		p.State = models.PassengerWaiting
	case models.PassengerWaiting:
		for j := range q.passengers {
			if q.passengers[j].State == models.PassengerSelected {
				q.passengers[j].State = models.PassengerWaiting
			}
		}
		p.State = models.PassengerSelected
	}
	return *p, nil
}

// StartScan moves the selected passenger, or the first waiting one, to scanning.
func (q *QueueEngine) StartScan() (models.QueuePassenger, error) {
	if _, busy := q.Scanning(); busy {
		return models.QueuePassenger{}, domain.LockedError{Reason: domain.LockScanningInProgress}
	}
	target := -1
	for i, p := range q.passengers {
		if p.State == models.PassengerSelected {
			target = i
			break
		}
	}
	if target < 0 {
		for i, p := range q.passengers {
			if p.State == models.PassengerWaiting {
				target = i
				break
			}
		}
	}
	if target < 0 {
		return models.QueuePassenger{}, domain.NoPassengersError{}
	}
	q.passengers[target].State = models.PassengerScanning
	return q.passengers[target], nil
}

// ResolveScan records the scan result of a scanning passenger.
func (q *QueueEngine) ResolveScan(id int64, matched bool, payload *models.QRPayload) (models.QueuePassenger, error) {
	p, err := q.expect(id, models.PassengerScanning)
	if err != nil {
		return models.QueuePassenger{}, err
	}
	if matched {
		p.State = models.PassengerScanSuccess
		if payload != nil {
			c := *payload
			p.QRData = &c
		}
	} else {
		p.State = models.PassengerScanError
		p.QRData = nil
	}
	return *p, nil
}

// Retry sends a failed scan back to scanning.
func (q *QueueEngine) Retry(id int64) (models.QueuePassenger, error) {
	if _, busy := q.Scanning(); busy {
		return models.QueuePassenger{}, domain.LockedError{Reason: domain.LockScanningInProgress}
	}
	p, err := q.expect(id, models.PassengerScanError)
	if err != nil {
		return models.QueuePassenger{}, err
	}
	p.State = models.PassengerScanning
	return *p, nil
}

// CancelScan returns a scanning passenger to waiting when the scanner closes.
func (q *QueueEngine) CancelScan(id int64) (models.QueuePassenger, error) {
	p, err := q.expect(id, models.PassengerScanning)
	if err != nil {
		return models.QueuePassenger{}, err
	}
	p.State = models.PassengerWaiting
	return *p, nil
}

// Accept boards a passenger whose scan succeeded. A capacity failure leaves
// the passenger in scan_success so the driver can reject or revert.
func (q *QueueEngine) Accept(id int64, holder models.SeatHolder) (models.QueuePassenger, error) {
	p, err := q.expect(id, models.PassengerScanSuccess)
	if err != nil {
		return models.QueuePassenger{}, err
	}
	if holder.PassengerName == "" {
		holder.PassengerName = p.Name
	}
	if err := q.ledger.Occupy(p.TicketCount, holder); err != nil {
		return *p, err
	}
	p.State = models.PassengerAccepted
	p.QueuePosition = 0
	out := *p
	q.renumber()
	return out, nil
}

// Reject removes a passenger from the visible queue in any non-terminal state.
func (q *QueueEngine) Reject(id int64) (models.QueuePassenger, error) {
	i, ok := q.index(id)
	if !ok {
		return models.QueuePassenger{}, domain.NotFoundError{Resource: "queue passenger"}
	}
	p := &q.passengers[i]
	if p.State.Terminal() {
		return *p, domain.ConflictError{Resource: "queue passenger", Msg: "already " + string(p.State)}
	}
	p.State = models.PassengerRejected
	p.QueuePosition = 0
	out := *p
	q.renumber()
	return out, nil
}

// Revert puts a resolved passenger back to waiting. Seats are only taken on
// Accept, so nothing is held for the passenger at this point.
func (q *QueueEngine) Revert(id int64) (models.QueuePassenger, error) {
	i, ok := q.index(id)
	if !ok {
		return models.QueuePassenger{}, domain.NotFoundError{Resource: "queue passenger"}
	}
	p := &q.passengers[i]
	if p.State != models.PassengerScanSuccess && p.State != models.PassengerScanError {
		return *p, domain.ConflictError{Resource: "queue passenger", Msg: fmt.Sprintf("cannot revert from %s", p.State)}
	}
	p.State = models.PassengerWaiting
	p.QRData = nil
	return *p, nil
}

func (q *QueueEngine) Reset() {
	q.passengers = nil
	q.nextID = 1
}

// Restore replaces the queue with captured passengers. Passengers caught mid
// scan go back to waiting because the scanner is not reopened on restore.
func (q *QueueEngine) Restore(passengers []models.QueuePassenger) {
	q.passengers = slices.Clone(passengers)
	q.nextID = 1
	for i := range q.passengers {
		if q.passengers[i].State == models.PassengerScanning {
			q.passengers[i].State = models.PassengerWaiting
		}
		if q.passengers[i].ID >= q.nextID {
			q.nextID = q.passengers[i].ID + 1
		}
	}
	q.renumber()
}

func (q *QueueEngine) expect(id int64, state models.PassengerState) (*models.QueuePassenger, error) {
	i, ok := q.index(id)
	if !ok {
		return nil, domain.NotFoundError{Resource: "queue passenger"}
	}
	p := &q.passengers[i]
	if p.State != state {
		return nil, domain.ConflictError{
			Resource: "queue passenger",
			Msg:      fmt.Sprintf("passenger %d is %s, expected %s", id, p.State, state),
		}
	}
	return p, nil
}

// renumber assigns contiguous 1..N positions over the visible passengers.
func (q *QueueEngine) renumber() {
	pos := 1
	for i := range q.passengers {
		if q.passengers[i].State.Terminal() {
			q.passengers[i].QueuePosition = 0
			continue
		}
		q.passengers[i].QueuePosition = pos
		pos++
	}
}

func (q *QueueEngine) index(id int64) (int, bool) {
	for i, p := range q.passengers {
		if p.ID == id {
			return i, true
		}
	}
	return 0, false
}
