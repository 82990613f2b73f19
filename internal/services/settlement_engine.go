package services

import (
	"fmt"
	"math"
	"slices"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

const (
	DefaultDeposit    = 2500.0
	DefaultCommission = 325.0

	// QRSumTolerance is the largest accepted difference between scanned and expected sums.
	QRSumTolerance = 0.1

	DepositRecordName = "Deposit and commission"
)

// DefaultDispatchers is used when the vehicle file lists none.
var DefaultDispatchers = []models.Dispatcher{
	{ID: "dispatcher1", Name: "Dispatcher Petrov"},
	{ID: "dispatcher2", Name: "Dispatcher Sidorov"},
}

// SettleOutcome tells the caller what Settle did. When RequiresQR is set nothing
// was changed and the payment dialog must run the QR round trip first.
type SettleOutcome struct {
	Person     models.SettlementPerson
	Routed     bool
	Aggregate  *models.SettlementPerson
	RequiresQR bool
	Generated  bool
	Expected   *models.QRPayload
}

// SettlementEngine holds the settlement records of the driver. Totals are always
// derived from the record list.
type SettlementEngine struct {
	records          []models.SettlementPerson
	dispatchers      []models.Dispatcher
	deposit          float64
	commission       float64
	lastRecalculated *time.Time
	locked           bool
}

func NewSettlementEngine(dispatchers []models.Dispatcher, deposit, commission float64) *SettlementEngine {
	if len(dispatchers) == 0 {
		dispatchers = DefaultDispatchers
	}
	return &SettlementEngine{
		dispatchers: slices.Clone(dispatchers),
		deposit:     deposit,
		commission:  commission,
	}
}

func (e *SettlementEngine) Records() []models.SettlementPerson {
	return slices.Clone(e.records)
}

func (e *SettlementEngine) Dispatchers() []models.Dispatcher {
	return slices.Clone(e.dispatchers)
}

func (e *SettlementEngine) Fees() (deposit, commission float64) {
	return e.deposit, e.commission
}

func (e *SettlementEngine) LastRecalculated() *time.Time { return e.lastRecalculated }

func (e *SettlementEngine) Locked() bool { return e.locked }

func (e *SettlementEngine) Get(id int64) (models.SettlementPerson, error) {
	i, ok := e.index(id)
	if !ok {
		return models.SettlementPerson{}, domain.NotFoundError{Resource: "settlement"}
	}
	return e.records[i], nil
}

// Totals sums the open records.
func (e *SettlementEngine) Totals() models.SettlementTotals {
	return ComputeTotals(e.records)
}

// ComputeTotals derives the aggregates from a record list.
func ComputeTotals(records []models.SettlementPerson) models.SettlementTotals {
	var t models.SettlementTotals
	for _, r := range records {
		if r.Completed() {
			continue
		}
		switch {
		case r.Amount > 0:
			t.ToAccept += r.Amount
		case r.Amount < 0:
			t.ToDebit += -r.Amount
		}
	}
	t.NetBalance = t.ToAccept - t.ToDebit
	return t
}

// AddRecord appends an open settlement line.
func (e *SettlementEngine) AddRecord(p models.SettlementPerson) (models.SettlementPerson, error) {
	if p.Name == "" {
		return models.SettlementPerson{}, domain.ValidationError{Field: "name", Msg: "required"}
	}
	if p.Amount == 0 {
		return models.SettlementPerson{}, domain.ValidationError{Field: "amount", Msg: "must not be zero"}
	}
	if p.ID == models.DepositRecordID {
		return models.SettlementPerson{}, domain.ValidationError{Field: "id", Msg: "reserved for deposit and commission"}
	}
	if p.Type == "" {
		p.Type = models.PersonDriver
	}
	if p.ID == 0 {
		p.ID = e.nextID()
	} else if _, ok := e.index(p.ID); ok {
		return models.SettlementPerson{}, domain.ConflictError{Resource: "settlement", Msg: "id already used"}
	}
	p.CompletedAt = nil
	p.DispatcherName = ""
	if p.Type == models.PersonDispatcher {
		p.ThroughDispatcher = false
	}
	if !p.ThroughDispatcher {
		p.SelectedDispatcherID = ""
	}
	e.records = append(e.records, p)
	return p, nil
}

// Recalculate stamps the refresh time and locks the panel until Unlock.
func (e *SettlementEngine) Recalculate(now time.Time) error {
	if e.locked {
		return domain.LockedError{Reason: domain.LockSettlementRecalculating}
	}
	t := now
	e.lastRecalculated = &t
	e.locked = true
	return nil
}

func (e *SettlementEngine) Unlock() { e.locked = false }

// SetFees updates the deposit and commission. An open deposit record follows
// the new figures.
func (e *SettlementEngine) SetFees(deposit, commission float64) error {
	if deposit < 0 {
		return domain.ValidationError{Field: "deposit", Msg: "must not be negative"}
	}
	if commission < 0 {
		return domain.ValidationError{Field: "commission", Msg: "must not be negative"}
	}
	e.deposit, e.commission = deposit, commission
	if i, ok := e.index(models.DepositRecordID); ok && !e.records[i].Completed() {
		e.records[i].Amount = -(deposit + commission)
	}
	return nil
}

// DepositOffered reports whether AddDepositAndCommission would succeed.
func (e *SettlementEngine) DepositOffered() bool {
	_, exists := e.index(models.DepositRecordID)
	return (e.deposit > 0 || e.commission > 0) && !exists
}

// AddDepositAndCommission creates the reserved record owed through a dispatcher.
func (e *SettlementEngine) AddDepositAndCommission() (models.SettlementPerson, error) {
	if _, exists := e.index(models.DepositRecordID); exists {
		return models.SettlementPerson{}, domain.ConflictError{Resource: "settlement", Msg: "deposit and commission already added"}
	}
	if e.deposit <= 0 && e.commission <= 0 {
		return models.SettlementPerson{}, domain.ValidationError{Field: "deposit", Msg: "nothing to settle"}
	}
	p := models.SettlementPerson{
		ID:                models.DepositRecordID,
		Name:              DepositRecordName,
		Amount:            -(e.deposit + e.commission),
		Type:              models.PersonDriver,
		ThroughDispatcher: true,
	}
	e.records = append(e.records, p)
	return p, nil
}

var errDispatcherRecordRouting = domain.ConflictError{Resource: "settlement", Msg: "dispatcher records cannot be routed through a dispatcher"}

// ToggleDispatcher flips dispatcher routing and clears the chosen dispatcher.
func (e *SettlementEngine) ToggleDispatcher(id int64) (models.SettlementPerson, error) {
	p, err := e.open(id)
	if err != nil {
		return models.SettlementPerson{}, err
	}
	if p.ID == models.DepositRecordID {
		return *p, domain.ConflictError{Resource: "settlement", Msg: "deposit is always routed through a dispatcher"}
	}
	if p.Type == models.PersonDispatcher {
		return *p, errDispatcherRecordRouting
	}
	p.ThroughDispatcher = !p.ThroughDispatcher
	p.SelectedDispatcherID = ""
	return *p, nil
}

// SelectDispatcher picks the dispatcher a routed record goes to.
func (e *SettlementEngine) SelectDispatcher(id int64, dispatcherID string) (models.SettlementPerson, error) {
	p, err := e.open(id)
	if err != nil {
		return models.SettlementPerson{}, err
	}
	if p.Type == models.PersonDispatcher {
		return *p, errDispatcherRecordRouting
	}
	if !p.ThroughDispatcher {
		return *p, domain.ValidationError{Field: "through_dispatcher", Msg: "routing is off for this record"}
	}
	if dispatcherID != "" {
		if _, ok := e.dispatcherName(dispatcherID); !ok {
			return *p, domain.ValidationError{Field: "dispatcher_id", Msg: "unknown dispatcher"}
		}
	}
	p.SelectedDispatcherID = dispatcherID
	return *p, nil
}

// Settle closes a record. Routed records move their amount onto the dispatcher
// aggregate right away; the rest need a QR round trip finished by CompleteDirect.
func (e *SettlementEngine) Settle(id int64, action models.SettlementAction, now time.Time) (SettleOutcome, error) {
	if e.locked {
		return SettleOutcome{}, domain.LockedError{Reason: domain.LockSettlementRecalculating}
	}
	if action != models.SettleDebit && action != models.SettleCredit {
		return SettleOutcome{}, domain.ValidationError{Field: "action", Msg: "must be debit or credit"}
	}
	p, err := e.open(id)
	if err != nil {
		return SettleOutcome{}, err
	}
	if p.Amount == 0 {
		return SettleOutcome{Person: *p}, domain.ValidationError{Field: "amount", Msg: "nothing to settle"}
	}
	// Debit pays out what the driver owes, credit collects what is owed to them.
	if (action == models.SettleDebit && p.Amount > 0) || (action == models.SettleCredit && p.Amount < 0) {
		return SettleOutcome{Person: *p}, domain.ValidationError{Field: "action", Msg: fmt.Sprintf("%s does not match amount %.2f", action, p.Amount)}
	}
	if p.ThroughDispatcher && p.Type == models.PersonDispatcher {
		return SettleOutcome{Person: *p}, errDispatcherRecordRouting
	}
	if p.ThroughDispatcher && p.SelectedDispatcherID == "" {
		return SettleOutcome{Person: *p}, domain.ValidationError{Field: "dispatcher_id", Msg: "select a dispatcher first"}
	}
	if p.ThroughDispatcher {
		return e.route(p, action, now)
	}
	expected := models.QRPayload{Sum: math.Abs(p.Amount), Recipient: p.Name, CreatedAt: now}
	return SettleOutcome{
		Person:     *p,
		RequiresQR: true,
		Generated:  action == models.SettleDebit,
		Expected:   &expected,
	}, nil
}

// CompleteDirect marks a record completed after its QR round trip.
func (e *SettlementEngine) CompleteDirect(id int64, now time.Time) (models.SettlementPerson, error) {
	p, err := e.open(id)
	if err != nil {
		return models.SettlementPerson{}, err
	}
	t := now
	p.CompletedAt = &t
	p.ThroughDispatcher = false
	p.SelectedDispatcherID = ""
	if p.ID == models.DepositRecordID {
		e.deposit, e.commission = 0, 0
	}
	return *p, nil
}

func (e *SettlementEngine) route(p *models.SettlementPerson, action models.SettlementAction, now time.Time) (SettleOutcome, error) {
	name, ok := e.dispatcherName(p.SelectedDispatcherID)
	if !ok {
		return SettleOutcome{Person: *p}, domain.ValidationError{Field: "dispatcher_id", Msg: "unknown dispatcher"}
	}
	transfer := math.Abs(p.Amount)
	delta := p.Amount
	if action == models.SettleDebit {
		delta = -transfer
	}

	t := now
	p.CompletedAt = &t
	p.ThroughDispatcher = false
	p.SelectedDispatcherID = ""
	p.DispatcherName = name
	source := *p
	if source.ID == models.DepositRecordID {
		e.deposit, e.commission = 0, 0
	}

	var agg *models.SettlementPerson
	for i := range e.records {
		r := &e.records[i]
		if r.Type == models.PersonDispatcher && r.Name == name && !r.Completed() {
			r.Amount += delta
			agg = r
			break
		}
	}
	if agg == nil {
		e.records = append(e.records, models.SettlementPerson{
			ID:     e.nextID(),
			Name:   name,
			Amount: delta,
			Type:   models.PersonDispatcher,
		})
		agg = &e.records[len(e.records)-1]
	}
	out := *agg
	return SettleOutcome{Person: source, Routed: true, Aggregate: &out}, nil
}

// Restore replaces the engine state with captured values. The recalculation
// lock is not restored because its release timer does not survive a restart.
func (e *SettlementEngine) Restore(records []models.SettlementPerson, deposit, commission float64, lastRecalculated *time.Time) {
	e.records = slices.Clone(records)
	e.deposit = deposit
	e.commission = commission
	e.lastRecalculated = lastRecalculated
	e.locked = false
}

func (e *SettlementEngine) open(id int64) (*models.SettlementPerson, error) {
	i, ok := e.index(id)
	if !ok {
		return nil, domain.NotFoundError{Resource: "settlement"}
	}
	p := &e.records[i]
	if p.Completed() {
		return nil, domain.ConflictError{Resource: "settlement", Msg: "already completed"}
	}
	return p, nil
}

func (e *SettlementEngine) dispatcherName(id string) (string, bool) {
	for _, d := range e.dispatchers {
		if d.ID == id {
			return d.Name, true
		}
	}
	return "", false
}

func (e *SettlementEngine) nextID() int64 {
	var maxID int64
	for _, r := range e.records {
		if r.ID != models.DepositRecordID && r.ID > maxID {
			maxID = r.ID
		}
	}
	next := maxID + 1
	if next == models.DepositRecordID {
		next++
	}
	return next
}

func (e *SettlementEngine) index(id int64) (int, bool) {
	for i, r := range e.records {
		if r.ID == id {
			return i, true
		}
	}
	return 0, false
}

// QRMatches is the acceptance predicate for a scanned payment QR.
func QRMatches(scanned models.QRPayload, expectedAmount float64, expectedName string) bool {
	return math.Abs(scanned.Sum-math.Abs(expectedAmount)) < QRSumTolerance && scanned.Recipient == expectedName
}

// CheckQR returns nil when scanned matches, a not-found error when nothing was
// scanned and a mismatch error otherwise.
func CheckQR(scanned *models.QRPayload, expected models.QRPayload) error {
	if scanned == nil {
		return domain.NewQRNotFound("")
	}
	if !QRMatches(*scanned, expected.Sum, expected.Recipient) {
		return domain.NewQRMismatch("qr data does not match the expected sum or recipient")
	}
	return nil
}
