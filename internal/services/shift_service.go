package services

import (
	"sort"
	"sync"
	"time"

	"shuttle/internal/clock"
	"shuttle/internal/domain"
	"shuttle/internal/domain/models"

	"github.com/google/uuid"
)

const (
	DefaultScanDelay     = 800 * time.Millisecond
	DefaultSuccessClose  = 1500 * time.Millisecond
	DefaultRecalcLockout = 2 * time.Second
	VoteTickInterval     = time.Second
	DefaultFarePerTicket = 320.0
)

// ShiftConfig is the static part of a shift: vehicle, route and timings.
type ShiftConfig struct {
	Capacity      int
	Stops         []models.Stop
	FarePerTicket float64
	DriverName    string
	Dispatchers   []models.Dispatcher
	Deposit       float64
	Commission    float64
	ScanDelay     time.Duration
	SuccessClose  time.Duration
	RecalcLockout time.Duration
}

func (c ShiftConfig) withDefaults() ShiftConfig {
	if c.Capacity <= 0 {
		c.Capacity = DefaultVehicleCapacity
	}
	if len(c.Stops) == 0 {
		c.Stops = []models.Stop{{Name: "Start"}, {Name: "Finish"}}
	}
	for i := range c.Stops {
		c.Stops[i].Index = i
	}
	if c.FarePerTicket <= 0 {
		c.FarePerTicket = DefaultFarePerTicket
	}
	if c.DriverName == "" {
		c.DriverName = "Driver"
	}
	if c.ScanDelay <= 0 {
		c.ScanDelay = DefaultScanDelay
	}
	if c.SuccessClose <= 0 {
		c.SuccessClose = DefaultSuccessClose
	}
	if c.RecalcLockout <= 0 {
		c.RecalcLockout = DefaultRecalcLockout
	}
	return c
}

// ShiftDeps are the collaborators injected into a shift.
type ShiftDeps struct {
	Clock    clock.Clock
	Sink     EventSink
	Verifier QRVerifier
}

// DispatchResult is the answer to a trip intent.
type DispatchResult struct {
	Status   string           `json:"status"`
	NewState models.TripState `json:"new_state,omitempty"`
	Error    string           `json:"error,omitempty"`
	Code     string           `json:"code,omitempty"`
	Err      error            `json:"-"`
}

type scanKind string

const (
	scanNone    scanKind = ""
	scanQueue   scanKind = "queue"
	scanBooking scanKind = "booking"
	scanPayment scanKind = "payment"
)

type timerSlot struct {
	timer clock.Timer
	token uint64
}

// ShiftService owns every component of one driver's shift and serialises all
// intents under a single mutex. Timer callbacks take the same mutex.
type ShiftService struct {
	mu       sync.Mutex
	cfg      ShiftConfig
	clock    clock.Clock
	sink     EventSink
	verifier QRVerifier

	state     models.TripState
	tripID    string
	stopIndex int
	visited   map[int]bool
	geo       bool
	history   map[int]models.StopHistory

	ledger      *CapacityLedger
	bookings    *BookingRegistry
	queue       *QueueEngine
	settlements *SettlementEngine
	payment     *PaymentFSM
	voting      *StopVoting

	balance          float64
	transactions     []models.Transaction
	nextTxID         int64
	accountConfirmed bool

	scanInProgress bool
	scanKind       scanKind
	scanTargetID   int64

	scanTimer   timerSlot
	payTimer    timerSlot
	recalcTimer timerSlot
	voteTimer   timerSlot
	tokens      uint64
}

func NewShiftService(cfg ShiftConfig, deps ShiftDeps) *ShiftService {
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Sink == nil {
		deps.Sink = LogSink{}
	}
	if deps.Verifier == nil {
		deps.Verifier = PayloadVerifier{}
	}
	ledger := NewCapacityLedger(cfg.Capacity)
	return &ShiftService{
		cfg:         cfg,
		clock:       deps.Clock,
		sink:        deps.Sink,
		verifier:    deps.Verifier,
		state:       models.TripOffline,
		visited:     map[int]bool{},
		history:     map[int]models.StopHistory{},
		ledger:      ledger,
		bookings:    NewBookingRegistry(ledger),
		queue:       NewQueueEngine(ledger),
		settlements: NewSettlementEngine(cfg.Dispatchers, cfg.Deposit, cfg.Commission),
		payment:     NewPaymentFSM(),
		voting:      NewStopVoting(),
		nextTxID:    1,
	}
}

func (s *ShiftService) Config() ShiftConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.cfg
	out.Stops = append([]models.Stop(nil), s.cfg.Stops...)
	out.Dispatchers = append([]models.Dispatcher(nil), s.cfg.Dispatchers...)
	return out
}

// SetAccountConfirmed records whether the driver account passed confirmation.
// Booking scanners stay locked until it has.
func (s *ShiftService) SetAccountConfirmed(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountConfirmed = ok
}

func (s *ShiftService) State() models.TripState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TripContext computes a fresh context from the components.
func (s *ShiftService) TripContext() models.TripContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tripContextLocked()
}

func (s *ShiftService) tripContextLocked() models.TripContext {
	return models.NewTripContext(models.TripContext{
		CurrentStopIndex:      s.stopIndex,
		TotalStops:            len(s.cfg.Stops),
		FreeSeats:             s.ledger.Free(),
		OccupiedSeats:         s.ledger.Occupied(),
		HasActiveReservations: s.bookings.HasActiveAt(s.stopIndex),
		QueueSize:             s.queue.Size(),
		TripID:                s.tripID,
	})
}

// AvailableActions lists the trip actions legal right now.
func (s *ShiftService) AvailableActions() []models.TransitionAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AvailableActions(s.state, s.tripContextLocked())
}

// Dispatch runs a trip intent against a freshly computed context and applies
// the side effects of a successful transition.
func (s *ShiftService) Dispatch(action models.TransitionAction) DispatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.tripContextLocked()
	old := s.state
	next, err := AttemptTransition(old, action, ctx)
	if err != nil {
		s.emitLocked(models.Event{
			Kind:     models.EventTransitionBlocked,
			OldState: old,
			Action:   string(action),
			Context:  &ctx,
			Reason:   err.Error(),
			Details:  map[string]any{"code": domain.Code(err)},
		})
		return DispatchResult{Status: "error", Error: err.Error(), Code: domain.Code(err), Err: err}
	}

	tripID := ctx.TripID
	s.applyTransitionLocked(action)
	s.state = next
	if s.tripID != "" {
		tripID = s.tripID
	}
	s.emitLocked(models.Event{
		Kind:     models.EventTransitionSuccess,
		TripID:   tripID,
		OldState: old,
		NewState: next,
		Action:   string(action),
		Context:  &ctx,
		Details:  map[string]any{"stop_index": s.stopIndex, "geo_tracking": s.geo},
	})
	return DispatchResult{Status: "ok", NewState: next}
}

func (s *ShiftService) applyTransitionLocked(action models.TransitionAction) {
	switch action {
	case models.ActionStartShift:
		s.tripID = uuid.NewString()
		s.stopIndex = 0
		s.visited = map[int]bool{}
		s.history = map[int]models.StopHistory{}
		s.geo = false
	case models.ActionStartBoarding, models.ActionContinueBoarding:
		s.geo = true
	case models.ActionDepartStop:
		s.releaseBoardingScanLocked(string(action))
		s.snapshotStopLocked(s.stopIndex)
		s.visited[s.stopIndex] = true
		if s.stopIndex < len(s.cfg.Stops)-1 {
			s.stopIndex++
		}
	case models.ActionArriveStop:
		if freed := s.ledger.ReleaseAt(s.stopIndex); freed > 0 {
			s.emitLocked(models.Event{
				Kind:    models.EventSeatsAdjusted,
				Action:  "alighting",
				Details: s.seatDetailsLocked(map[string]any{"freed": freed, "stop_index": s.stopIndex}),
			})
		}
	case models.ActionFinishTrip:
		s.releaseBoardingScanLocked(string(action))
		s.snapshotStopLocked(s.stopIndex)
		s.visited[s.stopIndex] = true
		s.geo = false
	case models.ActionEndShift:
		s.closeDialogLocked(string(action))
		s.stopTimerLocked(&s.voteTimer)
		s.bookings.Reset()
		s.ledger.Reset()
		s.queue.Reset()
		s.voting.Reset()
		s.tripID = ""
		s.stopIndex = 0
		s.geo = false
	}
}

// snapshotStopLocked stores reserved and boarded counts for stop. Boarded is
// read from the seats that were taken at that stop.
func (s *ShiftService) snapshotStopLocked(stop int) {
	h := s.bookings.StopCounts(stop)
	h.Boarded = 0
	for _, seat := range s.ledger.Seats() {
		if seat.Status == models.SeatOccupied && seat.FromStop != nil && *seat.FromStop == stop {
			h.Boarded++
		}
	}
	s.history[stop] = h
}

// Panels returns the panel modes for the current state.
func (s *ShiftService) Panels() models.PanelVisibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GetPanelVisibility(s.state, s.panelContextLocked())
}

func (s *ShiftService) panelContextLocked() models.PanelContext {
	return models.PanelContext{
		Trip:               s.tripContextLocked(),
		ScanInProgress:     s.scanInProgress,
		AwaitingDecision:   s.queue.AwaitingDecision(),
		BookingConfirming:  s.bookings.AwaitingDecision() || (s.scanInProgress && s.scanKind == scanBooking),
		ReservationsMissed: s.bookings.HasMissedBefore(s.stopIndex),
		SettlementLocked:   s.settlements.Locked(),
	}
}

// ShiftView is the read model served to the driver UI.
type ShiftView struct {
	State          models.TripState           `json:"state"`
	TripID         string                     `json:"trip_id"`
	StopIndex      int                        `json:"stop_index"`
	Stops          []models.Stop              `json:"stops"`
	VisitedStops   []int                      `json:"visited_stops"`
	GeoTracking    bool                       `json:"geo_tracking"`
	Context        models.TripContext         `json:"context"`
	Actions        []models.TransitionAction  `json:"available_actions"`
	Panels         models.PanelVisibility     `json:"panels"`
	Seats          []models.Seat              `json:"seats"`
	ReservedSeats  int                        `json:"reserved_seats"`
	Bookings       []models.Booking           `json:"bookings"`
	Queue          []models.QueuePassenger    `json:"queue"`
	Settlements    []models.SettlementPerson  `json:"settlements"`
	Totals         models.SettlementTotals    `json:"totals"`
	DepositOffered bool                       `json:"deposit_offered"`
	Payment        models.PaymentStatus       `json:"payment"`
	Balance        float64                    `json:"balance"`
	Votes          map[int][]models.Vote      `json:"votes"`
	History        map[int]models.StopHistory `json:"stop_history"`
	ScanInProgress bool                       `json:"scan_in_progress"`
}

func (s *ShiftService) View() ShiftView {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := s.tripContextLocked()
	return ShiftView{
		State:          s.state,
		TripID:         s.tripID,
		StopIndex:      s.stopIndex,
		Stops:          append([]models.Stop(nil), s.cfg.Stops...),
		VisitedStops:   s.visitedLocked(),
		GeoTracking:    s.geo,
		Context:        ctx,
		Actions:        AvailableActions(s.state, ctx),
		Panels:         GetPanelVisibility(s.state, s.panelContextLocked()),
		Seats:          s.ledger.Seats(),
		ReservedSeats:  s.ledger.Reserved(),
		Bookings:       s.bookings.All(),
		Queue:          s.queue.Visible(),
		Settlements:    s.settlements.Records(),
		Totals:         s.settlements.Totals(),
		DepositOffered: s.settlements.DepositOffered(),
		Payment:        s.payment.Status(),
		Balance:        s.balance,
		Votes:          s.voting.Votes(),
		History:        s.historyLocked(),
		ScanInProgress: s.scanInProgress,
	}
}

func (s *ShiftService) Balance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *ShiftService) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Transaction(nil), s.transactions...)
}

// Capture returns a flat copy of the whole shift.
func (s *ShiftService) Capture() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	deposit, commission := s.settlements.Fees()
	return models.Snapshot{
		Version:          SnapshotVersion,
		CapturedAt:       s.clock.Now(),
		TripState:        s.state,
		TripID:           s.tripID,
		StopIndex:        s.stopIndex,
		VisitedStops:     s.visitedLocked(),
		GeoTracking:      s.geo,
		Seats:            s.ledger.Seats(),
		ReservedSeats:    s.ledger.Reserved(),
		Bookings:         s.bookings.All(),
		HighlightedID:    s.bookings.Highlighted(),
		Queue:            s.queue.All(),
		SelectedID:       s.queue.SelectedID(),
		Settlements:      s.settlements.Records(),
		StopHistory:      s.historyLocked(),
		Deposit:          deposit,
		Commission:       commission,
		LastRecalculated: s.settlements.LastRecalculated(),
		Balance:          s.balance,
		Transactions:     append([]models.Transaction(nil), s.transactions...),
		Votes:            s.voting.Votes(),
		Payment:          s.payment.Status(),
	}
}

// Restore replaces the shift with a captured snapshot. Pending timers are
// dropped, the scan lock is released and in-flight scans fall back to their
// idle states.
func (s *ShiftService) Restore(snap models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !snap.TripState.Valid() {
		return domain.ValidationError{Field: "trip_state", Msg: "unknown state " + string(snap.TripState)}
	}
	if snap.Version > SnapshotVersion {
		return domain.ValidationError{Field: "version", Msg: "snapshot is newer than this build"}
	}
	if snap.StopIndex < 0 || snap.StopIndex >= len(s.cfg.Stops) {
		return domain.ValidationError{Field: "stop_index", Msg: "outside the configured route"}
	}

	for _, slot := range []*timerSlot{&s.scanTimer, &s.payTimer, &s.recalcTimer, &s.voteTimer} {
		s.stopTimerLocked(slot)
	}
	s.clearScanLocked()

	s.state = snap.TripState
	s.tripID = snap.TripID
	s.stopIndex = snap.StopIndex
	s.visited = map[int]bool{}
	for _, stop := range snap.VisitedStops {
		s.visited[stop] = true
	}
	s.geo = snap.GeoTracking
	s.history = map[int]models.StopHistory{}
	for stop, h := range snap.StopHistory {
		s.history[stop] = h
	}
	s.ledger.Restore(snap.Seats, snap.ReservedSeats)
	s.bookings.Restore(snap.Bookings, snap.HighlightedID)
	s.queue.Restore(snap.Queue)
	s.settlements.Restore(snap.Settlements, snap.Deposit, snap.Commission, snap.LastRecalculated)
	s.payment.Restore(snap.Payment)
	s.voting.Restore(snap.Votes)
	s.balance = snap.Balance
	s.transactions = append([]models.Transaction(nil), snap.Transactions...)
	s.nextTxID = 1
	for _, tx := range s.transactions {
		if tx.ID >= s.nextTxID {
			s.nextTxID = tx.ID + 1
		}
	}
	if !s.voting.Empty() {
		s.scheduleVoteTickLocked()
	}

	s.emitLocked(models.Event{
		Kind:     models.EventSnapshotRestored,
		NewState: s.state,
		Details:  map[string]any{"captured_at": snap.CapturedAt, "stop_index": s.stopIndex},
	})
	return nil
}

func (s *ShiftService) visitedLocked() []int {
	out := make([]int, 0, len(s.visited))
	for stop := range s.visited {
		out = append(out, stop)
	}
	sort.Ints(out)
	return out
}

func (s *ShiftService) historyLocked() map[int]models.StopHistory {
	out := make(map[int]models.StopHistory, len(s.history))
	for stop, h := range s.history {
		out[stop] = h
	}
	return out
}

func (s *ShiftService) emitLocked(ev models.Event) {
	if s.sink == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.clock.Now()
	}
	if ev.TripID == "" {
		ev.TripID = s.tripID
	}
	s.sink.Emit(ev)
}

// rejectLocked writes a blocked intent to the sink and hands err back.
func (s *ShiftService) rejectLocked(intent string, err error) error {
	ctx := s.tripContextLocked()
	details := map[string]any{"code": domain.Code(err)}
	if reason, ok := domain.LockReason(err); ok {
		details["lock"] = reason
	}
	s.emitLocked(models.Event{
		Kind:     models.EventIntentBlocked,
		OldState: s.state,
		Action:   intent,
		Context:  &ctx,
		Reason:   err.Error(),
		Details:  details,
	})
	return err
}

func (s *ShiftService) seatDetailsLocked(extra map[string]any) map[string]any {
	d := map[string]any{
		"occupied": s.ledger.Occupied(),
		"reserved": s.ledger.Reserved(),
		"free":     s.ledger.Free(),
	}
	for k, v := range extra {
		d[k] = v
	}
	return d
}

func (s *ShiftService) recordTxLocked(kind string, amount float64, name string, method models.PaymentMethod) {
	s.balance += amount
	s.transactions = append(s.transactions, models.Transaction{
		ID:            s.nextTxID,
		Type:          kind,
		Amount:        amount,
		PassengerName: name,
		PaymentMethod: method,
		CreatedAt:     s.clock.Now(),
	})
	s.nextTxID++
}

// scheduleLocked arms slot. A callback whose slot was stopped or re-armed in
// the meantime does nothing.
func (s *ShiftService) scheduleLocked(slot *timerSlot, d time.Duration, fn func()) {
	s.stopTimerLocked(slot)
	s.tokens++
	token := s.tokens
	slot.token = token
	slot.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if slot.token != token {
			return
		}
		slot.timer = nil
		slot.token = 0
		fn()
	})
}

func (s *ShiftService) stopTimerLocked(slot *timerSlot) {
	if slot.timer != nil {
		slot.timer.Stop()
	}
	slot.timer = nil
	slot.token = 0
}

func (s *ShiftService) pending(slot *timerSlot) bool {
	return slot.timer != nil
}

// Close stops every timer. The shift is unusable afterwards only in the sense
// that nothing fires on its own any more.
func (s *ShiftService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range []*timerSlot{&s.scanTimer, &s.payTimer, &s.recalcTimer, &s.voteTimer} {
		s.stopTimerLocked(slot)
	}
}
