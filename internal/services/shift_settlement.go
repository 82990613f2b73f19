package services

import (
	"math"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

func (s *ShiftService) emitPaymentLocked() {
	st := s.payment.Status()
	details := map[string]any{"state": string(st.State)}
	if st.Context.PaymentType != "" {
		details["payment_type"] = string(st.Context.PaymentType)
	}
	if st.Context.ErrorKind != "" {
		details["error_kind"] = st.Context.ErrorKind
	}
	s.emitLocked(models.Event{Kind: models.EventPaymentState, Details: details})
}

func (s *ShiftService) Settlements() []models.SettlementPerson {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settlements.Records()
}

func (s *ShiftService) SettlementTotals() models.SettlementTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settlements.Totals()
}

func (s *ShiftService) Payment() models.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment.Status()
}

func (s *ShiftService) AddSettlement(p models.SettlementPerson) (models.SettlementPerson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.settlements.AddRecord(p)
	if err != nil {
		return out, s.rejectLocked("settlement_add", err)
	}
	return out, nil
}

func (s *ShiftService) ToggleDispatcher(id int64) (models.SettlementPerson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.settlements.ToggleDispatcher(id)
	if err != nil {
		return out, s.rejectLocked("settlement_toggle_dispatcher", err)
	}
	return out, nil
}

func (s *ShiftService) SelectDispatcher(id int64, dispatcherID string) (models.SettlementPerson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.settlements.SelectDispatcher(id, dispatcherID)
	if err != nil {
		return out, s.rejectLocked("settlement_select_dispatcher", err)
	}
	return out, nil
}

func (s *ShiftService) SetFees(deposit, commission float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settlements.SetFees(deposit, commission); err != nil {
		return s.rejectLocked("settlement_fees", err)
	}
	return nil
}

func (s *ShiftService) AddDepositAndCommission() (models.SettlementPerson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.settlements.AddDepositAndCommission()
	if err != nil {
		return out, s.rejectLocked("settlement_add_deposit", err)
	}
	return out, nil
}

// Recalculate stamps the refresh time and locks the cash panel for the
// configured lockout.
func (s *ShiftService) Recalculate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settlements.Recalculate(s.clock.Now()); err != nil {
		return s.rejectLocked("settlement_recalculate", err)
	}
	s.emitLocked(models.Event{Kind: models.EventSettlementRecalc, Details: map[string]any{"locked": true}})
	s.scheduleLocked(&s.recalcTimer, s.cfg.RecalcLockout, func() {
		s.settlements.Unlock()
		s.emitLocked(models.Event{Kind: models.EventSettlementRecalc, Details: map[string]any{"locked": false}})
	})
	return nil
}

// Settle closes a settlement record. Dispatcher-routed records finish at once;
// direct ones open the payment dialog for the QR round trip.
func (s *ShiftService) Settle(id int64, action models.SettlementAction) (SettleOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payment.State() != models.PaymentIdle {
		return SettleOutcome{}, s.rejectLocked("settlement_settle", domain.ConflictError{Resource: "payment", Msg: "another payment is in progress"})
	}
	p, err := s.settlements.Get(id)
	if err != nil {
		return SettleOutcome{}, s.rejectLocked("settlement_settle", err)
	}
	if !p.ThroughDispatcher && action == models.SettleCredit && s.scanInProgress {
		return SettleOutcome{}, s.rejectLocked("settlement_settle", domain.LockedError{Reason: domain.LockScanningInProgress})
	}
	out, err := s.settlements.Settle(id, action, s.clock.Now())
	if err != nil {
		return out, s.rejectLocked("settlement_settle", err)
	}
	if out.Routed {
		details := map[string]any{"id": id, "dispatcher": out.Person.DispatcherName}
		if out.Aggregate != nil {
			details["aggregate_id"] = out.Aggregate.ID
			details["aggregate_amount"] = out.Aggregate.Amount
		}
		s.emitLocked(models.Event{Kind: models.EventSettlementRouted, Action: string(action), Details: details})
		return out, nil
	}

	ctx := models.PaymentContext{
		PaymentType: models.PaymentSettlementCredit,
		Amount:      math.Abs(out.Person.Amount),
		PersonID:    id,
		Expected:    out.Expected,
	}
	if out.Generated {
		ctx.PaymentType = models.PaymentSettlementDebit
		err = s.payment.BeginGenerated(ctx)
	} else {
		err = s.payment.BeginScan(ctx)
		if err == nil {
			s.acquireScanLocked(scanPayment, id)
		}
	}
	if err != nil {
		return out, s.rejectLocked("settlement_settle", err)
	}
	s.emitPaymentLocked()
	return out, nil
}

// SubmitPaymentScan resolves the payment scanner after the scan delay.
func (s *ShiftService) SubmitPaymentScan(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payment.State() != models.PaymentScanQR {
		return s.rejectLocked("payment_scan", domain.TransitionError{
			From:   "payment:" + string(s.payment.State()),
			Action: "scan_result",
			Legal:  paymentActions[s.payment.State()],
		})
	}
	if s.pending(&s.scanTimer) {
		return s.rejectLocked("payment_scan", domain.LockedError{Reason: domain.LockScanningInProgress})
	}
	s.scheduleLocked(&s.scanTimer, s.cfg.ScanDelay, func() {
		s.resolvePaymentScanLocked(raw)
	})
	return nil
}

func (s *ShiftService) resolvePaymentScanLocked(raw string) {
	s.clearScanLocked()
	if s.payment.State() != models.PaymentScanQR {
		return
	}
	st := s.payment.Status()
	var expected models.QRPayload
	if st.Context.Expected != nil {
		expected = *st.Context.Expected
	}
	payload, verr := s.verifier.Verify(raw, expected)
	if verr != nil {
		_ = s.payment.ScanResult(nil, verr)
		s.emitLocked(models.Event{
			Kind:    models.EventScanError,
			Reason:  verr.Error(),
			Details: map[string]any{"kind": string(scanPayment), "id": st.Context.PersonID, "code": domain.Code(verr)},
		})
	} else {
		_ = s.payment.ScanResult(&payload, nil)
		s.emitLocked(models.Event{
			Kind:    models.EventScanResult,
			Details: map[string]any{"kind": string(scanPayment), "id": st.Context.PersonID, "sum": payload.Sum},
		})
	}
	s.emitPaymentLocked()
}

// RetryPaymentScan reopens the payment scanner after a failed scan.
func (s *ShiftService) RetryPaymentScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanInProgress {
		return s.rejectLocked("payment_retry", domain.LockedError{Reason: domain.LockScanningInProgress})
	}
	if err := s.payment.Retry(); err != nil {
		return s.rejectLocked("payment_retry", err)
	}
	s.acquireScanLocked(scanPayment, s.payment.Status().Context.PersonID)
	s.emitPaymentLocked()
	return nil
}

// BeginCash opens the manual amount dialog for a cash deposit or withdrawal.
func (s *ShiftService) BeginCash(paymentType models.PaymentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paymentType != models.PaymentCashDeposit && paymentType != models.PaymentCashWithdraw {
		return s.rejectLocked("cash_begin", domain.ValidationError{Field: "payment_type", Msg: "must be cash_deposit or cash_withdraw"})
	}
	if err := s.payment.BeginManual(paymentType); err != nil {
		return s.rejectLocked("cash_begin", err)
	}
	s.emitPaymentLocked()
	return nil
}

func (s *ShiftService) EnterPaymentAmount(amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.payment.EnterAmount(amount); err != nil {
		return s.rejectLocked("payment_amount", err)
	}
	s.emitPaymentLocked()
	return nil
}

// ConfirmPayment starts processing; the result lands after the scan delay and
// the dialog closes itself shortly after a success.
func (s *ShiftService) ConfirmPayment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.payment.Process(); err != nil {
		return s.rejectLocked("payment_confirm", err)
	}
	s.emitPaymentLocked()
	s.scheduleLocked(&s.payTimer, s.cfg.ScanDelay, s.finishPaymentLocked)
	return nil
}

func (s *ShiftService) finishPaymentLocked() {
	st := s.payment.Status()
	now := s.clock.Now()
	switch st.Context.PaymentType {
	case models.PaymentSettlementCredit, models.PaymentSettlementDebit:
		p, err := s.settlements.CompleteDirect(st.Context.PersonID, now)
		if err != nil {
			_ = s.payment.Fail(domain.Code(err), err.Error())
			s.emitPaymentLocked()
			return
		}
		s.emitLocked(models.Event{
			Kind:    models.EventSettlementDone,
			Action:  string(st.Context.PaymentType),
			Details: map[string]any{"id": p.ID, "amount": p.Amount},
		})
	case models.PaymentCashDeposit:
		s.recordTxLocked("deposit", st.Context.Amount, "", models.PaymentCash)
	case models.PaymentCashWithdraw:
		if st.Context.Amount > s.balance {
			_ = s.payment.Fail("insufficient_balance", "withdrawal exceeds the balance")
			s.emitPaymentLocked()
			return
		}
		s.recordTxLocked("withdraw", -st.Context.Amount, "", models.PaymentCash)
	}
	_ = s.payment.Complete()
	s.emitPaymentLocked()
	s.scheduleLocked(&s.payTimer, s.cfg.SuccessClose, func() {
		s.payment.Reset()
		s.emitPaymentLocked()
	})
}

// AddVote puts a stop request on the board and starts the countdown tick.
func (s *ShiftService) AddVote(stop int, passengerName string, seconds int) (models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop >= len(s.cfg.Stops) {
		return models.Vote{}, s.rejectLocked("vote_add", domain.ValidationError{Field: "stop", Msg: "outside the configured route"})
	}
	v, err := s.voting.Add(stop, passengerName, seconds)
	if err != nil {
		return v, s.rejectLocked("vote_add", err)
	}
	if !s.pending(&s.voteTimer) {
		s.scheduleVoteTickLocked()
	}
	return v, nil
}

func (s *ShiftService) Votes() map[int][]models.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voting.Votes()
}

func (s *ShiftService) scheduleVoteTickLocked() {
	s.scheduleLocked(&s.voteTimer, VoteTickInterval, func() {
		for _, v := range s.voting.Tick() {
			s.emitLocked(models.Event{
				Kind:    models.EventVoteExpired,
				Details: map[string]any{"id": v.ID, "passenger": v.PassengerName},
			})
		}
		if !s.voting.Empty() {
			s.scheduleVoteTickLocked()
		}
	})
}
