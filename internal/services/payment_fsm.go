package services

import (
	"fmt"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

// PaymentFSM is the sub-machine of the payment dialog. Exactly one payment is in
// flight at a time; Reset returns it to idle when the dialog closes.
type PaymentFSM struct {
	state models.PaymentState
	ctx   models.PaymentContext
}

func NewPaymentFSM() *PaymentFSM {
	return &PaymentFSM{state: models.PaymentIdle}
}

func (p *PaymentFSM) State() models.PaymentState { return p.state }

func (p *PaymentFSM) Status() models.PaymentStatus {
	return models.PaymentStatus{State: p.state, Context: p.ctx}
}

// BeginScan opens the scanner for a payment whose QR comes from the other side.
func (p *PaymentFSM) BeginScan(ctx models.PaymentContext) error {
	if err := p.require(models.PaymentIdle, "begin_scan"); err != nil {
		return err
	}
	p.ctx = ctx
	p.state = models.PaymentScanQR
	return nil
}

// BeginGenerated shows a QR generated by the driver and waits for confirmation.
func (p *PaymentFSM) BeginGenerated(ctx models.PaymentContext) error {
	if err := p.require(models.PaymentIdle, "begin_generated"); err != nil {
		return err
	}
	p.ctx = ctx
	p.ctx.QRData = ctx.Expected
	p.state = models.PaymentConfirm
	return nil
}

// BeginManual asks the driver for an amount, used for cash deposit and withdraw.
func (p *PaymentFSM) BeginManual(paymentType models.PaymentType) error {
	if err := p.require(models.PaymentIdle, "begin_manual"); err != nil {
		return err
	}
	p.ctx = models.PaymentContext{PaymentType: paymentType}
	p.state = models.PaymentEnterAmount
	return nil
}

func (p *PaymentFSM) EnterAmount(amount float64) error {
	if err := p.require(models.PaymentEnterAmount, "enter_amount"); err != nil {
		return err
	}
	if amount <= 0 {
		return domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	p.ctx.Amount = amount
	p.state = models.PaymentConfirm
	return nil
}

// ScanResult moves a scan to confirm, or to error when scanErr is set.
func (p *PaymentFSM) ScanResult(payload *models.QRPayload, scanErr error) error {
	if err := p.require(models.PaymentScanQR, "scan_result"); err != nil {
		return err
	}
	if scanErr != nil {
		kind, ok := domain.QRKind(scanErr)
		if !ok {
			kind = domain.Code(scanErr)
		}
		p.ctx.ErrorKind = kind
		p.ctx.ErrorMessage = scanErr.Error()
		p.ctx.QRData = nil
		p.state = models.PaymentError
		return nil
	}
	if payload != nil {
		c := *payload
		p.ctx.QRData = &c
	}
	p.ctx.ErrorKind = ""
	p.ctx.ErrorMessage = ""
	p.state = models.PaymentConfirm
	return nil
}

// Retry reopens the scanner after a failed scan. Errors raised while
// processing or by a manual payment can only be reset.
func (p *PaymentFSM) Retry() error {
	if err := p.require(models.PaymentError, "retry"); err != nil {
		return err
	}
	if !p.retryable() {
		return domain.TransitionError{From: "payment:error", Action: "retry", Legal: []string{"reset"}}
	}
	p.ctx.ErrorKind = ""
	p.ctx.ErrorMessage = ""
	p.state = models.PaymentScanQR
	return nil
}

func (p *PaymentFSM) Process() error {
	if err := p.require(models.PaymentConfirm, "process"); err != nil {
		return err
	}
	p.state = models.PaymentProcessing
	return nil
}

func (p *PaymentFSM) Complete() error {
	if err := p.require(models.PaymentProcessing, "complete"); err != nil {
		return err
	}
	p.state = models.PaymentSuccess
	return nil
}

// Fail moves an in-flight payment to error.
func (p *PaymentFSM) Fail(kind, message string) error {
	switch p.state {
	case models.PaymentScanQR, models.PaymentConfirm, models.PaymentProcessing:
	default:
		return p.transitionError("fail")
	}
	p.ctx.ErrorKind = kind
	p.ctx.ErrorMessage = message
	p.state = models.PaymentError
	return nil
}

// Reset returns to idle from any state.
func (p *PaymentFSM) Reset() {
	p.state = models.PaymentIdle
	p.ctx = models.PaymentContext{}
}

// Restore puts back a captured status. Scanning and processing cannot resume
// without their timers, so those come back as idle.
func (p *PaymentFSM) Restore(s models.PaymentStatus) {
	switch s.State {
	case models.PaymentScanQR, models.PaymentProcessing, "":
		p.Reset()
	default:
		p.state = s.State
		p.ctx = s.Context
	}
}

// retryable holds for QR errors of payments that started from a scan.
func (p *PaymentFSM) retryable() bool {
	if p.ctx.PaymentType != models.PaymentSettlementCredit {
		return false
	}
	return p.ctx.ErrorKind == domain.CodeQRNotFound || p.ctx.ErrorKind == domain.CodeQRMismatch
}

func (p *PaymentFSM) require(state models.PaymentState, action string) error {
	if p.state != state {
		return p.transitionError(action)
	}
	return nil
}

func (p *PaymentFSM) transitionError(action string) error {
	legal := paymentActions[p.state]
	if p.state == models.PaymentError && !p.retryable() {
		legal = []string{"reset"}
	}
	return domain.TransitionError{
		From:   fmt.Sprintf("payment:%s", p.state),
		Action: action,
		Legal:  legal,
	}
}

var paymentActions = map[models.PaymentState][]string{
	models.PaymentIdle:        {"begin_scan", "begin_generated", "begin_manual"},
	models.PaymentScanQR:      {"scan_result", "fail", "reset"},
	models.PaymentEnterAmount: {"enter_amount", "reset"},
	models.PaymentConfirm:     {"process", "fail", "reset"},
	models.PaymentProcessing:  {"complete", "fail", "reset"},
	models.PaymentSuccess:     {"reset"},
	models.PaymentError:       {"retry", "reset"},
}
