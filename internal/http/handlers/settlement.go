package handlers

import (
	"strings"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
	"shuttle/internal/services"
	"shuttle/internal/utils"

	"github.com/gin-gonic/gin"
)

type settlementRequest struct {
	Name   string  `json:"name" binding:"required"`
	Amount float64 `json:"amount"`
	Type   string  `json:"type"`
}

type dispatcherRequest struct {
	DispatcherID string `json:"dispatcher_id" binding:"required"`
}

type feesRequest struct {
	Deposit    float64 `json:"deposit"`
	Commission float64 `json:"commission"`
}

type settleRequest struct {
	Action string `json:"action" binding:"required"`
}

type cashRequest struct {
	PaymentType string `json:"payment_type" binding:"required"`
}

// amountRequest takes either a number or the keypad text, e.g. "1 500,50".
type amountRequest struct {
	Amount float64 `json:"amount"`
	Text   string  `json:"text"`
}

// GET /api/shift/settlements
func (h ShiftHandler) ListSettlements(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		return gin.H{"settlements": s.Settlements(), "totals": s.SettlementTotals()}, nil
	})
}

// POST /api/shift/settlements
func (h ShiftHandler) AddSettlement(c *gin.Context) {
	var req settlementRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	personType := models.PersonType(strings.TrimSpace(req.Type))
	if personType == "" {
		personType = models.PersonDriver
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.AddSettlement(models.SettlementPerson{Name: utils.NormalizeSpace(req.Name), Amount: req.Amount, Type: personType})
	})
}

// POST /api/shift/settlements/:id/dispatcher/toggle
func (h ShiftHandler) ToggleDispatcher(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.ToggleDispatcher(id)
	})
}

// PUT /api/shift/settlements/:id/dispatcher
func (h ShiftHandler) SelectDispatcher(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dispatcherRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.SelectDispatcher(id, req.DispatcherID)
	})
}

// PUT /api/shift/settlements/fees
func (h ShiftHandler) SetFees(c *gin.Context) {
	var req feesRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return nil, s.SetFees(req.Deposit, req.Commission)
	})
}

// POST /api/shift/settlements/deposit
func (h ShiftHandler) AddDeposit(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.AddDepositAndCommission()
	})
}

// POST /api/shift/settlements/recalculate
func (h ShiftHandler) Recalculate(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		if err := s.Recalculate(); err != nil {
			return nil, err
		}
		return gin.H{"totals": s.SettlementTotals(), "panels": s.Panels()}, nil
	})
}

// POST /api/shift/settlements/:id/settle
func (h ShiftHandler) Settle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req settleRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	action := models.SettlementAction(strings.TrimSpace(req.Action))
	if action != models.SettleCredit && action != models.SettleDebit {
		RespondDomainError(c, domain.ValidationError{Field: "action", Msg: "must be credit or debit"})
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		out, err := s.Settle(id, action)
		if err != nil {
			return nil, err
		}
		return gin.H{
			"person":      out.Person,
			"routed":      out.Routed,
			"aggregate":   out.Aggregate,
			"requires_qr": out.RequiresQR,
			"generated":   out.Generated,
			"expected":    out.Expected,
			"payment":     s.Payment(),
		}, nil
	})
}

// GET /api/shift/payment
func (h ShiftHandler) PaymentStatus(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.Payment(), nil
	})
}

// POST /api/shift/payment/scan
func (h ShiftHandler) SubmitPaymentScan(c *gin.Context) {
	var req scanRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.paymentStep(c, func(s *services.ShiftService) error {
		return s.SubmitPaymentScan(req.QR)
	})
}

// POST /api/shift/payment/retry
func (h ShiftHandler) RetryPaymentScan(c *gin.Context) {
	h.paymentStep(c, (*services.ShiftService).RetryPaymentScan)
}

// POST /api/shift/payment/cash
func (h ShiftHandler) BeginCash(c *gin.Context) {
	var req cashRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.paymentStep(c, func(s *services.ShiftService) error {
		return s.BeginCash(models.PaymentType(strings.TrimSpace(req.PaymentType)))
	})
}

// PUT /api/shift/payment/amount
func (h ShiftHandler) EnterPaymentAmount(c *gin.Context) {
	var req amountRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if req.Text != "" {
		amount, err := utils.ParseRub(req.Text)
		if err != nil {
			RespondDomainError(c, domain.ValidationError{Field: "amount", Msg: "not a rouble amount", Err: err})
			return
		}
		req.Amount = amount
	}
	h.paymentStep(c, func(s *services.ShiftService) error {
		return s.EnterPaymentAmount(req.Amount)
	})
}

// POST /api/shift/payment/confirm
func (h ShiftHandler) ConfirmPayment(c *gin.Context) {
	h.paymentStep(c, (*services.ShiftService).ConfirmPayment)
}

// POST /api/shift/payment/close
func (h ShiftHandler) ClosePayment(c *gin.Context) {
	h.paymentStep(c, func(s *services.ShiftService) error {
		s.CloseScanner()
		return nil
	})
}

func (h ShiftHandler) paymentStep(c *gin.Context, fn func(*services.ShiftService) error) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		if err := fn(s); err != nil {
			return nil, err
		}
		return s.Payment(), nil
	})
}

type voteRequest struct {
	Stop          int    `json:"stop"`
	PassengerName string `json:"passenger_name" binding:"required"`
	Seconds       int    `json:"seconds"`
}

// GET /api/shift/votes
func (h ShiftHandler) ListVotes(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		return gin.H{"votes": s.Votes()}, nil
	})
}

// POST /api/shift/votes
func (h ShiftHandler) AddVote(c *gin.Context) {
	var req voteRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.AddVote(req.Stop, req.PassengerName, req.Seconds)
	})
}
