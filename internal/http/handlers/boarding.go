package handlers

import (
	"net/http"

	"shuttle/internal/domain/models"
	"shuttle/internal/services"
	"shuttle/internal/utils"

	"github.com/gin-gonic/gin"
)

type enqueueRequest struct {
	Name        string `json:"name" binding:"required"`
	TicketCount int    `json:"ticket_count"`
}

type scanRequest struct {
	QR string `json:"qr"`
}

// GET /api/shift/queue
func (h ShiftHandler) ListQueue(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		return gin.H{"queue": s.QueuePassengers()}, nil
	})
}

// POST /api/shift/queue
func (h ShiftHandler) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if req.TicketCount == 0 {
		req.TicketCount = 1
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.Enqueue(utils.NormalizeSpace(req.Name), req.TicketCount)
	})
}

// POST /api/shift/queue/:id/select
func (h ShiftHandler) SelectPassenger(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.SelectPassenger(id)
	})
}

// POST /api/shift/queue/scan scans the selected or first waiting passenger.
func (h ShiftHandler) StartQueueScan(c *gin.Context) {
	var req scanRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.StartQueueScan(req.QR)
	})
}

// POST /api/shift/queue/:id/retry
func (h ShiftHandler) RetryQueueScan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req scanRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.RetryQueueScan(id, req.QR)
	})
}

// POST /api/shift/queue/:id/accept
func (h ShiftHandler) AcceptQueuePassenger(c *gin.Context) {
	h.queueDecision(c, (*services.ShiftService).AcceptQueuePassenger)
}

// POST /api/shift/queue/:id/reject
func (h ShiftHandler) RejectQueuePassenger(c *gin.Context) {
	h.queueDecision(c, (*services.ShiftService).RejectQueuePassenger)
}

// POST /api/shift/queue/:id/revert
func (h ShiftHandler) RevertQueuePassenger(c *gin.Context) {
	h.queueDecision(c, (*services.ShiftService).RevertQueuePassenger)
}

func (h ShiftHandler) queueDecision(c *gin.Context, fn func(*services.ShiftService, int64) (models.QueuePassenger, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return fn(s, id)
	})
}

// POST /api/shift/scanner/close
func (h ShiftHandler) CloseScanner(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		s.CloseScanner()
		return nil, nil
	})
}

type bookingRequest struct {
	PassengerName string  `json:"passenger_name" binding:"required"`
	FromStopIndex int     `json:"from_stop_index"`
	ToStopIndex   int     `json:"to_stop_index"`
	Amount        float64 `json:"amount"`
	Count         int     `json:"count"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// GET /api/shift/bookings
func (h ShiftHandler) ListBookings(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		return gin.H{"bookings": s.Bookings()}, nil
	})
}

// POST /api/shift/bookings
func (h ShiftHandler) RegisterBooking(c *gin.Context) {
	var req bookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.RegisterBooking(models.Booking{
			PassengerName: utils.NormalizeSpace(req.PassengerName),
			FromStopIndex: req.FromStopIndex,
			ToStopIndex:   req.ToStopIndex,
			Amount:        req.Amount,
			Count:         req.Count,
		})
	})
}

// POST /api/shift/bookings/:id/reserve
func (h ShiftHandler) ReserveBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.ReserveBooking(id)
	})
}

// POST /api/shift/bookings/:id/highlight
func (h ShiftHandler) HighlightBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return nil, s.HighlightBooking(id)
	})
}

// POST /api/shift/bookings/:id/scanner
func (h ShiftHandler) OpenBookingScanner(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.OpenBookingScanner(id)
	})
}

// POST /api/shift/bookings/:id/scan
func (h ShiftHandler) SubmitBookingScan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req scanRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return nil, s.SubmitBookingScan(id, req.QR)
	})
}

// POST /api/shift/bookings/:id/accept
func (h ShiftHandler) AcceptBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.AcceptBooking(id)
	})
}

// POST /api/shift/bookings/:id/reject
func (h ShiftHandler) RejectBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		b, next, err := s.RejectBooking(id, req.Reason)
		if err != nil {
			return nil, err
		}
		return gin.H{"booking": b, "next": next}, nil
	})
}

// POST /api/shift/bookings/:id/cancel
func (h ShiftHandler) CancelBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.CancelBooking(id, req.Reason)
	})
}

// GET /api/shift/cancel-reasons?context=boarding
func (h ShiftHandler) CancelReasons(c *gin.Context) {
	ctx := models.CancelContext(c.DefaultQuery("context", string(models.CancelBoarding)))
	c.JSON(http.StatusOK, gin.H{"context": ctx, "reasons": models.CancelReasons(ctx)})
}
