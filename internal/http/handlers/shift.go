package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
	"shuttle/internal/http/middleware"
	"shuttle/internal/services"

	"github.com/gin-gonic/gin"
)

const maxSnapshotBytes = 4 << 20

// EventLister reads a driver's stored trip events, newest first.
type EventLister interface {
	ListByDriver(driverID string, limit int) ([]models.Event, error)
}

// ShiftHandler exposes the driver's shift. Every mutating call goes through
// ShiftManager.Run so the snapshot is persisted afterwards.
type ShiftHandler struct {
	Manager *services.ShiftManager
	Events  EventLister
}

func (h ShiftHandler) run(c *gin.Context, fn func(*services.ShiftService) (any, error)) {
	claims, ok := middleware.GetDriver(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "missing driver", nil)
		return
	}
	var out any
	err := h.Manager.Run(claims.DriverID, func(s *services.ShiftService) error {
		s.SetAccountConfirmed(claims.Confirmed)
		var err error
		out, err = fn(s)
		return err
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if out == nil {
		out = gin.H{"status": "ok"}
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/shift
func (h ShiftHandler) View(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.View(), nil
	})
}

// GET /api/shift/panels
func (h ShiftHandler) Panels(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		return s.Panels(), nil
	})
}

// GET /api/shift/actions
func (h ShiftHandler) Actions(c *gin.Context) {
	h.run(c, func(s *services.ShiftService) (any, error) {
		return gin.H{"state": s.State(), "actions": s.AvailableActions()}, nil
	})
}

type dispatchRequest struct {
	Action string `json:"action" binding:"required"`
}

// POST /api/shift/dispatch
func (h ShiftHandler) Dispatch(c *gin.Context) {
	var req dispatchRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		res := s.Dispatch(models.TransitionAction(strings.TrimSpace(req.Action)))
		if res.Err != nil {
			return nil, res.Err
		}
		return res, nil
	})
}

// POST /api/shift/reset drops the live shift and its stored snapshot.
func (h ShiftHandler) Reset(c *gin.Context) {
	claims, ok := middleware.GetDriver(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "missing driver", nil)
		return
	}
	if err := h.Manager.Reset(claims.DriverID); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /api/shift/events?limit=50
func (h ShiftHandler) ListEvents(c *gin.Context) {
	claims, ok := middleware.GetDriver(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "missing driver", nil)
		return
	}
	if h.Events == nil {
		c.JSON(http.StatusOK, gin.H{"events": []models.Event{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.Events.ListByDriver(claims.DriverID, limit)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func codecContentType(name string) string {
	if name == "cbor" {
		return "application/cbor"
	}
	return "application/json"
}

// codecFromRequest picks the codec from ?codec= or, failing that, the
// request Content-Type.
func codecFromRequest(c *gin.Context) (services.SnapshotCodec, error) {
	name := c.Query("codec")
	if name == "" && strings.HasPrefix(c.ContentType(), "application/cbor") {
		name = "cbor"
	}
	return services.CodecByName(name)
}

// GET /api/shift/snapshot?codec=cbor
func (h ShiftHandler) ExportSnapshot(c *gin.Context) {
	codec, err := services.CodecByName(c.Query("codec"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	claims, ok := middleware.GetDriver(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "missing driver", nil)
		return
	}
	svc, err := h.Manager.Shift(claims.DriverID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	data, err := codec.Marshal(svc.Capture())
	if err != nil {
		RespondDomainError(c, domain.InternalError{Msg: "encode snapshot", Err: err})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="shift_%s.%s"`, claims.DriverID, codec.Name()))
	c.Data(http.StatusOK, codecContentType(codec.Name()), data)
}

// POST /api/shift/snapshot restores an exported snapshot.
func (h ShiftHandler) ImportSnapshot(c *gin.Context) {
	codec, err := codecFromRequest(c)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSnapshotBytes))
	if err != nil || len(raw) == 0 {
		RespondError(c, http.StatusBadRequest, "empty body", err)
		return
	}
	var snap models.Snapshot
	if err := codec.Unmarshal(raw, &snap); err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "snapshot", Msg: "cannot decode " + codec.Name(), Err: err})
		return
	}
	h.run(c, func(s *services.ShiftService) (any, error) {
		if err := s.Restore(snap); err != nil {
			return nil, err
		}
		return s.View(), nil
	})
}
