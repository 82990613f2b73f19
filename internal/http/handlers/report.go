package handlers

import (
	"fmt"
	"net/http"

	"shuttle/internal/http/middleware"
	"shuttle/internal/services"

	"github.com/gin-gonic/gin"
)

// ReportHandler streams the end-of-shift PDF.
type ReportHandler struct {
	Manager *services.ShiftManager
}

// GET /api/shift/report
func (h ReportHandler) ShiftReport(c *gin.Context) {
	claims, ok := middleware.GetDriver(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "missing driver", nil)
		return
	}
	svc := services.ReportService{RequestID: middleware.GetRequestID(c), Loader: h.Manager.ReportLoader}
	pdf, filename, err := svc.GenerateShiftReport(claims.DriverID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
