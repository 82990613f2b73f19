package services

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
	"shuttle/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// ReportService renders the end-of-shift PDF: per-stop boarding history,
// the transaction log and the settlement sheet.
type ReportService struct {
	RequestID string
	Loader    func(driverID string) (ShiftReportData, error)
}

type ShiftReportData struct {
	DriverID     string
	DriverName   string
	TripID       string
	State        models.TripState
	Stops        []models.Stop
	History      map[int]models.StopHistory
	Transactions []models.Transaction
	Balance      float64
	Settlements  []models.SettlementPerson
	Totals       models.SettlementTotals
	GeneratedAt  time.Time
}

// ReportData collects the report fields from a live shift.
func (s *ShiftService) ReportData(driverID string) ShiftReportData {
	view := s.View()
	return ShiftReportData{
		DriverID:     driverID,
		DriverName:   s.Config().DriverName,
		TripID:       view.TripID,
		State:        view.State,
		Stops:        view.Stops,
		History:      view.History,
		Transactions: s.Transactions(),
		Balance:      view.Balance,
		Settlements:  view.Settlements,
		Totals:       view.Totals,
		GeneratedAt:  s.clock.Now(),
	}
}

func (s ReportService) GenerateShiftReport(driverID string) ([]byte, string, error) {
	if s.Loader == nil {
		return nil, "", domain.InternalError{Msg: "report loader is not configured"}
	}
	data, err := s.Loader(driverID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "report", "generate_shift_report", fmt.Sprintf("driver_id=%s trip_id=%s", driverID, data.TripID))
	return buildShiftReportPDF(data)
}

func buildShiftReportPDF(d ShiftReportData) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Shift report", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "SHIFT REPORT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	header := []string{
		fmt.Sprintf("Driver      : %s", safe(d.DriverName, "-")),
		fmt.Sprintf("Trip        : %s", safe(d.TripID, "-")),
		fmt.Sprintf("State       : %s", safe(string(d.State), "-")),
		fmt.Sprintf("Generated   : %s", utils.FormatDateTime(d.GeneratedAt)),
		fmt.Sprintf("Balance     : %s", utils.FormatRub(d.Balance)),
	}
	for _, line := range header {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Stops")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	stops := make([]int, 0, len(d.History))
	for stop := range d.History {
		stops = append(stops, stop)
	}
	sort.Ints(stops)
	if len(stops) == 0 {
		pdf.Cell(0, 6, "No stops departed yet.")
		pdf.Ln(6)
	}
	for _, stop := range stops {
		h := d.History[stop]
		pdf.Cell(0, 6, fmt.Sprintf("%d. %s  reserved %d, boarded %d", stop+1, stopName(d.Stops, stop), h.Reserved, h.Boarded))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Transactions")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	if len(d.Transactions) == 0 {
		pdf.Cell(0, 6, "No transactions.")
		pdf.Ln(6)
	}
	for _, tx := range d.Transactions {
		pdf.Cell(0, 6, fmt.Sprintf("%s  %-8s %-6s %s  %s",
			utils.FormatClock(tx.CreatedAt), tx.Type, tx.PaymentMethod, utils.FormatRub(tx.Amount), safe(tx.PassengerName, "")))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Settlements")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, p := range d.Settlements {
		status := "open"
		if p.Completed() {
			status = "done"
			if p.DispatcherName != "" {
				status = "via " + p.DispatcherName
			}
		}
		pdf.Cell(0, 6, fmt.Sprintf("#%d %s  %s  [%s]", p.ID, p.Name, utils.FormatRub(p.Amount), status))
		pdf.Ln(6)
	}
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 6, fmt.Sprintf("To accept %s, to debit %s, net %s",
		utils.FormatRub(d.Totals.ToAccept), utils.FormatRub(d.Totals.ToDebit), utils.FormatRub(d.Totals.NetBalance)))
	pdf.Ln(8)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("SHIFT_%s_%s.pdf", utils.SafeFilenamePart(d.DriverID), utils.FormatDate(d.GeneratedAt))
	return buf.Bytes(), filename, nil
}

func stopName(stops []models.Stop, i int) string {
	if i >= 0 && i < len(stops) {
		return safe(stops[i].Name, "-")
	}
	return "-"
}

func safe(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
