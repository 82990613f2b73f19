package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"shuttle/internal/domain/models"
)

func TestReportServiceGenerate(t *testing.T) {
	loader := func(driverID string) (ShiftReportData, error) {
		done := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
		return ShiftReportData{
			DriverID:   driverID,
			DriverName: "Driver Ivanov",
			TripID:     "trip-1",
			State:      models.TripFinished,
			Stops:      []models.Stop{{Name: "Depot"}, {Name: "Market"}},
			History:    map[int]models.StopHistory{0: {Reserved: 2, Boarded: 3}},
			Transactions: []models.Transaction{
				{ID: 1, Type: "boarding", Amount: 640, PassengerName: "Anna", PaymentMethod: models.PaymentQR, CreatedAt: done},
			},
			Balance: 640,
			Settlements: []models.SettlementPerson{
				{ID: 1, Name: "Dispatcher Petrov", Amount: -500, Type: models.PersonDispatcher},
				{ID: 2, Name: "Driver Smirnov", Amount: 1500, CompletedAt: &done},
			},
			Totals:      models.SettlementTotals{ToDebit: 500, NetBalance: -500},
			GeneratedAt: done,
		}, nil
	}

	pdf, filename, err := ReportService{Loader: loader}.GenerateShiftReport("drv 7")
	if err != nil {
		t.Fatalf("GenerateShiftReport returned error: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output is not a pdf")
	}
	if !strings.HasPrefix(filename, "SHIFT_drv_7_") {
		t.Fatalf("unexpected filename %q", filename)
	}
}

func TestReportServiceLoaderError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := ReportService{Loader: func(string) (ShiftReportData, error) { return ShiftReportData{}, boom }}.GenerateShiftReport("d")
	if !errors.Is(err, boom) {
		t.Fatalf("want loader error, got %v", err)
	}
	if _, _, err := (ReportService{}).GenerateShiftReport("d"); err == nil {
		t.Fatalf("missing loader must fail")
	}
}

func TestReportDataFromShift(t *testing.T) {
	f := newShiftFixture(t, 2)
	f.dispatch(t, models.ActionStartShift, models.ActionStartBoarding, models.ActionDepartStop)
	d := f.svc.ReportData("drv")
	if d.DriverName != testDriver || d.TripID == "" || len(d.History) != 1 {
		t.Fatalf("unexpected report data %+v", d)
	}
	if _, _, err := buildShiftReportPDF(d); err != nil {
		t.Fatalf("build: %v", err)
	}
}
