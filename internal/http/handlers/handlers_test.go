package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shuttle/internal/clock"
	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
	"shuttle/internal/http/middleware"
	"shuttle/internal/repositories"
	"shuttle/internal/services"

	"github.com/gin-gonic/gin"
)

var testSecret = []byte("handler-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAccounts struct {
	accounts map[string]repositories.DriverAccount
}

func (f *fakeAccounts) GetByLogin(login string) (repositories.DriverAccount, error) {
	acc, ok := f.accounts[strings.TrimSpace(login)]
	if !ok {
		return repositories.DriverAccount{}, domain.NotFoundError{Resource: "driver account"}
	}
	return acc, nil
}

func (f *fakeAccounts) Create(acc repositories.DriverAccount) (repositories.DriverAccount, error) {
	acc.ID = int64(len(f.accounts) + 1)
	f.accounts[acc.Login] = acc
	return acc, nil
}

func (f *fakeAccounts) SetConfirmed(login string, confirmed bool) error {
	acc, ok := f.accounts[login]
	if !ok {
		return domain.NotFoundError{Resource: "driver account"}
	}
	acc.Confirmed = confirmed
	f.accounts[login] = acc
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *services.ShiftManager) {
	t.Helper()
	manager := services.NewShiftManager(services.ManagerOptions{
		Config: services.ShiftConfig{
			Capacity: 4,
			Stops:    []models.Stop{{Name: "Depot"}, {Name: "Market"}, {Name: "Station"}},
		},
		Clock:    clock.Fake(time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)),
		Verifier: services.PayloadVerifier{},
	})
	t.Cleanup(func() { _ = manager.Close() })

	shift := ShiftHandler{Manager: manager}
	report := ReportHandler{Manager: manager}
	r := gin.New()
	r.Use(middleware.RequestID())
	s := r.Group("/api/shift", middleware.Auth(testSecret))
	s.GET("", shift.View)
	s.POST("/dispatch", shift.Dispatch)
	s.POST("/queue", shift.Enqueue)
	s.POST("/bookings", shift.RegisterBooking)
	s.POST("/bookings/:id/scanner", shift.OpenBookingScanner)
	s.POST("/bookings/:id/cancel", shift.CancelBooking)
	s.POST("/settlements", shift.AddSettlement)
	s.POST("/settlements/:id/settle", shift.Settle)
	s.GET("/snapshot", shift.ExportSnapshot)
	s.POST("/snapshot", shift.ImportSnapshot)
	s.GET("/report", report.ShiftReport)
	s.GET("/events", shift.ListEvents)
	return r, manager
}

func tokenFor(t *testing.T, driver string, confirmed bool) string {
	t.Helper()
	tok, err := middleware.SignToken(testSecret, middleware.DriverClaims{DriverID: driver, Confirmed: confirmed}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestShiftRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := do(r, http.MethodGet, "/api/shift", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
}

func TestDispatchMapsTransitionErrors(t *testing.T) {
	r, _ := newTestRouter(t)
	tok := tokenFor(t, "ivanov", true)

	w := do(r, http.MethodPost, "/api/shift/dispatch", tok, gin.H{"action": "finish_trip"})
	if w.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["code"]; got != domain.CodeInvalidTransition {
		t.Fatalf("want invalid_transition, got %v", got)
	}

	w = do(r, http.MethodPost, "/api/shift/dispatch", tok, gin.H{"action": "start_shift"})
	if w.Code != http.StatusOK {
		t.Fatalf("start_shift: %d %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["new_state"]; got != string(models.TripWaitingStart) {
		t.Fatalf("want waiting_start, got %v", got)
	}

	w = do(r, http.MethodGet, "/api/shift", tok, nil)
	if got := decode(t, w)["state"]; got != string(models.TripWaitingStart) {
		t.Fatalf("view state: %v", got)
	}
}

func TestShiftsAreKeptPerDriver(t *testing.T) {
	r, _ := newTestRouter(t)
	do(r, http.MethodPost, "/api/shift/dispatch", tokenFor(t, "ivanov", true), gin.H{"action": "start_shift"})

	w := do(r, http.MethodGet, "/api/shift", tokenFor(t, "petrov", true), nil)
	if got := decode(t, w)["state"]; got != string(models.TripOffline) {
		t.Fatalf("second driver must start offline, got %v", got)
	}
}

func TestLockedErrorsCarryReason(t *testing.T) {
	r, _ := newTestRouter(t)
	tok := tokenFor(t, "ivanov", true)

	w := do(r, http.MethodPost, "/api/shift/queue", tok, gin.H{"name": "Walk-up", "ticket_count": 1})
	if w.Code != http.StatusLocked {
		t.Fatalf("enqueue offline: want 423, got %d", w.Code)
	}
	details, _ := decode(t, w)["details"].(map[string]any)
	if details["reason"] != domain.LockSeatsLocked {
		t.Fatalf("want seatsLocked detail, got %v", details)
	}
}

func TestBookingScannerNeedsConfirmedAccount(t *testing.T) {
	r, _ := newTestRouter(t)
	unconfirmed := tokenFor(t, "ivanov", false)
	do(r, http.MethodPost, "/api/shift/dispatch", unconfirmed, gin.H{"action": "start_shift"})
	do(r, http.MethodPost, "/api/shift/dispatch", unconfirmed, gin.H{"action": "start_boarding"})

	w := do(r, http.MethodPost, "/api/shift/bookings", unconfirmed, gin.H{
		"passenger_name":  "Anna",
		"from_stop_index": 0,
		"to_stop_index":   2,
		"amount":          320,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register booking: %d %s", w.Code, w.Body.String())
	}
	id := int64(decode(t, w)["id"].(float64))
	path := "/api/shift/bookings/" + jsonID(id) + "/scanner"

	w = do(r, http.MethodPost, path, unconfirmed, nil)
	if w.Code != http.StatusLocked {
		t.Fatalf("want 423, got %d %s", w.Code, w.Body.String())
	}
	details, _ := decode(t, w)["details"].(map[string]any)
	if details["reason"] != domain.LockAccountUnconfirmed {
		t.Fatalf("want accountUnconfirmed, got %v", details)
	}

	if w := do(r, http.MethodPost, path, tokenFor(t, "ivanov", true), nil); w.Code != http.StatusOK {
		t.Fatalf("confirmed driver should open the scanner, got %d %s", w.Code, w.Body.String())
	}
}

func TestCancelBookingWithoutReason(t *testing.T) {
	r, _ := newTestRouter(t)
	tok := tokenFor(t, "ivanov", true)
	do(r, http.MethodPost, "/api/shift/dispatch", tok, gin.H{"action": "start_shift"})
	w := do(r, http.MethodPost, "/api/shift/bookings", tok, gin.H{"passenger_name": "Oleg", "from_stop_index": 1, "to_stop_index": 2})
	id := int64(decode(t, w)["id"].(float64))

	w = do(r, http.MethodPost, "/api/shift/bookings/"+jsonID(id)+"/cancel", tok, gin.H{"reason": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["code"]; got != domain.CodeMissingCancelReason {
		t.Fatalf("want missing_cancel_reason, got %v", got)
	}
}

func TestSettleRejectsUnknownAction(t *testing.T) {
	r, _ := newTestRouter(t)
	tok := tokenFor(t, "ivanov", true)
	w := do(r, http.MethodPost, "/api/shift/settlements", tok, gin.H{"name": "Sergey", "amount": 500})
	if w.Code != http.StatusOK {
		t.Fatalf("add settlement: %d %s", w.Code, w.Body.String())
	}
	id := int64(decode(t, w)["id"].(float64))

	if w := do(r, http.MethodPost, "/api/shift/settlements/"+jsonID(id)+"/settle", tok, gin.H{"action": "refund"}); w.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/shift/settlements/abc/settle", tok, gin.H{"action": "credit"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want 400, got %d", w.Code)
	}
}

func TestSnapshotExportImportCBOR(t *testing.T) {
	r, manager := newTestRouter(t)
	tok := tokenFor(t, "ivanov", true)
	do(r, http.MethodPost, "/api/shift/dispatch", tok, gin.H{"action": "start_shift"})

	w := do(r, http.MethodGet, "/api/shift/snapshot?codec=cbor", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/cbor" {
		t.Fatalf("content type %q", ct)
	}
	exported := w.Body.Bytes()

	if err := manager.Reset("ivanov"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/shift/snapshot", bytes.NewReader(exported))
	req.Header.Set("Content-Type", "application/cbor")
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("import: %d %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["state"]; got != string(models.TripWaitingStart) {
		t.Fatalf("restored state %v", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/shift/snapshot", strings.NewReader(`{"trip_state":"flying"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown state: want 400, got %d", w.Code)
	}
}

func TestShiftReportIsPDF(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/shift/report", tokenFor(t, "ivanov", true), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report: %d %s", w.Code, w.Body.String())
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body is not a PDF")
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "SHIFT_ivanov_") {
		t.Fatalf("content disposition %q", cd)
	}
}

func TestEventsWithoutStore(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/shift/events", tokenFor(t, "ivanov", true), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events: %d", w.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	store := &fakeAccounts{accounts: map[string]repositories.DriverAccount{}}
	auth := AuthHandler{Accounts: store, Secret: testSecret, TTL: time.Hour}
	r := gin.New()
	r.POST("/register", auth.Register)
	r.POST("/login", auth.Login)
	r.PUT("/accounts/:login/confirmation", auth.SetConfirmation)

	w := do(r, http.MethodPost, "/register", "", gin.H{"login": "ivanov", "display_name": "Driver Ivanov", "password": "secret-pass"})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/register", "", gin.H{"login": "ivanov", "password": "secret-pass"}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: want 409, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/login", "", gin.H{"login": "ivanov", "password": "wrong-pass"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: want 401, got %d", w.Code)
	}

	if w := do(r, http.MethodPut, "/accounts/ivanov/confirmation", "", gin.H{"confirmed": true}); w.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/login", "", gin.H{"login": "ivanov", "password": "secret-pass"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	claims, err := middleware.ParseToken(testSecret, decode(t, w)["token"].(string))
	if err != nil {
		t.Fatalf("issued token: %v", err)
	}
	if claims.DriverID != "ivanov" || claims.Name != "Driver Ivanov" || !claims.Confirmed {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
