package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("APP_ADDR", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("SCAN_DELAY_MS", "250")
	t.Setenv("RECALC_LOCK_MS", "soon")

	env := LoadEnv()
	if env.AppAddr != ":8080" {
		t.Fatalf("default addr expected, got %q", env.AppAddr)
	}
	if len(env.CORSAllowedOrigins) != 2 || env.CORSAllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", env.CORSAllowedOrigins)
	}
	if env.ScanDelay != 250*time.Millisecond || env.RecalcLockout != 0 {
		t.Fatalf("unexpected durations %v %v", env.ScanDelay, env.RecalcLockout)
	}
}

func TestLoadVehicle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vehicle.yaml")
	body := `capacity: 8
driver_name: Driver Ivanov
fare_per_ticket: 350
deposit: 2500
commission: 325
stops:
  - name: Depot
    time: "07:00"
  - name: Market
  - name: Station
dispatchers:
  - id: dispatcher1
    name: Dispatcher Petrov
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := LoadVehicle(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Capacity != 8 || len(v.Stops) != 3 || v.Stops[0].Time != "07:00" || v.Dispatchers[0].Name != "Dispatcher Petrov" {
		t.Fatalf("unexpected vehicle %+v", v)
	}
}

func TestLoadVehicleRejectsBadRoute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vehicle.yaml")
	_ = os.WriteFile(path, []byte("stops:\n  - name: Alone\n"), 0o600)
	if _, err := LoadVehicle(path); err == nil || !strings.Contains(err.Error(), "two stops") {
		t.Fatalf("single-stop route must fail, got %v", err)
	}
	if v, err := LoadVehicle(""); err != nil || v.Capacity != 0 {
		t.Fatalf("empty path should give defaults, got %+v %v", v, err)
	}
}

func TestWithParams(t *testing.T) {
	if got := withParams("u:p@tcp(h)/db"); !strings.HasPrefix(got, "u:p@tcp(h)/db?parseTime=true") {
		t.Fatalf("unexpected dsn %q", got)
	}
	if got := withParams("u:p@tcp(h)/db?x=1"); !strings.Contains(got, "?x=1&parseTime=true") {
		t.Fatalf("unexpected dsn %q", got)
	}
}
