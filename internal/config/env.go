package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Env struct {
	AppAddr            string
	GinMode            string
	DBDSN              string
	JWTSecret          string
	AdminToken         string
	CORSAllowedOrigins []string
	VehicleFile        string
	SnapshotCodec      string
	QRVerifier         string
	ScanDelay          time.Duration
	RecalcLockout      time.Duration
}

// LoadEnv reads the process environment. A .env file in the working directory,
// when present, fills in variables that are not already set.
func LoadEnv() Env {
	_ = godotenv.Load()

	appAddr := strings.TrimSpace(os.Getenv("APP_ADDR"))
	if appAddr == "" {
		appAddr = ":8080"
	}

	return Env{
		AppAddr:            appAddr,
		GinMode:            strings.TrimSpace(os.Getenv("GIN_MODE")),
		DBDSN:              strings.TrimSpace(os.Getenv("DB_DSN")),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AdminToken:         strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		VehicleFile:        strings.TrimSpace(os.Getenv("VEHICLE_FILE")),
		SnapshotCodec:      strings.TrimSpace(os.Getenv("SNAPSHOT_CODEC")),
		QRVerifier:         strings.TrimSpace(os.Getenv("QR_VERIFIER")),
		ScanDelay:          millis("SCAN_DELAY_MS"),
		RecalcLockout:      millis("RECALC_LOCK_MS"),
	}
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// millis parses a millisecond count; zero means "use the default".
func millis(key string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}
