package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "shuttle/internal/config"
	intdb "shuttle/internal/db"
	router "shuttle/internal/http"
	"shuttle/internal/repositories"
	"shuttle/internal/services"
	"shuttle/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	env := intconfig.LoadEnv()

	flags := pflag.NewFlagSet("shuttle", pflag.ExitOnError)
	flags.StringVar(&env.AppAddr, "addr", env.AppAddr, "HTTP listen address")
	flags.StringVar(&env.VehicleFile, "vehicle", env.VehicleFile, "vehicle and route YAML file")
	flags.StringVar(&env.SnapshotCodec, "snapshot-codec", env.SnapshotCodec, "snapshot encoding: json or cbor")
	flags.StringVar(&env.QRVerifier, "qr-verifier", env.QRVerifier, "QR verifier: payload or accept")
	noDB := flags.Bool("no-db", false, "run without MySQL; shifts live in memory only")
	_ = flags.Parse(os.Args[1:])

	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}
	if env.JWTSecret == "" {
		log.Println("warning: JWT_SECRET is empty, logins will fail")
	}

	vehicle, err := intconfig.LoadVehicle(env.VehicleFile)
	if err != nil {
		log.Fatalf("vehicle config: %v", err)
	}
	codec, err := services.CodecByName(env.SnapshotCodec)
	if err != nil {
		log.Fatalf("snapshot codec: %v", err)
	}
	verifier, err := services.VerifierByName(env.QRVerifier)
	if err != nil {
		log.Fatalf("qr verifier: %v", err)
	}

	opts := services.ManagerOptions{
		Config:   shiftConfig(vehicle, env),
		Verifier: verifier,
		Codec:    codec,
	}
	deps := router.Deps{}

	if !*noDB {
		if db, err := intconfig.ConnectDB(env.DBDSN); err != nil {
			log.Printf("warning: database unavailable, shifts are kept in memory: %v", err)
		} else if err := intdb.EnsureSchema(db); err != nil {
			log.Printf("warning: schema check failed: %v", err)
		} else {
			opts.Store = repositories.SnapshotRepository{DB: db}
			opts.Events = repositories.EventRepository{DB: db}
			deps.Events = repositories.EventRepository{DB: db}
			deps.Accounts = repositories.DriverAccountRepository{DB: db}
		}
	}
	defer intconfig.CloseDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	websocket.SetAllowedOrigins(env.CORSAllowedOrigins)
	go hub.Run(ctx)
	opts.SinkFor = hub.Sink

	manager := services.NewShiftManager(opts)
	deps.Manager = manager
	deps.Hub = hub

	r := router.NewRouter(env, deps)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server listening on http://localhost%s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown failed: %v", err)
	}
	if err := manager.Close(); err != nil {
		log.Printf("saving shifts failed: %v", err)
	}

	log.Println("server stopped")
}

func shiftConfig(v intconfig.Vehicle, env intconfig.Env) services.ShiftConfig {
	cfg := services.ShiftConfig{
		Capacity:      v.Capacity,
		Stops:         v.Stops,
		FarePerTicket: v.FarePerTicket,
		DriverName:    v.DriverName,
		Dispatchers:   v.Dispatchers,
		Deposit:       v.Deposit,
		Commission:    v.Commission,
		ScanDelay:     env.ScanDelay,
		RecalcLockout: env.RecalcLockout,
	}
	if cfg.Deposit == 0 {
		cfg.Deposit = services.DefaultDeposit
	}
	if cfg.Commission == 0 {
		cfg.Commission = services.DefaultCommission
	}
	return cfg
}
