package api

import (
	"log"
	stdhttp "net/http"
	"time"

	intconfig "shuttle/internal/config"
	h "shuttle/internal/http/handlers"
	"shuttle/internal/http/middleware"
	"shuttle/internal/repositories"
	"shuttle/internal/services"
	"shuttle/internal/websocket"

	"github.com/gin-gonic/gin"
)

// Deps are the long-lived collaborators the routes close over.
type Deps struct {
	Manager  *services.ShiftManager
	Hub      *websocket.Hub
	Accounts h.AccountStore
	Events   h.EventLister
}

func NewRouter(env intconfig.Env, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("warning: failed to set trusted proxies: %v", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	if deps.Accounts == nil {
		deps.Accounts = repositories.DriverAccountRepository{}
	}
	secret := []byte(env.JWTSecret)
	authH := h.AuthHandler{Accounts: deps.Accounts, Secret: secret, TTL: 12 * time.Hour}
	shift := h.ShiftHandler{Manager: deps.Manager, Events: deps.Events}
	report := h.ReportHandler{Manager: deps.Manager}

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", h.DBCheck)
		api.GET("/routes", h.Routes)

		// Auth
		auth := api.Group("/auth")
		auth.POST("/login", authH.Login)
		auth.POST("/register", authH.Register)

		admin := api.Group("/admin", middleware.AdminKey(env.AdminToken))
		admin.PUT("/accounts/:login/confirmation", authH.SetConfirmation)

		secured := api.Group("", middleware.Auth(secret))
		if deps.Hub != nil {
			secured.GET("/ws", h.WebSocket(deps.Hub))
		}

		s := secured.Group("/shift")
		s.GET("", shift.View)
		s.GET("/panels", shift.Panels)
		s.GET("/actions", shift.Actions)
		s.POST("/dispatch", shift.Dispatch)
		s.POST("/reset", shift.Reset)
		s.GET("/events", shift.ListEvents)
		s.GET("/snapshot", shift.ExportSnapshot)
		s.POST("/snapshot", shift.ImportSnapshot)
		s.GET("/report", report.ShiftReport)
		s.POST("/scanner/close", shift.CloseScanner)
		s.GET("/cancel-reasons", shift.CancelReasons)

		mountQueue(s.Group("/queue"), shift)
		mountBookings(s.Group("/bookings"), shift)
		mountSettlements(s.Group("/settlements"), shift)
		mountPayment(s.Group("/payment"), shift)

		s.GET("/votes", shift.ListVotes)
		s.POST("/votes", shift.AddVote)
	}

	h.SetRouter(r)
	return r
}

func mountQueue(g *gin.RouterGroup, shift h.ShiftHandler) {
	g.GET("", shift.ListQueue)
	g.POST("", shift.Enqueue)
	g.POST("/scan", shift.StartQueueScan)
	g.POST("/:id/select", shift.SelectPassenger)
	g.POST("/:id/retry", shift.RetryQueueScan)
	g.POST("/:id/accept", shift.AcceptQueuePassenger)
	g.POST("/:id/reject", shift.RejectQueuePassenger)
	g.POST("/:id/revert", shift.RevertQueuePassenger)
}

func mountBookings(g *gin.RouterGroup, shift h.ShiftHandler) {
	g.GET("", shift.ListBookings)
	g.POST("", shift.RegisterBooking)
	g.POST("/:id/reserve", shift.ReserveBooking)
	g.POST("/:id/highlight", shift.HighlightBooking)
	g.POST("/:id/scanner", shift.OpenBookingScanner)
	g.POST("/:id/scan", shift.SubmitBookingScan)
	g.POST("/:id/accept", shift.AcceptBooking)
	g.POST("/:id/reject", shift.RejectBooking)
	g.POST("/:id/cancel", shift.CancelBooking)
}

func mountSettlements(g *gin.RouterGroup, shift h.ShiftHandler) {
	g.GET("", shift.ListSettlements)
	g.POST("", shift.AddSettlement)
	g.PUT("/fees", shift.SetFees)
	g.POST("/deposit", shift.AddDeposit)
	g.POST("/recalculate", shift.Recalculate)
	g.POST("/:id/dispatcher/toggle", shift.ToggleDispatcher)
	g.PUT("/:id/dispatcher", shift.SelectDispatcher)
	g.POST("/:id/settle", shift.Settle)
}

func mountPayment(g *gin.RouterGroup, shift h.ShiftHandler) {
	g.GET("", shift.PaymentStatus)
	g.POST("/scan", shift.SubmitPaymentScan)
	g.POST("/retry", shift.RetryPaymentScan)
	g.POST("/cash", shift.BeginCash)
	g.PUT("/amount", shift.EnterPaymentAmount)
	g.POST("/confirm", shift.ConfirmPayment)
	g.POST("/close", shift.ClosePayment)
}
