package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"roomstay/internal/infra/config"
	"roomstay/internal/infra/obs"
)

type BookingHTTP interface {
	Quote(c *gin.Context)
	Hold(c *gin.Context)
	Pay(c *gin.Context)
	Confirm(c *gin.Context)
	Abort(c *gin.Context)
	Cancel(c *gin.Context)
	CheckIn(c *gin.Context)
	CheckOut(c *gin.Context)
	NoShow(c *gin.Context)
	RecordBalance(c *gin.Context)
	Get(c *gin.Context)
	ListMine(c *gin.Context)
}

type AvailabilityHTTP interface {
	Calendar(c *gin.Context)
	Block(c *gin.Context)
	Unblock(c *gin.Context)
	UnitBookings(c *gin.Context)
}

type RefundHTTP interface {
	Request(c *gin.Context)
	List(c *gin.Context)
	Preview(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
	Withdraw(c *gin.Context)
	Payout(c *gin.Context)
}

type PaymentHTTP interface {
	Callback(c *gin.Context)
}

type CatalogHTTP interface {
	GetUnit(c *gin.Context)
	ListUnits(c *gin.Context)
	GetPolicy(c *gin.Context)
}

type OwnerHTTP interface {
	CreateProperty(c *gin.Context)
	CreateUnit(c *gin.Context)
	RepriceUnit(c *gin.Context)
	AddSeasonalRate(c *gin.Context)
	RemoveSeasonalRate(c *gin.Context)
	UpsertPromotion(c *gin.Context)
	UpsertAddOn(c *gin.Context)
	SetPolicy(c *gin.Context)
}

type OpsHTTP interface {
	Reconcile(c *gin.Context)
	ExpireHolds(c *gin.Context)
}

type Handlers struct {
	Booking      BookingHTTP
	Availability AvailabilityHTTP
	Refund       RefundHTTP
	Payment      PaymentHTTP
	Catalog      CatalogHTTP
	Owner        OwnerHTTP
	Ops          OpsHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{Addr: cfg.HTTPAddr, Handler: NewRouter(cfg, obsMW, health, h), ReadHeaderTimeout: 10 * time.Second}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", headerUserID, headerUserRoles},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	router.Use(Identity{CallbackToken: cfg.CallbackToken}.Handle)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/quotes", h.Booking.Quote)
		api.POST("/bookings/hold", h.Booking.Hold)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/pay", h.Booking.Pay)
		api.POST("/bookings/:id/confirm", h.Booking.Confirm)
		api.POST("/bookings/:id/abort", h.Booking.Abort)
		api.POST("/bookings/:id/cancel", h.Booking.Cancel)
		api.POST("/bookings/:id/check-in", h.Booking.CheckIn)
		api.POST("/bookings/:id/check-out", h.Booking.CheckOut)
		api.POST("/bookings/:id/no-show", h.Booking.NoShow)
		api.POST("/bookings/:id/balance", h.Booking.RecordBalance)
		api.GET("/me/bookings", h.Booking.ListMine)
	}
	if h.Refund != nil {
		api.POST("/bookings/:id/refunds", h.Refund.Request)
		api.GET("/bookings/:id/refunds", h.Refund.List)
		api.GET("/bookings/:id/refunds/quote", h.Refund.Preview)
		api.POST("/refunds/:id/approve", h.Refund.Approve)
		api.POST("/refunds/:id/reject", h.Refund.Reject)
		api.POST("/refunds/:id/withdraw", h.Refund.Withdraw)
		api.POST("/refunds/:id/payout", h.Refund.Payout)
	}
	if h.Payment != nil {
		api.POST("/payments/callback", h.Payment.Callback)
	}
	if h.Catalog != nil {
		api.GET("/units", h.Catalog.ListUnits)
		api.GET("/units/:id", h.Catalog.GetUnit)
		api.GET("/policies/:id", h.Catalog.GetPolicy)
	}
	if h.Availability != nil {
		api.GET("/units/:id/calendar", h.Availability.Calendar)
		api.POST("/units/:id/blocks", h.Availability.Block)
		api.DELETE("/units/:id/blocks/:ref", h.Availability.Unblock)
		api.GET("/units/:id/bookings", h.Availability.UnitBookings)
	}
	if h.Owner != nil {
		ownerGroup := api.Group("/owner")
		ownerGroup.POST("/properties", h.Owner.CreateProperty)
		ownerGroup.POST("/properties/:id/units", h.Owner.CreateUnit)
		ownerGroup.POST("/properties/:id/promotions", h.Owner.UpsertPromotion)
		ownerGroup.POST("/properties/:id/add-ons", h.Owner.UpsertAddOn)
		ownerGroup.PUT("/properties/:id/policies/:policy", h.Owner.SetPolicy)
		ownerGroup.PUT("/units/:id/pricing", h.Owner.RepriceUnit)
		ownerGroup.POST("/units/:id/rates", h.Owner.AddSeasonalRate)
		ownerGroup.DELETE("/units/:id/rates/:rate", h.Owner.RemoveSeasonalRate)
	}
	if h.Ops != nil {
		opsGroup := api.Group("/ops")
		opsGroup.POST("/reconcile", h.Ops.Reconcile)
		opsGroup.POST("/expire-holds", h.Ops.ExpireHolds)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
