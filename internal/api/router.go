package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/revivereads/marketplace/internal/api/handler"
	"github.com/revivereads/marketplace/internal/api/middleware"
	"github.com/revivereads/marketplace/internal/core/ports"
)

const bodyLimit = "10M"

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Book         *handler.BookHandler
	Message      *handler.MessageHandler
	Notification *handler.NotificationHandler
	Admin        *handler.AdminHandler
	Activity     *handler.ActivityHandler
	Health       *handler.HealthHandler
	Readiness    *handler.ReadinessHandler
	WS           *handler.WSHandler
}

// RouterConfig carries the cross-cutting dependencies of the middleware chain.
type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins []string
	// UploadDir is served under /api/uploads when set.
	UploadDir string
	Sessions  middleware.SessionValidator
	// AuthLimiter throttles sign-in, OTP verification and password recovery.
	AuthLimiter middleware.Limiter
	Activity    ports.ActivityRecorder
	// IPExtractor resolves c.RealIP(). Nil uses the socket peer.
	IPExtractor echo.IPExtractor
	Log         zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(h Handlers, cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Log)
	e.Validator = handler.NewValidator()
	e.IPExtractor = cfg.IPExtractor
	if e.IPExtractor == nil {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(cfg.Log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
	}))
	e.Use(echomiddleware.Secure())
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	e.Use(echoprometheus.NewMiddleware("revivereads"))

	auth := middleware.Auth(cfg.JWTSecret, cfg.Sessions)
	admin := middleware.AdminOnly(cfg.Activity)
	limited := middleware.RateLimit(cfg.AuthLimiter, cfg.Activity, cfg.Log)

	// --- Health, metrics, docs ---
	e.GET("/health", h.Health.Liveness)
	e.GET("/health/ready", h.Readiness.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/ws", h.WS.Connect)

	apiGroup := e.Group("/api")
	if cfg.UploadDir != "" {
		apiGroup.Static("/uploads", cfg.UploadDir)
	}

	// --- Users & auth ---
	users := apiGroup.Group("/user")
	users.POST("/sign-up", h.Auth.SignUp)
	users.POST("/sign-in", h.Auth.SignIn, limited)
	users.POST("/verify-otp", h.Auth.VerifyOTP, limited)
	users.POST("/forgot-password", h.Auth.ForgotPassword, limited)
	users.POST("/reset-password", h.Auth.ResetPassword)
	users.POST("/logout", h.Auth.Logout, auth)
	users.POST("/logout-all", h.Auth.LogoutAll, auth)
	users.GET("/me", h.Auth.Me, auth)
	users.GET("/get-all-users", h.User.List, auth)
	users.GET("/get-user-by-id/:id", h.User.Get)
	users.GET("/get-users-for-sidebar", h.User.Sidebar, auth)
	users.GET("/get-favorites-books", h.User.Favorites, auth)
	users.POST("/add-to-favorites", h.User.AddFavorite, auth)
	users.DELETE("/remove-from-favorites/:bookId", h.User.RemoveFavorite, auth)
	users.POST("/uploadImage", h.User.UploadImage, auth)
	users.PATCH("/notifications", h.User.SetNotifications, auth)
	users.PATCH("/:id/status", h.User.UpdateStatus, auth)
	users.PATCH("", h.User.UpdateProfile, auth)
	users.PATCH("/", h.User.UpdateProfile, auth)
	users.DELETE("/:id", h.User.Delete, auth)

	// --- Books ---
	books := apiGroup.Group("/book")
	books.GET("/get-all-books", h.Book.ListAll, auth, admin)
	books.GET("/get-approved-books", h.Book.ListApproved)
	books.GET("/get-book-by-id/:bookId", h.Book.Get)
	books.GET("/get-book-by-user", h.Book.ListMine, auth)
	books.GET("/get-approved-by-user", h.Book.ListApprovedBySeller)
	books.GET("/sold", h.Book.ListSold, auth)
	books.POST("/post-book", h.Book.Create, auth)
	books.PATCH("/update-book/:bookId", h.Book.Update, auth)
	books.DELETE("/delete-book", h.Book.Delete, auth)
	books.PATCH("/approve-book/:bookId", h.Book.Review, auth, admin)
	books.PATCH("/mark-as-sold/:bookId", h.Book.MarkSold, auth)

	// --- Messaging ---
	messages := apiGroup.Group("/messages", auth)
	messages.GET("/unread", h.Message.Unread)
	messages.GET("/:id", h.Message.Conversation)
	messages.POST("/send/:id", h.Message.Send)

	// --- Notifications ---
	notifications := apiGroup.Group("/notifications", auth)
	notifications.GET("", h.Notification.List)
	notifications.GET("/", h.Notification.List)
	notifications.PUT("/mark-read", h.Notification.MarkAllRead)
	notifications.PUT("/:id/read", h.Notification.MarkRead)

	// --- Admin dashboard ---
	dashboard := apiGroup.Group("/admin", auth, admin)
	dashboard.GET("/summary", h.Admin.Summary)
	dashboard.GET("/dashboard-summary", h.Admin.Summary)
	dashboard.GET("/security-metrics", h.Admin.SecurityMetrics)
	dashboard.GET("/user-activity-stats", h.Admin.UserActivityStats)
	dashboard.GET("/book-listings-stats", h.Admin.BookListingStats)
	dashboard.GET("/users", h.Admin.Users)
	dashboard.GET("/audit-logs", h.Admin.AuditLogs)

	// --- Activity trail ---
	activity := apiGroup.Group("/activity-logs", auth, admin)
	activity.GET("", h.Activity.List)
	activity.GET("/", h.Activity.List)
	activity.GET("/user/:userId", h.Activity.ListForUser)
	activity.GET("/stats", h.Activity.Stats)
	activity.GET("/security-events", h.Activity.SecurityEvents)
	activity.GET("/export", h.Activity.Export)
	activity.DELETE("/clean", h.Activity.Clean)

	return e
}
