package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"judoclub/internal/attendance"
	"judoclub/internal/auth"
	"judoclub/internal/booking"
	"judoclub/internal/checkin"
	"judoclub/internal/logger"
	"judoclub/internal/member"
	"judoclub/internal/schedule"

	"github.com/gin-gonic/gin"
)

type Config struct {
	Port           string
	JWTSecret      string
	Storage        string
	RateLimitRPS   float64
	RateLimitBurst int
	Production     bool
}

type Handlers struct {
	Members    *member.Handler
	Schedule   *schedule.Handler
	Bookings   *booking.Handler
	Attendance *attendance.Handler
	CheckIn    *checkin.Handler
}

// Checks are probed by /health. Nil checks are skipped.
type Checks struct {
	Database func(ctx context.Context) error
	Redis    func(ctx context.Context) error
}

type Server struct {
	router  *gin.Engine
	http    *http.Server
	limiter *RateLimiter
}

func New(cfg Config, h Handlers, checks Checks, mailer Sender) *Server {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(corsMiddleware())

	router.GET("/health", Health(cfg.Storage, checks))
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	public := router.Group("/auth")
	public.Use(limiter.Middleware())
	{
		public.POST("/register", h.Members.Register)
		public.POST("/login", h.Members.Login)
		public.POST("/refresh", h.Members.RefreshToken)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware, limiter.Middleware())
	{
		protected.GET("/me", h.Members.GetMe)
		protected.GET("/classes", h.Schedule.ListInstances)
		protected.POST("/classes/:templateID/:date/book", h.Bookings.BookClass)
		protected.GET("/classes/:templateID/:date/seats", h.Bookings.GetSeats)
		protected.POST("/bookings/:bookingID/cancel", h.Bookings.CancelBooking)
		protected.GET("/bookings", h.Bookings.GetMyBookings)
		protected.GET("/bookings/recurring", h.Bookings.GetRecurringBookings)
		protected.GET("/attendance/history", h.Attendance.GetHistory)
		protected.GET("/attendance/:templateID/:date", h.Attendance.GetStatus)
		protected.POST("/checkin/token", h.CheckIn.IssueToken)
	}

	staff := router.Group("/admin")
	staff.Use(authMiddleware, auth.RequireRole(auth.StaffRoles...))
	{
		staff.POST("/templates", h.Schedule.CreateTemplate)
		staff.GET("/templates", h.Schedule.ListTemplates)
		staff.POST("/templates/:templateID/deactivate", h.Schedule.DeactivateTemplate)
		staff.GET("/classes/:templateID/:date/bookings", h.Bookings.GetInstanceBookings)
		staff.GET("/classes/:templateID/:date/roster", h.Attendance.GetRoster)
		staff.POST("/bookings/:bookingID/cancel", h.Bookings.AdminCancelBooking)
		staff.POST("/checkin/scan", h.CheckIn.Scan)
		staff.POST("/checkin/manual", h.CheckIn.Manual)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.PUT("/members/:memberID/role", h.Members.SetRole)
		if mailer != nil {
			admin.POST("/test-email", TestEmail(mailer))
		}
	}

	return &Server{
		router:  router,
		limiter: limiter,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	logger.Info("HTTP server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
