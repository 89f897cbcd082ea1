// Package handler is the HTTP surface of the kiosk: the student check-in page,
// the admin pages and a small JSON API.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance-kiosk/internal/attendance"
	"attendance-kiosk/internal/auth"
	"attendance-kiosk/internal/httpmiddleware"
)

// SessionCookie is the name of the signed session cookie.
const SessionCookie = "kiosk_session"

// Config holds the HTTP-level settings.
type Config struct {
	Secret        string
	Issuer        string
	TokenTTL      time.Duration
	SessionMaxAge time.Duration
	SnapDir       string
	LoginPerMin   int
	CORSOrigins   []string
	Secure        bool
}

// Deps are the services the handlers call.
type Deps struct {
	CheckIns *attendance.Service
	Codes    *attendance.SessionCodes
	Reports  *attendance.Reports
	Admin    *attendance.AdminService
	AuditLog AuditLister
	Limiter  *httpmiddleware.AttemptLimiter
	Clock    attendance.Clock
	Logger   *slog.Logger
	Health   map[string]HealthCheck
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config, d Deps) (*gin.Engine, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if d.CheckIns == nil || d.Codes == nil || d.Reports == nil || d.Admin == nil || d.AuditLog == nil || d.Limiter == nil {
		return nil, fmt.Errorf("handler dependencies are incomplete")
	}
	if d.Clock == nil {
		d.Clock = attendance.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	h := &Handler{
		checkins: d.CheckIns,
		codes:    d.Codes,
		reports:  d.Reports,
		admin:    d.Admin,
		auditLog: d.AuditLog,
		limiter:  d.Limiter,
		login:    httpmiddleware.NewSimpleTokenBucket(cfg.LoginPerMin, cfg.LoginPerMin),
		verifier: auth.Verifier{SigningKey: cfg.Secret, Issuer: cfg.Issuer, Now: d.Clock.Now},
		clock:    d.Clock,
		logger:   d.Logger,
		health:   d.Health,
		snapDir:  cfg.SnapDir,
		issuer:   cfg.Issuer,
		tokenTTL: cfg.TokenTTL,
	}
	h.limiter.Reject = h.tooManyAttempts
	h.login.Reject = func(c *gin.Context) {
		if c.Request.Method == http.MethodPost && c.ContentType() == "application/json" {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
			return
		}
		h.render(c, http.StatusTooManyRequests, "error.tmpl", page{
			Title:   "Too many attempts",
			Message: "Too many login attempts. Wait a minute and try again.",
			Back:    "/admin/login",
			Flashes: []string{},
		})
	}

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.RequestLogger(d.Logger, "/healthz", "/metrics"))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           24 * time.Hour,
		}))
	}
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(sessions.Sessions(SessionCookie, store))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.healthz)

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/kiosk") })
	r.GET("/kiosk", h.kioskForm)
	r.POST("/kiosk", h.limiter.GinMiddleware(), h.kioskSubmit)

	r.GET("/admin/login", h.loginForm)
	r.POST("/admin/login", h.login.GinMiddleware(), h.loginSubmit)
	r.GET("/admin/logout", h.logout)

	admin := r.Group("/admin", auth.RequireAdmin(h.verifier, "/admin/login"))
	admin.GET("", h.dashboard)
	admin.GET("/session-code", h.sessionCode)
	admin.GET("/session-code.png", h.sessionCodeQR)
	admin.POST("/students", h.addStudent)
	admin.GET("/reports", h.reportPage)
	admin.GET("/reports/export", h.reportExport)
	admin.GET("/password", h.passwordForm)
	admin.POST("/password", h.passwordSubmit)
	admin.GET("/audit", h.auditPage)

	r.GET("/snapshots/:file", auth.RequireAdmin(h.verifier, "/admin/login"), h.snapshot)

	r.POST("/api/v1/token", h.login.GinMiddleware(), h.issueToken)
	api := r.Group("/api/v1", auth.BearerAuth(h.verifier))
	api.GET("/report", h.apiReport)
	api.GET("/dashboard", func(c *gin.Context) {
		dash, err := h.admin.Dashboard(c.Request.Context(), h.codes)
		if err != nil {
			h.logger.Error("api dashboard failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
			return
		}
		c.JSON(http.StatusOK, dash)
	})

	return r, nil
}
