package handler

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"attendance-kiosk/internal/attendance"
	"attendance-kiosk/internal/audit"
	"attendance-kiosk/internal/auth"
	"attendance-kiosk/internal/export"
	"attendance-kiosk/internal/httpmiddleware"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// AuditLister reads recent audit events.
type AuditLister interface {
	List(ctx context.Context, limit int) ([]audit.Event, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the kiosk and admin pages.
type Handler struct {
	checkins *attendance.Service
	codes    *attendance.SessionCodes
	reports  *attendance.Reports
	admin    *attendance.AdminService
	auditLog AuditLister
	limiter  *httpmiddleware.AttemptLimiter
	login    *httpmiddleware.SimpleTokenBucket
	verifier auth.Verifier
	clock    attendance.Clock
	logger   *slog.Logger
	health   map[string]HealthCheck

	snapDir  string
	issuer   string
	tokenTTL time.Duration
}

// page is the data every template receives.
type page struct {
	Title    string
	Subtitle string
	Admin    bool
	Flashes  []string

	Code      string
	Result    attendance.Success
	Message   string
	Back      string
	Dashboard attendance.Dashboard
	Day       string
	Report    *attendance.Report
	Events    []audit.Event
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"clock": func(t time.Time) string { return t.Format("15:04:05") },
		"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	}).ParseFS(templateFS, "templates/*.tmpl")
}

func (h *Handler) render(c *gin.Context, status int, name string, p page) {
	if p.Flashes == nil {
		p.Flashes = takeFlashes(c)
	}
	c.HTML(status, name, p)
}

// fail logs err and renders a generic error page.
func (h *Handler) fail(c *gin.Context, err error, back string) {
	h.logger.Error("request failed", "path", c.Request.URL.Path, "request_id", c.GetString("request_id"), "error", err)
	h.render(c, http.StatusInternalServerError, "error.tmpl", page{
		Title:   "Error",
		Message: "Something went wrong. Please try again or tell the teacher.",
		Back:    back,
		Flashes: []string{},
	})
}

func flash(c *gin.Context, msg string) {
	s := sessions.Default(c)
	s.AddFlash(msg)
	_ = s.Save()
}

func takeFlashes(c *gin.Context) []string {
	s := sessions.Default(c)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = s.Save()
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if m, ok := f.(string); ok {
			out = append(out, m)
		}
	}
	return out
}

func (h *Handler) redirectWith(c *gin.Context, to, msg string) {
	if msg != "" {
		flash(c, msg)
	}
	c.Redirect(http.StatusFound, to)
}

// Kiosk

func (h *Handler) kioskForm(c *gin.Context) {
	code, err := h.codes.GetOrCreateTodayCode(c.Request.Context())
	if err != nil {
		h.fail(c, err, "/kiosk")
		return
	}
	h.render(c, http.StatusOK, "kiosk.tmpl", page{
		Title:    "Kiosk: Attendance",
		Subtitle: "Offline student self-check-in",
		Code:     code,
	})
}

func (h *Handler) kioskSubmit(c *gin.Context) {
	res, err := h.checkins.CheckIn(c.Request.Context(), attendance.Request{
		RollNo:      c.PostForm("roll_no"),
		PIN:         c.PostForm("pin"),
		SessionCode: c.PostForm("session_code"),
		Meta: attendance.Meta{
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		},
	})
	if err != nil {
		if rej, ok := attendance.AsRejection(err); ok {
			h.redirectWith(c, "/kiosk", rej.Message())
			return
		}
		h.fail(c, err, "/kiosk")
		return
	}
	h.render(c, http.StatusOK, "checked_in.tmpl", page{
		Title:    "Kiosk: Attendance",
		Subtitle: "Student self-check-in",
		Result:   res,
		Flashes:  []string{},
	})
}

func (h *Handler) tooManyAttempts(c *gin.Context) {
	h.render(c, http.StatusTooManyRequests, "error.tmpl", page{
		Title:   "Too many attempts",
		Message: "Too many attempts. Ask the teacher for help.",
		Back:    "/kiosk",
		Flashes: []string{},
	})
}

// Admin session

func (h *Handler) loginForm(c *gin.Context) {
	if _, ok := h.verifier.FromRequest(c); ok {
		c.Redirect(http.StatusFound, "/admin")
		return
	}
	h.render(c, http.StatusOK, "login.tmpl", page{Title: "Admin Login"})
}

func (h *Handler) loginSubmit(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	err := h.admin.Authenticate(c.Request.Context(), username, c.PostForm("password"))
	if err != nil {
		if rej, ok := attendance.AsRejection(err); ok {
			h.redirectWith(c, "/admin/login", rej.Message())
			return
		}
		h.fail(c, err, "/admin/login")
		return
	}
	tok, err := auth.Issue(username, auth.RoleAdmin, h.issuer, h.verifier.SigningKey, h.clock.Now(), h.tokenTTL)
	if err != nil {
		h.fail(c, fmt.Errorf("issue admin token: %w", err), "/admin/login")
		return
	}
	s := sessions.Default(c)
	s.Set(auth.SessionTokenKey, tok.Value)
	if err := s.Save(); err != nil {
		h.fail(c, fmt.Errorf("save session: %w", err), "/admin/login")
		return
	}
	c.Redirect(http.StatusFound, "/admin")
}

func (h *Handler) logout(c *gin.Context) {
	// Only the token is dropped; the attempt counter stays with the session.
	s := sessions.Default(c)
	s.Delete(auth.SessionTokenKey)
	_ = s.Save()
	c.Redirect(http.StatusFound, "/admin/login")
}

func (h *Handler) issueToken(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	if err := h.admin.Authenticate(c.Request.Context(), req.Username, req.Password); err != nil {
		if _, ok := attendance.AsRejection(err); ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid login"})
			return
		}
		h.logger.Error("token login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	tok, err := auth.Issue(strings.TrimSpace(req.Username), auth.RoleAdmin, h.issuer, h.verifier.SigningKey, h.clock.Now(), h.tokenTTL)
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"access_token": tok.Value, "expires_at": tok.ExpiresAt.Unix()})
}

// Admin pages

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.admin.Dashboard(c.Request.Context(), h.codes)
	if err != nil {
		h.fail(c, err, "/admin")
		return
	}
	h.render(c, http.StatusOK, "dashboard.tmpl", page{
		Title:     "Admin Dashboard",
		Subtitle:  "Attendance overview",
		Admin:     true,
		Dashboard: d,
	})
}

func (h *Handler) sessionCode(c *gin.Context) {
	ds, err := h.codes.Today(c.Request.Context())
	if err != nil {
		h.logger.Error("session code failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"day": ds.Day, "session_code": ds.Code})
}

func (h *Handler) sessionCodeQR(c *gin.Context) {
	code, err := h.codes.GetOrCreateTodayCode(c.Request.Context())
	if err != nil {
		h.logger.Error("session code failed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		h.logger.Error("qr encode failed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) addStudent(c *gin.Context) {
	st, err := h.admin.AddStudent(c.Request.Context(), attendance.NewStudent{
		RollNo:    c.PostForm("roll_no"),
		FullName:  c.PostForm("full_name"),
		ClassName: c.PostForm("class_name"),
		Section:   c.PostForm("section"),
		PIN:       c.PostForm("pin"),
	})
	if err != nil {
		if rej, ok := attendance.AsRejection(err); ok {
			h.redirectWith(c, "/admin", rej.Message())
			return
		}
		h.fail(c, err, "/admin")
		return
	}
	h.redirectWith(c, "/admin", fmt.Sprintf("Added student %s (%s).", st.FullName, st.RollNo))
}

func (h *Handler) dayParam(c *gin.Context) string {
	if day := strings.TrimSpace(c.Query("day")); day != "" {
		return day
	}
	return attendance.Day(h.clock.Now())
}

func (h *Handler) reportPage(c *gin.Context) {
	day := h.dayParam(c)
	rep, err := h.reports.Daily(c.Request.Context(), day)
	if err != nil {
		if rej, ok := attendance.AsRejection(err); ok {
			h.render(c, http.StatusBadRequest, "report.tmpl", page{
				Title: "Reports", Admin: true, Day: day, Flashes: []string{rej.Message()},
			})
			return
		}
		h.fail(c, err, "/admin/reports")
		return
	}
	h.render(c, http.StatusOK, "report.tmpl", page{
		Title:    "Reports",
		Subtitle: "Daily attendance",
		Admin:    true,
		Day:      day,
		Report:   &rep,
	})
}

func (h *Handler) reportExport(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	rep, err := h.reports.Daily(c.Request.Context(), h.dayParam(c))
	if err != nil {
		if rej, ok := attendance.AsRejection(err); ok {
			c.String(http.StatusBadRequest, rej.Message())
			return
		}
		h.fail(c, err, "/admin/reports")
		return
	}
	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(rep.Day, format)))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, rep, format); err != nil {
		h.logger.Error("report export failed", "day", rep.Day, "format", format, "error", err)
	}
}

func (h *Handler) passwordForm(c *gin.Context) {
	h.render(c, http.StatusOK, "password.tmpl", page{Title: "Change Password", Admin: true})
}

func (h *Handler) passwordSubmit(c *gin.Context) {
	err := h.admin.ChangePassword(c.Request.Context(), auth.CurrentAdmin(c),
		c.PostForm("old"), c.PostForm("new"), c.PostForm("new2"))
	if err != nil {
		if rej, ok := attendance.AsRejection(err); ok {
			h.redirectWith(c, "/admin/password", rej.Message())
			return
		}
		h.fail(c, err, "/admin/password")
		return
	}
	h.redirectWith(c, "/admin", "Password updated.")
}

func (h *Handler) auditPage(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.auditLog.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "/admin")
		return
	}
	h.render(c, http.StatusOK, "audit.tmpl", page{
		Title:    "Audit Log",
		Subtitle: "Most recent events first",
		Admin:    true,
		Events:   events,
	})
}

func (h *Handler) snapshot(c *gin.Context) {
	name := c.Param("file")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		c.Status(http.StatusNotFound)
		return
	}
	path := filepath.Join(h.snapDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(path)
}

// JSON API

func (h *Handler) apiReport(c *gin.Context) {
	rep, err := h.reports.Daily(c.Request.Context(), h.dayParam(c))
	if err != nil {
		if rej, ok := attendance.AsRejection(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": rej.Message()})
			return
		}
		h.logger.Error("api report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
