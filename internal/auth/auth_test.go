package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const testKey = "test-signing-key"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIssueParse(t *testing.T) {
	tok, err := Issue("admin", RoleAdmin, "kiosk", testKey, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := Parse(tok.Value, testKey, "kiosk", nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Subject != "admin" || claims.Role != RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParse_Rejects(t *testing.T) {
	valid, _ := Issue("admin", RoleAdmin, "kiosk", testKey, time.Now(), time.Hour)
	expired, _ := Issue("admin", RoleAdmin, "kiosk", testKey, time.Now().Add(-2*time.Hour), time.Hour)

	tests := []struct {
		name   string
		token  string
		key    string
		issuer string
	}{
		{"wrong key", valid.Value, "other-key", "kiosk"},
		{"wrong issuer", valid.Value, testKey, "someone-else"},
		{"expired", expired.Value, testKey, "kiosk"},
		{"garbage", "not.a.token", testKey, "kiosk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.token, tt.key, tt.issuer, nil); err == nil {
				t.Error("Parse() error = nil")
			}
		})
	}
}

func TestIssue_EmptyKey(t *testing.T) {
	if _, err := Issue("admin", RoleAdmin, "kiosk", "", time.Now(), time.Hour); err == nil {
		t.Error("Issue() with empty key error = nil")
	}
}

func TestVerifier_RequiresAdminRole(t *testing.T) {
	v := Verifier{SigningKey: testKey, Issuer: "kiosk"}
	device, _ := Issue("dev-1", "device", "kiosk", testKey, time.Now(), time.Hour)
	if _, ok := v.Verify(device.Value); ok {
		t.Error("Verify() accepted a non-admin role")
	}
}

func TestVerifier_UsesIssuingClock(t *testing.T) {
	issuedAt := time.Date(2025, 1, 15, 9, 0, 0, 0, time.Local)
	tok, err := Issue("admin", RoleAdmin, "kiosk", testKey, issuedAt, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	v := Verifier{SigningKey: testKey, Issuer: "kiosk", Now: func() time.Time { return issuedAt.Add(30 * time.Minute) }}
	if _, ok := v.Verify(tok.Value); !ok {
		t.Error("Verify() rejected a token that is valid on the issuing clock")
	}

	v.Now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	if _, ok := v.Verify(tok.Value); ok {
		t.Error("Verify() accepted a token expired on the issuing clock")
	}
}

func newRouter(v Verifier) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("kiosk", cookie.NewStore([]byte("cookie-secret"))))
	r.GET("/login-as", func(c *gin.Context) {
		tok, _ := Issue("admin", RoleAdmin, v.Issuer, v.SigningKey, time.Now(), time.Hour)
		s := sessions.Default(c)
		s.Set(SessionTokenKey, tok.Value)
		_ = s.Save()
		c.Status(http.StatusNoContent)
	})
	r.GET("/admin", RequireAdmin(v, "/admin/login"), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentAdmin(c))
	})
	r.GET("/api", BearerAuth(v), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentAdmin(c))
	})
	return r
}

func TestRequireAdmin(t *testing.T) {
	v := Verifier{SigningKey: testKey, Issuer: "kiosk"}
	r := newRouter(v)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/login" {
		t.Errorf("anonymous: status = %d, location = %q", w.Code, w.Header().Get("Location"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login-as", nil))
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "admin" {
		t.Errorf("session token: status = %d, body = %q", w.Code, w.Body.String())
	}

	tok, _ := Issue("admin", RoleAdmin, "kiosk", testKey, time.Now(), time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("bearer token: status = %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	v := Verifier{SigningKey: testKey, Issuer: "kiosk"}
	r := newRouter(v)
	tok, _ := Issue("admin", RoleAdmin, "kiosk", testKey, time.Now(), time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + tok.Value, http.StatusOK},
		{"lowercase scheme", "bearer " + tok.Value, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
