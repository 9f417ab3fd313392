// Package httpapi exposes the check-in engine over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"checkin/internal/accounts"
	"checkin/internal/attendance"
	"checkin/internal/audit"
	"checkin/internal/auth"
	"checkin/internal/httpmiddleware"
	"checkin/internal/metrics"
	"checkin/internal/options"
	"checkin/internal/permissions"
)

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) bool

// History lists the audit trail of a record.
type History interface {
	ForRecord(ctx context.Context, recordID string) ([]audit.Event, error)
}

// TokenIssuer signs tokens for the development login route.
type TokenIssuer func(email, name string) (auth.TokenPair, error)

// Config lists the router's collaborators. Options, History, Limiter,
// Gatherer, Issuer and Clock are optional.
type Config struct {
	Attendance  *attendance.Service
	Accounts    *accounts.Service
	Directory   auth.Directory
	Options     options.Editor
	Publisher   audit.Publisher
	History     History
	Limiter     httpmiddleware.Limiter
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
	Policy      attendance.Policy
	Checks      map[string]Checker
	CORSOrigins []string
	Issuer      TokenIssuer
	Clock       func() time.Time
}

type server struct {
	att       *attendance.Service
	accounts  *accounts.Service
	options   options.Editor
	publisher audit.Publisher
	history   History
	log       *zap.Logger
	policy    attendance.Policy
	checks    map[string]Checker
	issuer    TokenIssuer
	now       func() time.Time
}

// New builds the gin engine.
func New(cfg Config) *gin.Engine {
	s := &server{
		att:       cfg.Attendance,
		accounts:  cfg.Accounts,
		options:   cfg.Options,
		publisher: cfg.Publisher,
		history:   cfg.History,
		log:       cfg.Logger,
		policy:    cfg.Policy,
		checks:    cfg.Checks,
		issuer:    cfg.Issuer,
		now:       cfg.Clock,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.publisher == nil {
		s.publisher = audit.Discard{}
	}
	if s.policy == "" {
		s.policy = attendance.PolicyWarn
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = httpmiddleware.NewSimpleTokenBucket(120, 120)
	}
	limit := httpmiddleware.Middleware(limiter, cfg.Metrics, s.log)
	gate := cfg.Accounts.Gate()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())

	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/healthz", s.health)
	if s.issuer != nil {
		r.POST("/v1/dev/token", limit, s.devToken)
	}

	v1 := r.Group("/v1", auth.Authenticate(cfg.Directory, cfg.Accounts), limit)

	v1.GET("/me/capabilities", s.capabilities)
	v1.GET("/options", s.listOptions)
	v1.PUT("/options/:field", auth.RequirePrivileged(gate), s.replaceOptions)

	v1.POST("/validate", auth.RequirePermission(permissions.Register), s.validate)
	v1.POST("/records", auth.RequirePermission(permissions.Register), s.submit)
	v1.PATCH("/records/:id", auth.RequirePermission(permissions.EditAttendance), s.edit)
	v1.PUT("/records/:id/status", auth.RequirePermission(permissions.Attendance), s.setStatus)
	if s.history != nil {
		v1.GET("/records/:id/history", auth.RequirePermission(permissions.AuditLogs), s.recordHistory)
	}

	v1.GET("/duplicates", auth.RequirePermission(permissions.Attendance), s.duplicates)
	v1.GET("/similar", auth.RequirePermission(permissions.Attendance), s.similar)
	v1.POST("/scans", auth.RequirePermission(permissions.Attendance), s.scan)

	v1.GET("/reports/stats", auth.RequirePermission(permissions.Reports), s.report)

	users := v1.Group("/users", auth.RequireUserManager(gate))
	users.PUT("/:id/role", s.setRole)
	users.POST("/:id/deactivate", s.deactivate)
	users.POST("/reconcile", s.reconcile)

	return r
}

func (s *server) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range s.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (s *server) devToken(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Name  string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := s.issuer(accounts.NormalizeEmail(req.Email), req.Name)
	if err != nil {
		s.log.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, tokens)
}
