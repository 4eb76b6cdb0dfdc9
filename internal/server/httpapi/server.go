// Package httpapi serves the HTTP surface of the server: health checks,
// Prometheus metrics and a read-only threat report per vault.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	grpcserver "github.com/dmitrijs2005/vaultkeeper/internal/server/grpc"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

const (
	userIDKey       = "userID"
	shutdownTimeout = 10 * time.Second
)

// ThreatAssessor builds the threat report of a vault on behalf of a user.
type ThreatAssessor interface {
	Assess(ctx context.Context, vaultID, userID string) (*services.ThreatReport, error)
}

// Pinger checks that the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address   string
	threats   ThreatAssessor
	db        Pinger
	logger    logging.Logger
	jwtSecret []byte
	router    *gin.Engine
}

// NewServer builds the router. db may be nil, in which case /healthz does
// not check the database.
func NewServer(addr string, l logging.Logger, threats ThreatAssessor, db Pinger, secretKey string) (*Server, error) {
	if l == nil || threats == nil {
		return nil, fmt.Errorf("%w: http server needs a logger and a threat assessor", common.ErrorConfiguration)
	}

	s := &Server{
		address:   addr,
		threats:   threats,
		db:        db,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware())

	r.GET("/healthz", s.healthHandler)
	r.GET("/metrics", metrics.Handler())

	v1 := r.Group("/api/v1")
	v1.Use(s.bearerAuth())
	v1.GET("/vaults/:id/threat", s.threatHandler)

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve handles requests on lis until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) healthHandler(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn(c.Request.Context(), "health check failed", "error", err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bearerAuth accepts "Authorization: Bearer <access token>".
func (s *Server) bearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := auth.GetUserIDFromToken(strings.TrimSpace(token), s.jwtSecret)
		if err != nil {
			msg := common.ErrInvalidToken.Error()
			if errors.Is(err, common.ErrTokenExpired) {
				msg = common.ErrTokenExpired.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (s *Server) threatHandler(c *gin.Context) {
	report, err := s.threats.Assess(c.Request.Context(), c.Param("id"), c.GetString(userIDKey))
	if err != nil {
		code := httpStatus(err)
		if code == http.StatusInternalServerError {
			s.logger.Error(c.Request.Context(), "threat report failed", "vault_id", c.Param("id"), "error", err.Error())
			c.JSON(code, gin.H{"error": common.ErrorInternal.Error()})
			return
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, grpcserver.ThreatReportToWire(report))
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
