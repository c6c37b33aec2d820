package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	stripego "github.com/stripe/stripe-go/v80"

	"storefront-backend/internal/domain"
	"storefront-backend/internal/usecase"
)

const (
	requestIDHeader = "X-Request-Id"
	maxWebhookBody  = 64 << 10
)

type Server struct {
	Orders   *usecase.OrderService
	Rewards  *usecase.RewardService
	Auth     *usecase.AuthService
	Verifier usecase.WebhookVerifier
	// Queue receives webhook reconciliations that failed; nil disables retry.
	Queue usecase.ReconcileQueue

	router *gin.Engine
}

func New(s *Server) *Server {
	r := gin.New()
	r.Use(requestID(), requestLogger(), gin.Recovery(), cors())
	s.router = r
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.router.Group("/api")
	{
		api.POST("/webhooks/stripe", s.handleStripeWebhook)
		api.POST("/orders/claim", s.handleClaim)
		api.GET("/orders", s.handleListOrders)
		api.GET("/rewards", s.handleRewards)
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = c.GetHeader("Idempotency-Key")
		}
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestId", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString("requestId"),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Info("request")
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "cannot read body")
		return
	}
	ev, err := s.Verifier.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.WithError(err).Warn("stripe webhook rejected")
		s.err(c, http.StatusBadRequest, "SignatureFailure", "invalid signature")
		return
	}
	if ev.Type != string(stripego.EventTypeCheckoutSessionCompleted) {
		s.err(c, http.StatusBadRequest, "BadRequest", "unhandled event type "+ev.Type)
		return
	}

	logCtx := log.WithFields(log.Fields{"event_id": ev.ID, "session_id": ev.SessionID})
	res, err := s.Orders.Reconcile(c.Request.Context(), ev.SessionID, domain.Identity{}, domain.SourceWebhook)
	if err != nil {
		logCtx.WithError(err).Error("webhook reconciliation failed")
		s.enqueueRetry(c, usecase.ReconcileJob{SessionID: ev.SessionID, EventID: ev.ID})
	} else {
		logCtx.WithFields(log.Fields{"status": res.Outcome, "order_id": res.Order.ID}).Info("webhook reconciled")
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) enqueueRetry(c *gin.Context, job usecase.ReconcileJob) {
	if s.Queue == nil || strings.TrimSpace(job.SessionID) == "" {
		return
	}
	if err := s.Queue.Enqueue(c.Request.Context(), job); err != nil {
		log.WithError(err).WithField("session_id", job.SessionID).Error("enqueue reconcile retry")
	}
}

type claimReq struct {
	SessionID      string `json:"session_id"`
	SessionIDCamel string `json:"sessionId"`
}

func (s *Server) handleClaim(c *gin.Context) {
	id, ok := s.identity(c)
	if !ok {
		return
	}
	var req claimReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = req.SessionIDCamel
	}
	res, err := s.Orders.Reconcile(c.Request.Context(), sessionID, id, domain.SourceClaim)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": res.Outcome, "orderId": res.Order.ID})
}

func (s *Server) handleListOrders(c *gin.Context) {
	id, ok := s.identity(c)
	if !ok {
		return
	}
	page := cast.ToInt(c.Query("page"))
	pageSize := cast.ToInt(c.Query("pageSize"))
	orders, total, err := s.Orders.List(c.Request.Context(), id, page, pageSize)
	if err != nil {
		s.fail(c, err)
		return
	}
	if page < 1 {
		page = 1
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total, "page": page})
}

func (s *Server) handleRewards(c *gin.Context) {
	id, ok := s.identity(c)
	if !ok {
		return
	}
	st, err := s.Rewards.Status(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// identity resolves the bearer token; on failure it writes the 401 itself.
func (s *Server) identity(c *gin.Context) (domain.Identity, bool) {
	id, err := s.Auth.Verify(usecase.BearerToken(c.GetHeader("Authorization")))
	if err != nil {
		s.err(c, http.StatusUnauthorized, "Unauthorized", "valid bearer token required")
		return domain.Identity{}, false
	}
	return id, true
}

func (s *Server) fail(c *gin.Context, err error) {
	var (
		bad      usecase.ErrBadRequest
		unauth   usecase.ErrUnauthorized
		notFound usecase.ErrNotFound
	)
	switch {
	case errors.As(err, &bad):
		s.err(c, http.StatusBadRequest, "BadRequest", bad.Error())
	case errors.As(err, &unauth):
		s.err(c, http.StatusUnauthorized, "Unauthorized", "valid bearer token required")
	case errors.As(err, &notFound):
		s.err(c, http.StatusNotFound, "NotFound", notFound.Error())
	default:
		log.WithError(err).WithField("request_id", c.GetString("requestId")).Error("request failed")
		s.err(c, http.StatusInternalServerError, "ServerError", "internal error")
	}
}

func (s *Server) err(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   msg,
			"requestId": c.GetString("requestId"),
		},
	})
}
