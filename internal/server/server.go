// Package server exposes the order engine over HTTP: a JSON API for checkout,
// order reads and status transitions, a sales report endpoint, and a
// Server-Sent-Events stream carrying notification bus events to dashboards.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/nazeru/canteen-orders-go/internal/bus"
	"github.com/nazeru/canteen-orders-go/internal/order/domain"
	"github.com/nazeru/canteen-orders-go/internal/order/lifecycle"
	"github.com/nazeru/canteen-orders-go/internal/report"
	"github.com/nazeru/canteen-orders-go/pkg/idempotency"
	"github.com/nazeru/canteen-orders-go/pkg/metrics"
)

// Lifecycle is the slice of the manager the handlers need.
type Lifecycle interface {
	PlaceOrder(ctx context.Context, in lifecycle.PlaceOrderInput) (*lifecycle.OrderSummary, error)
	Transition(ctx context.Context, id domain.OrderID, newStatus domain.OrderStatus) error
	Cancel(ctx context.Context, id domain.OrderID) error
	Get(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
}

// Reporter generates the combined sales report document.
type Reporter interface {
	Generate(ctx context.Context, r report.Range) (*report.SalesReport, error)
}

type Server struct {
	orders  Lifecycle
	reports Reporter
	bus     *bus.Bus
	logger  *log.Entry
}

func New(orders Lifecycle, reports Reporter, b *bus.Bus, logger *log.Entry) *Server {
	return &Server{orders: orders, reports: reports, bus: b, logger: logger}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), metrics.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.POST("/orders", s.placeOrder)
	api.GET("/orders/:id", s.getOrder)
	api.GET("/orders/status/:status", s.listByStatus)
	api.PUT("/orders/:id/status", s.updateStatus)
	api.POST("/orders/:id/cancel", s.cancelOrder)
	api.GET("/reports/sales", s.salesReport)
	api.GET("/events", s.streamEvents)

	return r
}

type placeOrderRequest struct {
	StudentID string                    `json:"student_id"`
	Items     []lifecycle.RequestedItem `json:"items"`
}

func (s *Server) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	sum, err := s.orders.PlaceOrder(c.Request.Context(), lifecycle.PlaceOrderInput{
		StudentID:      req.StudentID,
		IdempotencyKey: idempotency.Key(c.Request),
		Items:          req.Items,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if sum.Replayed {
		c.JSON(http.StatusOK, sum)
		return
	}
	c.JSON(http.StatusCreated, sum)
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}
	order, err := s.orders.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) listByStatus(c *gin.Context) {
	status, err := domain.ParseStatus(c.Param("status"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	orders, err := s.orders.ListByStatus(c.Request.Context(), status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateStatus(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.orders.Transition(c.Request.Context(), id, status); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": status})
}

func (s *Server) cancelOrder(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}
	if err := s.orders.Cancel(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": domain.StatusCancelled})
}

func (s *Server) salesReport(c *gin.Context) {
	r, err := report.ParseRange(c.Query("range"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	doc, err := s.reports.Generate(c.Request.Context(), r)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// streamEvents is the SSE transport of the notification bus subscriber
// handle. Events are refresh triggers only; clients re-fetch order state.
func (s *Server) streamEvents(c *gin.Context) {
	sub := s.bus.Subscribe()
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			c.SSEvent(evt.Type, evt)
			c.Writer.Flush()
		}
	}
}

func parseOrderID(c *gin.Context) (domain.OrderID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return domain.OrderID(id), true
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		verr *domain.ValidationError
		nerr *domain.NotFoundError
		terr *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, gin.H{"error": nerr.Error()})
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{"error": terr.Error()})
	default:
		s.logger.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
