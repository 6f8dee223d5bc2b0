// Package api exposes the HTTP surface: instrument search, order submission
// and portfolio reads. Every error renders as {status, message}.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"broker-backend-go/internal/apperr"
	"broker-backend-go/internal/models"
	"broker-backend-go/internal/orders"
	"broker-backend-go/internal/portfolio"
)

// InstrumentSearcher is the search operation the handler depends on.
type InstrumentSearcher interface {
	Search(ctx context.Context, rawQuery string) ([]models.Instrument, error)
}

// OrderSubmitter is the order acceptance pipeline entry point.
type OrderSubmitter interface {
	Submit(ctx context.Context, req orders.CreateRequest) (models.Order, error)
}

// PortfolioReader computes a user's portfolio.
type PortfolioReader interface {
	Get(ctx context.Context, userID uint) (portfolio.Portfolio, error)
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Handler holds dependencies for the API endpoints.
type Handler struct {
	log        *zap.Logger
	instrument InstrumentSearcher
	order      OrderSubmitter
	portfolio  PortfolioReader
}

// NewHandler creates a new Handler.
func NewHandler(log *zap.Logger, instrument InstrumentSearcher, order OrderSubmitter, portfolio PortfolioReader) *Handler {
	return &Handler{log: log, instrument: instrument, order: order, portfolio: portfolio}
}

// NewRouter builds the gin engine with the three challenge endpoints.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/challenge/v1")
	v1.GET("/instrument/search/:id", h.SearchInstruments)
	v1.POST("/order", h.CreateOrder)
	v1.GET("/portfolio/user/:userId", h.GetPortfolio)

	return r
}

// SearchInstruments handles GET /challenge/v1/instrument/search/{id}.
func (h *Handler) SearchInstruments(c *gin.Context) {
	results, err := h.instrument.Search(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// CreateOrder handles POST /challenge/v1/order. A rejected order is a normal
// outcome and returns 200 with the persisted REJECTED order.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req orders.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  http.StatusBadRequest,
			Message: "invalid order payload",
		})
		return
	}

	order, err := h.order.Submit(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetPortfolio handles GET /challenge/v1/portfolio/user/{userId}.
func (h *Handler) GetPortfolio(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  http.StatusBadRequest,
			Message: "user id must be a positive integer",
		})
		return
	}

	p, err := h.portfolio.Get(c.Request.Context(), uint(userID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// writeError maps the error taxonomy to HTTP statuses: validation and
// data-corruption errors are 400, not-found 404, everything else a generic
// 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validationErr *apperr.ValidationError
		notFoundErr   *apperr.NotFoundError
		corruptionErr *apperr.DataCorruptionError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  http.StatusBadRequest,
			Message: validationErr.Error(),
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Status:  http.StatusNotFound,
			Message: notFoundErr.Error(),
		})
	case errors.As(err, &corruptionErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  http.StatusBadRequest,
			Message: corruptionErr.Error(),
		})
	default:
		h.log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Status:  http.StatusInternalServerError,
			Message: "An error occurred processing the request",
		})
	}
}
