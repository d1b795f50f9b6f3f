package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vendorsync/internal/aggregate"
	"vendorsync/internal/api"
	"vendorsync/internal/dataservice"
	"vendorsync/internal/reconcile"
	"vendorsync/pkg/models"
)

type errorBody struct {
	Error string `json:"error"`
}

// fail maps an error to a status code and writes it as JSON.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var apiErr *api.APIError
	switch {
	case errors.Is(err, dataservice.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, dataservice.ErrInvoiceNotFound), errors.Is(err, api.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dataservice.ErrEmptyPatch),
		errors.Is(err, aggregate.ErrUnknownTab),
		errors.Is(err, api.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}
	_ = c.Error(err)
	c.JSON(status, errorBody{Error: err.Error()})
}

// respond writes v, or the error when err is non-nil.
func respond[T any](s *Server, c *gin.Context, v T, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) kpis(c *gin.Context) {
	v, err := s.dash.KPIs()
	respond(s, c, v, err)
}

func (s *Server) vendors(c *gin.Context) {
	v, err := s.dash.Vendors()
	respond(s, c, v, err)
}

func (s *Server) searchVendors(c *gin.Context) {
	all, err := s.dash.RawVendors()
	if err != nil {
		s.fail(c, err)
		return
	}
	matches := reconcile.SearchVendors(c.Query("q"), all)
	if matches == nil {
		matches = []models.Vendor{}
	}
	c.JSON(http.StatusOK, matches)
}

func (s *Server) alerts(c *gin.Context) {
	v, err := s.dash.Alerts()
	respond(s, c, v, err)
}

func (s *Server) renewals(c *gin.Context) {
	v, err := s.dash.Renewals()
	respond(s, c, v, err)
}

func (s *Server) calendar(c *gin.Context) {
	year, err := optionalInt(c, "year")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	month, err := optionalInt(c, "month")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if month != nil && (*month < 1 || *month > 12) {
		c.JSON(http.StatusBadRequest, errorBody{Error: "month must be between 1 and 12"})
		return
	}
	v, err := s.dash.CalendarEvents(year, month)
	respond(s, c, v, err)
}

func (s *Server) savings(c *gin.Context) {
	v, err := s.dash.SavingsSeries()
	respond(s, c, v, err)
}

func (s *Server) monthly(c *gin.Context) {
	v, err := s.dash.MonthlyTotals()
	respond(s, c, v, err)
}

func (s *Server) invoices(c *gin.Context) {
	v, err := s.dash.Invoices()
	respond(s, c, v, err)
}

func (s *Server) payments(c *gin.Context) {
	v, err := s.dash.Payments(c.DefaultQuery("tab", aggregate.TabOpen), c.Query("query"))
	if v == nil && err == nil {
		v = []models.Invoice{}
	}
	respond(s, c, v, err)
}

func (s *Server) totalSpend(c *gin.Context) {
	total, err := s.dash.TotalSpend()
	respond(s, c, gin.H{"totalSpend": total}, err)
}

func (s *Server) markPaid(c *gin.Context) {
	v, err := s.dash.MarkPaid(c.Request.Context(), c.Param("id"))
	respond(s, c, v, err)
}

func (s *Server) markUnpaid(c *gin.Context) {
	v, err := s.dash.MarkUnpaid(c.Request.Context(), c.Param("id"))
	respond(s, c, v, err)
}

func (s *Server) editInvoice(c *gin.Context) {
	var patch models.InvoicePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	v, err := s.dash.EditInvoice(c.Request.Context(), c.Param("id"), patch)
	respond(s, c, v, err)
}

func (s *Server) deleteInvoice(c *gin.Context) {
	if err := s.dash.DeleteInvoice(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) refresh(c *gin.Context) {
	if err := s.dash.Refresh(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	requestLog(c).Info().Msg("Dashboard refreshed")
	kpis, err := s.dash.KPIs()
	respond(s, c, kpis, err)
}

func optionalInt(c *gin.Context, key string) (*int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(key + " must be an integer")
	}
	return &n, nil
}
