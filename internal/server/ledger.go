package server

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/report"
)

func (s *Server) ListSnapshots(c *gin.Context) {
	snaps, err := s.ledgerSvc.ListSnapshots(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, snaps)
}

func (s *Server) CreateSnapshot(c *gin.Context) {
	var req ledgerdomain.CreateSnapshotRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	snap, err := s.ledgerSvc.CreateSnapshot(c.Request.Context(), ledgerdomain.CreateSnapshotRequest{
		Label: strings.TrimSpace(req.Label),
		Notes: strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": snap})
}

func (s *Server) GetActiveSnapshot(c *gin.Context) {
	snap, err := s.ledgerSvc.ActiveSnapshot(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, snap)
}

func (s *Server) ResetSnapshot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	result, err := s.ledgerSvc.ResetSnapshot(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

func (s *Server) GetStats(c *gin.Context) {
	id, ok := s.snapshotID(c)
	if !ok {
		return
	}
	stats, err := s.ledgerSvc.Stats(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, stats)
}

func (s *Server) GetPlatformBreakdown(c *gin.Context) {
	id, ok := s.snapshotID(c)
	if !ok {
		return
	}
	breakdown, err := s.ledgerSvc.PlatformBreakdown(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, breakdown)
}

func reportFilter(c *gin.Context) ledgerdomain.ReportFilter {
	outstanding, _ := strconv.ParseBool(c.Query("outstanding"))
	return ledgerdomain.ReportFilter{
		Outstanding: outstanding,
		Platform:    c.Query("platform"),
	}
}

func (s *Server) ListReportRows(c *gin.Context) {
	id, ok := s.snapshotID(c)
	if !ok {
		return
	}
	rows, err := s.ledgerSvc.ReportRows(c.Request.Context(), id, reportFilter(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, rows)
}

func (s *Server) ExportReport(c *gin.Context) {
	id, ok := s.snapshotID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	snap, err := s.ledgerSvc.GetSnapshot(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	rows, err := s.ledgerSvc.ReportRows(ctx, id, reportFilter(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rows); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.FileName(*snap, time.Now())+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) ListWeeklyReports(c *gin.Context) {
	reports, err := s.ledgerSvc.ListWeeklyReports(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, reports)
}

func (s *Server) ListPlatforms(c *gin.Context) {
	items, err := s.ledgerSvc.ListPlatforms(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

type savePlatformRequest struct {
	CommissionRate  float64 `json:"commission_rate"`
	TaxRate         float64 `json:"tax_rate"`
	ShippingDefault float64 `json:"shipping_default"`
}

func (s *Server) SavePlatform(c *gin.Context) {
	var req savePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	p := ledgerdomain.Platform{
		Name:            strings.TrimSpace(c.Param("name")),
		CommissionRate:  req.CommissionRate,
		TaxRate:         req.TaxRate,
		ShippingDefault: req.ShippingDefault,
	}
	if err := s.ledgerSvc.SavePlatform(c.Request.Context(), p); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, p)
}

func (s *Server) ListAccounts(c *gin.Context) {
	items, err := s.ledgerSvc.ListAccounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, items)
}

type saveAccountRequest struct {
	Country               string  `json:"country"`
	FixedShipping         float64 `json:"fixed_shipping"`
	CostIncludesTax       bool    `json:"cost_includes_tax"`
	PaymentCommissionRate float64 `json:"payment_commission_rate"`
	TaxRate               float64 `json:"tax_rate"`
}

func (s *Server) SaveAccount(c *gin.Context) {
	var req saveAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	a := ledgerdomain.Account{
		Name:                  strings.TrimSpace(c.Param("name")),
		Country:               strings.TrimSpace(req.Country),
		FixedShipping:         req.FixedShipping,
		CostIncludesTax:       req.CostIncludesTax,
		PaymentCommissionRate: req.PaymentCommissionRate,
		TaxRate:               req.TaxRate,
	}
	if err := s.ledgerSvc.SaveAccount(c.Request.Context(), a); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, a)
}
