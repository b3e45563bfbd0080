package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type returnScanRequest struct {
	Code string `json:"code"`
	Note string `json:"note"`
}

func (s *Server) RecordReturnScan(c *gin.Context) {
	var req returnScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	inserted, err := s.ledgerSvc.RecordReturnScan(c.Request.Context(), req.Code, req.Note)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": gin.H{"code": req.Code, "new": inserted}})
}

func (s *Server) GetReturnWarnings(c *gin.Context) {
	id, ok := s.snapshotID(c)
	if !ok {
		return
	}
	warnings, err := s.ledgerSvc.ReturnWarnings(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, warnings)
}
