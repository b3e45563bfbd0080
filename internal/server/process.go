package server

import (
	"github.com/gin-gonic/gin"
	pipelinedomain "github.com/railzwaylabs/recon/internal/pipeline/domain"
)

type processRequest struct {
	Paths      []string `json:"paths"`
	Dir        string   `json:"dir"`
	SnapshotID *int64   `json:"snapshot_id"`
}

// Process runs the pipeline synchronously. An empty body processes the
// configured samples directory into the active snapshot.
func (s *Server) Process(c *gin.Context) {
	var req processRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	out, err := s.pipelineSvc.Run(c.Request.Context(), pipelinedomain.RunRequest{
		Paths:      req.Paths,
		Dir:        req.Dir,
		SnapshotID: req.SnapshotID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, out)
}
