package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	costingdomain "github.com/railzwaylabs/recon/internal/costing/domain"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	pipelinedomain "github.com/railzwaylabs/recon/internal/pipeline/domain"
	"github.com/railzwaylabs/recon/pkg/db"
)

var errInvalidRequest = errors.New("invalid_request")

func invalidRequestError() error {
	return errInvalidRequest
}

type errorResponse struct {
	Error string `json:"error"`
}

var errorStatus = []struct {
	err    error
	status int
}{
	{errInvalidRequest, http.StatusBadRequest},
	{ledgerdomain.ErrSnapshotNotFound, http.StatusNotFound},
	{ledgerdomain.ErrInvalidOrderID, http.StatusBadRequest},
	{ledgerdomain.ErrNegativePrice, http.StatusBadRequest},
	{ledgerdomain.ErrInvalidName, http.StatusBadRequest},
	{ledgerdomain.ErrInvalidScanCode, http.StatusBadRequest},
	{costingdomain.ErrInvalidSKU, http.StatusBadRequest},
	{costingdomain.ErrNegativeCost, http.StatusBadRequest},
	{costingdomain.ErrCostNotFound, http.StatusNotFound},
	{costingdomain.ErrRecalcInProgress, http.StatusConflict},
	{pipelinedomain.ErrNoInput, http.StatusBadRequest},
	{db.ErrBusy, http.StatusServiceUnavailable},
}

// AbortWithError maps domain sentinels to a status and a stable error code.
// Anything unrecognised is a 500 with the detail kept in the log.
func AbortWithError(c *gin.Context, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			c.AbortWithStatusJSON(m.status, errorResponse{Error: m.err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal_error"})
}
