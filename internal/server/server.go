package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railzwaylabs/recon/internal/config"
	costingdomain "github.com/railzwaylabs/recon/internal/costing/domain"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	pipelinedomain "github.com/railzwaylabs/recon/internal/pipeline/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client `optional:"true"`
	Ledger   ledgerdomain.Service
	Costing  costingdomain.Service
	Pipeline pipelinedomain.Service
}

type Server struct {
	cfg    config.Config
	log    *zap.Logger
	db     *gorm.DB
	redis  *redis.Client
	engine *gin.Engine

	ledgerSvc   ledgerdomain.Service
	costingSvc  costingdomain.Service
	pipelineSvc pipelinedomain.Service
}

func NewServer(p Params) *Server {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		db:          p.DB,
		redis:       p.Redis,
		engine:      engine,
		ledgerSvc:   p.Ledger,
		costingSvc:  p.Costing,
		pipelineSvc: p.Pipeline,
	}
	engine.Use(requestID(), s.requestLogger())
	s.RegisterSystemRoutes()
	s.RegisterAPIRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	if s.cfg.MetricsEnabled {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := s.engine.Group("/api")

	api.GET("/snapshots", s.ListSnapshots)
	api.POST("/snapshots", s.CreateSnapshot)
	api.GET("/snapshots/active", s.GetActiveSnapshot)
	api.POST("/snapshots/:id/reset", s.ResetSnapshot)

	api.GET("/stats", s.GetStats)
	api.GET("/platforms/breakdown", s.GetPlatformBreakdown)
	api.GET("/report", s.ListReportRows)
	api.GET("/report/export", s.ExportReport)
	api.GET("/weekly-reports", s.ListWeeklyReports)

	api.GET("/platforms", s.ListPlatforms)
	api.PUT("/platforms/:name", s.SavePlatform)
	api.GET("/accounts", s.ListAccounts)
	api.PUT("/accounts/:name", s.SaveAccount)

	api.POST("/process", s.Process)

	api.GET("/costs", s.ListCosts)
	api.PUT("/costs", s.SetCost)
	api.POST("/costs/bulk", s.SetCosts)
	api.DELETE("/costs/:sku", s.DeleteCost)
	api.POST("/costs/recalculate", s.RecalculateCosts)

	api.POST("/returns/scans", s.RecordReturnScan)
	api.GET("/returns/warnings", s.GetReturnWarnings)
}

const requestIDHeader = "X-Request-ID"

// requestID keeps a caller supplied id or mints one, and echoes it back.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		rid := c.GetString(requestIDHeader)
		for _, e := range c.Errors {
			s.log.Error("request failed",
				zap.String("request_id", rid),
				zap.String("path", c.FullPath()),
				zap.Error(e.Err),
			)
		}
		s.log.Debug("request",
			zap.String("request_id", rid),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

// snapshotID reads ?snapshot_id=, falling back to the active snapshot.
func (s *Server) snapshotID(c *gin.Context) (int64, bool) {
	if raw := c.Query("snapshot_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return 0, false
		}
		return id, true
	}
	snap, err := s.ledgerSvc.ActiveSnapshot(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return 0, false
	}
	return snap.ID, true
}
