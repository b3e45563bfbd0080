package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/recon/internal/migration"
)

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
	ReadinessStateOptional ReadinessState = "optional"
)

type ReadinessIssue struct {
	ID       string            `json:"id"`
	Status   ReadinessState    `json:"status"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

type ReadinessResponse struct {
	SystemState ReadinessState   `json:"system_state"`
	Issues      []ReadinessIssue `json:"issues"`
}

func (s *Server) RegisterSystemRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/ready", s.GetSystemReadiness)
}

// GetSystemReadiness reports whether the store is reachable and migrated.
// Redis is optional: without it recalculation locks stay in-process.
func (s *Server) GetSystemReadiness(c *gin.Context) {
	ctx := c.Request.Context()

	issues := []ReadinessIssue{
		s.checkDatabase(ctx),
		s.checkSchema(ctx),
		s.checkRedis(ctx),
	}

	state := ReadinessStateReady
	status := http.StatusOK
	for _, issue := range issues {
		if issue.Status == ReadinessStateNotReady {
			state = ReadinessStateNotReady
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, ReadinessResponse{SystemState: state, Issues: issues})
}

func notReady(id string, err error) ReadinessIssue {
	return ReadinessIssue{
		ID:       id,
		Status:   ReadinessStateNotReady,
		Evidence: map[string]string{"error": err.Error()},
	}
}

func (s *Server) checkDatabase(ctx context.Context) ReadinessIssue {
	sqlDB, err := s.db.DB()
	if err != nil {
		return notReady("database_reachable", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return notReady("database_reachable", err)
	}
	return ReadinessIssue{ID: "database_reachable", Status: ReadinessStateReady}
}

func (s *Server) checkSchema(ctx context.Context) ReadinessIssue {
	const id = "schema_current"
	latest, err := migration.LatestMigrationVersion()
	if err != nil {
		return notReady(id, err)
	}
	state, err := migration.CurrentSchemaState(ctx, s.db)
	if err != nil {
		return notReady(id, err)
	}
	want := fmt.Sprintf("%d", latest)
	if state == nil || state.SchemaVersion != want {
		got := "none"
		if state != nil {
			got = state.SchemaVersion
		}
		return ReadinessIssue{
			ID:       id,
			Status:   ReadinessStateNotReady,
			Evidence: map[string]string{"schema_version": got, "expected": want},
		}
	}
	return ReadinessIssue{ID: id, Status: ReadinessStateReady}
}

func (s *Server) checkRedis(ctx context.Context) ReadinessIssue {
	const id = "redis_lock"
	if s.redis == nil {
		return ReadinessIssue{ID: id, Status: ReadinessStateOptional}
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return notReady(id, err)
	}
	return ReadinessIssue{ID: id, Status: ReadinessStateReady}
}
