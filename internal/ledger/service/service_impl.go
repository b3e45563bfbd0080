package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/recon/internal/clock"
	"github.com/railzwaylabs/recon/internal/config"
	"github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
	Cfg   config.Config
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	repo           domain.Repository
	genID          *snowflake.Node
	clock          clock.Clock
	defaultCountry string
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("ledger.service"),
		repo:           p.Repo,
		genID:          p.GenID,
		clock:          p.Clock,
		defaultCountry: p.Cfg.DefaultCountry,
	}
}

func (s *Service) CreateSnapshot(ctx context.Context, req domain.CreateSnapshotRequest) (*domain.Snapshot, error) {
	now := s.clock.Now(ctx)
	week, year := normalize.ISOWeek(&now)

	var created domain.Snapshot
	err := s.db.Transaction(func(tx *gorm.DB) error {
		maxID, err := s.repo.MaxSnapshotID(ctx, tx)
		if err != nil {
			return err
		}
		next := domain.LegacySnapshotID
		if maxID != nil {
			next = *maxID + 1
		}

		label := strings.TrimSpace(req.Label)
		if label == "" {
			label = fmt.Sprintf("Week %d - %d", week, year)
		}

		created = domain.Snapshot{
			ID:         next,
			Label:      label,
			WeekNumber: week,
			Year:       year,
			Notes:      strings.TrimSpace(req.Notes),
			CreatedAt:  now,
		}
		return s.repo.InsertSnapshot(ctx, tx, &created)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("snapshot created",
		zap.Int64("snapshot_id", created.ID),
		zap.String("label", created.Label),
	)
	return &created, nil
}

// ActiveSnapshot is the snapshot with the highest id. An empty store gets the
// legacy snapshot so ingestion always has a target.
func (s *Service) ActiveSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	maxID, err := s.repo.MaxSnapshotID(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if maxID == nil {
		return s.CreateSnapshot(ctx, domain.CreateSnapshotRequest{Label: "Legacy"})
	}
	return s.GetSnapshot(ctx, *maxID)
}

func (s *Service) GetSnapshot(ctx context.Context, id int64) (*domain.Snapshot, error) {
	snap, err := s.repo.FindSnapshot(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *Service) ListSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	return s.repo.ListSnapshots(ctx, s.db)
}

// ResetSnapshot clears orders and collections of one snapshot. The snapshot
// row, product costs and other snapshots are untouched.
func (s *Service) ResetSnapshot(ctx context.Context, id int64) (domain.ResetResult, error) {
	if _, err := s.GetSnapshot(ctx, id); err != nil {
		return domain.ResetResult{}, err
	}

	result := domain.ResetResult{SnapshotID: id}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		orders, collections, err := s.repo.DeleteSnapshotData(ctx, tx, id)
		if err != nil {
			return err
		}
		result.OrdersDeleted = orders
		result.CollectionsDeleted = collections
		return nil
	})
	if err != nil {
		return domain.ResetResult{}, err
	}

	s.log.Info("snapshot reset",
		zap.Int64("snapshot_id", id),
		zap.Int64("orders_deleted", result.OrdersDeleted),
		zap.Int64("collections_deleted", result.CollectionsDeleted),
	)
	return result, nil
}

func (s *Service) ListPlatforms(ctx context.Context) ([]domain.Platform, error) {
	return s.repo.ListPlatforms(ctx, s.db)
}

func (s *Service) SavePlatform(ctx context.Context, p domain.Platform) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return domain.ErrInvalidName
	}
	return s.repo.UpsertPlatform(ctx, s.db, &p)
}

func (s *Service) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.repo.ListAccounts(ctx, s.db)
}

func (s *Service) SaveAccount(ctx context.Context, a domain.Account) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return domain.ErrInvalidName
	}
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	return s.repo.UpsertAccount(ctx, s.db, &a)
}

func (s *Service) RecordFileImport(ctx context.Context, f domain.FileImport) error {
	if f.ID == 0 {
		f.ID = s.genID.Generate().Int64()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.clock.Now(ctx)
	}
	return s.repo.InsertFileImport(ctx, s.db, &f)
}

func (s *Service) ListFileImports(ctx context.Context, runID string) ([]domain.FileImport, error) {
	return s.repo.ListFileImports(ctx, s.db, strings.TrimSpace(runID))
}
