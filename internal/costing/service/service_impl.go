package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/railzwaylabs/recon/internal/clock"
	"github.com/railzwaylabs/recon/internal/config"
	"github.com/railzwaylabs/recon/internal/costing/domain"
	"github.com/railzwaylabs/recon/internal/costmatch"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/normalize"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   domain.Repository
	Ledger ledgerdomain.Service
	Clock  clock.Clock
	Cfg    config.Config
	Redis  *redis.Client `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	ledger ledgerdomain.Service
	clock  clock.Clock
	lock   *snapshotLock

	mu      sync.Mutex
	running map[int64]bool
	pending map[int64]bool
	wg      sync.WaitGroup

	retryDelay    time.Duration
	retryAttempts int
}

const triggerRetryDelay = 2 * time.Second

func New(p Params) domain.Service {
	log := p.Log.Named("costing.service")
	lock := newSnapshotLock(p.Redis, p.Cfg.RecalcLockTTL, log)
	return &Service{
		db:            p.DB,
		log:           log,
		repo:          p.Repo,
		ledger:        p.Ledger,
		clock:         p.Clock,
		lock:          lock,
		running:       make(map[int64]bool),
		pending:       make(map[int64]bool),
		retryDelay:    triggerRetryDelay,
		retryAttempts: int(lock.ttl/triggerRetryDelay) + 1,
	}
}

func (s *Service) ListCosts(ctx context.Context) ([]domain.ProductCost, error) {
	return s.repo.ListProductCosts(ctx, s.db)
}

func (s *Service) SetCost(ctx context.Context, req domain.SetCostRequest) (*domain.ProductCost, error) {
	item, err := s.save(ctx, req)
	if err != nil {
		return nil, err
	}
	s.triggerActive(ctx)
	return item, nil
}

func (s *Service) SetCosts(ctx context.Context, reqs []domain.SetCostRequest) (domain.BulkResult, error) {
	var result domain.BulkResult
	for _, req := range reqs {
		if _, err := s.save(ctx, req); err != nil {
			if isRejection(err) {
				result.Rejected++
				continue
			}
			return result, err
		}
		result.Saved++
	}
	if result.Saved > 0 {
		s.triggerActive(ctx)
	}
	s.log.Info("product costs saved",
		zap.Int("saved", result.Saved),
		zap.Int("rejected", result.Rejected),
	)
	return result, nil
}

func (s *Service) DeleteCost(ctx context.Context, sku string) error {
	deleted, err := s.repo.DeleteProductCost(ctx, s.db, strings.TrimSpace(sku))
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrCostNotFound
	}
	s.triggerActive(ctx)
	return nil
}

func (s *Service) save(ctx context.Context, req domain.SetCostRequest) (*domain.ProductCost, error) {
	sku := strings.TrimSpace(req.SKU)
	name := strings.TrimSpace(req.ProductName)
	if sku == "" && name != "" {
		sku = costmatch.AutoSKU(name)
	}
	if sku == "" {
		return nil, domain.ErrInvalidSKU
	}
	if req.Cost < 0 {
		return nil, domain.ErrNegativeCost
	}

	item := &domain.ProductCost{
		SKU:         sku,
		ProductName: name,
		Cost:        normalize.Round(req.Cost, 2),
		UpdatedAt:   s.clock.Now(ctx),
	}
	if err := s.repo.UpsertProductCost(ctx, s.db, item); err != nil {
		return nil, err
	}
	return s.repo.FindProductCost(ctx, s.db, sku)
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidSKU) || errors.Is(err, domain.ErrNegativeCost)
}

// triggerActive schedules a recalculation of the active snapshot.
func (s *Service) triggerActive(ctx context.Context) {
	snap, err := s.ledger.ActiveSnapshot(ctx)
	if err != nil {
		s.log.Warn("resolve active snapshot for recalculation", zap.Error(err))
		return
	}
	s.TriggerRecalculation(snap.ID)
}
