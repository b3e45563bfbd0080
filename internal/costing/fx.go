package costing

import (
	"context"

	"github.com/railzwaylabs/recon/internal/costing/domain"
	"github.com/railzwaylabs/recon/internal/costing/repository"
	"github.com/railzwaylabs/recon/internal/costing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("costing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(drainOnStop),
)

func drainOnStop(lc fx.Lifecycle, svc domain.Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				svc.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
