package pipeline

import (
	"github.com/railzwaylabs/recon/internal/pipeline/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pipeline.service",
	fx.Provide(service.New),
)
