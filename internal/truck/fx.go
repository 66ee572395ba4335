package truck

import (
	"github.com/smallhaul/tradeledger/internal/truck/repository"
	"github.com/smallhaul/tradeledger/internal/truck/service"
	"go.uber.org/fx"
)

var Module = fx.Module("truck.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
