package sequence

import (
	"github.com/smallhaul/tradeledger/internal/sequence/repository"
	"github.com/smallhaul/tradeledger/internal/sequence/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
