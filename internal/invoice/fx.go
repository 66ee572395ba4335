package invoice

import (
	"github.com/smallhaul/tradeledger/internal/invoice/repository"
	"github.com/smallhaul/tradeledger/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
