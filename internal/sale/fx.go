package sale

import (
	"github.com/smallhaul/tradeledger/internal/sale/repository"
	"github.com/smallhaul/tradeledger/internal/sale/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sale.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
