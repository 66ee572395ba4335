package product

import (
	"github.com/smallhaul/tradeledger/internal/product/repository"
	"github.com/smallhaul/tradeledger/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
