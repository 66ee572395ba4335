package customer

import (
	"github.com/smallhaul/tradeledger/internal/customer/repository"
	"github.com/smallhaul/tradeledger/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
