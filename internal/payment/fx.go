package payment

import (
	"github.com/smallhaul/tradeledger/internal/payment/repository"
	"github.com/smallhaul/tradeledger/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
