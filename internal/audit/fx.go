package audit

import (
	"github.com/smallhaul/tradeledger/internal/audit/repository"
	"github.com/smallhaul/tradeledger/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
