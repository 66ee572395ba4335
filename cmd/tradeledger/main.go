package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallhaul/tradeledger/internal/audit"
	"github.com/smallhaul/tradeledger/internal/clock"
	"github.com/smallhaul/tradeledger/internal/config"
	"github.com/smallhaul/tradeledger/internal/customer"
	"github.com/smallhaul/tradeledger/internal/invoice"
	"github.com/smallhaul/tradeledger/internal/logger"
	"github.com/smallhaul/tradeledger/internal/metrics"
	"github.com/smallhaul/tradeledger/internal/payment"
	"github.com/smallhaul/tradeledger/internal/product"
	"github.com/smallhaul/tradeledger/internal/sale"
	"github.com/smallhaul/tradeledger/internal/sequence"
	"github.com/smallhaul/tradeledger/internal/server"
	"github.com/smallhaul/tradeledger/internal/snapshot"
	"github.com/smallhaul/tradeledger/internal/truck"
	"github.com/smallhaul/tradeledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,

		// Ledger domains
		audit.Module,
		sequence.Module,
		truck.Module,
		product.Module,
		customer.Module,
		sale.Module,
		invoice.Module,
		payment.Module,

		// Outer surfaces
		server.Module,
		snapshot.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
