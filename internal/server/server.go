package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallhaul/tradeledger/internal/audit/domain"
	"github.com/smallhaul/tradeledger/internal/config"
	customerdomain "github.com/smallhaul/tradeledger/internal/customer/domain"
	invoicedomain "github.com/smallhaul/tradeledger/internal/invoice/domain"
	"github.com/smallhaul/tradeledger/internal/metrics"
	paymentdomain "github.com/smallhaul/tradeledger/internal/payment/domain"
	productdomain "github.com/smallhaul/tradeledger/internal/product/domain"
	saledomain "github.com/smallhaul/tradeledger/internal/sale/domain"
	truckdomain "github.com/smallhaul/tradeledger/internal/truck/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	truckSvc    truckdomain.Service
	productSvc  productdomain.Service
	customerSvc customerdomain.Service
	saleSvc     saledomain.Service
	invoiceSvc  invoicedomain.Service
	paymentSvc  paymentdomain.Service
	auditSvc    auditdomain.Service
}

type Params struct {
	fx.In

	Engine      *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	TruckSvc    truckdomain.Service
	ProductSvc  productdomain.Service
	CustomerSvc customerdomain.Service
	SaleSvc     saledomain.Service
	InvoiceSvc  invoicedomain.Service
	PaymentSvc  paymentdomain.Service
	AuditSvc    auditdomain.Service
}

func NewEngine(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIdentityMiddleware())
	r.Use(metrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	return r
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:      p.Engine,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		truckSvc:    p.TruckSvc,
		productSvc:  p.ProductSvc,
		customerSvc: p.CustomerSvc,
		saleSvc:     p.SaleSvc,
		invoiceSvc:  p.InvoiceSvc,
		paymentSvc:  p.PaymentSvc,
		auditSvc:    p.AuditSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/trucks", s.CreateTruck)
	v1.GET("/trucks", s.ListTrucks)
	v1.GET("/trucks/:id", s.GetTruck)
	v1.DELETE("/trucks/:id", s.DeactivateTruck)

	v1.POST("/products", s.CreateProduct)
	v1.GET("/products", s.ListProducts)
	v1.GET("/products/:id", s.GetProduct)
	v1.PATCH("/products/:id/price", s.UpdateProductPrice)

	v1.POST("/customers", s.CreateCustomer)
	v1.GET("/customers", s.ListCustomers)
	v1.GET("/customers/:id", s.GetCustomer)
	v1.PATCH("/customers/:id", s.UpdateCustomer)
	v1.DELETE("/customers/:id", s.DeactivateCustomer)
	v1.POST("/customers/:id/merge", s.MergeCustomer)

	v1.POST("/sales", s.CreateSale)
	v1.GET("/sales", s.ListSales)
	v1.GET("/sales/:id", s.GetSale)

	v1.POST("/invoices", s.CreateInvoice)
	v1.GET("/invoices", s.ListInvoices)
	v1.GET("/invoices/:id", s.GetInvoice)
	v1.POST("/invoices/:id/issue", s.IssueInvoice)
	v1.POST("/invoices/:id/cancel", s.CancelInvoice)
	v1.POST("/invoices/:id/sales", s.AddSaleToInvoice)
	v1.DELETE("/invoices/:id/sales/:saleID", s.RemoveSaleFromInvoice)
	v1.GET("/invoices/:id/summary", s.InvoiceSummary)

	v1.POST("/payments", s.RecordPayment)
	v1.DELETE("/payments/:id", s.ReversePayment)

	v1.GET("/audit-logs", s.ListAuditLogs)
}

func run(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger, _ *Server) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)
