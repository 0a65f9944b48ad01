package main

import (
	"context"
	"log"
	"net/http"

	"warehouse-admin/internal/adapters/web"
	"warehouse-admin/internal/config"
	"warehouse-admin/internal/core"
	"warehouse-admin/internal/db"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := newLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	svc := web.Services{
		Catalog:        core.NewCatalogService(pool),
		Ledger:         ledger,
		PurchaseOrders: core.NewPurchaseOrderService(pool, ledger),
		SalesOrders:    core.NewSalesOrderService(pool, ledger),
		Returns:        core.NewPurchaseReturnService(pool, ledger),
		Transfers:      core.NewTransferService(pool, ledger),
	}

	handler := web.NewHandler(svc, logger, cfg.Server.AllowedOrigins)

	logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := http.ListenAndServe(":"+cfg.Server.Port, handler); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}

func newLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = cfg.Encoding
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
