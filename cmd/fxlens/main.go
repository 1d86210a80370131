package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fxlens/internal/app"
	fxcfg "fxlens/internal/config"
	"fxlens/internal/enrich"
	"fxlens/internal/gateway/binance"
	"fxlens/internal/gateway/frankfurter"
	"fxlens/internal/logger"
	"fxlens/internal/market"
	"fxlens/internal/pkg/circuit"
	transport "fxlens/internal/transport/http"
)

func main() {
	cfgPath := os.Getenv("FXLENS_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := fxcfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，标的=%s %s）", cfg.App.Env, cfg.Selection.Symbol, cfg.Selection.Interval)

	status := market.NewStatusBus(100)
	httpTimeout := time.Duration(cfg.Market.HTTPTimeoutSeconds) * time.Second
	crypto := binance.New(binance.Config{
		RESTBaseURL: cfg.Market.BinanceRESTURL,
		HTTPTimeout: httpTimeout,
	})
	forex := frankfurter.New(frankfurter.Config{
		BaseURL:     cfg.Market.FrankfurterURL,
		HTTPTimeout: httpTimeout,
		Status:      status,
	})
	defer crypto.Close()
	defer forex.Close()

	resolve := func(class market.Class) (market.Source, bool) {
		switch class {
		case market.ClassCrypto:
			return crypto, true
		case market.ClassForex:
			return forex, true
		default:
			return nil, false
		}
	}

	engine := app.NewEngine(cfg, resolve, status, buildEnricher(cfg))
	defer engine.Close()

	srv, err := transport.NewServer(cfg.App.HTTPAddr, engine)
	if err != nil {
		log.Fatalf("初始化 HTTP 服务失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx, cfg.Selection); err != nil {
		log.Fatalf("引擎启动失败: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("[http] listening on %s", cfg.App.HTTPAddr)
		return srv.Run(ctx)
	})
	g.Go(func() error {
		return fxcfg.Watch(ctx, cfgPath, func(next *fxcfg.Config) {
			logger.SetLevel(next.App.LogLevel)
			engine.SetIndicatorConfig(next.Indicator)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("bye")
}

// buildEnricher 仅在启用且配置了 API key 时构建增强链路，否则返回 nil，
// 引擎退化为纯启发式输出。
func buildEnricher(cfg *fxcfg.Config) *enrich.Enricher {
	if !cfg.Enrich.Enabled {
		return nil
	}
	client := &enrich.ChatClient{
		BaseURL:    cfg.Enrich.BaseURL,
		APIKey:     cfg.Enrich.APIKey,
		Model:      cfg.Enrich.Model,
		Timeout:    time.Duration(cfg.Enrich.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Enrich.MaxRetries,
	}
	breaker := circuit.NewBreaker("enrich",
		cfg.Enrich.BreakerThreshold,
		time.Duration(cfg.Enrich.BreakerCooldownSeconds)*time.Second)
	return enrich.New(client, breaker)
}
