package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"midrev/internal/api"
	"midrev/internal/config"
	"midrev/internal/engine"
	"midrev/internal/logger"
	"midrev/internal/risk"
	"midrev/internal/state"
	"midrev/internal/strategy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}

	logCloser, err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		logrus.Fatalf("logger error: %v", err)
	}
	defer logCloser.Close()

	runID := generateRunID()
	log := logrus.WithField("run_id", runID)

	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID)
	if err != nil {
		log.Fatalf("decision logger error: %v", err)
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			log.WithError(err).Error("failed to close decision logger")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Info("shutdown signal received")
		cancel()
	}()

	v, err := connectVenue(ctx, cfg, runID)
	if err != nil {
		log.Fatalf("venue error: %v", err)
	}

	if configured := decimal.NewFromFloat(cfg.LotSize); !lotSize(configured, v.minLot).Equal(configured) {
		log.WithFields(logrus.Fields{"configured": configured, "venue_lot": v.minLot}).Warn("lot size adjusted to venue increment")
	}

	store := state.NewStore()
	bands, err := strategy.NewBands(cfg.UpperBand, cfg.LowerBand)
	if err != nil {
		log.Fatalf("band config error: %v", err)
	}
	sizer := risk.Sizer{
		Balances:        v.exchange,
		Base:            v.base,
		Quote:           v.quote,
		Policy:          risk.SizePolicy(cfg.SizePolicy),
		FixedSize:       decimal.NewFromFloat(cfg.FixedSize),
		LotSize:         lotSize(decimal.NewFromFloat(cfg.LotSize), v.minLot),
		MinQuoteBalance: decimal.NewFromFloat(cfg.MinQuoteBalance),
		MinBaseBalance:  decimal.NewFromFloat(cfg.MinBaseBalance),
		KillSwitch:      cfg.KillSwitch,
		Log:             log.WithField("component", "risk"),
	}
	if err := sizer.Validate(); err != nil {
		log.Fatalf("sizing config error: %v", err)
	}

	controller := engine.NewController(engine.ControllerConfig{
		GracePeriod:     cfg.GracePeriod,
		RepriceSlippage: cfg.RepriceSlippage,
		PriceDecimals:   int32(cfg.PriceDecimals),
		StrictCancel:    cfg.StrictCancel,
	}, v.exchange, sizer, store, engine.TimerWaiter{}, log.WithField("component", "lifecycle"))

	loop := engine.NewLoop(engine.LoopConfig{
		Symbol:     v.feedSymbol,
		WindowSize: cfg.WindowSize,
		Policy:     engine.TickPolicy(cfg.TickPolicy),
		RunID:      runID,
	}, bands, controller, store, decisions, log.WithField("component", "engine"))
	if v.paper != nil {
		loop.Observe(v.paper.Observe)
	}

	go engine.ReconcileLoop(ctx, v.exchange, store, v.base, v.quote, cfg.ReconcileInterval, log.WithField("component", "reconciler"))

	if cfg.StatusAddr != "" {
		server := api.NewServer(api.Info{
			RunID:  runID,
			Venue:  string(cfg.Venue),
			Mode:   string(cfg.Mode),
			Symbol: cfg.Symbol,
		}, store)
		go func() {
			if err := server.Run(ctx, cfg.StatusAddr); err != nil {
				log.WithError(err).Error("status server stopped")
			}
		}()
	}

	log.WithFields(logrus.Fields{
		"venue":       cfg.Venue,
		"mode":        cfg.Mode,
		"symbol":      cfg.Symbol,
		"feed_symbol": v.feedSymbol,
		"window":      cfg.WindowSize,
		"upper_band":  cfg.UpperBand,
		"lower_band":  cfg.LowerBand,
	}).Info("starting bot")

	if err := loop.Run(ctx, v.ticks); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("price feed loop stopped")
	}

	log.Info("bot shutdown complete")
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	return timestamp + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}
