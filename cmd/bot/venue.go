package main

import (
	"context"
	"fmt"

	"midrev/internal/broker"
	"midrev/internal/config"
	"midrev/internal/hyperliquid"
	"midrev/internal/md"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// venue bundles the order path and the price feed of one market.
type venue struct {
	exchange   broker.Exchange
	paper      *broker.Paper
	ticks      <-chan md.Tick
	feedSymbol string
	base       string
	quote      string
	// minLot is the venue's size increment, zero when the venue does not
	// publish one.
	minLot decimal.Decimal
}

func connectVenue(ctx context.Context, cfg config.Config, runID string) (venue, error) {
	switch cfg.Venue {
	case config.VenueHyperliquid:
		return connectHyperliquid(ctx, cfg)
	case config.VenueAlpaca:
		return connectAlpaca(ctx, cfg, runID)
	default:
		return venue{}, fmt.Errorf("unknown venue %s", cfg.Venue)
	}
}

func connectHyperliquid(ctx context.Context, cfg config.Config) (venue, error) {
	apiURL, wsURL := hyperliquid.MainnetAPIURL, hyperliquid.MainnetWSURL
	if cfg.Testnet {
		apiURL, wsURL = hyperliquid.TestnetAPIURL, hyperliquid.TestnetWSURL
	}
	if cfg.HyperliquidAPIURL != "" {
		apiURL = cfg.HyperliquidAPIURL
	}
	if cfg.HyperliquidWSURL != "" {
		wsURL = cfg.HyperliquidWSURL
	}

	var signer *hyperliquid.Signer
	if cfg.PrivateKey != "" {
		s, err := hyperliquid.NewSigner(cfg.PrivateKey, !cfg.Testnet)
		if err != nil {
			return venue{}, err
		}
		signer = s
	}
	client := hyperliquid.NewClient(apiURL, signer, cfg.AccountAddress)

	market, err := client.ResolveSpotPair(ctx, cfg.Symbol)
	if err != nil {
		return venue{}, err
	}
	logrus.WithFields(logrus.Fields{
		"symbol":  market.Symbol,
		"asset":   market.Asset,
		"mid_key": market.MidKey,
	}).Info("resolved hyperliquid spot pair")

	v := venue{feedSymbol: market.MidKey, base: market.Base, quote: market.Quote, minLot: market.LotSize()}
	if cfg.Mode == config.ModePaper {
		v.paper = newPaper(cfg, market.Base, market.Quote)
		v.exchange = v.paper
	} else {
		v.exchange = hyperliquid.NewExchange(client, market)
	}

	ticks, err := hyperliquid.MidFeed{URL: wsURL}.Start(ctx, market.MidKey)
	if err != nil {
		return venue{}, err
	}
	v.ticks = ticks
	return v, nil
}

func connectAlpaca(ctx context.Context, cfg config.Config, runID string) (venue, error) {
	base, quote := cfg.Assets()
	v := venue{feedSymbol: cfg.Symbol, base: base, quote: quote}
	if cfg.Mode == config.ModePaper {
		v.paper = newPaper(cfg, base, quote)
		v.exchange = v.paper
	} else {
		exchange, err := broker.NewAlpaca(cfg.APIKey, cfg.APISecret, cfg.AlpacaBaseURL, cfg.Symbol, runID)
		if err != nil {
			return venue{}, err
		}
		v.exchange = exchange
	}

	feed := md.AlpacaQuoteFeed{APIKey: cfg.APIKey, APISecret: cfg.APISecret, Feed: cfg.AlpacaFeed}
	ticks, err := feed.Start(ctx, cfg.Symbol)
	if err != nil {
		return venue{}, err
	}
	v.ticks = ticks
	return v, nil
}

// lotSize coarsens the configured lot to the venue increment when the
// configured one is finer than what the venue accepts.
func lotSize(configured, venueLot decimal.Decimal) decimal.Decimal {
	if !venueLot.IsPositive() {
		return configured
	}
	if configured.LessThan(venueLot) {
		return venueLot
	}
	if !configured.Mod(venueLot).IsZero() {
		return configured.Div(venueLot).Floor().Mul(venueLot)
	}
	return configured
}

func newPaper(cfg config.Config, base, quote string) *broker.Paper {
	return broker.NewPaper(base, quote, decimal.NewFromFloat(cfg.PaperBaseBalance), decimal.NewFromFloat(cfg.PaperQuoteBalance))
}
