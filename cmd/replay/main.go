package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microstat-go/concentration"
	"microstat-go/config"
	"microstat-go/imbalance"
	"microstat-go/infrastructure/logger"
	"microstat-go/markout"
	"microstat-go/metrics"
)

// A minimal local replay: drives all three calculators with a synthetic
// random-walk book and trade stream. Useful for demos and for eyeballing the
// metrics endpoint; it never touches a real feed.
func main() {
	cfgPath := flag.String("config", "", "optional YAML config path")
	events := flag.Int("events", 500, "number of book events to replay")
	seed := flag.Int64("seed", 42, "random seed")
	stepMs := flag.Int64("stepMs", 100, "milliseconds between book events")
	flag.Parse()

	cfg := defaultConfig()
	if *cfgPath != "" {
		loaded, err := config.LoadWithEnvOverrides(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if cfg.Metrics.Enabled {
		metrics.StartMetricsServer(cfg.Metrics.Addr)
		log.Info("metrics endpoint up", zap.String("addr", cfg.Metrics.Addr))
	}

	if err := replay(cfg, log, *events, *seed, *stepMs); err != nil {
		log.LogError(err, map[string]interface{}{"phase": "replay"})
		os.Exit(1)
	}
}

func defaultConfig() config.AppConfig {
	return config.AppConfig{
		Env:           "dev",
		Logger:        logger.DefaultConfig(),
		Concentration: config.ConcentrationConfig{WindowMs: 60_000},
		QueueImbalance: config.QueueImbalanceConfig{
			KLevels:       5,
			TickSize:      "0.01",
			HalfLifeTicks: "2",
			WindowMs:      30_000,
		},
		Markout: config.MarkoutConfig{Horizon: "clock", TauMs: 1_000, WindowMs: 60_000},
	}
}

func replay(cfg config.AppConfig, log *logger.Logger, events int, seed, stepMs int64) error {
	avci, err := concentration.New(cfg.Concentration.Calculator(), log.Logger)
	if err != nil {
		return err
	}
	qiCfg, err := cfg.QueueImbalance.Calculator()
	if err != nil {
		return err
	}
	qi, err := imbalance.New(qiCfg, log.Logger)
	if err != nil {
		return err
	}
	mo, err := markout.New(cfg.Markout.Calculator(), log.Logger)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))
	tick := qiCfg.TickSize
	// Mid in ticks so every book level stays on the grid.
	midTicks := int64(10_000)
	ts := int64(1_700_000_000_000)

	for i := 0; i < events; i++ {
		ts += stepMs
		midTicks += int64(rng.Intn(3)) - 1
		mid := tick.Mul(decimal.NewFromInt(midTicks)).InexactFloat64()

		book := syntheticBook(ts, midTicks, tick, qiCfg.KLevels, rng)
		if _, _, err := qi.Update(book); err != nil {
			return fmt.Errorf("book update: %w", err)
		}
		metrics.BookUpdatesProcessed.Inc()

		if err := resolveMarkouts(mo, cfg.Markout.Horizon, ts, mid, log); err != nil {
			return err
		}

		// A trade group every fifth event.
		if i%5 == 4 {
			prints := syntheticPrints(ts, mid, rng)
			if _, err := mo.AddGroup(ts, prints, mid); err != nil {
				return fmt.Errorf("add trade group: %w", err)
			}
			for _, p := range prints {
				fill := concentration.Fill{
					TimestampMs: ts,
					TakerID:     fmt.Sprintf("taker-%d", rng.Intn(6)),
					Side:        p.AggressorSign,
					Qty:         decimal.NewFromFloat(p.Qty).Round(4),
				}
				if err := avci.AddFill(fill); err != nil {
					return fmt.Errorf("add fill: %w", err)
				}
				metrics.FillsProcessed.Inc()
				metrics.PrintsProcessed.Inc()
			}
		}

		if i%50 == 49 {
			publish(avci, qi, mo, ts, log)
		}
	}

	publish(avci, qi, mo, ts, log)
	log.Info("replay done",
		zap.Int("events", events),
		zap.Int64("trades", mo.TradeCount()),
		zap.Int("pending_markouts", mo.PendingCount()),
	)
	return nil
}

func syntheticBook(ts, midTicks int64, tick decimal.Decimal, kLevels int, rng *rand.Rand) imbalance.BookUpdate {
	price := func(t int64) decimal.Decimal {
		return decimal.NewFromInt(t).Mul(tick)
	}
	bestBid := price(midTicks - 1)
	bestAsk := price(midTicks + 1)

	book := imbalance.BookUpdate{
		TimestampMs: ts,
		BestBid:     &bestBid,
		BestAsk:     &bestAsk,
	}
	for j := 0; j < kLevels; j++ {
		book.Bids = append(book.Bids, imbalance.Level{
			Price: price(midTicks - 1 - int64(j)),
			Size:  decimal.NewFromInt(int64(rng.Intn(90) + 10)),
		})
		book.Asks = append(book.Asks, imbalance.Level{
			Price: price(midTicks + 1 + int64(j)),
			Size:  decimal.NewFromInt(int64(rng.Intn(90) + 10)),
		})
	}
	return book
}

func syntheticPrints(ts int64, mid float64, rng *rand.Rand) []markout.Print {
	sign := 1
	if rng.Intn(2) == 0 {
		sign = -1
	}
	n := rng.Intn(3) + 1
	prints := make([]markout.Print, 0, n)
	for j := 0; j < n; j++ {
		prints = append(prints, markout.Print{
			TimestampMs:   ts,
			Price:         mid + float64(sign)*0.01,
			Qty:           float64(rng.Intn(20)+1) / 10,
			AggressorSign: sign,
		})
	}
	return prints
}

// resolveMarkouts completes due observations for the configured horizon.
// With one trade group per 500ms and a step well below tau, at most one
// distinct clock target is due per call; a batched-target error is advisory
// here and resolves on a later step.
func resolveMarkouts(mo *markout.Calculator, horizon string, ts int64, mid float64, log *logger.Logger) error {
	var err error
	switch horizon {
	case "event":
		_, err = mo.CompleteEvent(ts, mid)
	default:
		_, err = mo.CompleteClock(ts, mid)
	}
	if errors.Is(err, markout.ErrBatchedHorizons) {
		log.Warn("markout targets batched, deferring", zap.Int64("ts", ts))
		return nil
	}
	return err
}

func publish(avci *concentration.Calculator, qi *imbalance.Calculator, mo *markout.Calculator, ts int64, log *logger.Logger) {
	m := avci.Metrics()
	for bucket, bm := range map[string]concentration.BucketMetrics{
		"combined": m.Combined, "buy": m.Buy, "sell": m.Sell,
	} {
		metrics.SetConcentration(bucket, decimalPtrToFloat(bm.AVCI), bm.Takers)
	}

	fields := map[string]interface{}{"ts_ms": ts, "takers": m.Combined.Takers}
	if m.Combined.AVCI != nil {
		fields["avci"] = m.Combined.AVCI.InexactFloat64()
	}
	log.LogIndicator("concentration", fields)

	if tw, ok := qi.TimeWeightedMean(ts); ok {
		v := tw.InexactFloat64()
		metrics.QueueImbalanceTW.Set(v)
		log.LogIndicator("queue_imbalance", map[string]interface{}{"ts_ms": ts, "tw_mean": v})
	}

	skew := mo.Skew(ts)
	metrics.SetMarkout(skew.MPlus, skew.MMinus, skew.Skew)
	if skew.Skew != nil {
		log.LogIndicator("markout_skew", map[string]interface{}{
			"ts_ms": ts, "skew": *skew.Skew, "n_buys": skew.NBuys, "n_sells": skew.NSells,
		})
	}
}

func decimalPtrToFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
