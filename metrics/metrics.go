// Package metrics provides Prometheus metrics for the indicator pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConcentrationAVCI tracks the windowed volume concentration index per
	// bucket (combined, buy, sell).
	ConcentrationAVCI = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "microstat_concentration_avci",
		Help: "Windowed aggressor volume concentration index",
	}, []string{"bucket"})

	// ConcentrationTakers tracks the distinct taker count per bucket.
	ConcentrationTakers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "microstat_concentration_takers",
		Help: "Distinct takers in the concentration window",
	}, []string{"bucket"})

	// QueueImbalanceTW is the time-weighted mean queue imbalance.
	QueueImbalanceTW = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "microstat_queue_imbalance_tw",
		Help: "Time-weighted mean normalized queue imbalance",
	})

	// MarkoutMean tracks the mean markout per trade side.
	MarkoutMean = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "microstat_markout_mean",
		Help: "Mean markout of completed observations per side",
	}, []string{"side"})

	// MarkoutSkew is the buy-minus-sell markout skew.
	MarkoutSkew = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "microstat_markout_skew",
		Help: "Buy mean markout minus sell mean markout",
	})

	// FillsProcessed counts fills fed to the concentration calculator.
	FillsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microstat_fills_processed_total",
		Help: "Fills accepted by the concentration calculator",
	})

	// BookUpdatesProcessed counts book snapshots fed to the imbalance
	// calculator.
	BookUpdatesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microstat_book_updates_processed_total",
		Help: "Book updates accepted by the imbalance calculator",
	})

	// PrintsProcessed counts trade prints fed to the markout calculator.
	PrintsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microstat_prints_processed_total",
		Help: "Trade prints accepted by the markout calculator",
	})
)

// SetConcentration publishes one bucket's concentration reading. An absent
// index (nil) leaves the gauge untouched.
func SetConcentration(bucket string, avci *float64, takers int) {
	ConcentrationTakers.WithLabelValues(bucket).Set(float64(takers))
	if avci != nil {
		ConcentrationAVCI.WithLabelValues(bucket).Set(*avci)
	}
}

// SetMarkout publishes the per-side means and skew when defined.
func SetMarkout(mPlus, mMinus, skew *float64) {
	if mPlus != nil {
		MarkoutMean.WithLabelValues("buy").Set(*mPlus)
	}
	if mMinus != nil {
		MarkoutMean.WithLabelValues("sell").Set(*mMinus)
	}
	if skew != nil {
		MarkoutSkew.Set(*skew)
	}
}

// StartMetricsServer starts the Prometheus metrics endpoint.
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
