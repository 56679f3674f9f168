package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"saleledger/core/events"
	"saleledger/core/types"
	"saleledger/native/directsell"
)

// DirectsellMetrics tracks the marketplace state machine. It doubles as an
// event emitter so the node can fan engine events straight into prometheus.
type DirectsellMetrics struct {
	listingsActive   prometheus.Gauge
	settlementsTotal prometheus.Counter
	settlementVolume prometheus.Counter
	cancelsTotal     *prometheus.CounterVec
	unverifiedPayout prometheus.Counter
}

var (
	directsellOnce     sync.Once
	directsellRegistry *DirectsellMetrics
)

// Directsell returns the process-wide marketplace metrics registry.
func Directsell() *DirectsellMetrics {
	directsellOnce.Do(func() {
		directsellRegistry = &DirectsellMetrics{
			listingsActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "directsell_listings_active",
				Help: "Number of currently active sale records.",
			}),
			settlementsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "directsell_settlements_total",
				Help: "Count of completed buy transitions.",
			}),
			settlementVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "directsell_settlement_volume",
				Help: "Cumulative settled price in smallest currency units.",
			}),
			cancelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "directsell_cancels_total",
				Help: "Count of cancelled listings by origin.",
			}, []string{"origin"}),
			unverifiedPayout: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "directsell_unverified_creator_payouts_total",
				Help: "Count of royalty payouts to unverified creators.",
			}),
		}
		prometheus.MustRegister(
			directsellRegistry.listingsActive,
			directsellRegistry.settlementsTotal,
			directsellRegistry.settlementVolume,
			directsellRegistry.cancelsTotal,
			directsellRegistry.unverifiedPayout,
		)
	})
	return directsellRegistry
}

// Emit implements events.Emitter. Attribute parsing is best-effort: a
// malformed event updates nothing rather than failing a settlement.
func (m *DirectsellMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	attrs := eventAttributes(evt)
	switch evt.EventType() {
	case directsell.EventTypeListed:
		m.listingsActive.Inc()
	case directsell.EventTypeCancelled:
		m.listingsActive.Dec()
		m.cancelsTotal.WithLabelValues("seller").Inc()
	case directsell.EventTypeAdminCancelled:
		m.listingsActive.Dec()
		m.cancelsTotal.WithLabelValues("admin").Inc()
	case directsell.EventTypeSettled:
		m.listingsActive.Dec()
		m.settlementsTotal.Inc()
		if amount, err := strconv.ParseUint(attrs["expectedAmount"], 10, 64); err == nil {
			m.settlementVolume.Add(float64(amount))
		}
		if count, err := strconv.Atoi(attrs["creatorCount"]); err == nil {
			for i := 0; i < count; i++ {
				if attrs["creator."+strconv.Itoa(i)+".verified"] == "false" {
					m.unverifiedPayout.Inc()
				}
			}
		}
	}
}

func eventAttributes(evt events.Event) map[string]string {
	type payloadCarrier interface {
		Event() *types.Event
	}
	if carrier, ok := evt.(payloadCarrier); ok {
		if payload := carrier.Event(); payload != nil && payload.Attributes != nil {
			return payload.Attributes
		}
	}
	return map[string]string{}
}
