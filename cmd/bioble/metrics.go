package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/srg/bioble/pkg/headset"
)

var (
	metricLabels = []string{"model", "address"}

	descPackets = prometheus.NewDesc(
		"bioble_packets_total",
		"Notification payloads by outcome: received, enqueued, malformed, overwritten, dequeued.",
		append([]string{"outcome"}, metricLabels...),
		nil,
	)

	descQueueLength = prometheus.NewDesc(
		"bioble_queue_length",
		"Samples currently waiting in the queue.",
		metricLabels,
		nil,
	)

	descState = prometheus.NewDesc(
		"bioble_session_state",
		"Session state: 0 closed, 1 opening, 2 paired, 3 subscribed, 4 streaming, 5 stopping.",
		metricLabels,
		nil,
	)

	descLinkLost = prometheus.NewDesc(
		"bioble_link_lost",
		"1 when the headset link dropped during the session.",
		metricLabels,
		nil,
	)
)

// MetricsFunc snapshots a client.
type MetricsFunc func() headset.Metrics

type streamCollector struct {
	model string
	fetch MetricsFunc
}

func (c *streamCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *streamCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.fetch()
	labels := []string{c.model, m.Address}

	counters := []struct {
		outcome string
		value   int64
	}{
		{"received", m.Queue.Received},
		{"enqueued", m.Queue.Enqueued},
		{"malformed", m.Queue.Malformed},
		{"overwritten", m.Queue.Overwritten},
		{"dequeued", m.Queue.Dequeued},
	}
	for _, counter := range counters {
		ch <- prometheus.MustNewConstMetric(descPackets, prometheus.CounterValue,
			float64(counter.value), append([]string{counter.outcome}, labels...)...)
	}

	ch <- prometheus.MustNewConstMetric(descQueueLength, prometheus.GaugeValue, float64(m.QueueLen), labels...)
	ch <- prometheus.MustNewConstMetric(descState, prometheus.GaugeValue, float64(m.State), labels...)

	lost := 0.0
	if m.Lost {
		lost = 1
	}
	ch <- prometheus.MustNewConstMetric(descLinkLost, prometheus.GaugeValue, lost, labels...)
}

// RegisterCollector exposes the client metrics through reg.
func RegisterCollector(model string, f MetricsFunc, reg prometheus.Registerer) {
	reg.MustRegister(&streamCollector{model: model, fetch: f})
}

// serveMetrics serves /metrics on ln until ctx is done.
func serveMetrics(ctx context.Context, ln net.Listener, reg *prometheus.Registry, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", ln.Addr().String()).Info("Serving metrics")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
