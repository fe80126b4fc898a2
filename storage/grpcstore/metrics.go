package grpcstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Metrics records per-method request counts, latency and block bytes.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identity",
			Subsystem: "blockstore",
			Name:      "requests_total",
			Help:      "BlockStore RPCs by method and status code.",
		}, []string{"method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "identity",
			Subsystem: "blockstore",
			Name:      "request_duration_seconds",
			Help:      "BlockStore RPC latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identity",
			Subsystem: "blockstore",
			Name:      "block_bytes_total",
			Help:      "Block bytes received by Put and sent by Get.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.requests, m.latency, m.bytes)
	return m
}

// UnaryInterceptor observes every unary RPC.
func (m *Metrics) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		method := shortMethod(info.FullMethod)
		m.requests.WithLabelValues(method, status.Code(err).String()).Inc()
		m.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err == nil {
			if in, ok := req.(*wrapperspb.BytesValue); ok {
				m.bytes.WithLabelValues("in").Add(float64(len(in.GetValue())))
			}
			if out, ok := resp.(*wrapperspb.BytesValue); ok {
				m.bytes.WithLabelValues("out").Add(float64(len(out.GetValue())))
			}
		}
		return resp, err
	}
}

func shortMethod(full string) string {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == '/' {
			return full[i+1:]
		}
	}
	return full
}
