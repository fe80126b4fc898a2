package grpcstore

import (
	"context"
	"crypto/rand"
	"net"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// RequestIDHeader carries the per-request ULID back to the caller.
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// RequestID returns the id the logging interceptor assigned to ctx, if any.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

func newRequestID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}

// LoggingInterceptor tags every RPC with a ULID request id, returns it in the
// response header and logs the outcome.
func LoggingInterceptor(log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		reqID := newRequestID(start)
		ctx = context.WithValue(ctx, requestIDKey{}, reqID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, reqID))

		resp, err := handler(ctx, req)

		entry := log.WithFields(logrus.Fields{
			"request_id": reqID,
			"method":     info.FullMethod,
			"peer":       peerAddr(ctx),
			"code":       status.Code(err).String(),
			"duration":   time.Since(start),
		})
		switch status.Code(err) {
		case codes.OK:
			entry.Debug("rpc")
		case codes.NotFound, codes.InvalidArgument, codes.Canceled, codes.ResourceExhausted:
			entry.Info("rpc")
		default:
			entry.WithError(err).Warn("rpc failed")
		}
		return resp, err
	}
}

// RateLimitInterceptor rejects RPCs from peers over their budget with
// ResourceExhausted. Peers are keyed by host, so new connections from the
// same address share a bucket. A nil limiter lets everything through.
func RateLimitInterceptor(l *PeerLimiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !l.Allow(peerHost(ctx), time.Now()) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	return p.Addr.String()
}

// peerHost strips the port from the peer address. Addresses without one,
// such as in-memory listeners, are returned whole.
func peerHost(ctx context.Context) string {
	addr := peerAddr(ctx)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
