package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"xdao.co/identity/storage"
	"xdao.co/identity/storage/grpcstore"
	"xdao.co/identity/storage/registry"
	"xdao.co/identity/storage/storeconfig"

	_ "xdao.co/identity/storage/ipfs"
	_ "xdao.co/identity/storage/localfs"
	_ "xdao.co/identity/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("identity-stored", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "/ip4/127.0.0.1/tcp/7777", "Listen address (multiaddr or host:port)")
	backend := fs.String("backend", "localfs", "Store backend name")
	storeConfig := fs.String("store-config", "", "YAML store config; --backend then names the preferred backend")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	metricsListen := fs.String("metrics-listen", "", "Serve Prometheus metrics on this host:port (disabled when empty)")
	rateLimit := fs.Float64("rate-limit", 0, "Per-peer requests per second (0 disables limiting)")
	rateBurst := fs.Int("rate-burst", 32, "Per-peer burst size")
	maxMsg := fs.Int("max-msg-bytes", 16<<20, "Max gRPC message size in bytes (send+recv)")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	logFormat := fs.String("log-format", "text", "Log format: text|json")

	registry.RegisterFlags(fs, registry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	log, err := newLogger(errOut, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	var (
		st      storage.Store
		closeFn registry.Closer
	)
	if *storeConfig != "" {
		cfg, err := storeconfig.LoadFile(*storeConfig)
		if err != nil {
			log.WithError(err).Error("load store config")
			return 2
		}
		preferred := ""
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "backend" {
				preferred = *backend
			}
		})
		st, closeFn, err = cfg.Open(registry.UsageDaemon, preferred)
		if err != nil {
			log.WithError(err).Error("open store")
			return 2
		}
	} else {
		st, closeFn, err = registry.Open(*backend, registry.UsageDaemon)
		if err != nil {
			log.WithError(err).Error("open store")
			return 2
		}
	}
	if closeFn != nil {
		defer closeFn()
	}

	network, addr, err := listenArgs(*listen)
	if err != nil {
		log.WithError(err).Error("invalid --listen")
		return 2
	}
	lis, err := net.Listen(network, addr)
	if err != nil {
		log.WithError(err).Error("listen")
		return 1
	}

	d := &daemon{
		store:   st,
		log:     log,
		limiter: grpcstore.NewPeerLimiter(*rateLimit, *rateBurst, 0),
		reg:     prometheus.NewRegistry(),
		maxMsg:  *maxMsg,
	}
	d.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if *metricsListen != "" {
		srv := &http.Server{
			Addr:              *metricsListen,
			Handler:           metricsHandler(d.reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.WithFields(logrus.Fields{
		"listen":  displayAddr(lis.Addr()),
		"backend": *backend,
		"metrics": *metricsListen,
	}).Info("identity-stored listening")
	if err := d.serve(ctx, lis); err != nil {
		log.WithError(err).Error("serve")
		return 1
	}
	log.Info("identity-stored stopped")
	return 0
}

type daemon struct {
	store   storage.Store
	log     logrus.FieldLogger
	limiter *grpcstore.PeerLimiter
	reg     *prometheus.Registry
	maxMsg  int
}

// serve runs the BlockStore service on lis until ctx is done, then drains
// in-flight RPCs.
func (d *daemon) serve(ctx context.Context, lis net.Listener) error {
	metrics := grpcstore.NewMetrics(d.reg)
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcstore.LoggingInterceptor(d.log),
			metrics.UnaryInterceptor(),
			grpcstore.RateLimitInterceptor(d.limiter),
		),
	}
	if d.maxMsg > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(d.maxMsg), grpc.MaxSendMsgSize(d.maxMsg))
	}
	s := grpc.NewServer(opts...)
	grpcstore.RegisterBlockStoreServer(s, &grpcstore.Server{Store: d.store})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.GracefulStop()
		<-errCh
		return nil
	}
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

func newLogger(w io.Writer, level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}
	return log, nil
}

// listenArgs accepts a multiaddr such as /ip4/0.0.0.0/tcp/7777 or a plain
// host:port and returns net.Listen arguments.
func listenArgs(s string) (network, addr string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", errors.New("empty listen address")
	}
	if !strings.HasPrefix(s, "/") {
		if _, _, err := net.SplitHostPort(s); err != nil {
			return "", "", err
		}
		return "tcp", s, nil
	}
	m, err := ma.NewMultiaddr(s)
	if err != nil {
		return "", "", err
	}
	network, addr, err = manet.DialArgs(m)
	if err != nil {
		return "", "", err
	}
	switch network {
	case "tcp", "tcp4", "tcp6", "unix":
		return network, addr, nil
	default:
		return "", "", fmt.Errorf("unsupported listen network %q", network)
	}
}

// displayAddr renders a bound address as a multiaddr when possible.
func displayAddr(a net.Addr) string {
	if m, err := manet.FromNetAddr(a); err == nil {
		return m.String()
	}
	return a.String()
}
