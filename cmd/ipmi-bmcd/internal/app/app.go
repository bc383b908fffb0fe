// Package app wires a transport, the default-device sink, and optional
// Prometheus metrics into a running ipmibmc.Core, for the ipmi-bmcd
// command.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ipmibmc/bmccore"
	"github.com/ipmibmc/bmccore/internal/logging"
	"github.com/ipmibmc/bmccore/internal/sink"
	"github.com/ipmibmc/bmccore/internal/transport/aspeed"
	"github.com/ipmibmc/bmccore/internal/transport/i2cslave"
	"github.com/ipmibmc/bmccore/internal/transport/mock"
)

// Version is the daemon's reported version string.
const Version = "0.1.0"

// Options configures a Run invocation; see main.go for the corresponding
// flags.
type Options struct {
	Transport   string
	I2CAddr     string
	MMIODevice  string
	MMIOOffset  int64
	MetricsAddr string
	LogLevel    string
	SinkDepth   int
}

// DefaultOptions returns the flag defaults for the serve subcommand.
func DefaultOptions() *Options {
	return &Options{
		Transport:   "mock",
		I2CAddr:     "1-1010",
		MMIODevice:  "/dev/mem",
		MMIOOffset:  0,
		MetricsAddr: "",
		LogLevel:    "info",
		SinkDepth:   sink.MinCapacity,
	}
}

// Run builds a Core from opts, binds the requested transport, and serves
// requests until ctx is canceled or SIGINT/SIGTERM is received.
func Run(ctx context.Context, opts *Options) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.NewLogger(&logging.Config{Level: parseLevel(opts.LogLevel)})

	reg := prometheus.NewRegistry()
	promObs := bmccore.NewPromMetrics(reg)
	inProcObs := bmccore.NewMetrics()
	obs := bmccore.MultiObserver{inProcObs, promObs}

	core := bmccore.NewCore(log, obs)

	defaultSink := sink.New(opts.SinkDepth, log, obs)
	if err := core.RegisterDefaultHandler(defaultSink); err != nil {
		return fmt.Errorf("registering default sink: %w", err)
	}

	closeTransport, err := bindTransport(core, log, opts)
	if err != nil {
		return fmt.Errorf("binding transport %q: %w", opts.Transport, err)
	}
	defer closeTransport()

	var srv *http.Server
	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: opts.MetricsAddr, Handler: mux}
		go func() {
			log.Infof("metrics listening on %s", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	log.Infof("ipmi-bmcd serving with transport=%s sink-depth=%d", opts.Transport, opts.SinkDepth)
	<-ctx.Done()
	log.Infof("shutting down")

	if srv != nil {
		_ = srv.Close()
	}
	return core.Shutdown(context.Background())
}

// bindTransport binds the requested transport to core and starts whatever
// background polling loop it needs, returning a func that tears it down.
func bindTransport(core *bmccore.Core, log *logging.Logger, opts *Options) (func(), error) {
	onRequest := func(ctx context.Context, req bmccore.Message) {
		if err := core.Dispatch(ctx, req); err != nil {
			log.Warnf("dispatch failed: %v", err)
		}
	}

	switch opts.Transport {
	case "mock":
		t := mock.New()
		if err := core.BindTransport(t); err != nil {
			return nil, err
		}
		return func() { _ = core.UnbindTransport(t) }, nil

	case "aspeed":
		mmio, err := aspeed.OpenMMIO(opts.MMIODevice, opts.MMIOOffset, 0x1c)
		if err != nil {
			return nil, fmt.Errorf("opening BT register window: %w", err)
		}
		t := aspeed.New(mmio, log, onRequest)
		if err := core.BindTransport(t); err != nil {
			_ = mmio.Close()
			return nil, err
		}
		runCtx, cancel := context.WithCancel(context.Background())
		go t.Run(runCtx)
		return func() {
			cancel()
			_ = core.UnbindTransport(t)
			_ = mmio.Close()
		}, nil

	case "i2c":
		t := i2cslave.New(opts.I2CAddr, log, onRequest)
		if err := core.BindTransport(t); err != nil {
			return nil, err
		}
		log.Infof("i2cslave transport bound at %s", t.Addr())
		return func() { _ = core.UnbindTransport(t) }, nil

	default:
		return nil, fmt.Errorf("unknown transport %q (want aspeed, i2c, or mock)", opts.Transport)
	}
}

func parseLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
