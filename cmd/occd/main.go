// Command occd exposes POWER8 On-Chip Controller telemetry over HTTP.
// Run with --mock to use a simulated controller (no I2C device required).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/openbmc-go/occmon/internal/api"
	"github.com/openbmc-go/occmon/internal/config"
	"github.com/openbmc-go/occmon/internal/events"
	"github.com/openbmc-go/occmon/internal/occ"
	"github.com/openbmc-go/occmon/internal/poller"
	"github.com/openbmc-go/occmon/internal/transport"
	"github.com/openbmc-go/occmon/internal/zeroconf"
)

func main() {
	var (
		mock    = flag.Bool("mock", false, "use a simulated controller (no I2C device required)")
		addr    = flag.String("addr", "", "HTTP listen address (overrides the config file)")
		cfgPath = flag.String("config", "", "path to occd.yaml (defaults apply when empty)")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			slog.Error("config load failed", "err", err)
			os.Exit(1)
		}
	}
	if *mock {
		cfg.Bus.Transport = config.TransportSim
	}
	if *addr != "" {
		cfg.Listen = *addr
	}

	// Configure logging
	logLevel := parseLogLevel(cfg.Log.Level)
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Bus transport
	tr, err := openTransport(cfg.Bus)
	if err != nil {
		slog.Error("transport open failed", "transport", cfg.Bus.Transport, "err", err)
		os.Exit(1)
	}

	// Protocol client with its refresh cache
	client := occ.New(tr)
	client.SetRefreshInterval(time.Duration(cfg.Poll.RefreshIntervalMs) * time.Millisecond)
	defer client.Close()

	// Event bus and background poller
	bus := events.NewBus()
	p := poller.New(client, bus,
		time.Duration(cfg.Poll.IntervalMs)*time.Millisecond, cfg.Poll.Online)
	go p.Run(ctx)

	// Hot-reload of the runtime-tunable settings
	if *cfgPath != "" {
		watcher, err := config.Watch(*cfgPath, func(next config.Config) {
			client.SetRefreshInterval(time.Duration(next.Poll.RefreshIntervalMs) * time.Millisecond)
			p.SetInterval(time.Duration(next.Poll.IntervalMs) * time.Millisecond)
			p.SetOnline(next.Poll.Online)
		})
		if err != nil {
			slog.Warn("config watch failed", "err", err)
		} else {
			defer watcher.Close()
		}
	}

	// Zeroconf mDNS registration
	if cfg.MDNS.Enabled {
		zc := zeroconf.New(cfg.MDNS.Name, listenPort(cfg.Listen))
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	// HTTP server
	router := api.NewRouter(client, p, bus)
	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("occd listening",
			"addr", cfg.Listen,
			"transport", cfg.Bus.Transport,
			"device", cfg.Bus.Device,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
}

// openTransport opens the configured bus to the controller.
func openTransport(bus config.BusConfig) (transport.Transport, error) {
	switch bus.Transport {
	case config.TransportSim:
		slog.Info("using simulated controller")
		return occ.NewSimulator(), nil
	case config.TransportSerial:
		slog.Info("using serial bridge", "device", bus.Device, "baud", bus.BaudRate)
		return transport.OpenSerial(bus.Device, bus.BaudRate)
	default:
		slog.Info("using I2C bus", "device", bus.Device, "address", bus.Address)
		return transport.OpenI2C(bus.Device, uint16(bus.Address))
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// listenPort extracts the port from a listen address for mDNS registration.
func listenPort(addr string) int {
	port := 80
	if parts := strings.SplitN(addr, ":", 2); len(parts) == 2 && parts[1] != "" {
		if p, err := strconv.Atoi(parts[1]); err == nil {
			port = p
		}
	}
	return port
}
