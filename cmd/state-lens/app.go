package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/devblac/state-lens/internal/config"
	"github.com/devblac/state-lens/internal/decoder"
	"github.com/devblac/state-lens/internal/lens"
	"github.com/devblac/state-lens/internal/logging"
	"github.com/devblac/state-lens/internal/metrics"
	"github.com/devblac/state-lens/internal/network"
	"github.com/devblac/state-lens/internal/rpc"
	"github.com/devblac/state-lens/internal/sink"
	"github.com/devblac/state-lens/internal/storage"
)

// app holds the collaborators a command needs. Fields a command did not ask
// for stay nil.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	net      network.Config
	metrics  *metrics.Metrics
	store    *storage.Store
	client   *rpc.Client
	worker   *decoder.Worker
	explorer *lens.Explorer
}

type needs struct {
	store   bool
	rpc     bool
	decoder bool
	metrics bool
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = cfg.Global.LogLevel
	}
	if level == "" {
		level = "info"
	}
	return logging.NewWithLevel(level)
}

func newApp(ctx context.Context, n needs) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: newLogger(cfg)}
	if n.metrics {
		a.metrics = metrics.Init()
	}

	if n.store || n.rpc {
		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = store
	}

	a.net, err = a.resolveNetwork(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	if n.rpc {
		client, err := rpc.NewClient(rpc.Options{
			URL:        a.net.RPCURL,
			Timeout:    cfg.RPC.TimeoutDuration(),
			Retries:    cfg.RPC.RetryCount(),
			RatePerSec: cfg.RPC.RatePerSec,
			Metrics:    a.metrics,
			Logger:     a.log,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		a.client = client
	}

	if n.decoder || n.rpc {
		w, err := decoder.NewWorker(decoder.Options{
			Workers:   cfg.Decoder.Workers,
			QueueSize: cfg.Decoder.QueueSize,
			CacheSize: cfg.Decoder.CacheSize,
			Metrics:   a.metrics,
			Logger:    a.log,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			a.close()
			return nil, err
		}
		a.worker = w
	}

	if n.rpc {
		ex, err := lens.NewExplorer(a.client, a.worker, a.store, a.log)
		if err != nil {
			a.close()
			return nil, err
		}
		senders, err := buildSinks(cfg.Sinks)
		if err != nil {
			a.close()
			return nil, err
		}
		ex.NotifyTo(a.net.ID, senders...)
		a.explorer = ex
	}
	return a, nil
}

// resolveNetwork applies, in order: the config file (or the persisted choice
// when no file is given), the --network preset, then --rpc-url.
func (a *app) resolveNetwork(ctx context.Context) (network.Config, error) {
	net := a.cfg.Network.Resolve()
	if cfgPath == "" && a.store != nil {
		saved, err := a.store.LoadNetworkConfig(ctx)
		if err != nil {
			return network.Config{}, err
		}
		net = saved
	}
	if flagNetwork != "" {
		preset, ok := network.ResolvePreset(flagNetwork)
		if !ok {
			return network.Config{}, fmt.Errorf("unknown network %q (known: %s)", flagNetwork, strings.Join(network.PresetIDs(), ", "))
		}
		net = preset
	}
	if flagRPCURL != "" {
		if err := network.ValidateRPCURL(flagRPCURL); err != nil {
			return network.Config{}, fmt.Errorf("--rpc-url: %w", err)
		}
		net.RPCURL = network.NormalizeRPCURL(flagRPCURL)
	}
	return net, nil
}

func buildSinks(cfgs []config.Sink) ([]sink.Sender, error) {
	out := make([]sink.Sender, 0, len(cfgs))
	for _, s := range cfgs {
		sender, err := sink.New(s.Type, s.Target(), s.Method, s.Template)
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", s.ID, err)
		}
		out = append(out, sender)
	}
	return out, nil
}

func (a *app) close() {
	if a.worker != nil {
		if err := a.worker.Stop(); err != nil {
			a.log.Warn("decoder stop", "error", err)
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
