// Package main is the entry point for kkrpc-relay, a small standalone RPC
// peer: it exposes one demo namespace over whichever adapter the config
// selects, exactly so the module can be exercised end to end without a
// paired JavaScript process.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kkrpc-go/kkrpc/adapters/httpadapter"
	"github.com/kkrpc-go/kkrpc/adapters/redisadapter"
	"github.com/kkrpc-go/kkrpc/adapters/stdio"
	"github.com/kkrpc-go/kkrpc/channel"
	"github.com/kkrpc-go/kkrpc/internal/config"
	"github.com/kkrpc-go/kkrpc/internal/metrics"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var rec *metrics.Recorder
	if cfg.Listen.MetricsAddr != "" {
		rec = metrics.New(prometheus.DefaultRegisterer)
		go func() {
			log.Printf("metrics listening on %s", cfg.Listen.MetricsAddr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Listen.MetricsAddr, mux); err != nil {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	exposed := demoNamespace()

	// modeFactory maps a listen mode (from config) to the function that
	// builds and starts a Channel for it, avoiding a long if/else chain.
	type modeFactory func(cfg *config.Config) (*channel.Channel, error)

	constructors := map[string]modeFactory{
		"stdio": func(cfg *config.Config) (*channel.Channel, error) {
			return channel.New(stdio.NewStd(), channelOpts(cfg, exposed, rec)...), nil
		},
		"http": func(cfg *config.Config) (*channel.Channel, error) {
			srv := httpadapter.NewServer()
			ch := channel.New(srv.Adapter(), channelOpts(cfg, exposed, rec)...)
			go func() {
				log.Printf("kkrpc-relay listening on %s", cfg.Listen.Addr)
				if err := http.ListenAndServe(cfg.Listen.Addr, srv); err != nil {
					log.Fatalf("http server error: %v", err)
				}
			}()
			return ch, nil
		},
		"redis": func(cfg *config.Config) (*channel.Channel, error) {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
			})
			a := redisadapter.New(client, cfg.Redis.Publish, cfg.Redis.Subscribe)
			return channel.New(a, channelOpts(cfg, exposed, rec)...), nil
		},
	}

	factory, ok := constructors[cfg.Listen.Mode]
	if !ok {
		log.Fatalf("unknown listen mode: %q", cfg.Listen.Mode)
	}

	ch, err := factory(cfg)
	if err != nil {
		log.Fatalf("failed to start channel: %v", err)
	}
	log.Printf("kkrpc-relay running in %q mode", cfg.Listen.Mode)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Printf("shutting down")
	if err := ch.Destroy(); err != nil {
		log.Printf("destroy: %v", err)
	}
}

// channelOpts builds the common channel.Option set from cfg.
func channelOpts(cfg *config.Config, exposed channel.Namespace, rec *metrics.Recorder) []channel.Option {
	opts := []channel.Option{channel.WithExposed(exposed)}
	if cfg.Listen.ForceText {
		opts = append(opts, channel.WithSerialization(true))
	}
	if rec != nil {
		opts = append(opts, channel.WithMetrics(rec))
	}
	return opts
}

// demoNamespace exposes a minimal namespace so kkrpc-relay is callable out
// of the box: echo returns its single argument, and math.add sums numbers.
func demoNamespace() channel.Namespace {
	return channel.Namespace{
		"echo": channel.HandlerFunc(func(args []any) (any, error) {
			if len(args) == 0 {
				return nil, nil
			}
			return args[0], nil
		}),
		"math": channel.Namespace{
			"add": channel.HandlerFunc(func(args []any) (any, error) {
				var total float64
				for _, a := range args {
					n, ok := a.(float64)
					if !ok {
						continue
					}
					total += n
				}
				return total, nil
			}),
		},
	}
}
