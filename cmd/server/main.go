package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chn0318/redolog/distlog"
	"github.com/chn0318/redolog/redologserver"
	"github.com/chn0318/redolog/sharedlog"
	"github.com/chn0318/redolog/sharedlog/memorylog"
	"github.com/chn0318/redolog/sharedlog/redisstream"
	"github.com/chn0318/redolog/sharedlog/scalog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	if err := newCommand(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newCommand builds the daemon command. Flags, REDOLOG_* environment
// variables and an optional config file all resolve through v.
func newCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "redologd",
		Short:        "Serve a sharded redo log writer over gRPC",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path := v.GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return errors.Wrapf(err, "reading config %s", path)
				}
			}
			return run(cmd.Context(), v)
		},
	}

	distlog.SetDefaults(v)
	flags := cmd.Flags()
	flags.String("config", "", "path to a config file")
	flags.Int(distlog.KeyShardCount, v.GetInt(distlog.KeyShardCount), "number of redo log streams")
	flags.String(distlog.KeyStreamPrefix, v.GetString(distlog.KeyStreamPrefix), "name prefix of the redo log streams")
	flags.Duration(distlog.KeyOrderingTimeout, 0, "how long an end marker waits for its start marker (0 waits forever)")
	flags.String(distlog.KeyDeleteMode, v.GetString(distlog.KeyDeleteMode), "delete result: last or all")
	flags.String("backend", "redis", "stream store: memory, redis or scalog")
	flags.String("redis-addr", "localhost:6379", "redis server address")
	flags.String("redis-password", "", "redis password")
	flags.Int("redis-db", 0, "redis database")
	flags.Int("data-replication-factor", 1, "scalog data replication factor")
	flags.String("disc-ip", "127.0.0.1", "scalog discovery ip")
	flags.Int("disc-port", 21024, "scalog discovery port")
	flags.Int("data-port", 23282, "scalog data port")
	flags.Int("scalog-clients", 4, "scalog client pool size")
	flags.String("grpc-addr", ":50051", "gRPC listen address")
	flags.String("metrics-addr", ":9090", "prometheus metrics listen address, empty to disable")
	flags.String("log-level", "info", "log level")
	v.BindPFlags(flags)

	v.SetEnvPrefix("REDOLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "log-level %q", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func openStore(v *viper.Viper) (sharedlog.Store, error) {
	switch backend := v.GetString("backend"); backend {
	case "memory":
		return memorylog.NewMemoryLog(), nil
	case "redis":
		return redisstream.NewRedisStoreFromConfig(v), nil
	case "scalog":
		return scalog.NewScalogSystem(v)
	default:
		return nil, errors.Errorf("unknown backend %q", backend)
	}
}

func run(ctx context.Context, v *viper.Viper) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(v.GetString("log-level"))
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := distlog.LoadConfig(v)
	if err != nil {
		return err
	}
	store, err := openStore(v)
	if err != nil {
		return err
	}
	defer store.Close()

	writer, err := distlog.NewWriter(ctx, cfg, store, distlog.WithLogger(log))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(writer.PrometheusCollectors()...)

	lis, err := net.Listen("tcp", v.GetString("grpc-addr"))
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	grpcServer := grpc.NewServer()
	redologserver.RegisterRedologServer(grpcServer, redologserver.NewServer(writer, log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})

	var metricsServer *http.Server
	if addr := v.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: addr, Handler: mux}
		g.Go(func() error {
			log.Info("Metrics server listening", zap.String("addr", addr))
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metricsServer != nil {
			metricsServer.Shutdown(shutdownCtx)
		}
		return writer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
