package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hodlpool/config"
	"hodlpool/core"
	"hodlpool/observability/logging"
	"hodlpool/rpc"
	"hodlpool/state"
	"hodlpool/storage"

	"github.com/go-chi/chi/v5"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const rpcTokenEnv = "HODL_RPC_TOKEN"

// vaultAddress derives the address deposit principal is pooled under. It has
// no known private key.
func vaultAddress() [20]byte {
	var vault [20]byte
	hash := ethcrypto.Keccak256([]byte("hodlpool/vault"))
	copy(vault[:], hash[12:])
	return vault
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("HODL_ENV"))
	logger := logging.Setup("hodld", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager, err := state.NewManager(db)
	if err != nil {
		logger.Error("Failed to load state", slog.Any("error", err))
		os.Exit(1)
	}

	node, err := core.NewNode(manager, cfg.Params(), vaultAddress(), logger)
	if err != nil {
		logger.Error("Failed to start node", slog.Any("error", err))
		os.Exit(1)
	}
	for _, asset := range cfg.Assets {
		if err := node.Book().SetTransferFee(asset.Symbol, asset.TransferFeeBPS); err != nil {
			logger.Error("Failed to configure asset", slog.String("asset", asset.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
	}

	authToken := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if authToken == "" {
		authToken = cfg.RPCAuthToken
	}
	server := rpc.NewServer(node, authToken)

	rpcErr := make(chan error, 1)
	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("address", cfg.RPCAddress))
		rpcErr <- server.Start(cfg.RPCAddress)
	}()

	var metricsSrv *http.Server
	metricsErr := make(chan error, 1)
	if strings.TrimSpace(cfg.MetricsAddress) != "" {
		r := chi.NewRouter()
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		r.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: r, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("Starting metrics server", slog.String("address", cfg.MetricsAddress))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	case err := <-rpcErr:
		if err != nil {
			logger.Error("RPC server failed", slog.Any("error", err))
		}
	case err := <-metricsErr:
		logger.Error("Metrics server failed", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("RPC shutdown failed", slog.Any("error", err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("Metrics shutdown failed", slog.Any("error", err))
		}
	}
}
