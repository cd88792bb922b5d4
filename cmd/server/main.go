// Package main runs the gateway server: a rate-limited HTTP facade over
// an Alephium node and explorer, serving token portfolios, balance
// history and network stats with two-tier caching.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"alephium-gateway/internal/cache"
	"alephium-gateway/internal/domain"
	"alephium-gateway/internal/gateway"
	"alephium-gateway/internal/history"
	"alephium-gateway/internal/kvstore"
	"alephium-gateway/internal/node"
	"alephium-gateway/internal/observability"
	"alephium-gateway/internal/service"
	"alephium-gateway/internal/storage"
	chstore "alephium-gateway/internal/storage/clickhouse"
	"alephium-gateway/internal/tokens"
)

// Cache freshness windows. Token types and metadata are permanent
// facts; history and stats go stale quickly.
const (
	historyCacheTTL = 30 * time.Minute
	statsCacheTTL   = 60 * time.Second
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	nodeEndpoint := flag.String("node-endpoint", envOr("ALEPHIUM_NODE_ENDPOINT", "https://node.mainnet.alephium.org"), "Alephium node HTTP endpoint")
	explorerEndpoint := flag.String("explorer-endpoint", envOr("ALEPHIUM_EXPLORER_ENDPOINT", "https://backend.mainnet.alephium.org"), "Alephium explorer backend endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("ALEPHIUM_WS_ENDPOINT"), "Block-head WebSocket endpoint (optional)")
	storeKind := flag.String("store", envOr("CACHE_STORE", "memory"), "Persistent cache store: memory, postgres or redis")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (store=postgres)")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address (store=redis)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the history archive (optional)")
	cachePrefix := flag.String("cache-prefix", envOr("CACHE_PREFIX", "alephium"), "Key prefix for persisted cache entries")
	maxConcurrent := flag.Int("max-concurrent", gateway.DefaultMaxConcurrent, "Maximum concurrent upstream requests")
	minDelay := flag.Duration("min-delay", gateway.DefaultMinDelay, "Minimum delay between upstream request starts")
	listenAddr := flag.String("listen", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, storeCleanup, err := createStore(ctx, *storeKind, *postgresDSN, *redisAddr)
	if err != nil {
		logger.Fatalf("Failed to create cache store: %v", err)
	}
	defer storeCleanup()

	var archive storage.BalanceHistoryArchive
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to clickhouse: %v", err)
		}
		defer conn.Close()
		archive = chstore.NewBalanceHistoryArchive(conn)
		logger.Println("History archive enabled (clickhouse)")
	}

	gw := gateway.New(*maxConcurrent, *minDelay, log.New(os.Stdout, "[gateway] ", log.LstdFlags))
	defer gw.Close()

	metrics := observability.NewMetrics("", gw)

	client := node.NewHTTPClient(*nodeEndpoint, *explorerEndpoint,
		node.WithUpstreamObserver(metrics.RecordUpstreamCall))

	prefix := *cachePrefix + "_"
	cacheLogger := log.New(os.Stdout, "[cache] ", log.LstdFlags)
	typeCache := cache.New[domain.TokenType](prefix+"token_type_cache_", 0, store, cacheLogger)
	metaCache := cache.New[domain.TokenMetadata](prefix+"token_metadata_cache_", 0, store, cacheLogger)
	historyCache := cache.New[domain.CachedBalanceHistory](prefix+"balance_history_cache_", historyCacheTTL, store, cacheLogger)
	statsCache := cache.New[domain.NetworkStats](prefix+"network_stats_cache_", statsCacheTTL, store, cacheLogger)

	tokenList, err := tokens.LoadTokenList()
	if err != nil {
		logger.Fatalf("Failed to load token list: %v", err)
	}

	classifier := tokens.NewClassifier(client, gw, typeCache, log.New(os.Stdout, "[classifier] ", log.LstdFlags))
	enricher := tokens.NewEnricher(client, gw, metaCache, tokenList, log.New(os.Stdout, "[enricher] ", log.LstdFlags))

	historyLogger := log.New(os.Stdout, "[history] ", log.LstdFlags)
	orchestrator := history.NewOrchestrator(history.OrchestratorOptions{
		Client:        client,
		Gateway:       gw,
		Cache:         historyCache,
		Reconstructor: history.NewReconstructor(client, gw, historyLogger),
		Simulator:     history.NewSimulator(time.Now().UnixNano()),
		Archive:       archive,
		Logger:        historyLogger,
	})

	var blocks <-chan node.BlockEvent
	if *wsEndpoint != "" {
		sub := node.NewBlockSubscriber(*wsEndpoint, nil, log.New(os.Stdout, "[blocks] ", log.LstdFlags))
		defer sub.Close()
		blocks = sub.Events()
		logger.Printf("Block feed enabled: %s", *wsEndpoint)
	}

	svc := service.New(service.Options{
		Client:     client,
		Gateway:    gw,
		Classifier: classifier,
		Enricher:   enricher,
		History:    orchestrator,
		TypeCache:  typeCache,
		MetaCache:  metaCache,
		StatsCache: statsCache,
		Archive:    archive,
		Metrics:    metrics,
		Blocks:     blocks,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:         *listenAddr,
		Handler:      newRouter(svc, metrics, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Listening on %s", *listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Println("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}

	logger.Println("Shutdown complete")
}

// createStore builds the persistent cache backend.
func createStore(ctx context.Context, kind, postgresDSN, redisAddr string) (kvstore.Store, func(), error) {
	switch kind {
	case "memory":
		return kvstore.NewMemory(), func() {}, nil
	case "postgres":
		if postgresDSN == "" {
			return nil, nil, fmt.Errorf("--postgres-dsn is required for store=postgres")
		}
		pg, err := kvstore.NewPostgres(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return pg, func() { pg.Close() }, nil
	case "redis":
		if redisAddr == "" {
			return nil, nil, fmt.Errorf("--redis-addr is required for store=redis")
		}
		rd, err := kvstore.NewRedis(ctx, redisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return rd, func() { rd.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want memory, postgres or redis)", kind)
	}
}

// newRouter wires the HTTP surface.
func newRouter(svc *service.Service, metrics *observability.Metrics, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	handle := func(route string, fn func(w http.ResponseWriter, r *http.Request) error) {
		mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if err := fn(w, r); err != nil {
				status, kind := errorStatus(err)
				metrics.RecordRequestError(route, kind)
				if status >= http.StatusInternalServerError {
					logger.Printf("%s: %v", route, err)
				}
				writeJSON(w, status, map[string]string{"error": err.Error()})
			}
			metrics.RecordRequest(route, time.Since(start).Seconds())
		})
	}

	handle("GET /api/addresses/{address}/tokens", func(w http.ResponseWriter, r *http.Request) error {
		result, err := svc.GetAddressTokens(r.Context(), r.PathValue("address"))
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, result)
	})

	handle("GET /api/addresses/{address}/nfts", func(w http.ResponseWriter, r *http.Request) error {
		result, err := svc.GetAddressNFTs(r.Context(), r.PathValue("address"))
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, result)
	})

	handle("GET /api/addresses/{address}/history", func(w http.ResponseWriter, r *http.Request) error {
		days := 30
		if raw := r.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%w: days must be an integer", domain.ErrInvalidInput)
			}
			days = parsed
		}
		result, err := svc.FetchBalanceHistory(r.Context(), r.PathValue("address"), days)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, result)
	})

	handle("GET /api/addresses/{address}/history/archive", func(w http.ResponseWriter, r *http.Request) error {
		now := time.Now()
		fromTs, toTs := now.AddDate(-1, 0, 0).UnixMilli(), now.UnixMilli()
		if raw := r.URL.Query().Get("from"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: from must be unix milliseconds", domain.ErrInvalidInput)
			}
			fromTs = parsed
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: to must be unix milliseconds", domain.ErrInvalidInput)
			}
			toTs = parsed
		}
		result, err := svc.FetchArchivedHistory(r.Context(), r.PathValue("address"), fromTs, toTs)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, result)
	})

	handle("GET /api/network/stats", func(w http.ResponseWriter, r *http.Request) error {
		result, err := svc.FetchNetworkStats(r.Context())
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, result)
	})

	handle("GET /api/cache/stats", func(w http.ResponseWriter, r *http.Request) error {
		return writeJSON(w, http.StatusOK, svc.TokenCacheStats(r.Context()))
	})

	handle("DELETE /api/cache/tokens", func(w http.ResponseWriter, r *http.Request) error {
		var ids []string
		if raw := r.URL.Query().Get("ids"); raw != "" {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
		}
		svc.ClearTokenCache(r.Context(), ids...)
		return writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	})

	handle("POST /api/tokens/{id}/refresh", func(w http.ResponseWriter, r *http.Request) error {
		meta, err := svc.RefreshTokenMetadata(r.Context(), r.PathValue("id"))
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, meta)
	})

	return mux
}

// errorStatus maps domain errors onto HTTP statuses and a metric label.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrRestricted):
		return http.StatusForbidden, "restricted"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, domain.ErrParse):
		return http.StatusBadGateway, "parse"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
