package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/harishghasolia07/Designsight/dispatch"
	"github.com/harishghasolia07/Designsight/middleware/ratelimit"
	"github.com/harishghasolia07/Designsight/middleware/ratelimit/application"
	"github.com/harishghasolia07/Designsight/middleware/ratelimit/domain"
	"github.com/harishghasolia07/Designsight/middleware/ratelimit/infra"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// .env é opcional; variáveis de ambiente reais têm precedência.
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	store := infra.NewStore(infra.WithSweepEvery(cfg.sweepEvery))

	statsStore, statsCleanup, promRegistry, err := buildStats(cfg)
	if err != nil {
		log.Fatalf("stats error: %v", err)
	}
	defer statsCleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	// checa o upstream antes de aceitar tráfego; falha transitória ganha retry.
	if err := waitUpstream(ctx, cfg.upstreamURL); err != nil {
		log.Fatalf("upstream not reachable: %v", err)
	}

	// pacer global das rotas de IA: protege a cota junto ao provedor,
	// não importa qual usuário disparou a análise.
	queue := dispatch.NewQueue(cfg.aiMaxConcurrent, cfg.aiMinInterval)
	defer queue.Close()

	policies := buildPolicies(cfg)

	aiHandler := withPolicies(cfg, store, statsStore, policies.ai, paceAnalysis(queue, proxy))
	authHandler := withPolicies(cfg, store, statsStore, policies.auth, proxy)
	apiHandler := withPolicies(cfg, store, statsStore, policies.api, proxy)

	svc := application.Service{Store: store}
	allPolicies := append(append(append([]domain.NamedPolicy{}, policies.ai...), policies.auth...), policies.api...)

	mux := http.NewServeMux()
	mux.HandleFunc(resetPath, func(w http.ResponseWriter, r *http.Request) {
		// endpoint administrativo: sem auth própria, o deployment deve
		// restringir o acesso (rede interna / auth do proxy da frente).
		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		identity := strings.TrimSpace(r.URL.Query().Get("identity"))
		if identity == "" {
			http.Error(w, "identity query param is required", http.StatusBadRequest)
			return
		}
		svc.ResetAll(domain.Key(identity), allPolicies)
		w.WriteHeader(http.StatusNoContent)
	})
	if promRegistry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, cfg.aiPathPrefix):
			aiHandler.ServeHTTP(w, r)
		case strings.HasPrefix(r.URL.Path, cfg.authPathPrefix):
			authHandler.ServeHTTP(w, r)
		default:
			apiHandler.ServeHTTP(w, r)
		}
	})

	h := http.Handler(mux)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second, // análise de IA pode demorar
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("rate: ai=%d/min %d/day api=%d/%s auth=%d/%s userHeader=%q trustXFF=%v",
		cfg.aiPerMinute, cfg.aiPerDay, cfg.apiMax, cfg.apiWindow, cfg.authMax, cfg.authWindow, cfg.userIDHeader, cfg.trustXFF)
	log.Printf("ai-pacer: maxConcurrent=%d minInterval=%s", cfg.aiMaxConcurrent, cfg.aiMinInterval)
	log.Printf("stats: backend=%q  concurrency: max=%d acquireTimeout=%s", cfg.statsBackend, cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

const resetPath = "/_ratelimit/reset"

type policySets struct {
	ai   []domain.NamedPolicy
	auth []domain.NamedPolicy
	api  []domain.NamedPolicy
}

func buildPolicies(cfg config) policySets {
	return policySets{
		// ordem importa: minuto primeiro, depois diário ("primeira falha ganha").
		ai: []domain.NamedPolicy{
			{Name: "minute", Policy: domain.Policy{
				Window:      time.Minute,
				MaxRequests: cfg.aiPerMinute,
				Message:     "AI analysis limit reached, try again in a minute",
			}},
			{Name: "daily", Policy: domain.Policy{
				Window:      24 * time.Hour,
				MaxRequests: cfg.aiPerDay,
				Message:     "daily AI analysis limit reached, try again tomorrow",
			}},
		},
		auth: []domain.NamedPolicy{
			{Name: "auth", Policy: domain.Policy{
				Window:      cfg.authWindow,
				MaxRequests: cfg.authMax,
				Message:     "too many authentication attempts, try again later",
			}},
		},
		api: []domain.NamedPolicy{
			{Name: "api", Policy: domain.Policy{
				Window:      cfg.apiWindow,
				MaxRequests: cfg.apiMax,
				Message:     "too many requests, slow down",
			}},
		},
	}
}

func withPolicies(cfg config, store domain.LimiterStore, stats domain.StatsStore, policies []domain.NamedPolicy, next http.Handler) http.Handler {
	return ratelimit.Middleware(ratelimit.Options{
		Store:               store,
		Policies:            policies,
		Stats:               stats,
		UserIDHeader:        cfg.userIDHeader,
		TrustXForwardedFor:  cfg.trustXFF,
		AddRateLimitHeaders: cfg.addHeaders,
	})(next)
}

// paceAnalysis faz a chamada de análise passar pela fila FIFO: no máximo
// N análises em voo e um respiro mínimo entre inícios.
func paceAnalysis(queue *dispatch.Queue, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := queue.Execute(r.Context(), func(ctx context.Context) error {
			next.ServeHTTP(w, r.WithContext(ctx))
			return nil
		})
		if err != nil {
			// a tarefa nem chegou a iniciar (cancelada na fila ou fila fechada),
			// então nada foi escrito ainda.
			http.Error(w, "analysis queue unavailable", http.StatusServiceUnavailable)
		}
	})
}

// waitUpstream dá alguns pings no upstream antes do gateway abrir a porta.
func waitUpstream(ctx context.Context, upstream string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	return dispatch.Do(ctx, dispatch.RetryOptions{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond}, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("connection refused: %w", err)
		}
		_ = resp.Body.Close()
		return nil
	})
}

func buildStats(cfg config) (domain.StatsStore, func(), *prometheus.Registry, error) {
	noop := func() {}

	switch cfg.statsBackend {
	case "", "none":
		return nil, noop, nil, nil

	case "memory":
		return infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys)), noop, nil, nil

	case "redis":
		if strings.TrimSpace(cfg.statsRedisAddr) == "" {
			return nil, noop, nil, errors.New("STATS_REDIS_ADDR is required when STATS_BACKEND=redis")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, noop, nil, fmt.Errorf("redis stats ping error: %w", err)
		}
		s := infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsRedisPrefix),
			infra.WithStatsTTL(cfg.statsRedisTTL),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
		return s, func() { _ = rdb.Close() }, nil, nil

	case "prometheus":
		reg := prometheus.NewRegistry()
		s, err := infra.NewPromStatsStore(reg)
		if err != nil {
			return nil, noop, nil, err
		}
		return s, noop, reg, nil
	}

	return nil, noop, nil, fmt.Errorf("unknown STATS_BACKEND %q", cfg.statsBackend)
}

type config struct {
	listenAddr  string
	upstreamURL string

	aiPathPrefix   string
	authPathPrefix string

	aiPerMinute int
	aiPerDay    int
	apiMax      int
	apiWindow   time.Duration
	authMax     int
	authWindow  time.Duration
	sweepEvery  time.Duration

	userIDHeader string
	trustXFF     bool
	addHeaders   bool

	aiMaxConcurrent int
	aiMinInterval   time.Duration

	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsBackend       string
	statsTrackKeys     bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsRedisPrefix   string
	statsRedisTTL      time.Duration
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")

	cfg.aiPathPrefix = getenvDefault("AI_PATH_PREFIX", "/api/ai")
	cfg.authPathPrefix = getenvDefault("AUTH_PATH_PREFIX", "/api/auth")

	cfg.aiPerMinute = getenvIntDefault("RATE_AI_PER_MINUTE", 5)
	cfg.aiPerDay = getenvIntDefault("RATE_AI_PER_DAY", 100)
	cfg.apiMax = getenvIntDefault("RATE_API_MAX", 100)
	cfg.apiWindow = getenvDurationDefault("RATE_API_WINDOW", 15*time.Minute)
	cfg.authMax = getenvIntDefault("RATE_AUTH_MAX", 5)
	cfg.authWindow = getenvDurationDefault("RATE_AUTH_WINDOW", 15*time.Minute)
	cfg.sweepEvery = getenvDurationDefault("RATE_SWEEP_EVERY", 5*time.Minute)

	cfg.userIDHeader = getenvDefault("USER_ID_HEADER", "X-User-Id")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", true)

	cfg.aiMaxConcurrent = getenvIntDefault("AI_MAX_CONCURRENT", 2)
	cfg.aiMinInterval = getenvDurationDefault("AI_MIN_INTERVAL", 2*time.Second)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsBackend = strings.ToLower(getenvDefault("STATS_BACKEND", "none"))
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)
	cfg.statsRedisAddr = os.Getenv("STATS_REDIS_ADDR")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsRedisPrefix = getenvDefault("STATS_REDIS_PREFIX", "ratelimit:stats")
	cfg.statsRedisTTL = getenvDurationDefault("STATS_REDIS_TTL", 24*time.Hour)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.aiPerMinute <= 0 || cfg.aiPerDay <= 0 || cfg.apiMax <= 0 || cfg.authMax <= 0 {
		return config{}, errors.New("rate limits must be > 0")
	}
	if cfg.apiWindow <= 0 || cfg.authWindow <= 0 {
		return config{}, errors.New("rate windows must be > 0")
	}
	if cfg.aiMaxConcurrent <= 0 {
		return config{}, errors.New("AI_MAX_CONCURRENT must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
