package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harishghasolia07/Designsight/middleware/ratelimit"
	"github.com/harishghasolia07/Designsight/middleware/ratelimit/domain"
	"github.com/harishghasolia07/Designsight/middleware/ratelimit/infra"
)

func main() {
	// Exemplo: injetando o middleware diretamente no seu webserver (sem proxy)
	store := infra.NewStore()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := http.Handler(mux)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(h)
	h = ratelimit.Middleware(ratelimit.Options{
		Store: store,
		Policies: []domain.NamedPolicy{
			{Name: "api", Policy: domain.Policy{
				Window:      time.Minute,
				MaxRequests: 30,
				Message:     "too many requests, slow down",
			}},
		},
		UserIDHeader:        "X-User-Id", // preenchido pela sua camada de auth
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
	})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
