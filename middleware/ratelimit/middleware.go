package ratelimit

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/harishghasolia07/Designsight/middleware/ratelimit/application"
	"github.com/harishghasolia07/Designsight/middleware/ratelimit/domain"
)

type Options struct {
	Store    domain.LimiterStore
	Policies []domain.NamedPolicy
	Stats    domain.StatsStore

	IdentityFn   IdentityFunc
	UserIDHeader string
	// TrustXForwardedFor deve ser true apenas atrás de proxy confiável.
	TrustXForwardedFor bool

	RejectStatus        int
	AddRateLimitHeaders bool
}

// deniedBody é o corpo JSON do 429. Campos legíveis por máquina + a mensagem
// da policy violada; nunca stack trace.
type deniedBody struct {
	Error      string `json:"error"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	Reset      int64  `json:"reset"`
	RetryAfter int    `json:"retryAfter"`
}

// Middleware aplica as policies (em ordem) sobre a identidade resolvida.
//
// Na violação, responde 429 com headers X-RateLimit-* e Retry-After.
// Se o próprio limiter falhar (panic na resolução de identidade ou no store),
// a requisição passa: fail open.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.IdentityFn == nil {
		opts.IdentityFn = DefaultIdentityFunc(opts.UserIDHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{Store: opts.Store}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, decs, violation := evaluate(svc, opts, r)

			if opts.Stats != nil {
				ev := domain.StatsEvent{
					Key:     identity,
					Allowed: violation == nil,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				}
				if violation != nil {
					ev.PolicyName = violation.Name
				}
				// best-effort: erro de stats não derruba request.
				_ = opts.Stats.Record(r.Context(), ev)
			}

			if violation != nil {
				writeDenied(w, violation.Decision, opts.RejectStatus)
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", string(identity))
				if len(decs) > 0 {
					setRateHeaders(w, decs[0])
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// evaluate isola o trecho que pode entrar em pânico. Qualquer erro interno do
// limiter vira allow, nunca um 500 nem um bloqueio indevido.
func evaluate(svc application.Service, opts Options, r *http.Request) (identity domain.Key, decs []domain.Decision, violation *domain.Violation) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ratelimit: internal error, failing open: %v", rec)
			identity, decs, violation = AnonymousIdentity, nil, nil
		}
	}()

	identity = domain.Key(opts.IdentityFn(r))
	decs, violation = svc.Evaluate(identity, opts.Policies)
	return identity, decs, violation
}

func setRateHeaders(w http.ResponseWriter, dec domain.Decision) {
	w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
	w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	w.Header().Set("X-RateLimit-Reset", formatInt64(dec.Reset.Unix()))
}

func writeDenied(w http.ResponseWriter, dec domain.Decision, status int) {
	retry := ceilSeconds(dec.RetryAfter)

	setRateHeaders(w, dec)
	w.Header().Set("Retry-After", formatInt(retry))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	msg := dec.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	_ = json.NewEncoder(w).Encode(deniedBody{
		Error:      msg,
		Limit:      dec.Limit,
		Remaining:  dec.Remaining,
		Reset:      dec.Reset.Unix(),
		RetryAfter: retry,
	})
}
