package dispatch

import (
	"context"
	"errors"
	"time"
)

// RetryOptions controla o wrapper de retry. Zero values usam os defaults.
type RetryOptions struct {
	MaxAttempts int           // default 3
	BaseDelay   time.Duration // default 1s
	MaxDelay    time.Duration // teto do backoff exponencial, default 60s
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 60 * time.Second
	}
	return o
}

// Do tenta fn até opts.MaxAttempts vezes.
//
//   - sinal de quota/throttling: espera min(MaxDelay, BaseDelay × 2^tentativa)
//     antes da próxima; se esgotar, devolve *QuotaError (mensagem distinta).
//   - erro transitório: espera BaseDelay × tentativa (linear).
//   - bloqueio de conteúdo ou credencial inválida: devolve na hora, sem retry.
//   - na última tentativa não há espera: retorna o que aconteceu.
func Do(ctx context.Context, opts RetryOptions, fn Task) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err

		kind := Classify(err)
		if kind == KindContentBlocked || kind == KindAuth {
			return err
		}
		if attempt == opts.MaxAttempts {
			break
		}

		var delay time.Duration
		if kind == KindRateLimit {
			delay = opts.BaseDelay << attempt
			if delay > opts.MaxDelay || delay <= 0 {
				delay = opts.MaxDelay
			}
		} else {
			delay = time.Duration(attempt) * opts.BaseDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if Classify(lastErr) == KindRateLimit {
		return &QuotaError{Attempts: opts.MaxAttempts, Err: lastErr}
	}
	return lastErr
}

// DoResult é Do para operações com valor de retorno.
func DoResult[T any](ctx context.Context, opts RetryOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, opts, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
