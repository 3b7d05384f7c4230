package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifica a falha de uma chamada ao provedor de IA. A classificação
// decide se há retry e com qual backoff.
type Kind int

const (
	// KindTransient: erro genérico/transitório, retry com backoff linear.
	KindTransient Kind = iota
	// KindRateLimit: sinal de quota/throttling do provedor, retry com
	// backoff exponencial e mensagem distinta na exaustão.
	KindRateLimit
	// KindContentBlocked: rejeição de segurança de conteúdo. Sem retry.
	KindContentBlocked
	// KindAuth: credencial/configuração inválida. Sem retry.
	KindAuth
)

// Sentinelas para quem constrói o erro já sabendo a classe.
var (
	ErrRateLimited    = errors.New("ai provider rate limited")
	ErrContentBlocked = errors.New("ai provider blocked the content")
	ErrBadCredentials = errors.New("ai provider rejected the credentials")
)

// substrings vistas nas respostas reais dos provedores; minúsculas.
var (
	rateLimitHints = []string{
		"rate limit", "quota", "429", "too many requests", "resource exhausted",
	}
	contentHints = []string{
		"safety", "content blocked", "content policy",
	}
	authHints = []string{
		"api key", "unauthorized", "401", "403", "invalid credentials", "permission denied",
	}
)

// Classify decide a classe do erro: primeiro por sentinela/tipo, depois por
// substring da mensagem (provedores devolvem texto, não códigos estáveis).
func Classify(err error) Kind {
	if err == nil {
		return KindTransient
	}

	if errors.Is(err, ErrRateLimited) {
		return KindRateLimit
	}
	if errors.Is(err, ErrContentBlocked) {
		return KindContentBlocked
	}
	if errors.Is(err, ErrBadCredentials) {
		return KindAuth
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return KindRateLimit
	}

	msg := strings.ToLower(err.Error())
	for _, h := range rateLimitHints {
		if strings.Contains(msg, h) {
			return KindRateLimit
		}
	}
	for _, h := range contentHints {
		if strings.Contains(msg, h) {
			return KindContentBlocked
		}
	}
	for _, h := range authHints {
		if strings.Contains(msg, h) {
			return KindAuth
		}
	}
	return KindTransient
}

// QuotaError marca exaustão de tentativas por quota. A mensagem é distinta da
// falha genérica para o chamador poder orientar o usuário (esperar / subir cota).
type QuotaError struct {
	Attempts int
	Err      error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("ai provider quota exhausted after %d attempts (wait or upgrade quota): %v", e.Attempts, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// IsQuotaExhausted reporta se err veio de exaustão de tentativas por quota.
func IsQuotaExhausted(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
