package domain

// Camada de domínio do rate limit por identidade.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"errors"
	"time"
)

// Key identifica quem está sendo limitado (ex: "user:42", "ip:1.2.3.4", "anonymous").
type Key string

// Policy é uma regra de throttling: no máximo MaxRequests dentro de qualquer
// janela deslizante de duração Window.
//
// Message é o texto devolvido ao cliente quando a policy bloqueia; o algoritmo
// não interpreta esse campo.
type Policy struct {
	Window      time.Duration
	MaxRequests int
	Message     string
}

var (
	ErrInvalidWindow = errors.New("policy: window must be > 0")
	ErrInvalidMax    = errors.New("policy: max requests must be > 0")
)

// Validate rejeita policies mal construídas. Janela ou limite não-positivos são
// erro de programação e devem falhar na hora da chamada, nunca corromper estado.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return ErrInvalidWindow
	}
	if p.MaxRequests <= 0 {
		return ErrInvalidMax
	}
	return nil
}

// NamedPolicy associa um nome estável a uma policy, para composição.
// O nome entra na sub-chave do contador (key + ":" + name), então policies
// compostas nunca compartilham contador.
type NamedPolicy struct {
	Name   string
	Policy Policy
}

// Decision é o resultado de uma avaliação. Violação é valor, não erro.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset é o fim da janela nominal corrente (informativo, para headers).
	// A decisão allow/deny em si usa a janela deslizante, não este campo.
	Reset time.Time
	// RetryAfter só é preenchido quando Allowed=false: tempo até a entrada mais
	// antiga da janela expirar. A camada HTTP arredonda para segundos inteiros.
	RetryAfter time.Duration
	Message    string
}

// Violation aponta a primeira policy violada em uma avaliação composta.
type Violation struct {
	Name     string
	Decision Decision
}

// LimiterStore mantém o estado por chave e decide allow/deny.
//
// Check é o único mutador: registra a requisição quando permite. Reset descarta
// o estado da chave (testes e override administrativo). Implementações devem
// ser seguras para uso concorrente.
type LimiterStore interface {
	Check(key Key, p Policy) Decision
	Reset(key Key)
}
