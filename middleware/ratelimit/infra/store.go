package infra

import (
	"sync"
	"time"

	"github.com/harishghasolia07/Designsight/middleware/ratelimit/domain"
)

// Store é a implementação em memória do rate limit por janela deslizante
// (sliding window log): um log de timestamps por chave, com poda preguiçosa
// e limpeza periódica.
//
// Diferente de janela fixa, uma requisição de 59s atrás ainda conta contra uma
// janela de 60s mesmo que uma "nova" janela nominal já tenha começado. A decisão
// allow/deny usa sempre o conjunto deslizante; resetTime existe só para headers
// e para a coleta de chaves paradas.
type Store struct {
	mu         sync.Mutex
	entries    map[domain.Key]*requestLog
	sweepEvery time.Duration
	clock      func() time.Time
}

type requestLog struct {
	// resetTime marca o fim da janela nominal corrente. Não autoriza nada:
	// serve para o header X-RateLimit-Reset e para o janitor saber quando a
	// chave pode ser recolhida.
	resetTime time.Time
	// requests guarda o timestamp de cada requisição aceita, mais antiga
	// primeiro. A poda em todo Check limita o tamanho a MaxRequests entradas.
	requests []time.Time
}

type StoreOption func(*Store)

func WithSweepEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.sweepEvery = d }
}

// WithClock troca a fonte de tempo (testes determinísticos).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.clock = now }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries:    make(map[domain.Key]*requestLog),
		sweepEvery: 5 * time.Minute,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check implementa domain.LimiterStore. É o único mutador do estado.
//
// Garantia: para uma chave e policy fixas, em qualquer janela deslizante de
// duração p.Window nunca passam mais de p.MaxRequests requisições.
func (s *Store) Check(key domain.Key, p domain.Policy) domain.Decision {
	if err := p.Validate(); err != nil {
		// erro de programação: falha alto e cedo, antes de tocar no estado.
		panic(err)
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.entries[key]
	if !ok {
		log = &requestLog{resetTime: now.Add(p.Window)}
		s.entries[key] = log
	} else if !now.Before(log.resetTime) {
		// janela nominal venceu: recicla o marcador. Não limpa requests aqui;
		// a poda abaixo cuida da idade de cada entrada, independente disso.
		log.resetTime = now.Add(p.Window)
	}

	// poda: derruba tudo com idade >= p.Window (timestamp <= now - window).
	cutoff := now.Add(-p.Window)
	idx := 0
	for idx < len(log.requests) && !log.requests[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		log.requests = log.requests[idx:]
	}

	count := len(log.requests)
	if count >= p.MaxRequests {
		// a capacidade só volta quando a entrada mais antiga sair da janela.
		oldest := log.requests[0]
		retry := oldest.Add(p.Window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return domain.Decision{
			Allowed:    false,
			Limit:      p.MaxRequests,
			Remaining:  0,
			Reset:      log.resetTime,
			RetryAfter: retry,
			Message:    p.Message,
		}
	}

	log.requests = append(log.requests, now)
	return domain.Decision{
		Allowed:   true,
		Limit:     p.MaxRequests,
		Remaining: p.MaxRequests - count - 1,
		Reset:     log.resetTime,
		Message:   p.Message,
	}
}

// Reset descarta o estado da chave; o próximo Check começa do zero.
func (s *Store) Reset(key domain.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Sweep remove chaves cuja janela nominal já venceu e que não tiveram
// atividade nova. Limita a memória a "chaves ativas na última janela",
// não "todas as chaves já vistas".
func (s *Store) Sweep() {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, log := range s.entries {
		if !now.Before(log.resetTime) {
			delete(s.entries, k)
		}
	}
}

// Len é usado em testes e diagnóstico.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SweepEvery expõe o intervalo configurado do janitor.
func (s *Store) SweepEvery() time.Duration { return s.sweepEvery }

// StartJanitor inicia uma goroutine que recolhe chaves vencidas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx DoneContext) {
	if s.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(s.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
