package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do rate limit, para observabilidade.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
// PolicyName identifica a policy violada (vazio quando permitido).
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key        Key
	Allowed    bool
	PolicyName string

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O middleware deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
