package application

import (
	"github.com/harishghasolia07/Designsight/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit por identidade.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna decisões.
// É construído explicitamente no start do processo e injetado nos handlers;
// não existe singleton de pacote.
type Service struct {
	Store domain.LimiterStore
}

// Check avalia uma única policy para a identidade. Sem store configurado,
// permite (fail open).
func (s Service) Check(identity domain.Key, p domain.Policy) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true, Limit: p.MaxRequests, Remaining: p.MaxRequests}
	}
	return s.Store.Check(identity, p)
}

// CheckAll avalia as policies na ordem dada e retorna a primeira violada,
// ou nil se todas permitiram.
//
// Cada policy conta sob a sub-chave identity + ":" + name, então policies
// não interferem nos contadores umas das outras.
//
// Atenção: é "primeira falha ganha", não transação. Policies avaliadas antes
// da que falhou já registraram esta requisição nos seus contadores, mesmo com
// o resultado composto sendo "negado". Comportamento herdado do sistema
// original, mantido de propósito.
func (s Service) CheckAll(identity domain.Key, policies []domain.NamedPolicy) *domain.Violation {
	_, v := s.Evaluate(identity, policies)
	return v
}

// Evaluate é CheckAll devolvendo também as decisões das policies que chegaram
// a ser avaliadas (na mesma ordem da lista). A camada HTTP usa isso para
// preencher headers informativos em respostas permitidas.
func (s Service) Evaluate(identity domain.Key, policies []domain.NamedPolicy) ([]domain.Decision, *domain.Violation) {
	if s.Store == nil {
		return nil, nil
	}
	decs := make([]domain.Decision, 0, len(policies))
	for _, np := range policies {
		dec := s.Store.Check(subKey(identity, np.Name), np.Policy)
		decs = append(decs, dec)
		if !dec.Allowed {
			return decs, &domain.Violation{Name: np.Name, Decision: dec}
		}
	}
	return decs, nil
}

// ResetAll descarta os contadores da identidade para todas as policies dadas
// (e a chave crua, caso tenha sido usada via Check direto).
func (s Service) ResetAll(identity domain.Key, policies []domain.NamedPolicy) {
	if s.Store == nil {
		return
	}
	s.Store.Reset(identity)
	for _, np := range policies {
		s.Store.Reset(subKey(identity, np.Name))
	}
}

func subKey(identity domain.Key, name string) domain.Key {
	return identity + ":" + domain.Key(name)
}
