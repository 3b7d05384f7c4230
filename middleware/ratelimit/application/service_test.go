package application

import (
	"testing"
	"time"

	"github.com/harishghasolia07/Designsight/middleware/ratelimit/domain"
	"github.com/harishghasolia07/Designsight/middleware/ratelimit/infra"
)

// recordingStore registra cada chamada e nega as chaves marcadas.
type recordingStore struct {
	checked []domain.Key
	resets  []domain.Key
	deny    map[domain.Key]bool
}

func (s *recordingStore) Check(key domain.Key, p domain.Policy) domain.Decision {
	s.checked = append(s.checked, key)
	if s.deny[key] {
		return domain.Decision{Allowed: false, Limit: p.MaxRequests, Message: p.Message, RetryAfter: time.Second}
	}
	return domain.Decision{Allowed: true, Limit: p.MaxRequests, Remaining: p.MaxRequests - 1}
}

func (s *recordingStore) Reset(key domain.Key) {
	s.resets = append(s.resets, key)
}

func testPolicies() []domain.NamedPolicy {
	return []domain.NamedPolicy{
		{Name: "minute", Policy: domain.Policy{Window: time.Minute, MaxRequests: 5, Message: "minute cap"}},
		{Name: "daily", Policy: domain.Policy{Window: 24 * time.Hour, MaxRequests: 100, Message: "daily cap"}},
	}
}

func TestService_CheckAll_AllAllowedUsesSubKeysInOrder(t *testing.T) {
	store := &recordingStore{deny: map[domain.Key]bool{}}
	svc := Service{Store: store}

	v := svc.CheckAll("user:1", testPolicies())
	if v != nil {
		t.Fatalf("expected no violation, got %q", v.Name)
	}

	// cada policy conta na própria sub-chave, na ordem da lista
	want := []domain.Key{"user:1:minute", "user:1:daily"}
	if len(store.checked) != len(want) {
		t.Fatalf("expected %d checks, got %d", len(want), len(store.checked))
	}
	for i := range want {
		if store.checked[i] != want[i] {
			t.Fatalf("check %d: expected key %q, got %q", i, want[i], store.checked[i])
		}
	}
}

func TestService_CheckAll_FirstViolationShortCircuits(t *testing.T) {
	store := &recordingStore{deny: map[domain.Key]bool{"user:1:minute": true}}
	svc := Service{Store: store}

	v := svc.CheckAll("user:1", testPolicies())
	if v == nil {
		t.Fatalf("expected violation")
	}
	if v.Name != "minute" {
		t.Fatalf("expected violation name %q, got %q", "minute", v.Name)
	}
	if v.Decision.Message != "minute cap" {
		t.Fatalf("expected the violated policy's message, got %q", v.Decision.Message)
	}
	// a daily nem foi avaliada
	if len(store.checked) != 1 {
		t.Fatalf("expected short-circuit after first violation, got %d checks", len(store.checked))
	}
}

func TestService_CheckAll_EarlierPoliciesKeepTheirCount(t *testing.T) {
	// store real: comprova o efeito colateral parcial de verdade
	store := infra.NewStore()
	svc := Service{Store: store}

	policies := []domain.NamedPolicy{
		{Name: "minute", Policy: domain.Policy{Window: time.Minute, MaxRequests: 2, Message: "minute cap"}},
		{Name: "daily", Policy: domain.Policy{Window: 24 * time.Hour, MaxRequests: 100, Message: "daily cap"}},
	}

	svc.CheckAll("u", policies)
	svc.CheckAll("u", policies)

	v := svc.CheckAll("u", policies)
	if v == nil || v.Name != "minute" {
		t.Fatalf("expected minute violation on 3rd call, got %+v", v)
	}

	// as duas primeiras passagens registraram na daily também, mesmo a terceira
	// tendo sido negada pela minute: remaining reflete 2 registros + este check.
	dec := store.Check("u:daily", policies[1].Policy)
	if !dec.Allowed {
		t.Fatalf("expected daily to still allow")
	}
	if dec.Remaining != 97 {
		t.Fatalf("expected daily remaining=97 (2 recorded + this probe), got %d", dec.Remaining)
	}
}

func TestService_CheckAll_NilStoreFailsOpen(t *testing.T) {
	svc := Service{}
	if v := svc.CheckAll("u", testPolicies()); v != nil {
		t.Fatalf("expected nil violation without store, got %q", v.Name)
	}
}

func TestService_Check_NilStoreFailsOpen(t *testing.T) {
	svc := Service{}
	dec := svc.Check("u", domain.Policy{Window: time.Minute, MaxRequests: 3})
	if !dec.Allowed {
		t.Fatalf("expected allowed without store")
	}
}

func TestService_ResetAll_CoversRawKeyAndSubKeys(t *testing.T) {
	store := &recordingStore{deny: map[domain.Key]bool{}}
	svc := Service{Store: store}

	svc.ResetAll("user:1", testPolicies())

	want := []domain.Key{"user:1", "user:1:minute", "user:1:daily"}
	if len(store.resets) != len(want) {
		t.Fatalf("expected %d resets, got %d", len(want), len(store.resets))
	}
	for i := range want {
		if store.resets[i] != want[i] {
			t.Fatalf("reset %d: expected %q, got %q", i, want[i], store.resets[i])
		}
	}
}

func TestService_ResetThenCheckStartsFresh(t *testing.T) {
	store := infra.NewStore()
	svc := Service{Store: store}
	policies := []domain.NamedPolicy{
		{Name: "minute", Policy: domain.Policy{Window: time.Minute, MaxRequests: 1, Message: "minute cap"}},
	}

	svc.CheckAll("u", policies)
	if v := svc.CheckAll("u", policies); v == nil {
		t.Fatalf("expected violation before reset")
	}

	svc.ResetAll("u", policies)

	if v := svc.CheckAll("u", policies); v != nil {
		t.Fatalf("expected fresh start after reset, got violation %q", v.Name)
	}
}
