package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultIdentityFunc_UserIDWinsOverIP(t *testing.T) {
	fn := DefaultIdentityFunc("X-User-Id", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-User-Id", " 42 ")
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "user:42" {
		t.Fatalf("expected user id to win, got %q", got)
	}
}

func TestDefaultIdentityFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultIdentityFunc("X-User-Id", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "ip:1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultIdentityFunc_XRealIPWhenNoForwardedFor(t *testing.T) {
	fn := DefaultIdentityFunc("", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Real-IP", "5.6.7.8")

	if got := fn(r); got != "ip:5.6.7.8" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestDefaultIdentityFunc_IgnoresForwardHeadersWhenNotTrusted(t *testing.T) {
	fn := DefaultIdentityFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	// sem proxy confiável na frente, XFF é spoofável: vale o RemoteAddr
	if got := fn(r); got != "ip:10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultIdentityFunc_AnonymousWhenNothingAvailable(t *testing.T) {
	fn := DefaultIdentityFunc("X-User-Id", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""

	if got := fn(r); got != AnonymousIdentity {
		t.Fatalf("expected anonymous bucket, got %q", got)
	}
}

func TestDefaultIdentityFunc_PrefixesPreventCollisions(t *testing.T) {
	fn := DefaultIdentityFunc("X-User-Id", false)

	// user id "numérico" nunca colide com um IP igual
	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.RemoteAddr = "10.0.0.9:5555"
	r1.Header.Set("X-User-Id", "10.0.0.9")

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.RemoteAddr = "10.0.0.9:5555"

	if fn(r1) == fn(r2) {
		t.Fatalf("expected user and ip identities to differ, both %q", fn(r1))
	}
}
