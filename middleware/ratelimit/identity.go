package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// IdentityFunc deriva a chave de identidade de uma requisição.
type IdentityFunc func(r *http.Request) string

// AnonymousIdentity é o balde fixo usado quando não há user id nem IP.
const AnonymousIdentity = "anonymous"

// Prefixos evitam colisão entre espaços distintos: um user id numérico nunca
// pode colidir com um IP "numérico".
const (
	userPrefix = "user:"
	ipPrefix   = "ip:"
)

// DefaultIdentityFunc resolve a identidade com a precedência:
//
//  1. user id autenticado (header confiável, preenchido pela camada de auth)
//  2. IP do cliente (primeiro X-Forwarded-For, depois X-Real-IP, depois RemoteAddr)
//  3. balde anônimo
func DefaultIdentityFunc(userIDHeader string, trustXFF bool) IdentityFunc {
	return func(r *http.Request) string {
		if userIDHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(userIDHeader)); v != "" {
				return userPrefix + v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ipPrefix + ip
					}
				}
			}
			if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
				return ipPrefix + rip
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return ipPrefix + host
		}
		if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
			return ipPrefix + addr
		}
		return AnonymousIdentity
	}
}
