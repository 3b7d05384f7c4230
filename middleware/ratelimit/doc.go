// Package ratelimit fornece adapters HTTP (net/http) para o rate limit por
// identidade e o limite de concorrência do DesignSight.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (avaliação de policies, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela deslizante, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + resolução de identidade +
//     tradução para status/headers/body 429
//
// Fluxo no gateway:
//
//  1. Resolve a identidade do cliente (user id autenticado > IP > anônimo)
//  2. Chama a camada application para avaliar as policies da rota, em ordem
//  3. Se alguma bloqueou, responde 429 com X-RateLimit-* e Retry-After
//  4. Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Erro interno do limiter nunca bloqueia a requisição: o middleware recupera
// e deixa passar (fail open), priorizando disponibilidade.
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_AI_PER_MINUTE, RATE_AI_PER_DAY, RATE_API_MAX e AI_MAX_CONCURRENT.
package ratelimit
