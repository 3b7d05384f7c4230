// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.CheckAll(identity, policies) avalia uma lista ordenada de policies
// e retorna a primeira violação (ou nil).
package application
