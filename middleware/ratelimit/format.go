// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers/logs.
//
//	Evita puxar fmt (que é mais “pesado” e genérico) só para formatação simples
//	e padroniza o arredondamento do Retry-After (teto em segundos inteiros).

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

// ceilSeconds arredonda para cima: quem esperar esse tanto garante que a
// entrada mais antiga já saiu da janela.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
