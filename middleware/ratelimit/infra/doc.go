// Package infra contém implementações concretas: o store de janela deslizante
// (log de timestamps por chave), o semáforo de concorrência e os backends de
// estatísticas (memória, Redis, Prometheus).
package infra
