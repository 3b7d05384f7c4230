package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Task é uma unidade de trabalho sem argumentos. O resultado sai pelo erro;
// para tarefas com valor de retorno, use ExecuteResult.
type Task func(ctx context.Context) error

var ErrQueueClosed = errors.New("dispatch: queue closed")

// Queue serializa chamadas de saída: no máximo maxConcurrent em voo e pelo
// menos minInterval entre o INÍCIO de uma tarefa e o início da seguinte.
//
// A fila é FIFO: um único goroutine despachante consome as submissões na
// ordem de chegada. Uma tarefa ainda não iniciada pode ser cancelada pelo
// contexto de quem submeteu; tarefa já iniciada roda até o fim.
type Queue struct {
	jobs   chan *job
	sem    chan struct{}
	pacer  *rate.Limiter
	closed chan struct{}
	once   sync.Once
}

type job struct {
	ctx  context.Context
	task Task
	done chan error
}

// NewQueue cria a fila e inicia o despachante. Pare com Close.
func NewQueue(maxConcurrent int, minInterval time.Duration) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	q := &Queue{
		// jobs sem buffer: a "fila" são os submetedores bloqueados no send,
		// que o runtime atende em ordem de chegada. Isso deixa o cancelamento
		// pré-início natural (o select do Execute ainda segura o job).
		jobs:   make(chan *job),
		sem:    make(chan struct{}, maxConcurrent),
		closed: make(chan struct{}),
	}
	if minInterval > 0 {
		// burst 1: a primeira tarefa sai na hora, as seguintes esperam o
		// restante do intervalo desde o último início.
		q.pacer = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	go q.dispatch()
	return q
}

// Execute submete a tarefa e espera o resultado dela.
//
// Se o ctx cancelar enquanto a tarefa ainda está na fila, retorna ctx.Err()
// sem executá-la. Depois que a tarefa inicia, Execute espera a conclusão.
func (q *Queue) Execute(ctx context.Context, task Task) error {
	j := &job{ctx: ctx, task: task, done: make(chan error, 1)}

	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrQueueClosed
	}

	return <-j.done
}

// ExecuteResult é Execute para tarefas que produzem um valor.
func ExecuteResult[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := q.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Close encerra o despachante. Tarefas em voo terminam; submissões novas (ou
// ainda não recebidas) falham com ErrQueueClosed.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}

func (q *Queue) dispatch() {
	for {
		var j *job
		select {
		case <-q.closed:
			return
		case j = <-q.jobs:
		}

		if err := j.ctx.Err(); err != nil {
			j.done <- err
			continue
		}

		// vaga primeiro; só depois o espaçamento. Enquanto o despachante
		// espera aqui, os próximos submetedores ficam na fila (FIFO).
		select {
		case q.sem <- struct{}{}:
		case <-j.ctx.Done():
			j.done <- j.ctx.Err()
			continue
		case <-q.closed:
			j.done <- ErrQueueClosed
			return
		}

		if q.pacer != nil {
			if err := q.pacer.Wait(j.ctx); err != nil {
				<-q.sem
				j.done <- err
				continue
			}
		}

		go func(j *job) {
			defer func() { <-q.sem }()
			j.done <- j.task(j.ctx)
		}(j)
	}
}
