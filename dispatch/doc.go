// Package dispatch governa o tráfego de SAÍDA para o provedor de IA:
// uma fila FIFO com teto de concorrência e espaçamento mínimo entre inícios
// de tarefa, mais um wrapper de retry com backoff.
//
// É independente do rate limit por identidade (middleware/ratelimit): aquele
// protege o app de clientes; este protege a cota do app junto ao provedor,
// não importa qual usuário disparou a chamada.
//
//   - Queue: maxConcurrent tarefas em voo + minInterval entre inícios (global,
//     não por chamador). Ordem de início segue a ordem de submissão.
//   - Do/DoResult: até MaxAttempts tentativas; sinal de quota do provedor usa
//     backoff exponencial com teto, erro transitório usa backoff linear, e
//     erro de credencial ou bloqueio de conteúdo não é retentado.
package dispatch
