package main

import (
	"fmt"
	"net/http"
	"time"
)

// Upstream de mentira para validar o gateway na mão: responde qualquer rota e
// simula a demora de uma análise de IA em /api/ai/analyze.
func main() {
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "ok: %s %s\n", r.Method, r.URL.Path)
		fmt.Println("Log: requisição recebida em", r.URL.Path)
	})
	http.HandleFunc("/api/ai/analyze", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1 * time.Second)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"feedback":[{"category":"accessibility","severity":"high","text":"contraste baixo no botão principal"}]}`)
		fmt.Println("Log: análise simulada concluída")
	})
	fmt.Println("Servidor rodando em http://localhost:8082")
	if err := http.ListenAndServe(":8082", nil); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
