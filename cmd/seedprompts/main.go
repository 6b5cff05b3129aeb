package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/docvault/docvault/internal/common"
	"github.com/docvault/docvault/internal/prompts"
	"github.com/docvault/docvault/internal/repository"
)

// seedprompts loads the starter summary templates so operators have rows to
// tune instead of starting from an empty table.
func main() {
	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		log.Println("ERROR: DB_URL env var is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, pool, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer pool.Close()

	seeds := []prompts.Template{
		{
			Category: "medical",
			Name:     "resumo-medico-v1",
			Content: "Resuma o documento médico abaixo em até três frases e liste pontos de atenção. " +
				"Destaque resultados fora da referência, diagnósticos, medicamentos e datas de retorno.\n\nDocumento:\n{{texto}}",
			Active: true,
		},
		{
			Category: "financial",
			Name:     "resumo-financeiro-v1",
			Content: "Resuma o documento financeiro abaixo em até três frases e liste pontos de atenção. " +
				"Destaque valores, datas de vencimento, juros, multas e status de pagamento.\n\nDocumento:\n{{texto}}",
			Active: true,
		},
		{
			Category: "budget",
			Name:     "resumo-orcamento-v1",
			Content: "Resuma o orçamento abaixo em até três frases e liste pontos de atenção. " +
				"Destaque o valor total, a validade da proposta e itens de maior custo.\n\nDocumento:\n{{texto}}",
			Active: true,
		},
	}

	repo := prompts.NewRepository(db)
	for _, seed := range seeds {
		existing, err := repo.List(ctx, seed.Category)
		if err != nil {
			log.Fatalf("listing %s templates: %v", seed.Category, err)
		}
		if hasName(existing, seed.Name) {
			log.Printf("skip %s (already present)", seed.Name)
			continue
		}
		id, err := repo.Create(ctx, seed)
		if err != nil {
			log.Fatalf("seeding %s: %v", seed.Name, err)
		}
		log.Printf("seeded %s as %s", seed.Name, id)
	}
}

func hasName(tpls []prompts.Template, name string) bool {
	for _, t := range tpls {
		if t.Name == name {
			return true
		}
	}
	return false
}
