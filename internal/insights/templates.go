package insights

import (
	"github.com/docvault/docvault/constants"
)

const placeholder = "{{texto}}"

const systemPrompt = "Você é um assistente que resume documentos pessoais para usuários no Brasil. " +
	"Responda SOMENTE com um objeto JSON no formato " +
	`{"summary": "...", "pointsOfAttention": ["..."]}` +
	", sem texto adicional. Escreva em português claro e direto."

// defaultTemplate is the built-in prompt used when no active template exists
// for the category. Custom templates live in the prompt_templates table and
// must contain the {{texto}} placeholder.
func defaultTemplate(category string) string {
	canonical, _ := constants.Canonicalize(category)

	var focus string
	switch canonical {
	case constants.Medical:
		focus = "Destaque resultados fora da referência, diagnósticos, medicamentos e datas de retorno."
	case constants.Financial:
		focus = "Destaque valores, datas de vencimento, juros, multas e status de pagamento."
	case constants.Budget:
		focus = "Destaque o valor total, a validade da proposta e itens de maior custo."
	case constants.Legal:
		focus = "Destaque prazos, obrigações das partes e cláusulas de rescisão ou multa."
	default:
		focus = "Destaque datas, valores e qualquer pendência que exija ação do usuário."
	}

	return "Resuma o documento abaixo em até três frases e liste pontos de atenção. " +
		focus +
		"\n\nDocumento:\n" + placeholder
}

func concisePrompt(category, text string) string {
	return "Resuma o documento abaixo em UMA frase curta e liste no máximo DOIS pontos de atenção. " +
		"Seja breve.\n\nDocumento:\n" + text
}
