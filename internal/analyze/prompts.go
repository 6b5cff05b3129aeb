package analyze

import (
	"fmt"

	"github.com/docvault/docvault/constants"
)

func analysisSystemPrompt(declaredType string) string {
	return "Você é um assistente que analisa documentos pessoais digitalizados no Brasil. " +
		"O usuário classificou o documento como \"" + declaredType + "\". " +
		"Extraia os campos pedidos e responda SOMENTE com um objeto JSON, sem texto adicional. " +
		"Campos ausentes no documento devem ser null. Datas no formato AAAA-MM-DD e valores monetários como número."
}

func analysisUserPrompt(declaredType, text string) string {
	category, _ := constants.Canonicalize(declaredType)

	var fields string
	switch category {
	case constants.Medical:
		fields = `{
  "title": "título curto do documento",
  "summary": "resumo em uma frase",
  "doctorName": "nome do médico ou null",
  "specialty": "especialidade médica ou null",
  "diagnosis": "diagnóstico ou hipótese diagnóstica ou null",
  "examDate": "data do exame ou consulta ou null",
  "medications": ["medicamentos prescritos"] ,
  "pointsOfAttention": ["pontos que merecem atenção"]
}`
	case constants.Financial:
		fields = `{
  "title": "título curto do documento",
  "summary": "resumo em uma frase",
  "institution": "banco ou empresa emissora ou null",
  "amount": 0.0,
  "dueDate": "data de vencimento ou null",
  "status": "pago, pendente ou vencido, se identificável, senão null",
  "pointsOfAttention": ["pontos que merecem atenção"]
}`
	case constants.Budget:
		fields = `{
  "title": "título curto do documento",
  "summary": "resumo em uma frase",
  "provider": "fornecedor ou prestador ou null",
  "totalAmount": 0.0,
  "validUntil": "validade da proposta ou null",
  "items": [{"description": "item orçado", "amount": 0.0}],
  "pointsOfAttention": ["pontos que merecem atenção"]
}`
	default:
		fields = `{
  "title": "título curto do documento",
  "summary": "resumo em uma frase",
  "pointsOfAttention": ["pontos que merecem atenção"]
}`
	}

	return fmt.Sprintf("Analise o texto abaixo e preencha o JSON:\n%s\n\nTexto do documento:\n%s", fields, text)
}
