package lens

import "strings"

const systemInstruction = `You generate concise JSON summaries for professional résumés.
Respond with compact JSON only. Do not include commentary, markdown or any text outside the JSON object.
Base every statement on the résumé below; do not invent employers, titles or numbers.`

const outputFormat = `{
  "summary": "<80-120 word paragraph that answers the lens>",
  "bullets": [
    "bullet one",
    "bullet two",
    "bullet three"
  ]
}`

// BuildPrompt renders the single prompt sent to every provider. The document is never truncated.
func BuildPrompt(lens, document string) string {
	var b strings.Builder
	b.Grow(len(systemInstruction) + len(lens) + len(document) + len(outputFormat) + 64)

	b.WriteString("System:\n")
	b.WriteString(systemInstruction)
	b.WriteString("\n\nLens:\n")
	b.WriteString(lens)
	b.WriteString("\n\nResume:\n")
	b.WriteString(document)
	b.WriteString("\n\nFormat:\n")
	b.WriteString(outputFormat)
	return b.String()
}
