package chain

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/bull/ragchain/internal/memory"
	"github.com/bull/ragchain/internal/schema"
	"github.com/bull/ragchain/internal/storage"
)

var (
	//go:embed prompt/system.md
	defaultSystemPrompt string

	//go:embed prompt/answer.md
	defaultAnswerTmpl string

	//go:embed prompt/rephrase.md
	rephraseTmpl string
)

var rephrasePrompt = template.Must(template.New("rephrase").Parse(rephraseTmpl))

// answerData is the input of the answer template.
type answerData struct {
	Context  string
	Question string
}

type rephraseData struct {
	History  []memory.Turn
	Question string
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// formatContext joins retrieved texts, each tagged with its source when known.
func formatContext(results []storage.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.Record.Text)
		if src, ok := r.Record.Metadata[schema.MetaSource]; ok && src != "" {
			text = fmt.Sprintf("[source: %v]\n%s", src, text)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}
