package sqlchain

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompt/query.md
var queryTmpl string

var queryPrompt = template.Must(template.New("query").Parse(queryTmpl))

type promptData struct {
	Dialect  string
	TopK     int
	Tables   string
	Question string
	Query    string
	Result   string
}

func render(data promptData) (string, error) {
	var buf bytes.Buffer
	if err := queryPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render query prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// extractQuery pulls the SQL statement out of a model completion.
func extractQuery(completion string) string {
	text := completion
	if i := strings.Index(text, "SQLQuery:"); i >= 0 {
		text = text[i+len("SQLQuery:"):]
	}
	if i := strings.Index(text, "SQLResult:"); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "sql")
		if i := strings.Index(text, "```"); i >= 0 {
			text = text[:i]
		}
	}
	return strings.TrimSpace(text)
}

// extractAnswer strips an echoed "Answer:" label.
func extractAnswer(completion string) string {
	text := completion
	if i := strings.LastIndex(text, "Answer:"); i >= 0 {
		text = text[i+len("Answer:"):]
	}
	return strings.TrimSpace(text)
}

// formatRows renders a result as a header line plus one line per row.
func formatRows(columns []string, rows [][]any) string {
	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(cells, " | "))
	}
	return b.String()
}
