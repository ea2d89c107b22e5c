package alerts

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type integrityAlertData struct {
	LeadID     string
	Detail     string
	DetectedAt string
}

var alertTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func renderAlertTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
