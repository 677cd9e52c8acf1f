package server

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

func parseTemplates() (*template.Template, error) {
	return template.New("roster").Funcs(template.FuncMap{
		"value": func(field *string) string {
			if field == nil {
				return ""
			}
			return *field
		},
	}).ParseFS(templateFiles, "templates/*.tmpl")
}
