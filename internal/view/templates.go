package view

import (
	"embed"
	"html/template"
	"strings"
	"sync"
)

//go:embed templates/*.tmpl
var viewTemplateFS embed.FS

var (
	viewTemplates *template.Template
	viewOnce      sync.Once
	viewErr       error
)

func executeViewTemplate(name string, data any) (template.HTML, error) {
	viewOnce.Do(func() {
		funcMap := template.FuncMap{
			"join": strings.Join,
		}
		tmpl := template.New("view").Funcs(funcMap)
		viewTemplates, viewErr = tmpl.ParseFS(viewTemplateFS, "templates/*.tmpl")
	})

	if viewErr != nil {
		return "", viewErr
	}

	var builder strings.Builder
	if err := viewTemplates.ExecuteTemplate(&builder, name, data); err != nil {
		return "", err
	}

	// html/template escaped every interpolated value.
	return template.HTML(strings.TrimRight(builder.String(), "\n")), nil
}
