package templates

import (
	"embed"
	"encoding/base64"
	"html/template"
	"time"
)

// FS holds the HTML templates.
//
//go:embed *.html
var FS embed.FS

// ParseTemplates parses HTML templates from the embedded filesystem.
// It takes a variadic list of template file paths and returns a parsed template
// or an error if parsing fails.
func ParseTemplates(files ...string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"subtract": func(a, b int) int {
			return a - b
		},
		"dataURI": func(png []byte) template.URL {
			return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
		},
		"formatTime": func(t time.Time) string {
			return t.UTC().Format("2006-01-02 15:04:05 UTC")
		},
		"deref": func(v *int) int {
			if v == nil {
				return 0
			}
			return *v
		},
	}

	return template.New("").Funcs(funcMap).ParseFS(FS, files...)
}
