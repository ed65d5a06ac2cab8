package view

import (
	"embed"
	"html/template"
	"io"
	"net/url"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("page.html").
		Funcs(template.FuncMap{"retryURL": RetryURL}).
		ParseFS(templateFS, "templates/page.html"),
)

// Render пишет страницу поиска. Экранирование делает html/template.
func Render(w io.Writer, p Page) error {
	return pageTemplate.Execute(w, p)
}

// RetryURL - куда отправлять "Try Again" для запроса q.
func RetryURL(q string) string {
	return "/search/retry?" + url.Values{"q": {q}}.Encode()
}
