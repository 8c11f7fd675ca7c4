package contact

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Layout selects the HTML wrapper around the submission content.
type Layout string

const (
	// LayoutBranded wraps the content in the product header and footer.
	LayoutBranded Layout = "branded"
	// LayoutMinimal renders the content with a bare heading.
	LayoutMinimal Layout = "minimal"
)

// ParseLayout normalizes a configured layout name. Empty means branded.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutBranded, LayoutMinimal:
		return l, nil
	case "":
		return LayoutBranded, nil
	default:
		return "", fmt.Errorf("contact: unknown email template %q (want branded or minimal)", s)
	}
}

// EmailData is everything the templates see. Rendering is a pure function of
// it; the caller supplies Year so output is reproducible.
type EmailData struct {
	Layout      Layout
	ProductName string
	Title       string
	Name        string
	Email       string
	Message     string
	Year        int
}

var (
	htmlTemplates = htmltemplate.Must(
		htmltemplate.New("email").
			Funcs(htmltemplate.FuncMap{"nl2br": nl2br}).
			ParseFS(templateFS, "templates/email.html.tmpl"),
	)
	textTemplate = texttemplate.Must(
		texttemplate.New("email.txt.tmpl").ParseFS(templateFS, "templates/email.txt.tmpl"),
	)
)

// RenderHTML renders the HTML body for d.Layout.
func RenderHTML(d EmailData) (string, error) {
	layout := d.Layout
	if layout == "" {
		layout = LayoutBranded
	}
	var buf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&buf, string(layout), d); err != nil {
		return "", fmt.Errorf("contact: render html: %w", err)
	}
	return buf.String(), nil
}

// RenderText renders the plain-text alternative body.
func RenderText(d EmailData) (string, error) {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("contact: render text: %w", err)
	}
	return buf.String(), nil
}

// nl2br escapes s and turns line breaks into <br>.
func nl2br(s string) htmltemplate.HTML {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	escaped := htmltemplate.HTMLEscapeString(s)
	return htmltemplate.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}
