package ui

import (
	"bytes"
	"html"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// textSanitizer strips every tag.
func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

// Entry is one ingredient on the index page.
type Entry struct {
	Name    string
	Title   string
	Summary string
	Kinds   []string
}

// Entries describes every ingredient of p in name order.
func Entries(p *pantry.Pantry, md goldmark.Markdown) []Entry {
	entries := make([]Entry, 0, len(p.Ingredients))
	for _, name := range p.Names() {
		ing, _ := p.Get(name)
		entries = append(entries, Entry{
			Name:    name,
			Title:   Title(name),
			Summary: Summary(md, ing),
			Kinds:   ing.Kinds(),
		})
	}
	return entries
}

// Title turns the last segment of an ingredient name into a display title:
// "forms/text-input" becomes "Text Input".
func Title(name string) string {
	base := path.Base(name)
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return cases.Title(language.English).String(base)
}

// Summary returns the first paragraph of the ingredient's documentation as
// plain text, or "" when there is none.
func Summary(md goldmark.Markdown, ing *pantry.Ingredient) string {
	source, err := os.ReadFile(ing.DocumentationPath())
	if err != nil {
		return ""
	}

	doc := md.Parser().Parse(text.NewReader(source))
	var para ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindParagraph {
			para = n
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if para == nil {
		return ""
	}

	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, source, para); err != nil {
		return ""
	}
	plain := html.UnescapeString(textSanitizer().Sanitize(buf.String()))
	return strings.Join(strings.Fields(plain), " ")
}
