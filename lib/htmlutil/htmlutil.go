package htmlutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Blockquote: true, atom.Center: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Fieldset: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Hr: true, atom.Li: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Tbody: true,
	atom.Tfoot: true, atom.Thead: true, atom.Tr: true, atom.Ul: true, atom.Caption: true,
}

var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Head: true, atom.Noscript: true,
}

var innerWhitespace = regexp.MustCompile(`[ \t\r\f\v]+`)

func removeNonPrintable(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}

type textRenderer struct {
	out strings.Builder
}

func (r *textRenderer) newline() {
	r.out.WriteByte('\n')
}

func (r *textRenderer) walk(node *html.Node) {
	switch node.Type {
	case html.TextNode:
		r.out.WriteString(strings.ReplaceAll(node.Data, "\n", " "))
		return
	case html.ElementNode:
		if skippedElements[node.DataAtom] {
			return
		}
		if node.DataAtom == atom.Br {
			r.newline()
			return
		}
	}

	block := node.Type == html.ElementNode && blockElements[node.DataAtom]
	if block {
		r.newline()
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		r.walk(child)
	}
	if block {
		r.newline()
	}
	if node.Type == html.ElementNode && (node.DataAtom == atom.Td || node.DataAtom == atom.Th) {
		r.out.WriteByte(' ')
	}
}

// RenderText approximates the rendered text of a selection the way a browser's
// innerText does: block elements and <br> break lines, whitespace inside a line is
// collapsed, lines are trimmed and blank lines are dropped.
func RenderText(sel *goquery.Selection) string {
	var r textRenderer
	for _, n := range sel.Nodes {
		r.walk(n)
		r.newline()
	}

	var lines []string
	for _, line := range strings.Split(removeNonPrintable(r.out.String()), "\n") {
		line = strings.TrimSpace(innerWhitespace.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// InnerSplit returns, for every occurrence of pre in text, the trimmed text that
// follows it up to the next occurrence of end (or the end of text).
func InnerSplit(text, pre, end string) []string {
	parts := strings.Split(text, pre)
	if len(parts) < 2 {
		return nil
	}

	results := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		before, _, _ := strings.Cut(part, end)
		results = append(results, strings.TrimSpace(before))
	}
	return results
}
