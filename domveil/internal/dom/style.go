package dom

import (
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Declarations parses the inline style attribute of n. Unparsable input
// yields whatever declarations were read before the error.
func Declarations(n *html.Node) []*css.Declaration {
	raw := strings.TrimSpace(Attr(n, "style"))
	if raw == "" {
		return nil
	}
	// The parser only closes a declaration on ';' or '}'.
	if !strings.HasSuffix(raw, ";") {
		raw += ";"
	}
	decls, _ := parser.ParseDeclarations(raw)
	out := decls[:0]
	for _, d := range decls {
		if d.Property == "" {
			continue
		}
		d.Property = strings.ToLower(d.Property)
		out = append(out, d)
	}
	return out
}

// Style returns the inline value of prop and whether it is set.
func Style(n *html.Node, prop string) (string, bool) {
	for _, d := range Declarations(n) {
		if d.Property == prop {
			return d.Value, true
		}
	}
	return "", false
}

// SetStyle writes prop into the inline style of n, replacing any previous
// declaration of the same property.
func (d *Document) SetStyle(n *html.Node, prop, val string, important bool) {
	decls := Declarations(n)
	found := false
	for _, decl := range decls {
		if decl.Property == prop {
			decl.Value = val
			decl.Important = important
			found = true
		}
	}
	if !found {
		decls = append(decls, &css.Declaration{Property: prop, Value: val, Important: important})
	}
	d.writeStyle(n, decls)
}

// RemoveStyle deletes prop from the inline style of n.
func (d *Document) RemoveStyle(n *html.Node, prop string) {
	decls := Declarations(n)
	out := decls[:0]
	for _, decl := range decls {
		if decl.Property != prop {
			out = append(out, decl)
		}
	}
	if len(out) == len(decls) {
		return
	}
	d.writeStyle(n, out)
}

func (d *Document) writeStyle(n *html.Node, decls []*css.Declaration) {
	if len(decls) == 0 {
		d.RemoveAttr(n, "style")
		return
	}
	parts := make([]string, len(decls))
	for i, decl := range decls {
		parts[i] = decl.String()
	}
	d.SetAttr(n, "style", strings.Join(parts, " "))
}
