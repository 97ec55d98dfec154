package render

import (
	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// markdownWriter walks a goldmark AST and writes the prose into an fpdf
// document. It covers the constructs the writing stage actually emits:
// paragraphs, emphasis, nested headings, lists and thematic breaks.
type markdownWriter struct {
	pdf    *fpdf.Fpdf
	source []byte
	theme  Theme
	size   float64

	bold      bool
	italic    bool
	listLevel int
}

func newMarkdownWriter(pdf *fpdf.Fpdf, theme Theme, size float64) *markdownWriter {
	return &markdownWriter{
		pdf:   pdf,
		theme: theme,
		size:  size,
	}
}

// write renders a markdown body at the current document position
func (w *markdownWriter) write(markdown string) error {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
	)
	w.source = []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(w.source))

	w.applyFont()
	return ast.Walk(doc, w.walk)
}

func (w *markdownWriter) applyFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(w.theme.Font, style, w.size)
	w.pdf.SetTextColor(w.theme.Text.R, w.theme.Text.G, w.theme.Text.B)
}

func (w *markdownWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		// Body headings sit below the outline-driven section headings
		if entering {
			w.pdf.Ln(4)
			w.pdf.SetFont(w.theme.Font, "B", w.size+1)
			w.pdf.SetTextColor(w.theme.Secondary.R, w.theme.Secondary.G, w.theme.Secondary.B)
		} else {
			w.pdf.Ln(5)
			w.applyFont()
		}
	case ast.KindParagraph:
		if !entering {
			w.pdf.Ln(6)
		}
	case ast.KindText:
		if entering {
			w.pdf.Write(5, string(n.Text(w.source)))
			if t := n.(*ast.Text); t.SoftLineBreak() || t.HardLineBreak() {
				w.pdf.Write(5, " ")
			}
		}
	case ast.KindEmphasis:
		if n.(*ast.Emphasis).Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.applyFont()
	case ast.KindList:
		if entering {
			w.listLevel++
		} else {
			w.listLevel--
			if w.listLevel == 0 {
				w.pdf.Ln(3)
			}
		}
	case ast.KindListItem:
		if entering {
			w.pdf.Ln(5)
			indent := float64(w.listLevel) * 5.0
			w.pdf.SetX(w.pdf.GetX() + indent)
			w.pdf.Write(5, "- ")
		}
	case ast.KindThematicBreak:
		if entering {
			w.pdf.Ln(3)
			left, _, right, _ := w.pdf.GetMargins()
			pageW, _ := w.pdf.GetPageSize()
			w.pdf.SetDrawColor(w.theme.Secondary.R, w.theme.Secondary.G, w.theme.Secondary.B)
			w.pdf.Line(left, w.pdf.GetY(), pageW-right, w.pdf.GetY())
			w.pdf.Ln(3)
		}
	}
	return ast.WalkContinue, nil
}
