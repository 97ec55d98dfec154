// -----------------------------------------------------------------------
// Document Rendering Stage - final PDF assembly
// -----------------------------------------------------------------------

package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/stats"
)

// Service renders the structured document content into a paginated PDF
type Service struct {
	registry *Registry
	logger   arbor.ILogger
}

// NewService creates a render service backed by a template registry
func NewService(registry *Registry, logger arbor.ILogger) *Service {
	return &Service{
		registry: registry,
		logger:   logger,
	}
}

// RenderPDF composes the document into PDF bytes and returns the exact
// page count. Branding merges over theme defaults; a missing template
// falls back to the built-in layout rather than aborting.
func (s *Service) RenderPDF(content *models.DocumentContent, templateID string, branding models.Branding) ([]byte, int, error) {
	tpl := s.registry.Get(templateID)
	theme := ResolveTheme(branding)

	pdf := fpdf.New("P", "mm", tpl.PageSize, "")
	pdf.SetMargins(tpl.MarginMM, tpl.MarginMM, tpl.MarginMM)
	pdf.SetAutoPageBreak(true, tpl.MarginMM)
	pdf.SetTitle(content.Title, true)

	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetY(-14)
		pdf.SetFont(theme.Font, "I", 8)
		pdf.SetTextColor(theme.Secondary.R, theme.Secondary.G, theme.Secondary.B)
		pdf.CellFormat(0, 8, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	s.renderCover(pdf, tpl, theme, content)
	if err := s.renderExecutiveSummary(pdf, tpl, theme, content); err != nil {
		return nil, 0, err
	}
	if err := s.renderSections(pdf, tpl, theme, content); err != nil {
		return nil, 0, err
	}
	if err := s.renderCharts(pdf, tpl, theme, content.Charts); err != nil {
		return nil, 0, err
	}
	if err := s.renderConclusion(pdf, tpl, theme, content); err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("pdf output failed: %w", err)
	}

	pageCount, err := s.verify(buf.Bytes())
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info().
		Str("title", content.Title).
		Int("pages", pageCount).
		Int("bytes", buf.Len()).
		Msg("PDF rendered")

	return buf.Bytes(), pageCount, nil
}

// verify validates the produced PDF and returns its exact page count
func (s *Service) verify(data []byte) (int, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdf verification failed: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return 0, fmt.Errorf("pdf validation failed: %w", err)
	}
	return ctx.PageCount, nil
}

func (s *Service) renderCover(pdf *fpdf.Fpdf, tpl Template, theme Theme, content *models.DocumentContent) {
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	if tpl.CoverStyle == "banner" {
		pdf.SetFillColor(theme.Primary.R, theme.Primary.G, theme.Primary.B)
		pdf.Rect(0, 0, pageW, pageH/3, "F")
		pdf.SetFillColor(theme.Accent.R, theme.Accent.G, theme.Accent.B)
		pdf.Rect(0, pageH/3, pageW, 2.5, "F")
		pdf.SetTextColor(255, 255, 255)
	} else {
		pdf.SetTextColor(theme.Primary.R, theme.Primary.G, theme.Primary.B)
	}

	pdf.SetFont(theme.Font, "B", 26)
	pdf.SetXY(tpl.MarginMM, pageH/3-50)
	pdf.MultiCell(pageW-2*tpl.MarginMM, 12, content.Title, "", "L", false)

	if content.Subtitle != "" {
		pdf.SetFont(theme.Font, "", 14)
		pdf.MultiCell(pageW-2*tpl.MarginMM, 8, content.Subtitle, "", "L", false)
	}

	pdf.SetTextColor(theme.Text.R, theme.Text.G, theme.Text.B)
	pdf.SetFont(theme.Font, "", 10)
	pdf.SetXY(tpl.MarginMM, pageH-2*tpl.MarginMM)
	pdf.CellFormat(0, 6, time.Now().Format("January 2006"), "", 0, "L", false, 0, "")
}

func (s *Service) renderExecutiveSummary(pdf *fpdf.Fpdf, tpl Template, theme Theme, content *models.DocumentContent) error {
	pdf.AddPage()
	s.sectionHeading(pdf, tpl, theme, "Executive Summary")

	writer := newMarkdownWriter(pdf, theme, tpl.BodyFontSize)
	if err := writer.write(content.ExecutiveSummary); err != nil {
		return fmt.Errorf("rendering executive summary: %w", err)
	}

	callouts := highlightWorthy(content.Statistics, tpl.MaxCallouts)
	for _, stat := range callouts {
		s.renderCallout(pdf, tpl, theme, stat)
	}
	return nil
}

func (s *Service) renderSections(pdf *fpdf.Fpdf, tpl Template, theme Theme, content *models.DocumentContent) error {
	for i, section := range content.Sections {
		pdf.AddPage()

		title := section.Title
		if tpl.SectionNumbering {
			title = fmt.Sprintf("%d. %s", i+1, title)
		}
		s.sectionHeading(pdf, tpl, theme, title)

		writer := newMarkdownWriter(pdf, theme, tpl.BodyFontSize)
		if section.Content != "" {
			if err := writer.write(section.Content); err != nil {
				return fmt.Errorf("rendering section %q: %w", section.Title, err)
			}
		}
		for _, sub := range section.Subsections {
			pdf.Ln(4)
			pdf.SetFont(theme.Font, "B", tpl.BodyFontSize+3)
			pdf.SetTextColor(theme.Secondary.R, theme.Secondary.G, theme.Secondary.B)
			pdf.MultiCell(0, 7, sub.Title, "", "L", false)
			pdf.Ln(1)
			if err := writer.write(sub.Content); err != nil {
				return fmt.Errorf("rendering subsection %q: %w", sub.Title, err)
			}
		}
	}
	return nil
}

func (s *Service) renderCharts(pdf *fpdf.Fpdf, tpl Template, theme Theme, charts []models.ChartImage) error {
	if len(charts) == 0 {
		return nil
	}
	pdf.AddPage()
	s.sectionHeading(pdf, tpl, theme, "Key Data")

	pageW, pageH := pdf.GetPageSize()
	imgW := pageW - 2*tpl.MarginMM
	imgH := imgW * float64(chartAspectH) / float64(chartAspectW)

	for i, chart := range charts {
		if pdf.GetY()+imgH > pageH-tpl.MarginMM {
			pdf.AddPage()
		}
		name := fmt.Sprintf("chart-%d", i)
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(chart.PNG))
		if pdf.Err() {
			return fmt.Errorf("embedding chart %q: %w", chart.Title, pdf.Error())
		}
		pdf.ImageOptions(name, tpl.MarginMM, pdf.GetY(), imgW, imgH, false, opts, 0, "")
		pdf.SetY(pdf.GetY() + imgH + 8)
	}
	return nil
}

// chart canvases are 1500x900, keep the aspect when scaling into the page
const (
	chartAspectW = 5
	chartAspectH = 3
)

func (s *Service) renderConclusion(pdf *fpdf.Fpdf, tpl Template, theme Theme, content *models.DocumentContent) error {
	pdf.AddPage()
	s.sectionHeading(pdf, tpl, theme, "Conclusion")

	writer := newMarkdownWriter(pdf, theme, tpl.BodyFontSize)
	if err := writer.write(content.Conclusion.Content); err != nil {
		return fmt.Errorf("rendering conclusion: %w", err)
	}

	if cta := content.Conclusion.CallToAction; cta != "" {
		pdf.Ln(6)
		pageW, _ := pdf.GetPageSize()
		boxW := pageW - 2*tpl.MarginMM
		pdf.SetFillColor(theme.Accent.R, theme.Accent.G, theme.Accent.B)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont(theme.Font, "B", tpl.BodyFontSize+1)
		pdf.SetX(tpl.MarginMM)
		pdf.MultiCell(boxW, 8, cta, "", "C", true)
		pdf.SetTextColor(theme.Text.R, theme.Text.G, theme.Text.B)
	}
	return nil
}

func (s *Service) sectionHeading(pdf *fpdf.Fpdf, tpl Template, theme Theme, title string) {
	pdf.SetFont(theme.Font, "B", 18)
	pdf.SetTextColor(theme.Primary.R, theme.Primary.G, theme.Primary.B)
	pdf.MultiCell(0, 10, title, "", "L", false)

	pageW, _ := pdf.GetPageSize()
	pdf.SetDrawColor(theme.Accent.R, theme.Accent.G, theme.Accent.B)
	pdf.SetLineWidth(0.8)
	pdf.Line(tpl.MarginMM, pdf.GetY()+1, pageW-tpl.MarginMM, pdf.GetY()+1)
	pdf.Ln(8)

	pdf.SetTextColor(theme.Text.R, theme.Text.G, theme.Text.B)
	pdf.SetLineWidth(0.2)
}

func (s *Service) renderCallout(pdf *fpdf.Fpdf, tpl Template, theme Theme, stat models.Statistic) {
	rec := stats.FormatStatistic(stat, "callout")

	pdf.Ln(4)
	pageW, _ := pdf.GetPageSize()
	boxW := pageW - 2*tpl.MarginMM

	pdf.SetFillColor(theme.Primary.R, theme.Primary.G, theme.Primary.B)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(theme.Font, "B", 16)
	pdf.SetX(tpl.MarginMM)
	pdf.MultiCell(boxW, 9, rec.Primary, "", "C", true)

	pdf.SetFont(theme.Font, "", tpl.BodyFontSize)
	pdf.MultiCell(boxW, 6, rec.Secondary, "", "C", true)
	if rec.Attribution != "" {
		pdf.SetFont(theme.Font, "I", tpl.BodyFontSize-2)
		pdf.MultiCell(boxW, 5, rec.Attribution, "", "C", true)
	}
	pdf.SetTextColor(theme.Text.R, theme.Text.G, theme.Text.B)
}

func highlightWorthy(statistics []models.Statistic, max int) []models.Statistic {
	var out []models.Statistic
	for _, stat := range statistics {
		if !stat.HighlightWorthy {
			continue
		}
		out = append(out, stat)
		if len(out) >= max {
			break
		}
	}
	return out
}
