// -----------------------------------------------------------------------
// Chart Rendering Stage - statistic visualizations as PNG images
// -----------------------------------------------------------------------

package charts

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"math"

	"github.com/fogleman/gg"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/models"
	"golang.org/x/image/font/basicfont"
)

// Chart canvas at 150 DPI, 10x6 inches
const (
	chartWidth  = 1500
	chartHeight = 900
	marginPx    = 80
	titleBandPx = 90
)

// brandPalette is the default 8-color palette. When a series has more
// values than colors the palette cycles rather than running out.
var brandPalette = []color.Color{
	color.RGBA{0x1f, 0x4e, 0x79, 0xff},
	color.RGBA{0x2e, 0x86, 0xab, 0xff},
	color.RGBA{0xf1, 0x8f, 0x01, 0xff},
	color.RGBA{0xc7, 0x3e, 0x1d, 0xff},
	color.RGBA{0x3b, 0x8c, 0x5a, 0xff},
	color.RGBA{0x6c, 0x5b, 0x7b, 0xff},
	color.RGBA{0xa8, 0xa8, 0x3a, 0xff},
	color.RGBA{0x5d, 0x6d, 0x7e, 0xff},
}

// Style holds optional chart appearance overrides
type Style struct {
	Colors []color.Color
	Title  string
}

// Service renders visualization suggestions into PNG images
type Service struct {
	logger arbor.ILogger
}

// NewService creates a chart service
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// GenerateChart renders a chart of the given type into PNG bytes. An
// unrecognized type renders as a bar chart; empty data renders a
// "No data available" placeholder instead of failing.
func (s *Service) GenerateChart(chartType string, data models.ChartData, style Style) ([]byte, error) {
	if len(data.Values) == 0 {
		return s.renderPlaceholder(style.Title)
	}

	dc := newCanvas()
	drawTitle(dc, style.Title)
	palette := style.Colors
	if len(palette) == 0 {
		palette = brandPalette
	}

	switch chartType {
	case "horizontal_bar":
		drawHorizontalBars(dc, data, palette)
	case "line":
		drawLine(dc, data, palette)
	case "pie":
		drawPie(dc, data, palette, false)
	case "donut":
		drawPie(dc, data, palette, true)
	case "bar":
		drawBars(dc, data, palette)
	default:
		s.logger.Debug().Str("type", chartType).Msg("Unknown chart type, rendering as bar")
		drawBars(dc, data, palette)
	}

	return encodePNG(dc)
}

// RenderSuggestions renders at most the first three non-callout suggestions
// into chart images. Individual render failures are logged and skipped so a
// single bad series never fails the stage.
func (s *Service) RenderSuggestions(suggestions []models.VisualizationSuggestion) []models.ChartImage {
	var images []models.ChartImage
	for _, sg := range suggestions {
		if sg.Type == "callout" {
			continue
		}
		if len(images) >= 3 {
			break
		}
		img, err := s.GenerateChart(sg.Type, sg.Data, Style{Title: sg.Title})
		if err != nil {
			s.logger.Warn().Err(err).Str("title", sg.Title).Msg("Chart render failed, skipping")
			continue
		}
		images = append(images, models.ChartImage{
			Type:  sg.Type,
			Title: sg.Title,
			PNG:   img,
		})
	}
	return images
}

func newCanvas() *gg.Context {
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	return dc
}

func drawTitle(dc *gg.Context, title string) {
	if title == "" {
		return
	}
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(title, chartWidth/2, titleBandPx/2, 0.5, 0.5)
}

func paletteColor(palette []color.Color, i int) color.Color {
	return palette[i%len(palette)]
}

func drawBars(dc *gg.Context, data models.ChartData, palette []color.Color) {
	plotW := float64(chartWidth - 2*marginPx)
	plotH := float64(chartHeight - titleBandPx - 2*marginPx)
	baseY := float64(chartHeight - marginPx)
	maxVal := maxValue(data.Values)

	n := len(data.Values)
	slot := plotW / float64(n)
	barW := slot * 0.7

	for i, v := range data.Values {
		h := plotH * (v / maxVal)
		x := float64(marginPx) + float64(i)*slot + (slot-barW)/2
		y := baseY - h

		dc.SetColor(paletteColor(palette, i))
		dc.DrawRectangle(x, y, barW, h)
		dc.Fill()

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(formatValue(v), x+barW/2, y-12, 0.5, 1)
		if i < len(data.Labels) {
			dc.DrawStringAnchored(data.Labels[i], x+barW/2, baseY+18, 0.5, 0.5)
		}
	}
}

func drawHorizontalBars(dc *gg.Context, data models.ChartData, palette []color.Color) {
	labelBand := 260.0
	plotW := float64(chartWidth) - labelBand - 2*marginPx
	plotH := float64(chartHeight - titleBandPx - 2*marginPx)
	baseX := labelBand + marginPx
	maxVal := maxValue(data.Values)

	n := len(data.Values)
	slot := plotH / float64(n)
	barH := slot * 0.7

	for i, v := range data.Values {
		w := plotW * (v / maxVal)
		y := float64(titleBandPx+marginPx) + float64(i)*slot + (slot-barH)/2

		dc.SetColor(paletteColor(palette, i))
		dc.DrawRectangle(baseX, y, w, barH)
		dc.Fill()

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(formatValue(v), baseX+w+8, y+barH/2, 0, 0.5)
		if i < len(data.Labels) {
			dc.DrawStringAnchored(data.Labels[i], baseX-10, y+barH/2, 1, 0.5)
		}
	}
}

func drawLine(dc *gg.Context, data models.ChartData, palette []color.Color) {
	plotW := float64(chartWidth - 2*marginPx)
	plotH := float64(chartHeight - titleBandPx - 2*marginPx)
	baseY := float64(chartHeight - marginPx)
	maxVal := maxValue(data.Values)

	n := len(data.Values)
	step := plotW
	if n > 1 {
		step = plotW / float64(n-1)
	}

	dc.SetColor(paletteColor(palette, 0))
	dc.SetLineWidth(4)
	for i := 1; i < n; i++ {
		x0 := float64(marginPx) + float64(i-1)*step
		y0 := baseY - plotH*(data.Values[i-1]/maxVal)
		x1 := float64(marginPx) + float64(i)*step
		y1 := baseY - plotH*(data.Values[i]/maxVal)
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}

	for i, v := range data.Values {
		x := float64(marginPx) + float64(i)*step
		y := baseY - plotH*(v/maxVal)
		dc.SetColor(paletteColor(palette, 0))
		dc.DrawCircle(x, y, 6)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(formatValue(v), x, y-14, 0.5, 1)
		if i < len(data.Labels) {
			dc.DrawStringAnchored(data.Labels[i], x, baseY+18, 0.5, 0.5)
		}
	}
}

func drawPie(dc *gg.Context, data models.ChartData, palette []color.Color, donut bool) {
	cx := float64(chartWidth) / 2
	cy := float64(titleBandPx) + float64(chartHeight-titleBandPx)/2
	radius := math.Min(float64(chartWidth), float64(chartHeight-titleBandPx))/2 - float64(marginPx)

	var total float64
	for _, v := range data.Values {
		total += v
	}
	if total == 0 {
		total = 1
	}

	angle := -math.Pi / 2
	for i, v := range data.Values {
		sweep := 2 * math.Pi * (v / total)

		dc.SetColor(paletteColor(palette, i))
		dc.MoveTo(cx, cy)
		dc.DrawArc(cx, cy, radius, angle, angle+sweep)
		dc.LineTo(cx, cy)
		dc.ClosePath()
		dc.Fill()

		mid := angle + sweep/2
		lx := cx + math.Cos(mid)*radius*0.75
		ly := cy + math.Sin(mid)*radius*0.75
		dc.SetColor(color.White)
		dc.DrawStringAnchored(fmt.Sprintf("%.0f%%", 100*v/total), lx, ly, 0.5, 0.5)
		if i < len(data.Labels) {
			ox := cx + math.Cos(mid)*(radius+30)
			oy := cy + math.Sin(mid)*(radius+30)
			dc.SetColor(color.Black)
			dc.DrawStringAnchored(data.Labels[i], ox, oy, 0.5, 0.5)
		}

		angle += sweep
	}

	if donut {
		dc.SetColor(color.White)
		dc.DrawCircle(cx, cy, radius*0.5)
		dc.Fill()
	}
}

func (s *Service) renderPlaceholder(title string) ([]byte, error) {
	dc := newCanvas()
	drawTitle(dc, title)
	dc.SetColor(color.RGBA{0x88, 0x88, 0x88, 0xff})
	dc.DrawStringAnchored("No data available", chartWidth/2, chartHeight/2, 0.5, 0.5)
	return encodePNG(dc)
}

func encodePNG(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("png encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func maxValue(values []float64) float64 {
	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return 1
	}
	return max
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
