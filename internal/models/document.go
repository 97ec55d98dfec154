package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/scribo/internal/common"
)

// DocumentStatus represents the document lifecycle states
type DocumentStatus string

const (
	DocumentStatusDraft       DocumentStatus = "draft"
	DocumentStatusGenerating  DocumentStatus = "generating"
	DocumentStatusReady       DocumentStatus = "ready"
	DocumentStatusDistributed DocumentStatus = "distributed"
	DocumentStatusFailed      DocumentStatus = "failed"
)

var validate = validator.New()

// GenerationOptions are caller-supplied settings for one generation run
type GenerationOptions struct {
	Tone               string   `json:"tone" validate:"omitempty,oneof=professional conversational academic persuasive"`
	Keywords           []string `json:"keywords,omitempty"`
	Industry           string   `json:"industry,omitempty"`
	Services           []string `json:"services,omitempty"`
	CustomDirection    string   `json:"custom_direction,omitempty"`
	ResearchDepth      string   `json:"research_depth,omitempty" validate:"omitempty,oneof=shallow standard deep"`
	TargetPages        int      `json:"target_pages,omitempty" validate:"omitempty,min=1,max=100"`
	TemplateID         string   `json:"template_id,omitempty"`
	AutoDistribute     bool     `json:"auto_distribute,omitempty"`
	DistributeChannels []string `json:"distribute_channels,omitempty"`
}

// Validate checks option constraints
func (o *GenerationOptions) Validate() error {
	return validate.Struct(o)
}

// Branding holds caller-supplied appearance overrides applied at render
// time. Empty fields fall back to documented defaults; callers never need
// to supply a complete set.
type Branding struct {
	PrimaryColor    string `json:"primary_color,omitempty"`
	SecondaryColor  string `json:"secondary_color,omitempty"`
	AccentColor     string `json:"accent_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	FontFamily      string `json:"font_family,omitempty"`
}

// Subsection is one nested unit of section content
type Subsection struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Section is one top-level unit of document content
type Section struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content,omitempty"`
	Subsections []Subsection `json:"subsections,omitempty"`
}

// Conclusion closes the document with a call to action
type Conclusion struct {
	Content      string `json:"content"`
	CallToAction string `json:"call_to_action,omitempty"`
}

// ContentVersion identifies the document content contract shape.
// Downstream rendering and re-rendering depend on this; bump on change.
const ContentVersion = "1"

// DocumentContent is the full structured generation output.
// This shape is a versioned contract (see ContentVersion).
type DocumentContent struct {
	Version          string       `json:"version"`
	Title            string       `json:"title"`
	Subtitle         string       `json:"subtitle,omitempty"`
	ExecutiveSummary string       `json:"executive_summary"`
	Sections         []Section    `json:"sections"`
	Conclusion       Conclusion   `json:"conclusion"`
	Statistics       []Statistic  `json:"statistics,omitempty"`
	Charts           []ChartImage `json:"charts,omitempty"`
}

// WordCount counts words across all prose fields
func (c *DocumentContent) WordCount() int {
	count := len(strings.Fields(c.ExecutiveSummary))
	for _, s := range c.Sections {
		count += len(strings.Fields(s.Content))
		for _, sub := range s.Subsections {
			count += len(strings.Fields(sub.Content))
		}
	}
	count += len(strings.Fields(c.Conclusion.Content))
	count += len(strings.Fields(c.Conclusion.CallToAction))
	return count
}

// Document is the target artifact of a generation run. It is created before
// the pipeline starts and mutated exclusively by the orchestrator while
// generating; once ready or failed it is immutable except for administrative
// edits.
type Document struct {
	ID       string `badgerhold:"key" json:"id"`
	AgencyID string `badgerholdIndex:"AgencyID" json:"agency_id"`
	ClientID string `json:"client_id"`

	Title string `json:"title"`
	Slug  string `json:"slug"`
	Topic string `json:"topic"`

	Status   DocumentStatus    `badgerholdIndex:"Status" json:"status"`
	Options  GenerationOptions `json:"generation_options"`
	Branding Branding          `json:"branding,omitempty"`

	Content    *DocumentContent `json:"content,omitempty"`
	PDFLocator string           `json:"pdf_locator,omitempty"`

	// Derived metrics, written at completion
	WordCount       int `json:"word_count,omitempty"`
	PageCount       int `json:"page_count,omitempty"`
	StatisticsCount int `json:"statistics_count,omitempty"`
	SourcesCount    int `json:"sources_count,omitempty"`

	// Distribution is handled by an external collaborator after completion
	DistributionStatus map[string]string `json:"distribution_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument creates a draft document for a topic
func NewDocument(agencyID, clientID, topic string, options GenerationOptions) *Document {
	now := time.Now()
	return &Document{
		ID:        common.NewDocumentID(),
		AgencyID:  agencyID,
		ClientID:  clientID,
		Topic:     topic,
		Title:     topic,
		Slug:      Slugify(topic),
		Status:    DocumentStatusDraft,
		Options:   options,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkGenerating transitions the document into generation
func (d *Document) MarkGenerating() {
	d.Status = DocumentStatusGenerating
	d.UpdatedAt = time.Now()
}

// MarkReady records completed content, locator and derived metrics
func (d *Document) MarkReady(content *DocumentContent, pdfLocator string, pageCount, sourcesCount int) {
	d.Content = content
	d.Title = content.Title
	d.PDFLocator = pdfLocator
	d.WordCount = content.WordCount()
	d.PageCount = pageCount
	d.StatisticsCount = len(content.Statistics)
	d.SourcesCount = sourcesCount
	d.Status = DocumentStatusReady
	d.UpdatedAt = time.Now()
}

// MarkFailed transitions the document to failed
func (d *Document) MarkFailed() {
	d.Status = DocumentStatusFailed
	d.UpdatedAt = time.Now()
}

// MarkDraft reverts a document that never received content
func (d *Document) MarkDraft() {
	d.Status = DocumentStatusDraft
	d.UpdatedAt = time.Now()
}

// MarkDistributed records distribution of a ready document
func (d *Document) MarkDistributed(channels map[string]string) {
	d.Status = DocumentStatusDistributed
	d.DistributionStatus = channels
	d.UpdatedAt = time.Now()
}

// Slugify converts a title into a URL-safe slug
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
