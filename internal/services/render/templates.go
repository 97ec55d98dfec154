package render

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"
)

// Template describes the layout parameters of one report style. Templates
// are YAML files in the templates directory; a built-in fallback covers the
// case where a requested template is missing so rendering never aborts on a
// missing asset.
type Template struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	PageSize         string  `yaml:"page_size"`
	MarginMM         float64 `yaml:"margin_mm"`
	BodyFontSize     float64 `yaml:"body_font_size"`
	CoverStyle       string  `yaml:"cover_style"`
	SectionNumbering bool    `yaml:"section_numbering"`
	MaxCallouts      int     `yaml:"max_callouts"`
}

func builtinTemplate() Template {
	return Template{
		ID:               "default",
		Name:             "Standard Report",
		PageSize:         "A4",
		MarginMM:         18,
		BodyFontSize:     10,
		CoverStyle:       "banner",
		SectionNumbering: true,
		MaxCallouts:      5,
	}
}

// Registry loads and serves report templates
type Registry struct {
	templates map[string]Template
	logger    arbor.ILogger
}

// NewRegistry loads all *.yaml templates from dir. A missing or empty
// directory is not an error; the registry then serves only the built-in.
func NewRegistry(dir string, logger arbor.ILogger) *Registry {
	r := &Registry{
		templates: make(map[string]Template),
		logger:    logger,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug().Str("dir", dir).Msg("No templates directory, using built-in template only")
		return r
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to read template file")
			continue
		}
		tpl := builtinTemplate()
		if err := yaml.Unmarshal(data, &tpl); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to parse template file")
			continue
		}
		if tpl.ID == "" {
			tpl.ID = entry.Name()[:len(entry.Name())-len(".yaml")]
		}
		r.templates[tpl.ID] = tpl
		logger.Debug().Str("template", tpl.ID).Msg("Template loaded")
	}

	return r
}

// Get returns the named template, or the built-in fallback when the name
// is unknown or empty.
func (r *Registry) Get(id string) Template {
	if tpl, ok := r.templates[id]; ok {
		return tpl
	}
	if id != "" && id != "default" {
		r.logger.Debug().Str("template", id).Msg("Template not found, using built-in")
	}
	return builtinTemplate()
}
