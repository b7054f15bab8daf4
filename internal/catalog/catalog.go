// Package catalog loads the read-only library of attack module templates
// the editor places on the canvas.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rendis/attackchain/internal/expressions"
	"github.com/rendis/attackchain/internal/stats"
	"github.com/rendis/attackchain/pkg/schema"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// validate is a singleton validator instance.
var validate = validator.New()

// Template is a catalog entry.
type Template struct {
	ID                  string   `yaml:"id" json:"id" validate:"required"`
	Name                string   `yaml:"name" json:"name" validate:"required"`
	Description         string   `yaml:"description" json:"description,omitempty"`
	Category            string   `yaml:"category" json:"category" validate:"required,oneof=network web social physical wireless cloud iot mobile system"`
	Severity            string   `yaml:"severity" json:"severity" validate:"required,oneof=low medium high critical"`
	Icon                string   `yaml:"icon" json:"icon,omitempty"`
	EstimatedTime       string   `yaml:"estimated_time" json:"estimated_time" validate:"required"`
	Complexity          string   `yaml:"complexity" json:"complexity,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	Stealth             string   `yaml:"stealth" json:"stealth,omitempty" validate:"omitempty,oneof=noisy moderate quiet silent"`
	RequiresCredentials bool     `yaml:"requires_credentials" json:"requires_credentials,omitempty"`
	Prerequisites       []string `yaml:"prerequisites" json:"prerequisites,omitempty"`
	Payloads            []string `yaml:"payloads" json:"payloads,omitempty"`
	Techniques          []string `yaml:"techniques" json:"techniques,omitempty" validate:"dive,startswith=T"`
	MitreID             string   `yaml:"mitre_id" json:"mitre_id,omitempty"`
	References          []string `yaml:"references" json:"references,omitempty" validate:"dive,url"`
}

// Ref converts the template into the data a placed node carries.
func (t Template) Ref() schema.TemplateRef {
	return schema.TemplateRef{
		ID:            t.ID,
		Name:          t.Name,
		Category:      t.Category,
		Severity:      schema.Severity(t.Severity),
		Icon:          t.Icon,
		EstimatedTime: stats.ParseTimeRange(t.EstimatedTime),
		Prerequisites: append([]string(nil), t.Prerequisites...),
		Payloads:      append([]string(nil), t.Payloads...),
		Techniques:    append([]string(nil), t.Techniques...),
	}
}

// filterEnv is the variable set visible to Filter expressions.
func (t Template) filterEnv() map[string]any {
	r := stats.ParseTimeRange(t.EstimatedTime)
	return map[string]any{
		"id":                   t.ID,
		"name":                 t.Name,
		"category":             t.Category,
		"severity":             t.Severity,
		"complexity":           t.Complexity,
		"stealth":              t.Stealth,
		"requires_credentials": t.RequiresCredentials,
		"techniques":           t.Techniques,
		"payloads":             t.Payloads,
		"min_time":             r.Min,
		"max_time":             r.Max,
	}
}

// Tactic is a MITRE ATT&CK tactic used to group presets.
type Tactic struct {
	ID          string   `yaml:"id" json:"id" validate:"required"`
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Icon        string   `yaml:"icon" json:"icon,omitempty"`
	Techniques  []string `yaml:"techniques" json:"techniques,omitempty"`
}

// Preset is a ready-made chain: its templates are placed in order and
// connected in sequence.
type Preset struct {
	ID            string   `yaml:"id" json:"id" validate:"required"`
	Name          string   `yaml:"name" json:"name" validate:"required"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	Tactic        string   `yaml:"tactic" json:"tactic,omitempty"`
	Templates     []string `yaml:"templates" json:"templates" validate:"required,min=1"`
	EstimatedTime string   `yaml:"estimated_time" json:"estimated_time,omitempty"`
	Difficulty    string   `yaml:"difficulty" json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	Tags          []string `yaml:"tags" json:"tags,omitempty"`
}

type file struct {
	Templates []Template `yaml:"templates" validate:"required,min=1,dive"`
	Tactics   []Tactic   `yaml:"tactics" validate:"dive"`
	Presets   []Preset   `yaml:"presets" validate:"dive"`
}

// Catalog is an immutable, indexed template library.
type Catalog struct {
	templates []Template
	byID      map[string]int
	tactics   []Tactic
	presets   []Preset
	presetIdx map[string]int

	filterOnce sync.Once
	filter     *expressions.ExprEngine
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, formatValidationError(err)
	}

	c := &Catalog{
		templates: f.Templates,
		byID:      make(map[string]int, len(f.Templates)),
		tactics:   f.Tactics,
		presets:   f.Presets,
		presetIdx: make(map[string]int, len(f.Presets)),
	}
	for i, t := range f.Templates {
		if _, dup := c.byID[t.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate template id %q", t.ID)
		}
		if r := stats.ParseTimeRange(t.EstimatedTime); r.Max == 0 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "template %q: unparsable estimated_time %q", t.ID, t.EstimatedTime)
		}
		c.byID[t.ID] = i
	}
	for _, t := range f.Templates {
		for _, req := range t.Prerequisites {
			if _, ok := c.byID[req]; !ok {
				return nil, schema.NewErrorf(schema.ErrCodeValidation, "template %q: unknown prerequisite %q", t.ID, req)
			}
		}
	}
	for i, p := range f.Presets {
		if _, dup := c.presetIdx[p.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate preset id %q", p.ID)
		}
		for _, id := range p.Templates {
			if _, ok := c.byID[id]; !ok {
				return nil, schema.NewErrorf(schema.ErrCodeValidation, "preset %q: unknown template %q", p.ID, id)
			}
		}
		c.presetIdx[p.ID] = i
	}
	return c, nil
}

// Load reads a catalog file from fsys.
func Load(fsys fs.FS, path string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Templates returns every template in file order.
func (c *Catalog) Templates() []Template {
	return append([]Template(nil), c.templates...)
}

// Get looks a template up by id.
func (c *Catalog) Get(id string) (Template, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, false
	}
	return c.templates[i], true
}

// ByCategory returns the templates of one category.
func (c *Catalog) ByCategory(category string) []Template {
	var out []Template
	for _, t := range c.templates {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns the distinct template categories, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range c.templates {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Search matches query case-insensitively against id, name, description,
// techniques and payloads. An empty query matches everything.
func (c *Catalog) Search(query string) []Template {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Template
	for _, t := range c.templates {
		if q == "" || t.matches(q) {
			out = append(out, t)
		}
	}
	return out
}

func (t Template) matches(q string) bool {
	fields := []string{t.ID, t.Name, t.Description, t.MitreID}
	fields = append(fields, t.Techniques...)
	fields = append(fields, t.Payloads...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Filter returns the templates for which the expr predicate holds, e.g.
// `severity == "critical" && max_time <= 60`.
func (c *Catalog) Filter(ctx context.Context, predicate string) ([]Template, error) {
	c.filterOnce.Do(func() { c.filter = expressions.NewExprEngine() })

	var out []Template
	for _, t := range c.templates {
		ok, err := c.filter.Match(ctx, predicate, t.filterEnv())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Tactics returns the tactic list.
func (c *Catalog) Tactics() []Tactic {
	return append([]Tactic(nil), c.tactics...)
}

// Presets returns every preset chain.
func (c *Catalog) Presets() []Preset {
	return append([]Preset(nil), c.presets...)
}

// Preset looks a preset up by id.
func (c *Catalog) Preset(id string) (Preset, bool) {
	i, ok := c.presetIdx[id]
	if !ok {
		return Preset{}, false
	}
	return c.presets[i], true
}

// PresetTemplates resolves a preset into its template refs, in order.
func (c *Catalog) PresetTemplates(id string) ([]schema.TemplateRef, error) {
	p, ok := c.Preset(id)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "preset %q not found", id)
	}
	refs := make([]schema.TemplateRef, 0, len(p.Templates))
	for _, tid := range p.Templates {
		t, _ := c.Get(tid)
		refs = append(refs, t.Ref())
	}
	return refs, nil
}

// formatValidationError converts validator errors to a ChainError naming
// the first offending field.
func formatValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}
	e := validationErrs[0]
	msg := fmt.Sprintf("%s: failed %q", e.Namespace(), e.Tag())
	if e.Param() != "" {
		msg = fmt.Sprintf("%s: failed %q (%s), got %v", e.Namespace(), e.Tag(), e.Param(), e.Value())
	}
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": len(validationErrs)})
}
