package programs

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/gradcheck/ledger"
	"github.com/liamcoop/gradcheck/rules"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// Document is the YAML form of a program and its ordered rules.
type Document struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []RuleDocument `json:"rules" yaml:"rules"`
}

// RuleDocument is one rule of a Document. Rules are active unless active: false is
// given, and are evaluated in document order.
type RuleDocument struct {
	ID       string          `json:"id" yaml:"id"`
	Name     string          `json:"name" yaml:"name"`
	Kind     rules.Kind      `json:"kind" yaml:"kind"`
	Label    string          `json:"label,omitempty" yaml:"label,omitempty"`
	Selector string          `json:"selector,omitempty" yaml:"selector,omitempty"`
	Courses  []string        `json:"courses,omitempty" yaml:"courses,omitempty"`
	Minimum  int             `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Enrolled []ledger.Status `json:"enrolled,omitempty" yaml:"enrolled,omitempty"`
	Active   *bool           `json:"active,omitempty" yaml:"active,omitempty"`
}

// Definitions converts the document's rules into rule definitions, positioned in
// document order starting at 1.
func (d *Document) Definitions() []*rules.Definition {
	defs := make([]*rules.Definition, 0, len(d.Rules))
	for i, r := range d.Rules {
		active := true
		if r.Active != nil {
			active = *r.Active
		}
		defs = append(defs, &rules.Definition{
			ID:       r.ID,
			Name:     r.Name,
			Kind:     r.Kind,
			Label:    r.Label,
			Selector: r.Selector,
			Courses:  append([]string(nil), r.Courses...),
			Minimum:  r.Minimum,
			Enrolled: append([]ledger.Status(nil), r.Enrolled...),
			Active:   active,
			Position: i + 1,
		})
	}
	return defs
}

// ParseDocument decodes a YAML (or JSON) program document and validates it, first
// structurally against DocumentSchema and then semantically with ValidateDocument.
func ParseDocument(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse program document: %w", err)
	}
	if err := validateStructure(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode program document: %w", err)
	}
	if err := ValidateDocument(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads and parses a program document from disk.
func LoadFile(name string) (*Document, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}

// Defaults returns the built-in program documents ordered by ID. Each call returns
// fresh copies.
func Defaults() ([]*Document, error) {
	names, err := fs.Glob(defaultsFS, "defaults/*.yaml")
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		data, err := defaultsFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		doc, err := ParseDocument(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Default returns the built-in program with the given ID.
func Default(id string) (*Document, error) {
	docs, err := Defaults()
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if doc.ID == id {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, id)
}
