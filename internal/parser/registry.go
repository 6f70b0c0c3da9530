package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marker-visualizer/backend/internal/models"
)

// Registry holds all available interpreters and picks one per file.
type Registry struct {
	interpreters []Interpreter
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		interpreters: []Interpreter{
			NewVectorPlotter(),
			NewKnifePlotter(),
			NewTaggedBlock(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new interpreter to the registry. Lookups return the first
// match, so a registered interpreter never replaces a built-in one.
func (r *Registry) Register(i Interpreter) {
	r.interpreters = append(r.interpreters, i)
}

// FindInterpreter picks an interpreter from the file extension.
func (r *Registry) FindInterpreter(fileName string) (Interpreter, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return nil, fmt.Errorf("no suitable interpreter found for file: %s", fileName)
	}
	for _, in := range r.interpreters {
		for _, e := range in.Extensions() {
			if e == ext {
				return in, nil
			}
		}
	}
	return nil, fmt.Errorf("no suitable interpreter found for file: %s", fileName)
}

// ByFormat returns the interpreter for a format tag.
func (r *Registry) ByFormat(f models.Format) (Interpreter, error) {
	for _, in := range r.interpreters {
		if in.Format() == f {
			return in, nil
		}
	}
	return nil, fmt.Errorf("interpreter not found: %s", f)
}

// GetInterpreterByName returns an interpreter by its display name or format tag.
func (r *Registry) GetInterpreterByName(name string) (Interpreter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, in := range r.interpreters {
		if strings.ToLower(in.Name()) == name || string(in.Format()) == name {
			return in, nil
		}
	}
	return nil, fmt.Errorf("interpreter not found: %s", name)
}

// List returns the registered interpreters in registration order.
func (r *Registry) List() []Interpreter {
	out := make([]Interpreter, len(r.interpreters))
	copy(out, r.interpreters)
	return out
}
