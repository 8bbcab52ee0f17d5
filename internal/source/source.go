// Package source holds the registry of upstream content-index endpoints.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/safeurl"
)

// ErrInvalid is wrapped by Validate and Upsert for unusable entries.
var ErrInvalid = errors.New("invalid source")

// Source is one upstream endpoint. Active defaults to true when absent from the document.
type Source struct {
	Name   string `json:"name"`
	API    string `json:"api"`
	Active bool   `json:"active"`
	Tip    string `json:"tip,omitempty"`
}

func (s *Source) UnmarshalJSON(data []byte) error {
	type plain Source
	aux := struct {
		*plain
		Active *bool `json:"active"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Active = aux.Active == nil || *aux.Active
	s.Name = strings.TrimSpace(s.Name)
	s.API = strings.TrimSpace(s.API)
	return nil
}

// Validate checks the entry has a name and an http(s) endpoint.
func (s Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if !safeurl.IsHTTPOrHTTPS(s.API) {
		return fmt.Errorf("%w: %s: api must be an http(s) URL", ErrInvalid, s.Name)
	}
	return nil
}

// Active returns the active entries, preserving order.
func Active(sources []Source) []Source {
	return lo.Filter(sources, func(s Source, _ int) bool { return s.Active })
}

// Find returns the source with the given name.
func Find(sources []Source, name string) (Source, bool) {
	return lo.Find(sources, func(s Source) bool { return s.Name == name })
}

// Registry is the JSON source document at Path.
type Registry struct {
	fs   afero.Fs
	path string
}

// NewRegistry returns a registry for path on fs (nil means the OS filesystem).
func NewRegistry(fs afero.Fs, path string) *Registry {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Registry{fs: fs, path: path}
}

func (r *Registry) Path() string { return r.path }

// Load reads every entry. A missing document is returned as an error wrapping
// fs.ErrNotExist; entries failing Validate are logged and skipped but stay in
// the document.
func (r *Registry) Load() ([]Source, error) {
	all, err := r.read()
	if err != nil {
		return nil, err
	}
	return valid(all), nil
}

func (r *Registry) read() ([]Source, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		return nil, fmt.Errorf("source registry: %w", err)
	}
	var all []Source
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("source registry: decode %s: %w", r.path, err)
	}
	return all, nil
}

func valid(all []Source) []Source {
	return lo.Filter(all, func(s Source, i int) bool {
		if err := s.Validate(); err != nil {
			log.WithField("entry", i).Warnf("source registry: skipping entry: %v", err)
			return false
		}
		return true
	})
}

// Active loads the registry and returns only active entries.
func (r *Registry) Active() ([]Source, error) {
	all, err := r.Load()
	if err != nil {
		return nil, err
	}
	return Active(all), nil
}

// Save replaces the document with sources. Every entry must be valid and
// names must be unique.
func (r *Registry) Save(sources []Source) error {
	for _, s := range sources {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return r.write(sources)
}

func (r *Registry) write(sources []Source) error {
	named := lo.Filter(sources, func(s Source, _ int) bool { return s.Name != "" })
	if dup := lo.FindDuplicatesBy(named, func(s Source) string { return s.Name }); len(dup) > 0 {
		return fmt.Errorf("%w: duplicate name %q", ErrInvalid, dup[0].Name)
	}
	if sources == nil {
		sources = []Source{}
	}
	data, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		return err
	}
	return catalog.WriteFileAtomic(r.fs, r.path, data)
}

// Upsert replaces the entry with the same name or appends a new one and
// returns the valid entries. Other entries, invalid ones included, are
// written back untouched. A missing document is treated as empty.
func (r *Registry) Upsert(s Source) ([]Source, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	all, err := r.read()
	if err != nil {
		if exists, _ := afero.Exists(r.fs, r.path); exists {
			return nil, err
		}
		all = nil
	}
	_, idx, found := lo.FindIndexOf(all, func(x Source) bool { return x.Name == s.Name })
	if found {
		all[idx] = s
	} else {
		all = append(all, s)
	}
	if err := r.write(all); err != nil {
		return nil, err
	}
	return valid(all), nil
}
