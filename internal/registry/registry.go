// Package registry loads and serves the governed metric catalog.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"metricgate/internal/domain"
)

type metricKey struct {
	name    domain.MetricName
	version domain.MetricVersion
}

// Registry is the read-only set of metric definitions. It is safe for
// concurrent use because nothing mutates it after Load returns.
type Registry struct {
	metrics map[metricKey]*domain.MetricDefinition
}

// Load reads every *.yaml and *.yml file in dir, validates each definition,
// and returns the registry. All problems across all files are collected into
// a single *domain.RegistryLoadError; a partial registry is never returned.
func Load(fsys fs.FS, dir string) (*Registry, error) {
	files, err := catalogFiles(fsys, dir)
	if err != nil {
		return nil, &domain.RegistryLoadError{Problems: []string{err.Error()}}
	}
	if len(files) == 0 {
		return nil, &domain.RegistryLoadError{Problems: []string{fmt.Sprintf("no metric files found in %q", dir)}}
	}

	reg := &Registry{metrics: make(map[metricKey]*domain.MetricDefinition)}
	var problems []ValidationError

	for _, file := range files {
		records, err := readRecords(fsys, file)
		if err != nil {
			problems = append(problems, ValidationError{Path: file, Message: err.Error()})
			continue
		}
		for i, rec := range records {
			where := file
			if len(records) > 1 {
				where = fmt.Sprintf("%s[%d]", file, i)
			}
			def, structural := rec.toDefinition()
			for _, p := range structural {
				problems = append(problems, ValidationError{Path: where, Message: p})
			}
			if def == nil {
				continue
			}
			for _, p := range ValidateDefinition(def) {
				problems = append(problems, ValidationError{Path: where, Message: p})
			}
			key := metricKey{def.Name, def.Version}
			if _, dup := reg.metrics[key]; dup {
				problems = append(problems, ValidationError{
					Path:    where,
					Message: fmt.Sprintf("duplicate metric definition for %s", def.Key()),
				})
				continue
			}
			reg.metrics[key] = def
		}
	}

	if len(problems) > 0 {
		out := make([]string, len(problems))
		for i, p := range problems {
			out[i] = p.Error()
		}
		return nil, &domain.RegistryLoadError{Problems: out}
	}
	return reg, nil
}

func catalogFiles(fsys fs.FS, dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, path.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("list catalog: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		if _, err := fs.Stat(fsys, dir); err != nil {
			return nil, fmt.Errorf("catalog directory %q: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// readRecords decodes a file holding one or more YAML documents, each either
// a single record or a sequence of records, with unknown fields rejected.
func readRecords(fsys fs.FS, file string) ([]*record, error) {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	// shapes peeks at each document so the strict decoder knows its target.
	shapes := yaml.NewDecoder(bytes.NewReader(data))
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var out []*record
	for {
		var doc yaml.Node
		if err := shapes.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse: %w", err)
		}

		if len(doc.Content) == 1 && doc.Content[0].Kind == yaml.SequenceNode {
			var recs []*record
			if err := dec.Decode(&recs); err != nil {
				return nil, fmt.Errorf("parse: %w", err)
			}
			out = append(out, recs...)
			continue
		}

		rec := &record{}
		if err := dec.Decode(rec); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty metric file")
	}
	return out, nil
}

// DefaultVersion returns the version used when an intent omits one.
func DefaultVersion(name domain.MetricName) (domain.MetricVersion, error) {
	switch name {
	case domain.MetricRevenue:
		return domain.VersionV1, nil
	case domain.MetricOrdersCount:
		return domain.VersionV1, nil
	}
	return "", domain.ErrViolation(domain.NoDefaultVersion, "no default version defined for metric %q", name)
}

// Get returns the definition for name at version. A nil version resolves to
// the metric's default version.
func (r *Registry) Get(name domain.MetricName, version *domain.MetricVersion) (*domain.MetricDefinition, error) {
	var v domain.MetricVersion
	if version != nil {
		v = *version
	} else {
		def, err := DefaultVersion(name)
		if err != nil {
			return nil, err
		}
		v = def
	}
	m, ok := r.metrics[metricKey{name, v}]
	if !ok {
		return nil, domain.ErrNotFound("metric not found: %s:%s", name, v)
	}
	return m, nil
}

// All returns every definition ordered by name, then version.
func (r *Registry) All() []*domain.MetricDefinition {
	out := make([]*domain.MetricDefinition, 0, len(r.metrics))
	for _, m := range r.metrics {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Len returns the number of loaded definitions.
func (r *Registry) Len() int { return len(r.metrics) }

// CheckInvariants re-runs the semantic checks over the loaded set.
func (r *Registry) CheckInvariants() error {
	var problems []string
	for _, m := range r.All() {
		for _, p := range ValidateDefinition(m) {
			problems = append(problems, m.Key()+": "+p)
		}
	}
	if len(problems) > 0 {
		return &domain.RegistryLoadError{Problems: problems}
	}
	return nil
}
