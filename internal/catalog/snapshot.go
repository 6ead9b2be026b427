package catalog

import (
	_ "embed"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed catalogs.yaml
var defaultCatalogsYAML []byte

// Snapshot is a consistent, read-only view of every catalog plus the alias
// table, taken once per validation or scoring session.
type Snapshot struct {
	catalogs map[string]*Catalog
	aliases  map[string]string
}

// fileFormat is the YAML layout of a catalog file.
type fileFormat struct {
	Aliases  map[string]string   `yaml:"aliases"`
	Catalogs map[string][]Option `yaml:"catalogs"`
}

var (
	defaultOnce     sync.Once
	defaultSnapshot *Snapshot
	defaultErr      error
)

// NewSnapshot builds a snapshot from catalogs and an alias table. Alias keys
// are lowercased.
func NewSnapshot(cats []*Catalog, aliases map[string]string) *Snapshot {
	s := &Snapshot{
		catalogs: make(map[string]*Catalog, len(cats)),
		aliases:  make(map[string]string, len(aliases)),
	}
	for _, c := range cats {
		if c != nil {
			s.catalogs[c.Name()] = c
		}
	}
	for k, v := range aliases {
		s.aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return s
}

// Default returns the built-in vocabularies. They are parsed once per process.
func Default() *Snapshot {
	defaultOnce.Do(func() {
		defaultSnapshot, defaultErr = Parse(defaultCatalogsYAML)
	})
	if defaultErr != nil {
		// The embedded file is part of the binary; a parse failure is a build defect.
		panic(eris.Wrap(defaultErr, "catalog: parse embedded catalogs"))
	}
	return defaultSnapshot
}

// Parse reads a snapshot from YAML.
func Parse(data []byte) (*Snapshot, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}
	cats := make([]*Catalog, 0, len(f.Catalogs))
	for name, opts := range f.Catalogs {
		cats = append(cats, New(name, opts))
	}
	return NewSnapshot(cats, f.Aliases), nil
}

// LoadFile reads a catalog YAML file and layers it over the defaults:
// catalogs and aliases present in the file replace the built-in ones.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	merged := Default().clone()
	for name, c := range override.catalogs {
		merged.catalogs[name] = c
	}
	for k, v := range override.aliases {
		merged.aliases[k] = v
	}
	return merged, nil
}

// Get returns the named catalog, or an empty catalog when unknown.
func (s *Snapshot) Get(name string) *Catalog {
	if s != nil {
		if c, ok := s.catalogs[name]; ok {
			return c
		}
	}
	return New(name, nil)
}

// Has reports whether the snapshot carries the named catalog.
func (s *Snapshot) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.catalogs[name]
	return ok
}

// With returns a copy of the snapshot with c replacing the catalog of the same name.
func (s *Snapshot) With(c *Catalog) *Snapshot {
	out := s.clone()
	out.catalogs[c.Name()] = c
	return out
}

// Aliases returns a copy of the alias table.
func (s *Snapshot) Aliases() map[string]string {
	out := make(map[string]string)
	if s == nil {
		return out
	}
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}

// Names lists the catalogs in the snapshot.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.catalogs))
	for n := range s.catalogs {
		names = append(names, n)
	}
	return names
}

func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{
		catalogs: make(map[string]*Catalog),
		aliases:  make(map[string]string),
	}
	if s == nil {
		return out
	}
	for k, v := range s.catalogs {
		out.catalogs[k] = v
	}
	for k, v := range s.aliases {
		out.aliases[k] = v
	}
	return out
}
