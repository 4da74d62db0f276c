package codes

import (
	"embed"
	"io/fs"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var tablesFS embed.FS

// tableFile is the on-disk shape of one jurisdiction's fallback tables.
type tableFile struct {
	Jurisdiction string            `yaml:"jurisdiction"`
	Zoning       map[string]string `yaml:"zoning"`
	FLU          map[string]string `yaml:"flu"`
}

// FallbackTables holds the static code tables used when a layer exposes no
// coded-value domain. Treated as configuration data: new jurisdictions are
// added by dropping a YAML file into data/, not by touching resolver logic.
// Immutable after load.
type FallbackTables struct {
	byJurisdiction map[string]map[Kind]CodeMap
}

// LoadFallbackTables parses the embedded jurisdiction tables once at
// process start.
func LoadFallbackTables() (*FallbackTables, error) {
	t := &FallbackTables{byJurisdiction: make(map[string]map[Kind]CodeMap)}

	err := fs.WalkDir(tablesFS, "data", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".yaml") {
			return err
		}
		raw, err := tablesFS.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "codes: read table %s", path)
		}
		var tf tableFile
		if err := yaml.Unmarshal(raw, &tf); err != nil {
			return eris.Wrapf(err, "codes: parse table %s", path)
		}
		if tf.Jurisdiction == "" {
			return eris.Errorf("codes: table %s missing jurisdiction", path)
		}

		key := strings.ToLower(tf.Jurisdiction)
		t.byJurisdiction[key] = map[Kind]CodeMap{
			Zoning: CodeMap(tf.Zoning),
			FLU:    CodeMap(tf.FLU),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// For returns the fallback table for a jurisdiction and kind. A missing
// jurisdiction or kind yields an empty map, so Describe degrades cleanly.
func (t *FallbackTables) For(jurisdiction string, kind Kind) CodeMap {
	if t == nil {
		return CodeMap{}
	}
	kinds, ok := t.byJurisdiction[strings.ToLower(strings.TrimSpace(jurisdiction))]
	if !ok {
		return CodeMap{}
	}
	m := kinds[kind]
	if m == nil {
		return CodeMap{}
	}
	return m
}

// Jurisdictions returns the loaded jurisdiction keys, for diagnostics.
func (t *FallbackTables) Jurisdictions() []string {
	out := make([]string, 0, len(t.byJurisdiction))
	for k := range t.byJurisdiction {
		out = append(out, k)
	}
	return out
}
