// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/dovmed/dovmed/internal/query"
	"github.com/dovmed/dovmed/internal/scan"
	"github.com/dovmed/dovmed/pkg/types"
)

// Manifest is the on-disk record of one scan run. It captures the
// query shape, the configuration that produced the results, and the
// run statistics, so a result set can be audited without re-running.
type Manifest struct {
	Query     ManifestQuery    `yaml:"query"`
	Config    types.ScanConfig `yaml:"config"`
	Summary   scan.Summary     `yaml:"summary"`
	Timestamp time.Time        `yaml:"timestamp"`
}

// ManifestQuery stores the concept groups in a serializable form.
type ManifestQuery struct {
	PrimaryGroups   []ManifestGroup `yaml:"primary_groups"`
	SecondaryGroups []ManifestGroup `yaml:"secondary_groups,omitempty"`
	Disqualifiers   int             `yaml:"disqualifiers"`
}

// ManifestGroup records a group name and how many patterns it carries.
type ManifestGroup struct {
	Name     string `yaml:"name"`
	Patterns int    `yaml:"patterns"`
}

// WriteManifest saves the run manifest as manifest.yaml under dir.
func WriteManifest(dir string, cfg types.ScanConfig, primary, secondary *query.Spec, disq query.Disqualifiers, res *scan.Result) error {
	m := Manifest{
		Query: ManifestQuery{
			PrimaryGroups: manifestGroups(primary),
			Disqualifiers: len(disq),
		},
		Config:    cfg,
		Summary:   res.Summary,
		Timestamp: time.Now().UTC(),
	}
	if secondary != nil {
		m.Query.SecondaryGroups = manifestGroups(secondary)
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a previously written run manifest.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

func manifestGroups(spec *query.Spec) []ManifestGroup {
	if spec == nil {
		return nil
	}
	groups := make([]ManifestGroup, 0, len(spec.Groups))
	for _, g := range spec.Groups {
		groups = append(groups, ManifestGroup{Name: g.Name, Patterns: len(g.Patterns())})
	}
	return groups
}
