package catalog

import (
	"fmt"
	"io"
	"os"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/spring-projects/spring-data-release-sub001/train"
)

// trainFile is the on-disk shape of the catalog.
type trainFile struct {
	Trains []trainEntry `yaml:"trains"`
}

type trainEntry struct {
	Name     string        `yaml:"name"`
	Scheme   string        `yaml:"scheme"`
	Version  string        `yaml:"version,omitempty"`
	Status   string        `yaml:"status"`
	Plan     []string      `yaml:"plan,omitempty"`
	MainOnly bool          `yaml:"mainOnly,omitempty"`
	Members  []memberEntry `yaml:"members"`
}

type memberEntry struct {
	Component    string   `yaml:"component"`
	Base         string   `yaml:"base"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Artifacts    []string `yaml:"artifacts,omitempty"`
}

// Load parses and validates a catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var file trainFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	c := &Catalog{trains: make([]*train.Train, 0, len(file.Trains))}
	for _, entry := range file.Trains {
		t, err := entry.toTrain()
		if err != nil {
			return nil, err
		}
		c.trains = append(c.trains, t)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// LoadFile loads a catalog from the given path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// DefaultPath resolves the catalog location under the XDG config directory,
// e.g. ~/.config/spring-data-release/catalog.yaml.
func DefaultPath() (string, error) {
	path, err := xdg.ConfigFile("spring-data-release/catalog.yaml")
	if err != nil {
		return "", fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	return path, nil
}

// toTrain converts a file entry into the immutable model, parsing base
// versions and the milestone plan.
func (e trainEntry) toTrain() (*train.Train, error) {
	t := &train.Train{
		Name:     e.Name,
		Version:  e.Version,
		Scheme:   train.Scheme(e.Scheme),
		Status:   train.Status(e.Status),
		MainOnly: e.MainOnly,
		Members:  make([]train.Member, 0, len(e.Members)),
	}

	for _, m := range e.Members {
		base, err := train.ParseTriple(m.Base)
		if err != nil {
			return nil, fmt.Errorf("train %s, component %s: %w", e.Name, m.Component, err)
		}
		t.Members = append(t.Members, train.Member{
			Component:        m.Component,
			Base:             base,
			Dependencies:     m.Dependencies,
			ArtifactPatterns: m.Artifacts,
		})
	}

	for _, name := range e.Plan {
		m, err := train.ParseMilestone(name)
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", e.Name, err)
		}
		t.Plan = append(t.Plan, m)
	}

	return t, nil
}
