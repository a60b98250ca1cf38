// Package catalog loads the release-train catalog: the process-wide, static
// definition of every release line, its members and their base versions.
// The catalog is read once at startup and treated as immutable afterwards.
package catalog

import (
	"errors"
	"fmt"

	"github.com/spring-projects/spring-data-release-sub001/train"
)

// ErrUnknownTrain is returned when a lookup names a train the catalog does
// not define.
var ErrUnknownTrain = errors.New("unknown train")

// Catalog holds every configured release train, in file order.
type Catalog struct {
	trains []*train.Train
}

// Trains returns the configured trains in declaration order.
func (c *Catalog) Trains() []*train.Train {
	return c.trains
}

// Train looks up a train by name (classic trains) or by its calendar
// version.
func (c *Catalog) Train(name string) (*train.Train, error) {
	for _, t := range c.trains {
		if t.Name == name || (t.Version != "" && t.Version == name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("train %q is not in the catalog: %w", name, ErrUnknownTrain)
}

// Validate checks every train and rejects duplicate train names.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.trains))
	for _, t := range c.trains {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return fmt.Errorf("train %s defined twice", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}
