package maven

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Descriptor is the build descriptor file rewritten during version bumps.
const Descriptor = "pom.xml"

// ErrNoVersionElement is returned when a descriptor has no project version.
var ErrNoVersionElement = errors.New("descriptor has no version element")

// projectVersion matches the first <version> element of a descriptor, which
// by project convention is the project's own version (the parent block, when
// present, is ordered after it). The rewrite is textual on purpose: an XML
// round-trip would reformat descriptors and produce noisy diffs.
var projectVersion = regexp.MustCompile(`<version>([^<]+)</version>`)

// SetVersion rewrites the descriptor in the given worktree. Method form of
// SetProjectVersion so Maven satisfies the pipeline's builder contract.
func (m *Maven) SetVersion(fs billy.Filesystem, version string) (bool, error) {
	return SetProjectVersion(fs, version)
}

// ProjectVersion reads the project version from the component descriptor in
// the given worktree.
func ProjectVersion(fs billy.Filesystem) (string, error) {
	content, err := util.ReadFile(fs, Descriptor)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", Descriptor, err)
	}
	match := projectVersion.FindSubmatch(content)
	if match == nil {
		return "", fmt.Errorf("%s: %w", Descriptor, ErrNoVersionElement)
	}
	return string(match[1]), nil
}

// SetProjectVersion rewrites the project version in the descriptor. It
// reports false without touching the file when the descriptor already
// carries the wanted version, which keeps re-runs from producing empty
// commits.
func SetProjectVersion(fs billy.Filesystem, version string) (bool, error) {
	content, err := util.ReadFile(fs, Descriptor)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", Descriptor, err)
	}

	loc := projectVersion.FindSubmatchIndex(content)
	if loc == nil {
		return false, fmt.Errorf("%s: %w", Descriptor, ErrNoVersionElement)
	}
	current := string(content[loc[2]:loc[3]])
	if current == version {
		return false, nil
	}

	rewritten := make([]byte, 0, len(content)+len(version))
	rewritten = append(rewritten, content[:loc[2]]...)
	rewritten = append(rewritten, version...)
	rewritten = append(rewritten, content[loc[3]:]...)

	if err := util.WriteFile(fs, Descriptor, rewritten, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", Descriptor, err)
	}
	return true, nil
}
