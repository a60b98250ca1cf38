package staging

import (
	"archive/tar"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/gzip"
)

// BundleMediaType identifies a staging bundle pushed to an OCI registry.
const BundleMediaType = "application/vnd.spring-data.release-bundle.v1.tar+gzip"

// noiseFiles are operating-system droppings that must never end up in a
// published bundle. Repository metadata (maven-metadata.xml, checksums) is
// deliberately not filtered: targets need it to index the upload.
var noiseFiles = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

func isNoiseFile(name string) bool {
	return noiseFiles[name] || strings.HasPrefix(name, "._")
}

// WriteBundle writes the content of a staging filesystem as a gzipped tar
// archive. Entries are emitted in a deterministic walk order with paths
// relative to the staging root, noise files excluded.
func WriteBundle(fs billy.Filesystem, w io.Writer) error {
	zw := gzip.NewWriter(w)
	tw := tar.NewWriter(zw)

	if err := writeTree(fs, "", tw); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return nil
}

func writeTree(fs billy.Filesystem, dir string, tw *tar.Writer) error {
	entries, err := fs.ReadDir(path.Join("/", dir))
	if err != nil {
		return fmt.Errorf("failed to read staging directory %q: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := writeTree(fs, name, tw); err != nil {
				return err
			}
			continue
		}
		if isNoiseFile(entry.Name()) {
			continue
		}
		if err := writeFile(fs, name, entry.Size(), tw); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(fs billy.Filesystem, name string, size int64, tw *tar.Writer) error {
	header := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: size,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write bundle entry %s: %w", name, err)
	}

	f, err := fs.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to write bundle entry %s: %w", name, err)
	}
	return nil
}
