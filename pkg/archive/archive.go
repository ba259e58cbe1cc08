// Package archive unpacks downloaded release files.
//
// The container format is chosen purely by filename suffix:
//
//	.tar .tar.gz .tgz .tar.bz2 .tar.xz   tar family
//	.zip .whl                            zip family (a wheel is a zip)
//
// Extraction is always complete. Entries whose resolved path would land
// outside the destination (absolute names, ".." components, symlinks and
// hard links pointing outside, or paths that pass through an already
// extracted symlink leading outside) abort the extraction with
// EXTRACTION_ERROR.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matzehuels/pyvalidate/pkg/errors"
)

// Format identifies a container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatTar
	FormatTarGz
	FormatTarBz2
	FormatTarXz
	FormatZip
)

var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.bz2", FormatTarBz2},
	{".tar.xz", FormatTarXz},
	{".tar", FormatTar},
	{".zip", FormatZip},
	{".whl", FormatZip},
}

// DetectFormat returns the format implied by name's suffix.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.format
		}
	}
	return FormatUnknown
}

// Extract fully unpacks archivePath into dest, creating dest if needed.
func Extract(archivePath, dest string) error {
	format := DetectFormat(archivePath)
	if format == FormatUnknown {
		return errors.New(errors.ErrCodeUnsupportedFormat, "unsupported archive format: %s", filepath.Base(archivePath))
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "create %s", dest)
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "resolve %s", dest)
	}
	// Entries are checked against the real path, so dest itself may be a link.
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "resolve %s", dest)
	}

	if format == FormatZip {
		err = extractZip(archivePath, root)
	} else {
		err = extractTar(archivePath, root, format)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeExtraction, err, "extract %s", filepath.Base(archivePath))
	}
	return nil
}

// TopLevelDirs lists the directories directly under dir in sorted order.
func TopLevelDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// safeJoin resolves an archive entry name under root, rejecting escapes.
// The entry's parent directory is resolved on disk, so links extracted by
// earlier entries cannot redirect it outside root. The returned path has
// that parent already resolved.
func safeJoin(root, name string) (string, error) {
	clean := filepath.FromSlash(strings.TrimPrefix(name, "./"))
	if filepath.IsAbs(clean) || strings.HasPrefix(name, "/") || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("entry %q: absolute path", name)
	}
	target := filepath.Join(root, clean)
	if !within(root, target) {
		return "", fmt.Errorf("entry %q: escapes destination", name)
	}
	if target == root {
		return root, nil
	}

	parent, err := resolve(filepath.Dir(target))
	if err != nil {
		return "", fmt.Errorf("entry %q: %w", name, err)
	}
	if !within(root, parent) {
		return "", fmt.Errorf("entry %q: passes through a link outside destination", name)
	}
	return filepath.Join(parent, filepath.Base(target)), nil
}

// resolve evaluates the symlinks in the longest existing prefix of path and
// appends the components that do not exist yet.
func resolve(path string) (string, error) {
	existing, rest := path, ""
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(real, rest), nil
}

// checkLink verifies that a link at path pointing to linkname stays in root.
func checkLink(root, path, linkname string) error {
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("link %q -> %q: absolute target", path, linkname)
	}
	target := filepath.Join(filepath.Dir(path), filepath.FromSlash(linkname))
	if !within(root, target) {
		return fmt.Errorf("link %q -> %q: escapes destination", path, linkname)
	}
	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func fileMode(m os.FileMode) os.FileMode {
	perm := m.Perm()
	if perm == 0 {
		return 0o644
	}
	return perm | 0o600
}
