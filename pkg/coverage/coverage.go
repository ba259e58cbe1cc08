// Package coverage relocates coverage reports out of the scratch workspace.
//
// The test command is expected to leave two artifacts in its working
// directory: a Cobertura "coverage.xml" and an HTML report directory
// "coverage_html". [Collect] moves both to a per-package output directory
// that outlives the workspace, replacing any earlier HTML report.
package coverage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/matzehuels/pyvalidate/pkg/errors"
)

const (
	// XMLFile is the machine-readable report name.
	XMLFile = "coverage.xml"
	// HTMLDir is the human-readable report directory name.
	HTMLDir = "coverage_html"
	// IndexFile is the HTML report entry point.
	IndexFile = "index.html"
)

// Artifacts locates a collected report.
type Artifacts struct {
	Dir     string
	XMLPath string
	HTMLDir string
	Summary *Summary
}

// Index returns the path of the HTML report entry point.
func (a *Artifacts) Index() string { return filepath.Join(a.HTMLDir, IndexFile) }

// Collect moves coverage.xml and coverage_html from srcDir into destDir.
//
// Both artifacts must exist before anything is moved; otherwise the result
// is COVERAGE_ARTIFACT_MISSING and destDir is left untouched. An existing
// HTML report at the destination is removed first. The summary is parsed
// best-effort: a malformed XML report does not fail collection.
func Collect(srcDir, destDir string) (*Artifacts, error) {
	xmlSrc := filepath.Join(srcDir, XMLFile)
	htmlSrc := filepath.Join(srcDir, HTMLDir)

	if fi, err := os.Stat(xmlSrc); err != nil || fi.IsDir() {
		return nil, errors.New(errors.ErrCodeCoverageArtifactMissing, "%s not produced in %s", XMLFile, srcDir)
	}
	if fi, err := os.Stat(htmlSrc); err != nil || !fi.IsDir() {
		return nil, errors.New(errors.ErrCodeCoverageArtifactMissing, "%s not produced in %s", HTMLDir, srcDir)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create %s", destDir)
	}

	a := &Artifacts{
		Dir:     destDir,
		XMLPath: filepath.Join(destDir, XMLFile),
		HTMLDir: filepath.Join(destDir, HTMLDir),
	}

	if err := move(xmlSrc, a.XMLPath); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "move %s", XMLFile)
	}
	if err := os.RemoveAll(a.HTMLDir); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "remove previous %s", HTMLDir)
	}
	if err := move(htmlSrc, a.HTMLDir); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "move %s", HTMLDir)
	}

	if s, err := ParseSummary(a.XMLPath); err == nil {
		a.Summary = s
	}
	return a, nil
}

// move renames src to dst, falling back to copy-and-delete when the two
// paths are on different filesystems (the workspace usually lives in /tmp).
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyTree(src, dst); err != nil {
		os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			return fmt.Errorf("unsupported file type at %s", path)
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
