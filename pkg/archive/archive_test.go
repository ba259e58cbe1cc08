package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/matzehuels/pyvalidate/pkg/errors"
)

type entry struct {
	name    string
	body    string
	dir     bool
	symlink string
}

var sampleTree = []entry{
	{name: "pkg-1.0/", dir: true},
	{name: "pkg-1.0/setup.py", body: "from setuptools import setup\nsetup()\n"},
	{name: "pkg-1.0/pkg/", dir: true},
	{name: "pkg-1.0/pkg/__init__.py", body: "__version__ = '1.0'\n"},
	{name: "pkg-1.0/tests/test_pkg.py", body: "def test_ok():\n    assert True\n"},
}

func writeTar(t *testing.T, w io.Writer, entries []entry) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, e := range entries {
		h := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		switch {
		case e.dir:
			h.Typeflag, h.Mode, h.Size = tar.TypeDir, 0o755, 0
		case e.symlink != "":
			h.Typeflag, h.Linkname, h.Size = tar.TypeSymlink, e.symlink, 0
		}
		if err := tw.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if h.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
}

func makeTarGz(t *testing.T, dir string, entries []entry) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	writeTar(t, gz, entries)
	gz.Close()
	path := filepath.Join(dir, "pkg-1.0.tar.gz")
	os.WriteFile(path, buf.Bytes(), 0o644)
	return path
}

func makeTarXz(t *testing.T, dir string, entries []entry) string {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	writeTar(t, xw, entries)
	xw.Close()
	path := filepath.Join(dir, "pkg-1.0.tar.xz")
	os.WriteFile(path, buf.Bytes(), 0o644)
	return path
}

func makeZip(t *testing.T, dir, name string, entries []entry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.dir {
			zw.Create(e.name)
			continue
		}
		h := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		body := e.body
		if e.symlink != "" {
			h.SetMode(os.ModeSymlink | 0o777)
			body = e.symlink
		} else {
			h.SetMode(0o644)
		}
		w, err := zw.CreateHeader(h)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(body))
	}
	zw.Close()
	path := filepath.Join(dir, name)
	os.WriteFile(path, buf.Bytes(), 0o644)
	return path
}

// snapshot maps every relative path under root to its content ("<dir>" for directories).
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == root {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		if d.IsDir() {
			out[filepath.ToSlash(rel)] = "<dir>"
			return nil
		}
		b, _ := os.ReadFile(p)
		out[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	return out
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"requests-2.32.3.tar.gz", FormatTarGz},
		{"pkg.TGZ", FormatTarGz},
		{"pkg-1.0.tar.bz2", FormatTarBz2},
		{"pkg-1.0.tar.xz", FormatTarXz},
		{"pkg-1.0.tar", FormatTar},
		{"pkg-1.0.zip", FormatZip},
		{"requests-2.32.3-py3-none-any.whl", FormatZip},
		{"pkg-1.0.egg", FormatUnknown},
		{"pkg-1.0.rar", FormatUnknown},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.name); got != tt.want {
			t.Errorf("DetectFormat(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExtract_TarGzAndWheelProduceSameTree(t *testing.T) {
	src := t.TempDir()
	tgz := makeTarGz(t, src, sampleTree)
	whl := makeZip(t, src, "pkg-1.0-py3-none-any.whl", sampleTree)

	fromTar := filepath.Join(t.TempDir(), "tar")
	fromWhl := filepath.Join(t.TempDir(), "whl")
	if err := Extract(tgz, fromTar); err != nil {
		t.Fatalf("Extract(tar.gz) error: %v", err)
	}
	if err := Extract(whl, fromWhl); err != nil {
		t.Fatalf("Extract(whl) error: %v", err)
	}

	a, b := snapshot(t, fromTar), snapshot(t, fromWhl)
	if len(a) == 0 {
		t.Fatal("nothing extracted")
	}
	if len(a) != len(b) {
		t.Fatalf("tree sizes differ: %d vs %d\n%v\n%v", len(a), len(b), a, b)
	}
	for k, v := range a {
		if b[k] != v {
			t.Errorf("%s differs: %q vs %q", k, v, b[k])
		}
	}
}

func TestExtract_TarXz(t *testing.T) {
	src := t.TempDir()
	path := makeTarXz(t, src, sampleTree)
	dest := t.TempDir()

	if err := Extract(path, dest); err != nil {
		t.Fatalf("Extract(tar.xz) error: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dest, "pkg-1.0", "pkg", "__init__.py"))
	if err != nil || !strings.Contains(string(b), "1.0") {
		t.Errorf("extracted file = %q, %v", b, err)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg-1.0.egg")
	os.WriteFile(path, []byte("x"), 0o644)

	err := Extract(path, t.TempDir())
	if !errors.Is(err, errors.ErrCodeUnsupportedFormat) {
		t.Errorf("Extract() error = %v, want UNSUPPORTED_FORMAT", err)
	}
}

func TestExtract_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg-1.0.tar.gz")
	os.WriteFile(path, []byte("not gzip"), 0o644)

	err := Extract(path, t.TempDir())
	if !errors.Is(err, errors.ErrCodeExtraction) {
		t.Errorf("Extract() error = %v, want EXTRACTION_ERROR", err)
	}
}

func TestExtract_RejectsEscapes(t *testing.T) {
	tests := []struct {
		name    string
		entries []entry
	}{
		{"dotdot", []entry{{name: "../evil.txt", body: "x"}}},
		{"nested dotdot", []entry{{name: "pkg/../../evil.txt", body: "x"}}},
		{"absolute", []entry{{name: "/tmp/evil.txt", body: "x"}}},
		{"symlink out", []entry{{name: "pkg/link", symlink: "../../etc/passwd"}}},
		{"absolute symlink", []entry{{name: "pkg/link", symlink: "/etc/passwd"}}},
		{"chained symlinks", []entry{
			{name: "a", symlink: "."},
			{name: "a/b", symlink: ".."},
			{name: "a/b/evil.txt", body: "x"},
		}},
		{"link through link", []entry{
			{name: "y", symlink: "."},
			{name: "x", symlink: "y/.."},
			{name: "x/evil.txt", body: "x"},
		}},
		{"write through link", []entry{
			{name: "y", symlink: "."},
			{name: "evil.txt", symlink: "y/../evil.txt"},
			{name: "evil.txt", body: "x"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/tar", func(t *testing.T) {
			path := makeTarGz(t, t.TempDir(), tt.entries)
			parent := t.TempDir()
			dest := filepath.Join(parent, "extracted")

			err := Extract(path, dest)
			if !errors.Is(err, errors.ErrCodeExtraction) {
				t.Fatalf("Extract() error = %v, want EXTRACTION_ERROR", err)
			}
			if _, err := os.Lstat(filepath.Join(parent, "evil.txt")); err == nil {
				t.Error("entry escaped the destination")
			}
		})
		t.Run(tt.name+"/zip", func(t *testing.T) {
			path := makeZip(t, t.TempDir(), "pkg.zip", tt.entries)
			parent := t.TempDir()

			err := Extract(path, filepath.Join(parent, "extracted"))
			if !errors.Is(err, errors.ErrCodeExtraction) {
				t.Fatalf("Extract() error = %v, want EXTRACTION_ERROR", err)
			}
			if _, err := os.Lstat(filepath.Join(parent, "evil.txt")); err == nil {
				t.Error("entry escaped the destination")
			}
		})
	}
}

func TestExtract_AllowsInternalSymlink(t *testing.T) {
	entries := append(slices.Clone(sampleTree), entry{name: "pkg-1.0/docs", symlink: "pkg"})
	path := makeTarGz(t, t.TempDir(), entries)
	dest := t.TempDir()

	if err := Extract(path, dest); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if target, err := os.Readlink(filepath.Join(dest, "pkg-1.0", "docs")); err != nil || target != "pkg" {
		t.Errorf("Readlink() = %q, %v", target, err)
	}
}

func TestExtract_LinkedDestination(t *testing.T) {
	path := makeTarGz(t, t.TempDir(), sampleTree)
	real := t.TempDir()
	dest := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(real, dest); err != nil {
		t.Fatal(err)
	}

	if err := Extract(path, dest); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(real, "pkg-1.0", "setup.py")); err != nil {
		t.Errorf("setup.py missing: %v", err)
	}
}

func TestTopLevelDirs(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "zeta"), 0o755)
	os.Mkdir(filepath.Join(dir, "alpha"), 0o755)
	os.WriteFile(filepath.Join(dir, "PKG-INFO"), []byte("x"), 0o644)

	got, err := TopLevelDirs(dir)
	if err != nil {
		t.Fatalf("TopLevelDirs() error: %v", err)
	}
	if !slices.Equal(got, []string{"alpha", "zeta"}) {
		t.Errorf("TopLevelDirs() = %v", got)
	}

	empty, _ := TopLevelDirs(t.TempDir())
	if len(empty) != 0 {
		t.Errorf("TopLevelDirs(empty) = %v", empty)
	}
}
