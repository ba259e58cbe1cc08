package packages

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/matzehuels/pyvalidate/pkg/errors"
)

func TestDefault(t *testing.T) {
	table := Default()

	if got := table.Names(); !slices.Equal(got, []string{"flask", "numpy", "pandas", "requests"}) {
		t.Errorf("Names() = %v", got)
	}

	req, ok := table.Lookup("requests")
	if !ok {
		t.Fatal("requests missing from default table")
	}
	if !req.UseSdist || req.BuildSystem != BuildSystemSetuptools {
		t.Errorf("requests config = %+v", req)
	}
	if !slices.Equal(req.Dependencies, []string{"setuptools", "wheel"}) {
		t.Errorf("requests dependencies = %v", req.Dependencies)
	}

	np, _ := table.Lookup("NumPy")
	if np.UseSdist {
		t.Error("numpy should use wheels")
	}
	if np.AdditionalEnv["NUMPY_EXPERIMENTAL_DTYPE_API"] != "1" {
		t.Errorf("numpy env = %v", np.AdditionalEnv)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	table := Default()

	cfg, _ := table.Lookup("numpy")
	cfg.TestCommand[0] = "mutated"
	cfg.AdditionalEnv["X"] = "y"

	again, _ := table.Lookup("numpy")
	if again.TestCommand[0] != "coverage" {
		t.Error("Lookup() result aliases the table's test command")
	}
	if _, ok := again.AdditionalEnv["X"]; ok {
		t.Error("Lookup() result aliases the table's env")
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Default().Lookup("left-pad"); ok {
		t.Error("Lookup() found an unconfigured package")
	}
}

func TestModule(t *testing.T) {
	tests := []struct {
		pkg  string
		cfg  Config
		want string
	}{
		{"requests", Config{}, "requests"},
		{"python-dateutil", Config{ImportName: "dateutil"}, "dateutil"},
		{"typing-extensions", Config{}, "typing_extensions"},
		{"zope.interface", Config{}, "zope_interface"},
	}
	for _, tt := range tests {
		if got := tt.cfg.Module(tt.pkg); got != tt.want {
			t.Errorf("Module(%q) = %q, want %q", tt.pkg, got, tt.want)
		}
	}
}

func TestLoadFormats(t *testing.T) {
	files := map[string]string{
		"table.toml": `
[attrs]
use_sdist = true
test_command = ["pytest"]
dependencies = ["setuptools"]
`,
		"table.yaml": `
attrs:
  use_sdist: true
  test_command: [pytest]
  dependencies: [setuptools]
`,
		"table.json": `{"attrs": {"use_sdist": true, "test_command": ["pytest"], "dependencies": ["setuptools"]}}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			os.WriteFile(path, []byte(content), 0o644)

			table, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			cfg, ok := table.Lookup("attrs")
			if !ok {
				t.Fatal("attrs missing")
			}
			if !cfg.UseSdist || cfg.BuildSystem != BuildSystemSetuptools || cfg.TestCommand[0] != "pytest" {
				t.Errorf("cfg = %+v", cfg)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{"unknown format", ".ini", "[x]"},
		{"bad toml", ".toml", "[x"},
		{"unknown toml key", ".toml", "[x]\ntest_command=[\"pytest\"]\nbogus=1\n"},
		{"unknown yaml key", ".yaml", "x:\n  test_command: [pytest]\n  bogus: 1\n"},
		{"unknown json key", ".json", `{"x": {"test_command": ["pytest"], "bogus": 1}}`},
		{"unsupported build system", ".toml", "[x]\nbuild_system=\"poetry\"\ntest_command=[\"pytest\"]\n"},
		{"empty test command", ".toml", "[x]\ntest_command=[]\n"},
		{"invalid name", ".toml", "[\"bad/name\"]\ntest_command=[\"pytest\"]\n"},
		{"bad import name", ".toml", "[x]\nimport_name=\"os; rm\"\ntest_command=[\"pytest\"]\n"},
		{"empty dependency", ".toml", "[x]\ntest_command=[\"pytest\"]\ndependencies=[\" \"]\n"},
		{"duplicate normalized", ".json", `{"Foo_Bar": {"test_command": ["t"]}, "foo-bar": {"test_command": ["t"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.ext)
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Parse() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestParseEmptyYAML(t *testing.T) {
	table, err := Parse(nil, ".yml")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d", table.Len())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Load() error = %v, want INVALID_CONFIG", err)
	}
}
