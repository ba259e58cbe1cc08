package packages

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/pyvalidate/pkg/errors"
)

//go:embed default.toml
var defaultTable []byte

// Default returns the built-in table.
func Default() *Table {
	t, err := Parse(defaultTable, ".toml")
	if err != nil {
		panic(fmt.Sprintf("packages: built-in table is invalid: %v", err))
	}
	return t
}

// Load reads and validates a table from path. The format is chosen by
// extension: .toml, .yaml/.yml, or .json.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read package table")
	}
	t, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Parse decodes and validates a table in the format named by ext.
func Parse(data []byte, ext string) (*Table, error) {
	m := map[string]Config{}
	var err error

	switch strings.ToLower(ext) {
	case ".toml":
		var md toml.MetaData
		md, err = toml.NewDecoder(bytes.NewReader(data)).Decode(&m)
		if err == nil {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				err = fmt.Errorf("unknown keys: %v", undecoded)
			}
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(&m); err == io.EOF {
			err = nil
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&m)
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unsupported package table format %q", ext)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse package table")
	}

	t, err := NewTable(m)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
