package tags

import (
	"fmt"
	"strings"
	"unicode"
)

// WheelName is the decoded form of a wheel filename.
type WheelName struct {
	Distribution string
	Version      string
	Build        string
	Tags         Set
}

// ParseWheelFilename decodes a PEP 427 filename:
//
//	{distribution}-{version}(-{build})?-{python}-{abi}-{platform}.whl
//
// The build tag, when present, must start with a digit.
func ParseWheelFilename(filename string) (*WheelName, error) {
	stem, ok := strings.CutSuffix(filename, ".whl")
	if !ok {
		return nil, fmt.Errorf("invalid wheel filename %q: missing .whl suffix", filename)
	}

	parts := strings.Split(stem, "-")
	if len(parts) != 5 && len(parts) != 6 {
		return nil, fmt.Errorf("invalid wheel filename %q: want 5 or 6 dash-separated parts, got %d", filename, len(parts))
	}

	w := &WheelName{Distribution: parts[0], Version: parts[1]}
	if w.Distribution == "" || w.Version == "" {
		return nil, fmt.Errorf("invalid wheel filename %q: empty name or version", filename)
	}

	if len(parts) == 6 {
		w.Build = parts[2]
		if w.Build == "" || !unicode.IsDigit(rune(w.Build[0])) {
			return nil, fmt.Errorf("invalid wheel filename %q: build tag must start with a digit", filename)
		}
	}

	n := len(parts)
	set, err := Parse(strings.Join(parts[n-3:], "-"))
	if err != nil {
		return nil, fmt.Errorf("invalid wheel filename %q: %w", filename, err)
	}
	w.Tags = set
	return w, nil
}
