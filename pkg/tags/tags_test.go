package tags

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/matzehuels/pyvalidate/pkg/process"
	"github.com/matzehuels/pyvalidate/pkg/process/processtest"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"cp311-cp311-linux_x86_64", []string{"cp311-cp311-linux_x86_64"}, false},
		{"py2.py3-none-any", []string{"py2-none-any", "py3-none-any"}, false},
		{
			"cp311-cp311-manylinux_2_17_x86_64.manylinux2014_x86_64",
			[]string{"cp311-cp311-manylinux2014_x86_64", "cp311-cp311-manylinux_2_17_x86_64"},
			false,
		},
		{"CP311-ABI3-Any", []string{"cp311-abi3-any"}, false},
		{"cp311-cp311", nil, true},
		{"cp311--any", nil, true},
		{"py2.-none-any", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			set, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := set.Strings(); !slices.Equal(got, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseWheelFilename(t *testing.T) {
	tests := []struct {
		filename string
		dist     string
		version  string
		build    string
		tags     []string
		wantErr  bool
	}{
		{
			filename: "requests-2.32.3-py3-none-any.whl",
			dist:     "requests", version: "2.32.3",
			tags: []string{"py3-none-any"},
		},
		{
			filename: "numpy-2.1.3-cp311-cp311-manylinux_2_17_x86_64.manylinux2014_x86_64.whl",
			dist:     "numpy", version: "2.1.3",
			tags: []string{"cp311-cp311-manylinux2014_x86_64", "cp311-cp311-manylinux_2_17_x86_64"},
		},
		{
			filename: "six-1.16.0-1-py2.py3-none-any.whl",
			dist:     "six", version: "1.16.0", build: "1",
			tags: []string{"py2-none-any", "py3-none-any"},
		},
		{filename: "requests-2.32.3.tar.gz", wantErr: true},
		{filename: "broken-py3-none-any.whl", wantErr: true},
		{filename: "six-1.16.0-x1-py3-none-any.whl", wantErr: true},
		{filename: "a-b-c-d-e-f-g.whl", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			w, err := ParseWheelFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWheelFilename() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if w.Distribution != tt.dist || w.Version != tt.version || w.Build != tt.build {
				t.Errorf("got %s %s build=%q, want %s %s build=%q",
					w.Distribution, w.Version, w.Build, tt.dist, tt.version, tt.build)
			}
			if got := w.Tags.Strings(); !slices.Equal(got, tt.tags) {
				t.Errorf("tags = %v, want %v", got, tt.tags)
			}
		})
	}
}

func TestIntersects(t *testing.T) {
	platform, _ := ParseAll([]string{
		"cp311-cp311-manylinux_2_17_x86_64",
		"cp311-cp311-linux_x86_64",
	})
	wheel, _ := Parse("cp311-cp311-linux_x86_64")
	other, _ := Parse("cp312-cp312-linux_x86_64")

	if !wheel.Intersects(platform) || !platform.Intersects(wheel) {
		t.Error("cp311 wheel should intersect the cp311 platform set")
	}
	if other.Intersects(platform) {
		t.Error("cp312 wheel should not intersect the cp311 platform set")
	}
	if NewSet().Intersects(platform) {
		t.Error("empty set intersects nothing")
	}
}

func TestStaticProvider(t *testing.T) {
	p, err := NewStaticProvider([]string{"py3-none-any", "cp311-cp311-linux_x86_64"})
	if err != nil {
		t.Fatalf("NewStaticProvider() error: %v", err)
	}
	set, _ := p.Tags(context.Background())
	if len(set) != 2 {
		t.Errorf("len = %d, want 2", len(set))
	}

	if _, err := NewStaticProvider(nil); err == nil {
		t.Error("empty list should be rejected")
	}
	if _, err := NewStaticProvider([]string{"garbage"}); err == nil {
		t.Error("invalid tag should be rejected")
	}
}

func TestInterpreterProvider(t *testing.T) {
	runner := &processtest.Runner{
		Handler: func(_ context.Context, cmd process.Command) ([]byte, error) {
			return []byte("cp311-cp311-linux_x86_64\ncp311-abi3-linux_x86_64\n\npy3-none-any\n"), nil
		},
	}
	p := NewInterpreterProvider("python3", runner)

	for range 2 {
		set, err := p.Tags(context.Background())
		if err != nil {
			t.Fatalf("Tags() error: %v", err)
		}
		if !set.Contains(Tag{"py3", "none", "any"}) || len(set) != 3 {
			t.Errorf("Tags() = %v", set.Strings())
		}
	}

	calls := runner.Calls()
	if len(calls) != 1 {
		t.Fatalf("interpreter queried %d times, want 1", len(calls))
	}
	if calls[0].Name != "python3" || calls[0].Args[0] != "-c" {
		t.Errorf("tag command = %s", calls[0])
	}
}

func TestInterpreterProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
	}{
		{"runner error", "", errors.New("no python")},
		{"no output", "\n", nil},
		{"garbage", "not a tag\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &processtest.Runner{
				Handler: func(context.Context, process.Command) ([]byte, error) {
					return []byte(tt.out), tt.err
				},
			}
			if _, err := NewInterpreterProvider("python3", runner).Tags(context.Background()); err == nil {
				t.Error("Tags() should fail")
			}
		})
	}
}
