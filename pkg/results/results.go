// Package results stores the history of validation runs.
//
// Every package run produces one [Record], whether it passed or failed.
// Backends:
//
//   - [NullStore]: discards records (the default)
//   - [FileStore]: one JSON file per run in a local directory
//   - [SQLiteStore]: a single SQLite database file
//   - [MongoStore]: a MongoDB collection shared by several hosts
package results

import (
	"context"
	"time"

	"github.com/matzehuels/pyvalidate/pkg/integrations"
)

// Status is the outcome of a run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Record describes one package run.
type Record struct {
	ID               string        `json:"id" bson:"_id"`
	Package          string        `json:"package" bson:"package"`
	RequestedVersion string        `json:"requested_version,omitempty" bson:"requested_version,omitempty"`
	Version          string        `json:"version,omitempty" bson:"version,omitempty"`
	Artifact         string        `json:"artifact,omitempty" bson:"artifact,omitempty"`
	Kind             string        `json:"kind,omitempty" bson:"kind,omitempty"`
	Status           Status        `json:"status" bson:"status"`
	Step             string        `json:"step,omitempty" bson:"step,omitempty"`
	ErrorCode        string        `json:"error_code,omitempty" bson:"error_code,omitempty"`
	Error            string        `json:"error,omitempty" bson:"error,omitempty"`
	CoverageDir      string        `json:"coverage_dir,omitempty" bson:"coverage_dir,omitempty"`
	LineRate         float64       `json:"line_rate,omitempty" bson:"line_rate,omitempty"`
	BranchRate       float64       `json:"branch_rate,omitempty" bson:"branch_rate,omitempty"`
	StartedAt        time.Time     `json:"started_at" bson:"started_at"`
	Duration         time.Duration `json:"duration" bson:"duration"`
}

// Passed reports whether the run succeeded.
func (r *Record) Passed() bool { return r.Status == StatusPassed }

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	// Package matches records for one package. Names compare in normalized
	// form, so "Zope_Interface" finds runs recorded as "zope.interface".
	Package string
	// Limit caps the number of records; 0 means no limit.
	Limit int
}

func packageKey(name string) string {
	return integrations.NormalizePkgName(name)
}

// Store persists run records. List returns the newest records first.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
	Close() error
}

// NullStore discards every record.
type NullStore struct{}

// NewNullStore creates a NullStore.
func NewNullStore() *NullStore { return &NullStore{} }

func (NullStore) Save(context.Context, *Record) error             { return nil }
func (NullStore) List(context.Context, Filter) ([]Record, error) { return nil, nil }
func (NullStore) Close() error                                    { return nil }

var _ Store = (*NullStore)(nil)
