package pipeline

import (
	"context"
	"fmt"
	"time"
)

// BatchResult collects the results of RunBatch in input order.
type BatchResult struct {
	Results  []*Result
	Duration time.Duration
}

// OK reports whether every package passed.
func (b *BatchResult) OK() bool { return len(b.Failed()) == 0 }

// Passed returns the names of the packages that passed.
func (b *BatchResult) Passed() []string {
	var out []string
	for _, r := range b.Results {
		if r.OK() {
			out = append(out, r.Package)
		}
	}
	return out
}

// Failed returns the failed results.
func (b *BatchResult) Failed() []*Result {
	var out []*Result
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// RunBatch validates names one after another at their latest versions. A
// failure only ends that package's run; the batch always runs to the end.
func (p *Pipeline) RunBatch(ctx context.Context, names []string) *BatchResult {
	start := time.Now()
	b := &BatchResult{Results: make([]*Result, 0, len(names))}
	for i, name := range names {
		p.opts.Logger.Info(fmt.Sprintf("validating package %d/%d", i+1, len(names)), "package", name)
		b.Results = append(b.Results, p.Run(ctx, name, ""))
	}
	b.Duration = time.Since(start)

	p.opts.Logger.Info("batch complete",
		"passed", len(b.Passed()),
		"failed", len(b.Failed()),
		"duration", b.Duration.Round(time.Millisecond))
	return b
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
