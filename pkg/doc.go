// Package pkg provides the libraries behind pyvalidate, a tool that builds,
// installs, and tests Python packages from PyPI in isolation.
//
// # Overview
//
// A validation run takes one package name and ends with either a coverage
// report on disk or a coded error naming the step that failed:
//
//	package table entry
//	         ↓
//	    [resolve] (pick one sdist or compatible wheel from the catalog)
//	         ↓
//	    [fetch] + [archive] (download, verify, unpack in a scratch workspace)
//	         ↓
//	    [venv] (create the environment, pip install deps and the package)
//	         ↓
//	    test command under coverage
//	         ↓
//	    [coverage] (move coverage.xml and coverage_html to the output dir)
//
// [pipeline] drives those steps, enforces timeouts, and always removes the
// workspace. Batches run packages one after another and isolate failures.
//
// # Quick Start
//
//	table := packages.Default()
//	catalog := pypi.NewClient(cache.NewNullCache(), 0)
//	runner := process.NewRunner()
//
//	p, _ := pipeline.New(pipeline.Options{
//	    Packages:    table,
//	    Resolver:    resolve.New(catalog, tags.NewInterpreterProvider("python3", runner), nil),
//	    Fetcher:     fetch.New(nil, nil),
//	    Provisioner: venv.NewProvisioner("python3", runner, nil),
//	    Installer:   venv.NewInstaller(runner, nil),
//	    Runner:      runner,
//	})
//	res := p.Run(ctx, "requests", "")
//	if !res.OK() {
//	    fmt.Println(res.Step, res.Code())
//	}
//
// # Main Packages
//
// ## Pipeline
//
// [pipeline] - The per-package state machine, step timeouts, the scratch
// workspace, and batch runs.
//
// [packages] - The package configuration table (TOML, YAML, or JSON).
//
// ## Artifacts
//
// [resolve] - Artifact selection: first sdist, or first wheel whose tags
// intersect the interpreter's.
//
// [tags] - Platform tag sets and wheel filename parsing.
//
// [fetch] - Streaming download with sha256 and size checks.
//
// [archive] - Hardened tar.gz, tar.bz2, tar.xz, and zip extraction.
//
// ## Environment
//
// [process] - Subprocess execution with captured output and context
// cancellation.
//
// [venv] - Virtual environment creation and pip installs.
//
// [coverage] - Report relocation and Cobertura summary parsing.
//
// ## Infrastructure
//
// [integrations] - The shared HTTP client for the release catalog, with
// response caching and retries. [integrations/pypi] speaks the PyPI JSON API.
//
// [cache] - Catalog response caches: null, file, and Redis.
//
// [results] - Run history: file, SQLite, and MongoDB stores.
//
// [httputil] - Retry with backoff for transient HTTP failures.
//
// [observability] - Hooks for step, cache, and HTTP events.
//
// [errors] - Coded errors shared by every step, and input validation.
//
// # Testing
//
//	go test ./...                    # All tests
//	go test -tags integration ./...  # Include Redis, MongoDB, and PyPI tests
//
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/pipeline
// [packages]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/packages
// [resolve]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/resolve
// [tags]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/tags
// [fetch]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/fetch
// [archive]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/archive
// [process]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/process
// [venv]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/venv
// [coverage]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/coverage
// [integrations]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/integrations
// [integrations/pypi]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/integrations/pypi
// [cache]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/cache
// [results]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/results
// [httputil]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/pyvalidate/pkg/errors
package pkg
