// Package resolve selects the one release file the pipeline will install.
//
// Given a package, an optional version, and a source-or-binary preference,
// [Resolver.Resolve] picks exactly one file from the catalog:
//
//   - preferSource: the first sdist in catalog order; platform tags are ignored
//   - otherwise: the first bdist_wheel, in catalog order, whose filename tags
//     intersect the interpreter's supported tags
//
// There is no scoring across compatible candidates; catalog order decides.
// Wheels whose filename cannot be parsed are logged and skipped.
package resolve

import (
	"context"
	stderrors "errors"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/integrations"
	"github.com/matzehuels/pyvalidate/pkg/integrations/pypi"
	"github.com/matzehuels/pyvalidate/pkg/tags"
)

// Kind distinguishes source archives from wheels.
type Kind string

const (
	KindSdist Kind = "sdist"
	KindWheel Kind = "wheel"
)

// Artifact is the selected release file.
type Artifact struct {
	Package string
	Version string
	Kind    Kind
	File    pypi.File
}

// Catalog lists the releases of a package.
type Catalog interface {
	FetchProject(ctx context.Context, name string, refresh bool) (*pypi.Project, error)
}

// Resolver picks artifacts from a Catalog.
type Resolver struct {
	catalog Catalog
	tags    tags.Provider
	logger  *log.Logger
}

// New creates a Resolver. The tag provider is only consulted for wheels.
// A nil logger uses log.Default().
func New(catalog Catalog, provider tags.Provider, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{catalog: catalog, tags: provider, logger: logger}
}

// Resolve selects the artifact for name at version ("" means latest).
//
// Errors carry one of these codes:
//   - VERSION_NOT_FOUND: the version is unknown or has no files at all
//   - ARTIFACT_NOT_FOUND: unknown package, or no file satisfies the policy
//   - DOWNLOAD_ERROR: the catalog request failed
func (r *Resolver) Resolve(ctx context.Context, name, version string, preferSource bool) (*Artifact, error) {
	project, err := r.catalog.FetchProject(ctx, name, false)
	if err != nil {
		if stderrors.Is(err, integrations.ErrNotFound) {
			return nil, errors.Wrap(errors.ErrCodeArtifactNotFound, err, "package %s not found in catalog", name)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(errors.ErrCodeDownload, err, "query catalog for %s", name)
	}

	if version == "" {
		version = project.Version
		r.logger.Debug("using latest version", "package", name, "version", version)
	}
	files, ok := project.Files(version)
	if !ok || len(files) == 0 {
		return nil, errors.New(errors.ErrCodeVersionNotFound, "version %q for package %s not found", version, name)
	}

	var file *pypi.File
	var kind Kind
	if preferSource {
		file, kind = r.firstSdist(name, files), KindSdist
	} else {
		platform, err := r.tags.Tags(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "determine platform tags")
		}
		file, kind = r.firstCompatibleWheel(name, files, platform), KindWheel
	}

	if file == nil {
		return nil, errors.New(errors.ErrCodeArtifactNotFound, "no %s found for %s==%s", kind, name, version)
	}
	if file.Yanked {
		r.logger.Warn("selected file is yanked", "package", name, "file", file.Filename)
	}
	return &Artifact{Package: name, Version: version, Kind: kind, File: *file}, nil
}

func (r *Resolver) firstSdist(name string, files []pypi.File) *pypi.File {
	for i := range files {
		if files[i].IsSdist() {
			r.logger.Info("selected source distribution", "package", name, "file", files[i].Filename)
			return &files[i]
		}
	}
	return nil
}

func (r *Resolver) firstCompatibleWheel(name string, files []pypi.File, platform tags.Set) *pypi.File {
	for i := range files {
		f := &files[i]
		if !f.IsWheel() {
			continue
		}
		w, err := tags.ParseWheelFilename(f.Filename)
		if err != nil {
			r.logger.Debug("skipping unparsable wheel", "package", name, "file", f.Filename, "err", err)
			continue
		}
		if !w.Tags.Intersects(platform) {
			r.logger.Debug("skipping incompatible wheel", "package", name, "file", f.Filename)
			continue
		}
		r.logger.Info("selected wheel", "package", name, "file", f.Filename)
		return f
	}
	return nil
}
