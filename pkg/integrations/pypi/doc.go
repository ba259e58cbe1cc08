// Package pypi provides an HTTP client for the Python Package Index JSON API.
//
// # Overview
//
// The validation pipeline needs one thing from PyPI: for a package, the
// currently published version and, per version, the ordered list of
// downloadable files with their type, URL, and sha256 digest.
//
// # Usage
//
//	client := pypi.NewClient(cache.NewNullCache(), 0)
//	project, err := client.FetchProject(ctx, "requests", false)
//	if err != nil {
//	    return err
//	}
//	files, ok := project.Files(project.Version)
//
// # Caching
//
// Project documents are cached under "pypi:<normalized-name>" when a TTL
// greater than zero is configured. Pass refresh=true to [Client.FetchProject]
// to bypass the cache.
//
// Package names are normalized following PEP 503.
package pypi
