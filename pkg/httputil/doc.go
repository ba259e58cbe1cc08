// Package httputil provides HTTP utilities for the release catalog client.
//
// # Retry
//
// [Retry] re-runs an operation whose error is wrapped in [RetryableError]
// (network errors and 5xx responses), doubling the delay between attempts:
//
//	err := httputil.Retry(ctx, attempts, time.Second, func() error {
//	    return fetchProject(ctx, name)
//	})
//
// The validation pipeline defaults to a single attempt: a failed catalog
// request is terminal for that package's run. Operators who want transport
// level retries opt in with the catalog.retries setting.
package httputil
