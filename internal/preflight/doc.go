// Package preflight checks that an ingestion run can succeed before it
// creates anything in the search engine.
//
// The package validates:
//   - The corpus root and every indexing directory
//   - The data directory (writable, free space, run lock)
//   - File descriptor limits for the local backend
//   - Engine reachability and the current alias binding
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(cfg, preflight.WithEngine(e))
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
