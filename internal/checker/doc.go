// Package checker resolves paths against the local handler chain, following
// same-host redirects up to a bounded number of hops, and reduces the final
// response to a reachable verdict.
//
// Every resolution runs on its own goroutine through the runner package, so a
// check can be issued from inside a request that the same application is
// currently serving, and a panic deep in the handler chain reaches the caller
// as an error instead of crashing it.
//
//	c := checker.New(chain, checker.Config{}, logger)
//	if !c.Check(ctx, "/about", checker.WithMaxRedirects(3)) {
//	    // broken link
//	}
package checker
