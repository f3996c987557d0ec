// Package runner runs units of work on their own goroutine with an optional
// deadline. Run blocks until the work finishes or the deadline passes; Go
// returns a Task handle immediately. A timed-out task is abandoned, not
// cancelled: it keeps running and its result is discarded.
package runner
