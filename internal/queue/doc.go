// Package queue persists clip jobs in SQLite and provides the atomic
// conditional transitions the workflow manager depends on. The claim
// compare-and-swap is the only coordination point between concurrent
// worker processes.
package queue
