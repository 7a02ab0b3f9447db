// Package testsupport provides shared helpers for package tests:
// temp-dir-rooted configs and job stores with automatic cleanup.
package testsupport
