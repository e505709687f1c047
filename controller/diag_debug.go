//go:build !release

package controller

// diagnosticsEnabled turns on warnings that only help while developing.
// Build with -tags release to strip them.
const diagnosticsEnabled = true
