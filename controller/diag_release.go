//go:build release

package controller

const diagnosticsEnabled = false
