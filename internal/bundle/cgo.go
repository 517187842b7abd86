//go:build cgo

package bundle

const cgoEnabled = true
