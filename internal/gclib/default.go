//go:build !gclib

package gclib

import "go.uber.org/zap"

// Default returns the Go-native driver. Build with -tags gclib to link
// against libgclib instead.
func Default(logger *zap.Logger) Driver {
	return NewLibrary(logger)
}
