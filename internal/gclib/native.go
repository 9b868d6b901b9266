//go:build gclib

package gclib

/*
#cgo LDFLAGS: -lgclib -lgclibo
#include <stdlib.h>
#include "gclib.h"
#include "gclibo.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Native forwards every call to Galil's libgclib. Controller handles are C
// pointers, so callers get Go-side tokens that map onto them.
type Native struct {
	mu      sync.Mutex
	handles map[GCon]C.GCon
	next    GCon
	logger  *zap.Logger
}

var _ Driver = (*Native)(nil)

func NewNative(logger *zap.Logger) *Native {
	return &Native{
		handles: make(map[GCon]C.GCon),
		next:    1,
		logger:  logger,
	}
}

// Default returns the libgclib binding when built with the gclib tag.
func Default(logger *zap.Logger) Driver {
	return NewNative(logger)
}

func (n *Native) handle(g GCon) (C.GCon, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	h, ok := n.handles[g]
	if !ok {
		return nil, G_CONNECTION_NOT_ESTABLISHED
	}
	return h, nil
}

func (n *Native) GOpen(address string) (GCon, error) {
	cAddress := C.CString(address)
	defer C.free(unsafe.Pointer(cAddress))

	var h C.GCon
	if rc := GReturn(C.GOpen(cAddress, &h)); rc != G_NO_ERROR {
		n.logger.Error("GOpen failed", zap.String("address", address), zap.Int("code", int(rc)))
		return 0, rc
	}

	n.mu.Lock()
	g := n.next
	n.next++
	n.handles[g] = h
	n.mu.Unlock()

	return g, nil
}

func (n *Native) GClose(g GCon) error {
	n.mu.Lock()
	h, ok := n.handles[g]
	delete(n.handles, g)
	n.mu.Unlock()

	if !ok {
		return nil
	}
	return status(GReturn(C.GClose(h)))
}

func (n *Native) GCommand(g GCon, command string, buffer []byte) (int, error) {
	h, err := n.handle(g)
	if err != nil {
		return 0, err
	}
	if len(buffer) == 0 {
		return 0, G_BAD_LOST_DATA
	}

	cCommand := C.CString(command)
	defer C.free(unsafe.Pointer(cCommand))

	var returned C.GSize
	rc := GReturn(C.GCommand(h, cCommand, (*C.char)(unsafe.Pointer(&buffer[0])), C.GSize(len(buffer)), &returned))
	return int(returned), status(rc)
}

func (n *Native) GVersion(buffer []byte) error {
	if len(buffer) == 0 {
		return G_GCLIB_ERROR
	}
	return status(GReturn(C.GVersion((*C.char)(unsafe.Pointer(&buffer[0])), C.GSize(len(buffer)))))
}

func (n *Native) GInfo(g GCon, buffer []byte) error {
	h, err := n.handle(g)
	if err != nil {
		return err
	}
	if len(buffer) == 0 {
		return G_GCLIB_ERROR
	}
	return status(GReturn(C.GInfo(h, (*C.char)(unsafe.Pointer(&buffer[0])), C.GSize(len(buffer)))))
}

func (n *Native) CloseAll() error {
	n.mu.Lock()
	handles := make([]GCon, 0, len(n.handles))
	for g := range n.handles {
		handles = append(handles, g)
	}
	n.mu.Unlock()

	var err error
	for _, g := range handles {
		err = multierr.Append(err, n.GClose(g))
	}
	return err
}
