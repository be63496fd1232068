// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"errors"
	"fmt"

	"github.com/gogpu/stage/render"
)

var (
	// ErrOutOfDeviceMemory is returned when the device cannot allocate a
	// buffer or texture. The caller skips the affected draw.
	ErrOutOfDeviceMemory = fmt.Errorf("upload: %w", render.ErrOutOfMemory)

	// ErrResourceExhausted is an alias of ErrOutOfDeviceMemory.
	ErrResourceExhausted = ErrOutOfDeviceMemory

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("upload: uploader closed")
)

// wrapDeviceError tags allocation failures with ErrOutOfDeviceMemory.
func wrapDeviceError(what string, err error) error {
	if errors.Is(err, render.ErrOutOfMemory) {
		return fmt.Errorf("%w: %s: %w", ErrOutOfDeviceMemory, what, err)
	}
	return fmt.Errorf("upload: %s: %w", what, err)
}
