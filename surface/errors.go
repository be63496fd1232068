// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"fmt"

	"github.com/gogpu/stage/render"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("surface: unsupported configuration")

	// ErrNotConfigured is returned by AcquireFrame before Configure.
	ErrNotConfigured = errors.New("surface: not configured")
)

// ConfigurationError reports a size or format the surface cannot take.
// Supported lists the formats accepted by both the surface and the device.
type ConfigurationError struct {
	Width, Height int
	Format        render.TextureFormat
	Supported     []render.TextureFormat
	Err           error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("surface: cannot configure %dx%d %s (supported formats %v)",
		e.Width, e.Height, e.Format, e.Supported)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
