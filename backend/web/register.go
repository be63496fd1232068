// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build js && wasm

package web

import (
	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/render"
)

func init() {
	backend.Register(backend.Web, func() backend.Backend { return webBackend{} })
}

type webBackend struct{}

func (webBackend) Name() string { return backend.Web }

func (webBackend) Open() (render.Device, error) {
	d, err := Open()
	if err != nil {
		return nil, err
	}
	return d, nil
}
