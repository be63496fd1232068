// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface owns the presentation side of a render.Device: surface
// configuration, frame acquisition and presentation.
//
// A Context pairs one device with one surface. Configure negotiates a size
// and format; when the surface cannot take the requested format the error
// is a *ConfigurationError listing what it can take, and ConfigureBest
// picks the first acceptable format from a preference list.
//
// AcquireFrame hides the transient surface errors a window system produces
// during resizes and mode switches: a lost or outdated surface is
// reconfigured with the last configuration and acquisition retried, up to
// the configured number of attempts. A timeout is returned as
// render.ErrTimeout and means the caller skips the frame. Device loss is
// terminal.
//
// Present is the backpressure point of the frame loop. It keeps at most one
// submission in flight behind the one being presented:
//
//	ctx := surface.New(dev, surf)
//	if _, err := ctx.ConfigureBest(800, 600, render.FormatBGRA8); err != nil {
//		return err
//	}
//	for {
//		frame, err := ctx.AcquireFrame(context.Background())
//		if errors.Is(err, render.ErrTimeout) {
//			continue
//		}
//		if err != nil {
//			return err
//		}
//		if _, err := ctx.Submit(passes(frame)); err != nil {
//			ctx.Discard(frame)
//			return err
//		}
//		if err := ctx.Present(context.Background(), frame); err != nil {
//			return err
//		}
//	}
package surface
