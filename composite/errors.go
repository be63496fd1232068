// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package composite

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a group operation is called in
	// the wrong state.
	ErrInvalidTransition = errors.New("composite: invalid group transition")

	// ErrEmptyBounds is returned by Begin for a group that covers no
	// visible pixel. The caller skips the group.
	ErrEmptyBounds = errors.New("composite: group has empty bounds")

	// ErrNoMask is returned by StartMask for a group without a mask.
	ErrNoMask = errors.New("composite: group has no mask")
)

// State is the lifecycle state of a Group.
type State uint8

// Group states, in order.
const (
	Pending State = iota
	RenderingContent
	Combining
	Resolved
)

var stateNames = [...]string{
	Pending:          "pending",
	RenderingContent: "rendering_content",
	Combining:        "combining",
	Resolved:         "resolved",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}
