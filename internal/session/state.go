// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package session

// Phase is the connection lifecycle position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseDisconnected
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseDisconnected:
		return "disconnected"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the connection state. Reason is set for PhaseDisconnected and
// Err for PhaseFailed.
type State struct {
	Phase  Phase
	Reason string
	Err    error
}

func (s State) String() string {
	switch s.Phase {
	case PhaseDisconnected:
		return "disconnected: " + s.Reason
	case PhaseFailed:
		if s.Err != nil {
			return "failed: " + s.Err.Error()
		}
	}
	return s.Phase.String()
}

// Live reports whether a transport is open.
func (s State) Live() bool {
	return s.Phase == PhaseConnecting || s.Phase == PhaseConnected
}
