// Package remote holds the configuration the collector hands down to an
// agent at runtime: the agent's assigned identity and the collector endpoint
// list. Everything starts out as sentinel values; a background registration
// exchange fills them in. Tracing never waits on that exchange.
package remote

import (
	"sync/atomic"

	"github.com/traceloom/traceloom/dict"
)

// State is one immutable registration cycle's worth of downstream config.
// ApplicationID and InstanceID always come from the same handshake response;
// readers can never see ids from two different cycles.
type State struct {
	ApplicationID int32
	InstanceID    int32
	Servers       []string
	// Epoch counts completed registration cycles, starting at 0 for the
	// unregistered sentinel state.
	Epoch int64
}

// Registered reports whether the handshake has completed at least once.
func (s State) Registered() bool {
	return s.ApplicationID != dict.NullValue && s.InstanceID != dict.NullValue
}

// DownstreamConfig is the process-wide handle to the current State. Get
// returns a snapshot; Swap replaces the whole thing atomically. Single
// writer (the registration service), many readers (every span transform).
type DownstreamConfig struct {
	state atomic.Pointer[State]
}

func NewDownstreamConfig() *DownstreamConfig {
	d := &DownstreamConfig{}
	d.state.Store(&State{
		ApplicationID: dict.NullValue,
		InstanceID:    dict.NullValue,
	})
	return d
}

func (d *DownstreamConfig) Get() State {
	return *d.state.Load()
}

func (d *DownstreamConfig) Swap(next State) {
	next.Epoch = d.state.Load().Epoch + 1
	d.state.Store(&next)
}
