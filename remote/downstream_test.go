package remote

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traceloom/traceloom/dict"
)

func TestDownstreamStartsAsSentinel(t *testing.T) {
	d := NewDownstreamConfig()
	state := d.Get()
	assert.Equal(t, dict.NullValue, state.ApplicationID)
	assert.Equal(t, dict.NullValue, state.InstanceID)
	assert.Empty(t, state.Servers)
	assert.False(t, state.Registered())
}

func TestSwapReplacesWholesale(t *testing.T) {
	d := NewDownstreamConfig()
	d.Swap(State{ApplicationID: 7, InstanceID: 70, Servers: []string{"a:1", "b:2"}})

	state := d.Get()
	assert.True(t, state.Registered())
	assert.Equal(t, int32(7), state.ApplicationID)
	assert.Equal(t, int32(70), state.InstanceID)
	assert.Equal(t, []string{"a:1", "b:2"}, state.Servers)
	assert.Equal(t, int64(1), state.Epoch)

	d.Swap(State{ApplicationID: 8, InstanceID: 80, Servers: []string{"c:3"}})
	state = d.Get()
	assert.Equal(t, []string{"c:3"}, state.Servers, "server list should be replaced, not merged")
	assert.Equal(t, int64(2), state.Epoch)
}

// TestAtomicIDPairing hammers Get from many goroutines while a writer swaps
// through registration cycles where the instance id is always 10x the
// application id. A reader observing a mismatched pair means it saw a
// half-updated state.
func TestAtomicIDPairing(t *testing.T) {
	d := NewDownstreamConfig()

	const cycles = 1000
	const readers = 8

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				state := d.Get()
				if state.ApplicationID != dict.NullValue {
					assert.Equal(t, state.ApplicationID*10, state.InstanceID,
						"application and instance ids must come from the same cycle")
				}
			}
		}()
	}

	for c := int32(1); c <= cycles; c++ {
		d.Swap(State{ApplicationID: c, InstanceID: c * 10})
	}
	close(stop)
	wg.Wait()
}
