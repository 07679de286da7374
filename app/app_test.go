package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/facebookgo/inject"
	"github.com/facebookgo/startstop"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/dict"
	"github.com/traceloom/traceloom/ingest"
	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/metrics"
	"github.com/traceloom/traceloom/route"
	"github.com/traceloom/traceloom/storage"
	"github.com/traceloom/traceloom/types"
)

func newStartedApp(t *testing.T) (*App, inject.Graph) {
	c := &config.MockConfig{
		GetListenAddrVal:       "127.0.0.1:11000",
		GetCollectorServersVal: []string{"127.0.0.1:11000"},
		GetQueueCapacityVal:    100,
		GetBatchSizeVal:        10,
		GetFlushIntervalVal:    10 * time.Millisecond,
		GetLoggingLevelVal:     "debug",
	}

	a := App{}

	lgr := &logger.LogrusLogger{}
	lgr.SetLevel("debug")
	lgr.Start()

	metricsr := &metrics.MockMetrics{}
	metricsr.Start()

	var g inject.Graph
	err := g.Provide(
		&inject.Object{Value: c},
		&inject.Object{Value: lgr},
		&inject.Object{Value: metricsr},
		&inject.Object{Value: clockwork.NewRealClock()},
		&inject.Object{Value: dict.NewRegistry()},
		&inject.Object{Value: storage.NewMemStore()},
		&inject.Object{Value: &ingest.Router{}},
		&inject.Object{Value: &route.Router{}},
		&inject.Object{Value: "test", Name: "version"},
		&inject.Object{Value: &a},
	)
	assert.Equal(t, nil, err)

	err = g.Populate()
	assert.Equal(t, nil, err)

	err = startstop.Start(g.Objects(), nil)
	assert.Equal(t, nil, err)

	// Racy: wait just a moment for Serve to start up.
	time.Sleep(10 * time.Millisecond)
	return &a, g
}

func TestAppIntegration(t *testing.T) {
	_, graph := newStartedApp(t)

	resp, err := http.Get("http://127.0.0.1:11000/alive")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `"alive":"yes"`)

	register, err := json.Marshal(types.RegisterRequest{
		ApplicationCode: "billing",
		InstanceUUID:    "instance-1",
	})
	require.NoError(t, err)
	resp, err = http.Post("http://127.0.0.1:11000/v1/register",
		"application/json", bytes.NewReader(register))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var registered types.RegisterResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&registered))
	resp.Body.Close()
	assert.NotEqual(t, dict.NullValue, registered.ApplicationID)
	assert.Equal(t, []string{"127.0.0.1:11000"}, registered.Servers)

	err = startstop.Stop(graph.Objects(), nil)
	assert.Equal(t, nil, err)
}
