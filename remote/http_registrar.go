package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPRegistrar talks to a collector's registration endpoints over HTTP.
// Before the first successful handshake it uses the bootstrap servers from
// the config file; after that it prefers the list the collector handed down.
type HTTPRegistrar struct {
	Config     config.Config     `inject:""`
	Downstream *DownstreamConfig `inject:""`
	Client     *http.Client      `inject:"registrarClient"`
}

func (h *HTTPRegistrar) Register(ctx context.Context, req types.RegisterRequest) (types.RegisterResponse, error) {
	var resp types.RegisterResponse
	body, err := h.post(ctx, "/v1/register", req)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, errors.Wrap(err, "failed to decode register response")
	}
	return resp, nil
}

func (h *HTTPRegistrar) Heartbeat(ctx context.Context, req types.HeartbeatRequest) error {
	_, err := h.post(ctx, "/v1/heartbeat", req)
	return err
}

func (h *HTTPRegistrar) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	servers := h.Downstream.Get().Servers
	if len(servers) == 0 {
		var err error
		servers, err = h.Config.GetCollectorServers()
		if err != nil || len(servers) == 0 {
			return nil, errors.New("no collector servers configured")
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request")
	}

	var lastErr error
	for _, server := range servers {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			fmt.Sprintf("http://%s%s", server, path), bytes.NewReader(encoded))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := h.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = errors.Errorf("collector %s returned status %d", server, resp.StatusCode)
			continue
		}
		return body, nil
	}
	return nil, errors.Wrap(lastErr, "all collector servers failed")
}
