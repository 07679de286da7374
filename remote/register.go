package remote

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/types"
)

// Registrar performs the wire exchange with a collector. The HTTP
// implementation lives in this package; tests substitute their own.
type Registrar interface {
	Register(ctx context.Context, req types.RegisterRequest) (types.RegisterResponse, error)
	Heartbeat(ctx context.Context, req types.HeartbeatRequest) error
}

// RegisterService runs the registration handshake in the background,
// retrying until the collector answers, then keeps the instance alive with
// periodic heartbeats. Each successful handshake swaps a complete new State
// into the DownstreamConfig.
type RegisterService struct {
	Config     config.Config     `inject:""`
	Logger     logger.Logger     `inject:""`
	Registrar  Registrar         `inject:""`
	Downstream *DownstreamConfig `inject:""`
	Clock      clockwork.Clock   `inject:""`

	instanceUUID string
	done         chan struct{}
	wg           sync.WaitGroup
}

func (r *RegisterService) Start() error {
	r.instanceUUID = uuid.NewString()
	r.done = make(chan struct{})
	r.wg.Add(1)
	go r.run()
	return nil
}

func (r *RegisterService) Stop() error {
	close(r.done)
	r.wg.Wait()
	return nil
}

func (r *RegisterService) run() {
	defer r.wg.Done()

	retryInterval, err := r.Config.GetRegisterRetryInterval()
	if err != nil || retryInterval <= 0 {
		retryInterval = 3 * time.Second
	}

	for !r.register() {
		select {
		case <-r.done:
			return
		case <-r.Clock.After(retryInterval):
		}
	}

	heartbeatInterval, err := r.Config.GetHeartbeatInterval()
	if err != nil || heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	ticker := r.Clock.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.Chan():
			r.heartbeat()
		}
	}
}

// register runs one handshake attempt and reports whether it stuck.
func (r *RegisterService) register() bool {
	appCode, err := r.Config.GetApplicationCode()
	if err != nil {
		r.Logger.Errorf("registration needs an application code: %v", err)
		return false
	}
	hostname, _ := os.Hostname()
	req := types.RegisterRequest{
		ApplicationCode: appCode,
		InstanceUUID:    r.instanceUUID,
		Hostname:        hostname,
		ProcessID:       os.Getpid(),
		RegisterTime:    r.Clock.Now().UnixMilli(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := r.Registrar.Register(ctx, req)
	if err != nil {
		r.Logger.Debugf("registration attempt failed, will retry: %v", err)
		return false
	}

	r.Downstream.Swap(State{
		ApplicationID: resp.ApplicationID,
		InstanceID:    resp.ApplicationInstanceID,
		Servers:       resp.Servers,
	})
	r.Logger.Infof("registered as application %d instance %d with %d collector servers",
		resp.ApplicationID, resp.ApplicationInstanceID, len(resp.Servers))
	return true
}

func (r *RegisterService) heartbeat() {
	state := r.Downstream.Get()
	if !state.Registered() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := r.Registrar.Heartbeat(ctx, types.HeartbeatRequest{
		ApplicationInstanceID: state.InstanceID,
		HeartbeatTime:         r.Clock.Now().UnixMilli(),
	})
	if err != nil {
		r.Logger.Debugf("heartbeat failed: %v", err)
	}
}
