package config

import (
	"os"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

type configContents struct {
	ListenAddr            string
	Logger                string
	LoggingLevel          string
	Metrics               string
	ApplicationCode       string
	CollectorServers      []string
	RegisterRetryInterval time.Duration
	HeartbeatInterval     time.Duration
	QueueCapacity         int
	BatchSize             int
	FlushInterval         time.Duration
	DebugServiceAddr      string
}

// FileConfig reads a TOML config file once at Start and serves values from
// memory after that. Reload re-reads the file and fires the registered
// callbacks so long-lived components can pick up changes.
type FileConfig struct {
	Path string

	conf      configContents
	raw       map[string]interface{}
	callbacks []func()
	mux       sync.Mutex
}

func (f *FileConfig) Start() error {
	return f.load()
}

func (f *FileConfig) load() error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", f.Path)
	}

	conf := configContents{
		ListenAddr:            "0.0.0.0:10800",
		Logger:                "logrus",
		LoggingLevel:          "info",
		Metrics:               "prometheus",
		RegisterRetryInterval: 3 * time.Second,
		HeartbeatInterval:     30 * time.Second,
		QueueCapacity:         1024,
		BatchSize:             100,
		FlushInterval:         time.Second,
	}
	if err := toml.Unmarshal(data, &conf); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", f.Path)
	}
	raw := make(map[string]interface{})
	if err := toml.Unmarshal(data, &raw); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", f.Path)
	}

	f.mux.Lock()
	f.conf = conf
	f.raw = raw
	f.mux.Unlock()
	return nil
}

func (f *FileConfig) RegisterReloadCallback(cb func()) {
	f.mux.Lock()
	f.callbacks = append(f.callbacks, cb)
	f.mux.Unlock()
}

// Reload re-reads the config file and notifies everyone who asked.
func (f *FileConfig) Reload() error {
	if err := f.load(); err != nil {
		return err
	}
	f.mux.Lock()
	cbs := make([]func(), len(f.callbacks))
	copy(cbs, f.callbacks)
	f.mux.Unlock()
	for _, cb := range cbs {
		cb()
	}
	return nil
}

func (f *FileConfig) GetDebugServiceAddr() (string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.DebugServiceAddr, nil
}

func (f *FileConfig) GetListenAddr() (string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.ListenAddr, nil
}

func (f *FileConfig) GetLoggerType() (string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.Logger, nil
}

func (f *FileConfig) GetLoggingLevel() (string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.LoggingLevel, nil
}

func (f *FileConfig) GetMetricsType() (string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.Metrics, nil
}

func (f *FileConfig) GetApplicationCode() (string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if f.conf.ApplicationCode == "" {
		return "", errors.New("ApplicationCode is not set in the config file")
	}
	return f.conf.ApplicationCode, nil
}

func (f *FileConfig) GetCollectorServers() ([]string, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.CollectorServers, nil
}

func (f *FileConfig) GetRegisterRetryInterval() (time.Duration, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.RegisterRetryInterval, nil
}

func (f *FileConfig) GetHeartbeatInterval() (time.Duration, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.HeartbeatInterval, nil
}

func (f *FileConfig) GetQueueCapacity() (int, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.QueueCapacity, nil
}

func (f *FileConfig) GetBatchSize() (int, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.BatchSize, nil
}

func (f *FileConfig) GetFlushInterval() (time.Duration, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.conf.FlushInterval, nil
}

// GetOtherConfig refills the passed struct from the named section of the
// config file, so components can carry their own config blocks without the
// Config interface growing a method per field.
func (f *FileConfig) GetOtherConfig(name string, configStruct interface{}) error {
	f.mux.Lock()
	section, ok := f.raw[name]
	f.mux.Unlock()
	if !ok {
		return errors.Errorf("no config section found with name %s", name)
	}
	encoded, err := toml.Marshal(section)
	if err != nil {
		return errors.Wrapf(err, "failed to re-encode config section %s", name)
	}
	return errors.Wrapf(toml.Unmarshal(encoded, configStruct), "failed to decode config section %s", name)
}
