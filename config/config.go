package config

import "time"

// Config defines the interface the rest of the code uses to get items from
// the config. There are different implementations of the config using
// different backends to store the config.
type Config interface {
	// RegisterReloadCallback takes a function that will be called whenever
	// the configuration is reloaded. This will happen infrequently. If
	// consumers of configuration set config values on startup, they should
	// check their values haven't changed and re-start anything that needs
	// restarting with the new values.
	RegisterReloadCallback(callback func())

	// Reload re-reads the config source and fires the registered
	// callbacks when it succeeds
	Reload() error

	// GetListenAddr returns the address and port on which the collector
	// listens for incoming agent traffic
	GetListenAddr() (string, error)

	// GetDebugServiceAddr sets the IP and port the debug service will run on
	// (you must provide the exact IP and port, not a hostname)
	GetDebugServiceAddr() (string, error)

	// GetLoggerType returns the type of the logger to use. Valid types are
	// in the logger package
	GetLoggerType() (string, error)

	// GetLoggingLevel returns the level of the logger to use (debug, info,
	// warn, error)
	GetLoggingLevel() (string, error)

	// GetMetricsType returns the type of metrics to use. Valid types are in
	// the metrics package
	GetMetricsType() (string, error)

	// GetApplicationCode returns the name this process registers under
	GetApplicationCode() (string, error)

	// GetCollectorServers returns the bootstrap collector endpoints used for
	// the registration handshake, before the collector hands down a list
	GetCollectorServers() ([]string, error)

	// GetRegisterRetryInterval returns how long the agent waits between
	// registration attempts until the handshake succeeds
	GetRegisterRetryInterval() (time.Duration, error)

	// GetHeartbeatInterval returns how often a registered agent pings the
	// collector
	GetHeartbeatInterval() (time.Duration, error)

	// GetQueueCapacity returns the bounded capacity of each ingestion
	// worker's queue
	GetQueueCapacity() (int, error)

	// GetBatchSize returns the number of records a worker accumulates
	// before flushing to persistence
	GetBatchSize() (int, error)

	// GetFlushInterval returns the longest a worker holds a partial batch
	// before flushing it anyway
	GetFlushInterval() (time.Duration, error)

	// GetOtherConfig attempts to fill the passed config object with the
	// contents of the named config section
	GetOtherConfig(name string, configStruct interface{}) error
}
