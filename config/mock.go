package config

import (
	"encoding/json"
	"time"
)

// MockConfig will respond with whatever config it's set to do during
// initialization
type MockConfig struct {
	GetListenAddrErr            error
	GetListenAddrVal            string
	GetDebugServiceAddrErr      error
	GetDebugServiceAddrVal      string
	GetLoggerTypeErr            error
	GetLoggerTypeVal            string
	GetLoggingLevelErr          error
	GetLoggingLevelVal          string
	GetMetricsTypeErr           error
	GetMetricsTypeVal           string
	GetApplicationCodeErr       error
	GetApplicationCodeVal       string
	GetCollectorServersErr      error
	GetCollectorServersVal      []string
	GetRegisterRetryIntervalVal time.Duration
	GetHeartbeatIntervalVal     time.Duration
	GetQueueCapacityVal         int
	GetBatchSizeVal             int
	GetFlushIntervalVal         time.Duration
	GetOtherConfigErr           error
	// GetOtherConfigVal must be a JSON representation of the config struct
	// to be populated.
	GetOtherConfigVal string
}

func (m *MockConfig) RegisterReloadCallback(func()) {}
func (m *MockConfig) Reload() error                 { return nil }
func (m *MockConfig) GetDebugServiceAddr() (string, error) {
	return m.GetDebugServiceAddrVal, m.GetDebugServiceAddrErr
}
func (m *MockConfig) GetListenAddr() (string, error) { return m.GetListenAddrVal, m.GetListenAddrErr }
func (m *MockConfig) GetLoggerType() (string, error) { return m.GetLoggerTypeVal, m.GetLoggerTypeErr }
func (m *MockConfig) GetLoggingLevel() (string, error) {
	return m.GetLoggingLevelVal, m.GetLoggingLevelErr
}
func (m *MockConfig) GetMetricsType() (string, error) {
	return m.GetMetricsTypeVal, m.GetMetricsTypeErr
}
func (m *MockConfig) GetApplicationCode() (string, error) {
	return m.GetApplicationCodeVal, m.GetApplicationCodeErr
}
func (m *MockConfig) GetCollectorServers() ([]string, error) {
	return m.GetCollectorServersVal, m.GetCollectorServersErr
}
func (m *MockConfig) GetRegisterRetryInterval() (time.Duration, error) {
	return m.GetRegisterRetryIntervalVal, nil
}
func (m *MockConfig) GetHeartbeatInterval() (time.Duration, error) {
	return m.GetHeartbeatIntervalVal, nil
}
func (m *MockConfig) GetQueueCapacity() (int, error) { return m.GetQueueCapacityVal, nil }
func (m *MockConfig) GetBatchSize() (int, error)     { return m.GetBatchSizeVal, nil }
func (m *MockConfig) GetFlushInterval() (time.Duration, error) {
	return m.GetFlushIntervalVal, nil
}
func (m *MockConfig) GetOtherConfig(name string, iface interface{}) error {
	if m.GetOtherConfigVal != "" {
		if err := json.Unmarshal([]byte(m.GetOtherConfigVal), iface); err != nil {
			return err
		}
	}
	return m.GetOtherConfigErr
}
