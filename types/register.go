package types

// RegisterRequest is the handshake an agent sends to the collector to obtain
// its identifiers and the current endpoint list.
type RegisterRequest struct {
	ApplicationCode string `json:"applicationCode"`
	InstanceUUID    string `json:"instanceUUID"`
	OSName          string `json:"osName,omitempty"`
	Hostname        string `json:"hostname,omitempty"`
	ProcessID       int    `json:"processId,omitempty"`
	RegisterTime    int64  `json:"registerTime"`
}

// RegisterResponse carries the collector-assigned identity back to the agent
// plus the full set of collector endpoints to use from now on.
type RegisterResponse struct {
	ApplicationID         int32    `json:"applicationId"`
	ApplicationInstanceID int32    `json:"applicationInstanceId"`
	Servers               []string `json:"servers"`
}

// HeartbeatRequest keeps a registered instance alive on the collector side.
type HeartbeatRequest struct {
	ApplicationInstanceID int32 `json:"applicationInstanceId"`
	HeartbeatTime         int64 `json:"heartbeatTime"`
}

// GCMetricReport is one batch of garbage-collection counters reported by an
// agent, bucketed by minute on the collector side.
type GCMetricReport struct {
	ApplicationInstanceID int32 `json:"applicationInstanceId"`
	PhaseOld              bool  `json:"phaseOld"`
	Count                 int64 `json:"count"`
	Millis                int64 `json:"millis"`
	ReportTime            int64 `json:"reportTime"`
}
