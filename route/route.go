// Package route is the collector's HTTP surface: it receives segment and
// metric payloads from agents, answers the registration handshake, and hands
// every accepted record to the ingestion pipeline.
package route

import (
	"bytes"
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/dict"
	"github.com/traceloom/traceloom/ingest"
	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/metrics"
	"github.com/traceloom/traceloom/storage"
	"github.com/traceloom/traceloom/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// instance dictionary keys get a prefix so an application code and an
// instance uuid can never collide on the same interned id space entry
const instanceKeyPrefix = "instance/"

type Router struct {
	Config  config.Config   `inject:""`
	Logger  logger.Logger   `inject:""`
	Metrics metrics.Metrics `inject:""`
	Dict    dict.Dictionary `inject:""`
	Ingest  ingest.Enqueuer `inject:""`
	Clock   clockwork.Clock `inject:""`
	Version string          `inject:"version"`

	server      *http.Server
	zstdDecoder *zstd.Decoder
}

type routerResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (r *Router) Start() error {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	r.zstdDecoder = decoder

	r.Metrics.Register("router_segment_batch", "counter")
	r.Metrics.Register("router_segment", "counter")
	r.Metrics.Register("router_segment_dropped", "counter")
	r.Metrics.Register("router_register", "counter")
	r.Metrics.Register("router_heartbeat", "counter")
	r.Metrics.Register("router_gc_metric", "counter")
	r.Metrics.Register("router_bad_request", "counter")

	muxxer := mux.NewRouter()

	// answer a basic health check locally
	muxxer.HandleFunc("/alive", r.alive).Name("local health")
	muxxer.HandleFunc("/version", r.version).Name("report version info")

	agentMuxxer := muxxer.PathPrefix("/v1/").Methods("POST").Subrouter()
	agentMuxxer.HandleFunc("/register", r.postRegister).Name("registration handshake")
	agentMuxxer.HandleFunc("/heartbeat", r.postHeartbeat).Name("instance heartbeat")
	agentMuxxer.HandleFunc("/segments", r.postSegments).Name("segment batch")
	agentMuxxer.HandleFunc("/metrics/gc", r.postGCMetrics).Name("gc metric report")

	listenAddr, err := r.Config.GetListenAddr()
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	r.Logger.Infof("collector listening on %s", listenAddr)

	r.server = &http.Server{
		Handler:     muxxer,
		IdleTimeout: time.Minute,
	}
	go r.server.Serve(listener)
	return nil
}

func (r *Router) Stop() error {
	if r.server != nil {
		return r.server.Close()
	}
	return nil
}

func (r *Router) alive(w http.ResponseWriter, req *http.Request) {
	w.Write([]byte(`{"source":"traceloom","alive":"yes"}`))
}

func (r *Router) version(w http.ResponseWriter, req *http.Request) {
	w.Write([]byte(`{"version":"` + r.Version + `"}`))
}

// postRegister answers the handshake: the application code and instance
// uuid are interned through the dictionary, so re-registration of the same
// identity hands back the same ids.
func (r *Router) postRegister(w http.ResponseWriter, req *http.Request) {
	r.Metrics.IncrementCounter("router_register")
	var registration types.RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&registration); err != nil {
		r.badRequest(w, "failed to decode register request", err)
		return
	}
	if registration.ApplicationCode == "" || registration.InstanceUUID == "" {
		r.badRequest(w, "register request needs applicationCode and instanceUUID", nil)
		return
	}

	servers, err := r.Config.GetCollectorServers()
	if err != nil {
		servers = nil
	}
	resp := types.RegisterResponse{
		ApplicationID:         r.Dict.Resolve(registration.ApplicationCode),
		ApplicationInstanceID: r.Dict.Resolve(instanceKeyPrefix + registration.InstanceUUID),
		Servers:               servers,
	}
	r.Logger.Debugf("registered %s/%s as %d/%d",
		registration.ApplicationCode, registration.InstanceUUID,
		resp.ApplicationID, resp.ApplicationInstanceID)
	json.NewEncoder(w).Encode(resp)
}

func (r *Router) postHeartbeat(w http.ResponseWriter, req *http.Request) {
	r.Metrics.IncrementCounter("router_heartbeat")
	var heartbeat types.HeartbeatRequest
	if err := json.NewDecoder(req.Body).Decode(&heartbeat); err != nil {
		r.badRequest(w, "failed to decode heartbeat", err)
		return
	}
	r.Ingest.Enqueue(&storage.InstanceHeartbeatRecord{
		InstanceID:    heartbeat.ApplicationInstanceID,
		HeartbeatTime: heartbeat.HeartbeatTime,
	})
	json.NewEncoder(w).Encode(routerResponse{Status: http.StatusOK})
}

// postSegments ingests a msgpack batch of segments. Operation and component
// names are interned into the collector's dictionary on the way through so
// stored spans reference compact ids.
func (r *Router) postSegments(w http.ResponseWriter, req *http.Request) {
	r.Metrics.IncrementCounter("router_segment_batch")
	body, err := r.readBody(req)
	if err != nil {
		r.badRequest(w, "failed to read segment payload", err)
		return
	}
	var objects []types.SegmentObject
	if err := msgpack.Unmarshal(body, &objects); err != nil {
		r.badRequest(w, "failed to decode segment payload", err)
		return
	}

	now := r.Clock.Now().UnixMilli()
	for i := range objects {
		r.internNames(&objects[i])
		accepted := r.Ingest.Enqueue(&storage.SegmentRecord{
			Segment:    objects[i],
			ReceivedAt: now,
		})
		if accepted {
			r.Metrics.IncrementCounter("router_segment")
		} else {
			r.Metrics.IncrementCounter("router_segment_dropped")
		}
	}
	json.NewEncoder(w).Encode(routerResponse{Status: http.StatusOK})
}

func (r *Router) postGCMetrics(w http.ResponseWriter, req *http.Request) {
	r.Metrics.IncrementCounter("router_gc_metric")
	var reports []types.GCMetricReport
	if err := json.NewDecoder(req.Body).Decode(&reports); err != nil {
		r.badRequest(w, "failed to decode gc metric report", err)
		return
	}
	for _, report := range reports {
		r.Ingest.Enqueue(&storage.GCMetricRecord{
			InstanceID: report.ApplicationInstanceID,
			PhaseOld:   report.PhaseOld,
			TimeBucket: report.ReportTime / time.Minute.Milliseconds(),
			Count:      report.Count,
			Millis:     report.Millis,
		})
	}
	json.NewEncoder(w).Encode(routerResponse{Status: http.StatusOK})
}

func (r *Router) internNames(segment *types.SegmentObject) {
	for i := range segment.Spans {
		span := &segment.Spans[i]
		if span.OperationID == dict.NullValue && span.OperationName != "" {
			span.OperationID = r.Dict.Resolve(span.OperationName)
		}
		if span.ComponentID == dict.NullValue && span.ComponentName != "" {
			span.ComponentID = r.Dict.Resolve(span.ComponentName)
		}
	}
}

// readBody undoes the transport compression agents apply.
func (r *Router) readBody(req *http.Request) ([]byte, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	switch req.Header.Get("Content-Encoding") {
	case "zstd":
		return r.zstdDecoder.DecodeAll(body, nil)
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)
	default:
		return body, nil
	}
}

func (r *Router) badRequest(w http.ResponseWriter, message string, err error) {
	r.Metrics.IncrementCounter("router_bad_request")
	if err != nil {
		r.Logger.Debugf("%s: %v", message, err)
	} else {
		r.Logger.Debugf("%s", message)
	}
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(routerResponse{Status: http.StatusBadRequest, Error: message})
}
