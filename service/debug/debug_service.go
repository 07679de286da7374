package debug

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"strconv"
	"sync"
	"syscall"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/dict"
	"github.com/traceloom/traceloom/logger"
)

const addr = "localhost:6060"

// injectable debug service
type DebugService struct {
	Config config.Config   `inject:""`
	Logger logger.Logger   `inject:""`
	Dict   dict.Dictionary `inject:""`

	mux     *http.ServeMux
	urls    []string
	expVars map[string]interface{}
	mutex   sync.RWMutex
}

func (s *DebugService) Start() error {
	s.expVars = make(map[string]interface{})

	s.mux = http.NewServeMux()

	// Add to the mux but don't add an index entry.
	s.mux.HandleFunc("/", s.indexHandler)

	s.HandleFunc("/debug/pprof/", pprof.Index)
	s.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	s.HandleFunc("/debug/pprof/profile", pprof.Profile)
	s.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	s.HandleFunc("/debug/pprof/trace", pprof.Trace)
	s.HandleFunc("/debug/vars", s.expvarHandler)
	s.Publish("cmdline", os.Args)
	s.Publish("memstats", Func(memstats))
	s.Publish("dictionary_size", Func(func() interface{} {
		if sized, ok := s.Dict.(interface{ Size() int }); ok {
			return sized.Size()
		}
		return nil
	}))

	go func() {
		configAddr, _ := s.Config.GetDebugServiceAddr()
		if configAddr != "" {
			host, portStr, _ := net.SplitHostPort(configAddr)
			addr := net.JoinHostPort(host, portStr)
			s.Logger.Infof("Debug service listening on %s", addr)

			err := http.ListenAndServe(addr, s.mux)
			s.Logger.Errorf("debug http server error: %v", err)
		} else {
			// Prefer to listen on addr, but will try to bind to the next 9 ports
			// in case you have multiple services running on the same host.
			for i := 0; i < 10; i++ {
				host, portStr, _ := net.SplitHostPort(addr)
				port, _ := strconv.Atoi(portStr)
				port += i
				addr := net.JoinHostPort(host, fmt.Sprint(port))

				s.Logger.Infof("Debug service listening on %s", addr)

				err := http.ListenAndServe(addr, s.mux)
				s.Logger.Errorf("debug http server error: %v", err)

				if err, ok := err.(*net.OpError); ok {
					if err, ok := err.Err.(*os.SyscallError); ok {
						if err.Err == syscall.EADDRINUSE {
							// address already in use, try another
							continue
						}
					}
				}
				break
			}
		}
	}()

	return nil
}

// Use Handle and HandleFunc to add new services on the internal debugging port.
func (s *DebugService) Handle(pattern string, handler http.Handler) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.urls = append(s.urls, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *DebugService) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.urls = append(s.urls, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Publish an expvar at /debug/vars, possibly using Func
func (s *DebugService) Publish(name string, v interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, existing := s.expVars[name]; existing {
		log.Panicln("Reuse of exported var name:", name)
	}
	s.expVars[name] = v
}

func (s *DebugService) indexHandler(w http.ResponseWriter, req *http.Request) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if err := indexTmpl.Execute(w, s.urls); err != nil {
		s.Logger.Errorf("error rendering debug index: %v", err)
	}
}

var indexTmpl = template.Must(template.New("index").Parse(`
<html>
<head>
<title>Debug Index</title>
</head>
<body>
<h2>Index</h2>
<table>
{{range .}}
<tr><td><a href="{{.}}?debug=1">{{.}}</a>
{{end}}
</table>
</body>
</html>
`))

func (s *DebugService) expvarHandler(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	values := make(map[string]interface{}, len(s.expVars))
	for k, v := range s.expVars {
		if f, ok := v.(Func); ok {
			v = f()
		}
		values[k] = v
	}
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		s.Logger.Errorf("error encoding expvars: %v", err)
	}
	w.Write(b)
}

func memstats() interface{} {
	stats := new(runtime.MemStats)
	runtime.ReadMemStats(stats)
	return *stats
}

type Func func() interface{}
