package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker holds optional probes; a nil probe is skipped.
type Checker struct {
	DBPing      func(ctx context.Context) error
	RPCPing     func(ctx context.Context) error
	DecoderPing func(ctx context.Context) error
}

// Report runs every configured probe and returns the status body and code.
func (c Checker) Report(ctx context.Context) (map[string]string, int) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	probes := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"db", c.DBPing},
		{"rpc", c.RPCPing},
		{"decoder", c.DecoderPing},
	}
	for _, p := range probes {
		if p.fn == nil {
			continue
		}
		if err := p.fn(ctx); err != nil {
			status[p.name] = "fail"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status[p.name] = "ok"
		}
	}
	return status, code
}

// Handler serves /healthz with a 3s budget for all probes.
func Handler(checker Checker) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status, code := checker.Report(ctx)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

// Serve starts a standalone /healthz listener.
func Serve(addr string, checker Checker) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(checker),
		ReadHeaderTimeout: 3 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Shutdown gracefully shuts down the health server.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
