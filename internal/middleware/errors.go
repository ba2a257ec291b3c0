package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/infrastructure"
)

// Problem is an RFC 7807 problem details body
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Trace    string `json:"trace_id,omitempty"`
}

// Render writes the problem with its status code
func (p Problem) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	return json.NewEncoder(w).Encode(p)
}

// writeProblem answers r with a problem of the given type slug. The trace
// id is the span's when tracing is on, the request id otherwise.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, slug, detail string) {
	ctx := r.Context()
	trace := infrastructure.TraceIDFromContext(ctx)
	if trace == "" {
		trace = GetReqID(ctx)
	}
	_ = Problem{
		Type:     "/errors/" + slug,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		Trace:    trace,
	}.Render(w, r)
}
