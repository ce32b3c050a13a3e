package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware continues the caller's trace from the x-trace-id and x-span-id
// headers, or starts one, and echoes the trace id in the response so the
// renderer can find the matching log lines.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := Continue(r.Header.Get(TraceIDKey), r.Header.Get(SpanIDKey))
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

// wsIDs is the trace part of a renderer message.
type wsIDs struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
}

// ExtractFromJSON continues the trace named by a /ws message's trace_id and
// span_id fields. ok is false, with a fresh trace, when the message names
// none or is not JSON.
func ExtractFromJSON(data []byte) (tc Context, ok bool) {
	var ids wsIDs
	if err := json.Unmarshal(data, &ids); err != nil || ids.TraceID == "" {
		return New(), false
	}
	return Continue(ids.TraceID, ids.SpanID), true
}
