package handler

import (
	"encoding/json"
	"io"
	"net/http"
)

const maxTrackBody = 16 << 10

type TrackRequest struct {
	SessionID  string            `json:"session_id"`
	Type       string            `json:"type"`
	Path       string            `json:"path"`
	Properties map[string]string `json:"properties,omitempty"`
}

// decodeTrack is lenient: validation happens in the service and failures are
// only logged.
func decodeTrack(r *http.Request) (*TrackRequest, bool) {
	var req TrackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTrackBody)).Decode(&req); err != nil {
		return nil, false
	}
	return &req, true
}
