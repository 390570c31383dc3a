package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/codec"
	"github.com/AnalyseDeCircuit/gpu-detect/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

func writeCBOR(w http.ResponseWriter, status int, body interface{}) {
	data, err := codec.Marshal(body)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Encoding failed")
		return
	}
	w.Header().Set("Content-Type", codec.ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// negotiate returns the first media type in Accept that is one of
// offers, or offers[0].
func negotiate(r *http.Request, offers ...string) string {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		for _, o := range offers {
			if mt == o {
				return o
			}
		}
	}
	return offers[0]
}
