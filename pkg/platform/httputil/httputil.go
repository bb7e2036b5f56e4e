package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "claimdesk/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status. Encoding failures are
// ignored: the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError translates a domain error into the JSON error envelope. Internal
// errors deliberately omit the description so store details never leak to
// clients; everything else surfaces its message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if msg := dErrors.Message(err); msg != "" {
			body["error_description"] = msg
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
