package middleware

import (
	"encoding/json"
	"net/http"

	"adstudio/internal/domain/jsoncfg"
)

type errorEnvelope struct {
	Error jsoncfg.ErrorBody `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: jsoncfg.ErrorBody{Code: code, Message: message}})
}
