// internal/adapters/in/http/handlers/helpers.go
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	mintdom "atelier/internal/domain/mint"
)

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePipelineError maps the failure taxonomy to HTTP statuses:
//
//	validation          -> 400
//	authorization       -> 401
//	logical_chain       -> 422
//	stale_transaction   -> 409
//	それ以外             -> 500
//
// StepError のときは step と category もフロントへ返す。
func writePipelineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch mintdom.CategoryOf(err) {
	case mintdom.CategoryValidation:
		status = http.StatusBadRequest
	case mintdom.CategoryAuthorization:
		status = http.StatusUnauthorized
	case mintdom.CategoryLogicalChain:
		status = http.StatusUnprocessableEntity
	case mintdom.CategoryStaleTransaction:
		status = http.StatusConflict
	}

	body := map[string]string{"error": err.Error()}

	var stepErr *mintdom.StepError
	if errors.As(err, &stepErr) {
		if stepErr.Step != "" {
			body["step"] = string(stepErr.Step)
		}
		if stepErr.Category != "" {
			body["category"] = string(stepErr.Category)
		}
	}

	writeJSON(w, status, body)
}

// decodeImageBase64 decodes a raw base64 image payload.
// data URL 形式 (data:image/png;base64,...) も受け付ける。
func decodeImageBase64(raw string) (mintdom.AssetBlob, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return mintdom.AssetBlob{}, err
	}

	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/png") {
		ct = mintdom.ContentTypePNG
	}
	return mintdom.AssetBlob{Data: data, ContentType: ct}, nil
}
