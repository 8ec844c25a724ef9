// internal/adapters/in/http/handlers/storage_handler.go
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	usecase "atelier/internal/application/usecase"
)

// StorageHandler exposes the standalone asset upload endpoint:
//
//	POST /storage/upload   blob（base64 または URL 参照）をストレージへ上げて URI を返す
type StorageHandler struct {
	storageUC *usecase.StorageUsecase
}

func NewStorageHandler(storageUC *usecase.StorageUsecase) http.Handler {
	return &StorageHandler{storageUC: storageUC}
}

type storageUploadRequest struct {
	BlobBase64OrURL string `json:"blobBase64OrURL"`
	FileNameHint    string `json:"fileNameHint,omitempty"`
}

type storageUploadResponse struct {
	StoredURI string `json:"storedURI"`
}

func (h *StorageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/storage/upload" {
		http.NotFound(w, r)
		return
	}

	if h.storageUC == nil {
		writeError(w, http.StatusInternalServerError, "storage usecase is not configured")
		return
	}

	var body storageUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	start := time.Now()
	uri, err := h.storageUC.UploadFromReference(r.Context(), body.BlobBase64OrURL, body.FileNameHint)
	elapsed := time.Since(start)

	if err != nil {
		log.Printf("[storage_handler] /storage/upload error=%v elapsed=%s", err, elapsed)
		writePipelineError(w, err)
		return
	}

	log.Printf("[storage_handler] /storage/upload ok uri=%s elapsed=%s", uri, elapsed)
	writeJSON(w, http.StatusOK, storageUploadResponse{StoredURI: uri})
}
