// internal/adapters/in/http/handlers/mint_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	usecase "atelier/internal/application/usecase"
	mintdom "atelier/internal/domain/mint"
)

// MintHandler exposes the two-phase mint pipeline:
//
//	POST /mint/build             画像/metadata アップロード + 未署名 tx ビルド
//	POST /mint/relay             署名済み tx の relay + 確定
//	GET  /mint/records/{mint}    永続化済み mint レコードの取得
//	GET  /mint/debug             疎通確認
type MintHandler struct {
	mintUC *usecase.MintUsecase
}

func NewMintHandler(mintUC *usecase.MintUsecase) http.Handler {
	return &MintHandler{mintUC: mintUC}
}

func (h *MintHandler) HandleDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "msg": "Mint API alive"})
}

func (h *MintHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Printf("[mint_handler] request method=%s path=%s", r.Method, r.URL.Path)

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/mint/debug":
		h.HandleDebug(w, r)
		return

	case r.Method == http.MethodPost && r.URL.Path == "/mint/build":
		h.buildMintTransaction(w, r)
		return

	case r.Method == http.MethodPost && r.URL.Path == "/mint/relay":
		h.relaySignedTransaction(w, r)
		return

	// GET /mint/records/{mintAddress}
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/mint/records/"):
		h.getMintRecord(w, r)
		return

	default:
		http.NotFound(w, r)
	}
}

// ============================================================
// POST /mint/build
// ============================================================

type buildMintRequest struct {
	RequestID string `json:"requestId,omitempty"`

	// 画像ソースはどちらか一方
	ImageBase64 string `json:"imageBase64,omitempty"`
	ImageURI    string `json:"imageUri,omitempty"`

	Name              string                      `json:"name"`
	Description       string                      `json:"description,omitempty"`
	Attributes        []mintdom.MetadataAttribute `json:"attributes,omitempty"`
	UserWalletAddress string                      `json:"userWalletAddress"`
}

func (h *MintHandler) buildMintTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.mintUC == nil {
		writeError(w, http.StatusInternalServerError, "mint usecase is not configured")
		return
	}

	var body buildMintRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	in := usecase.PrepareMintInput{
		RequestID:         body.RequestID,
		ImageURI:          body.ImageURI,
		Name:              body.Name,
		Description:       body.Description,
		Attributes:        body.Attributes,
		UserWalletAddress: body.UserWalletAddress,
	}

	if raw := strings.TrimSpace(body.ImageBase64); raw != "" {
		blob, err := decodeImageBase64(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "imageBase64 is not valid base64")
			return
		}
		in.ImageBlob = &blob
	}

	start := time.Now()
	result, err := h.mintUC.PrepareMint(ctx, in)
	elapsed := time.Since(start)

	if err != nil {
		log.Printf("[mint_handler] /mint/build error=%v elapsed=%s", err, elapsed)
		writePipelineError(w, err)
		return
	}

	log.Printf("[mint_handler] /mint/build ok mint=%s elapsed=%s alreadyMinted=%t",
		result.MintAddress, elapsed, result.AlreadyMinted)

	writeJSON(w, http.StatusOK, result)
}

// ============================================================
// POST /mint/relay
// ============================================================

type relayMintRequest struct {
	SignedTransactionBase64 string `json:"signedTransactionBase64"`
	MintAddress             string `json:"mintAddress"`
}

func (h *MintHandler) relaySignedTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.mintUC == nil {
		writeError(w, http.StatusInternalServerError, "mint usecase is not configured")
		return
	}

	var body relayMintRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	start := time.Now()
	result, err := h.mintUC.CompleteMint(ctx, usecase.CompleteMintInput{
		SignedTransactionBase64: body.SignedTransactionBase64,
		MintAddress:             body.MintAddress,
	})
	elapsed := time.Since(start)

	if err != nil {
		log.Printf("[mint_handler] /mint/relay error=%v elapsed=%s", err, elapsed)
		writePipelineError(w, err)
		return
	}

	log.Printf("[mint_handler] /mint/relay ok mint=%s sig=%s elapsed=%s",
		result.MintAddress, result.TransactionSignature, elapsed)

	writeJSON(w, http.StatusOK, result)
}

// ============================================================
// GET /mint/records/{mintAddress}
// ============================================================

func (h *MintHandler) getMintRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.mintUC == nil {
		writeError(w, http.StatusInternalServerError, "mint usecase is not configured")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/mint/records/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, http.StatusBadRequest, "mintAddress is empty")
		return
	}
	if strings.Contains(path, "/") {
		http.NotFound(w, r)
		return
	}

	rec, err := h.mintUC.GetRecord(ctx, path)
	if err != nil {
		if errors.Is(err, mintdom.ErrNotFound) {
			writeError(w, http.StatusNotFound, "mint record not found")
			return
		}
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
