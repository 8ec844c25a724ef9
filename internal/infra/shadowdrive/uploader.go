// internal/infra/shadowdrive/uploader.go
package shadowdrive

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	mintdom "atelier/internal/domain/mint"
)

// Shadow Drive 互換ネットワークのアップロード認可メッセージの先頭タグ。
const signedMessagePrefix = "Shadow Drive Signed Message:"

var (
	ErrUploaderNotConfigured = errors.New("shadowdrive: not configured")
	ErrAccountEmpty          = errors.New("shadowdrive: storage account is empty")
)

// UploadSigner はアップロード認可に使うサービス鍵の最小インターフェース。
// solana.ServiceSigner がこれを満たす。エンドユーザーの鍵ではない。
type UploadSigner interface {
	PublicKeyBase58() string
	PrivateKey() ed25519.PrivateKey
}

// Uploader はストレージネットワークへの署名付きマルチパートアップロード。
//
// 認可は challenge-signature 方式:
//
//	"Shadow Drive Signed Message:\nStorage Account: <account>\nUpload files with hash: <sha256hex(fileNames)>"
//
// を ed25519 で署名し、base58 でリクエストに添付する。
type Uploader struct {
	HTTP *http.Client

	Host    string // 公開 URL のホスト（結果 URI の組み立てに使う）
	APIBase string // アップロード API
	Account string // StorageAccountHandle（起動時に固定、以後 read-only）
	Signer  UploadSigner

	MaxAttempts int
	BackoffBase time.Duration
	VerifyDelay time.Duration

	Namer FileNamer
}

var _ mintdom.AssetUploader = (*Uploader)(nil)

// NewUploader constructs uploader with the given wiring.
func NewUploader(host, apiBase, account string, signer UploadSigner, maxAttempts int, backoffBase, verifyDelay time.Duration) *Uploader {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}
	return &Uploader{
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
		Host:        strings.TrimRight(strings.TrimSpace(host), "/"),
		APIBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		Account:     strings.TrimSpace(account),
		Signer:      signer,
		MaxAttempts: maxAttempts,
		BackoffBase: backoffBase,
		VerifyDelay: verifyDelay,
		Namer:       FileNamer{},
	}
}

// Upload は mintdom.AssetUploader の実装です。
//
// 再試行は 5xx とトランスポートエラーのみ。400/401/403 は即座に返す。
// 試行ごとにファイル名を採番し直すので、認可メッセージも保存先も毎回変わる。
// 成功後の GET 検証はベストエフォート（結果 URI はいずれにせよ返す）。
func (u *Uploader) Upload(ctx context.Context, blob mintdom.AssetBlob, baseName string) (string, error) {
	if u == nil || u.HTTP == nil || u.Signer == nil || u.APIBase == "" || u.Host == "" {
		return "", ErrUploaderNotConfigured
	}
	if u.Account == "" {
		return "", mintdom.NewStepError(mintdom.CategoryValidation, "", "storage account not configured", ErrAccountEmpty)
	}
	if err := blob.Validate(); err != nil {
		return "", mintdom.NewStepError(mintdom.CategoryValidation, "", "invalid blob", err)
	}

	backoff := u.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= u.MaxAttempts; attempt++ {
		fileName := u.Namer.Name(baseName, attempt)

		uri, err := u.uploadOnce(ctx, blob, fileName)
		if err == nil {
			log.Printf("[shadowdrive] upload ok attempt=%d/%d file=%s uri=%s", attempt, u.MaxAttempts, fileName, uri)
			u.verify(ctx, uri)
			return uri, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) {
			switch {
			case se.Code == http.StatusBadRequest:
				return "", mintdom.NewStepError(mintdom.CategoryValidation, "",
					"storage network rejected the upload request", err)
			case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
				return "", mintdom.NewStepError(mintdom.CategoryAuthorization, "",
					"storage network rejected the upload authorization", err)
			}
			// それ以外のステータス（5xx 等）は transient として再試行
		}

		log.Printf("[shadowdrive] upload attempt=%d/%d failed file=%s err=%v", attempt, u.MaxAttempts, fileName, err)

		if attempt < u.MaxAttempts {
			if err := sleepCtx(ctx, backoff); err != nil {
				return "", mintdom.NewStepError(mintdom.CategoryTransientNetwork, "", "upload cancelled", err)
			}
			backoff *= 2
		}
	}

	return "", mintdom.NewStepError(mintdom.CategoryExhaustedRetries, "",
		fmt.Sprintf("upload failed after %d attempts", u.MaxAttempts), lastErr)
}

// statusError は非 2xx 応答。分類は呼び出し側の Upload が行う。
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("shadowdrive: upload failed: status=%d body=%s", e.Code, e.Body)
}

func (u *Uploader) uploadOnce(ctx context.Context, blob mintdom.AssetBlob, fileName string) (string, error) {
	// 認可メッセージ: アカウントとファイル名リストのハッシュを含む。
	// ファイル名が試行ごとに変わるため single-use になる。
	msg := fmt.Sprintf(
		"%s\nStorage Account: %s\nUpload files with hash: %s",
		signedMessagePrefix,
		u.Account,
		hashFileNames([]string{fileName}),
	)
	sig := ed25519.Sign(u.Signer.PrivateKey(), []byte(msg))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	// ファイルパートは content type を明示する
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	hdr.Set("Content-Type", blob.ContentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("shadowdrive: create file part: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return "", fmt.Errorf("shadowdrive: write file part: %w", err)
	}

	fields := map[string]string{
		"message":         base58.Encode(sig),
		"signer":          u.Signer.PublicKeyBase58(),
		"storage_account": u.Account,
		"fileNames":       fileName,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("shadowdrive: write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("shadowdrive: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.APIBase+"/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("shadowdrive: new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("shadowdrive: http do: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &statusError{Code: resp.StatusCode, Body: string(body)}
	}

	// 保存先 URI は決定的に組み立てられる
	return fmt.Sprintf("%s/%s/%s", u.Host, u.Account, fileName), nil
}

// verify は伝播待ちの後に GET を 1 回だけ投げる。ストレージネットワークは
// 結果整合なので、失敗してもログに残すだけでアップロード自体は成功扱い。
func (u *Uploader) verify(ctx context.Context, uri string) {
	if u.VerifyDelay > 0 {
		if err := sleepCtx(ctx, u.VerifyDelay); err != nil {
			log.Printf("[shadowdrive] verify skipped uri=%s err=%v", uri, err)
			return
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		log.Printf("[shadowdrive] verify request failed uri=%s err=%v", uri, err)
		return
	}

	resp, err := u.HTTP.Do(req)
	if err != nil {
		log.Printf("[shadowdrive] verify GET failed uri=%s err=%v", uri, err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[shadowdrive] verify not yet reachable uri=%s status=%d", uri, resp.StatusCode)
		return
	}
	log.Printf("[shadowdrive] verify ok uri=%s", uri)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
