// internal/application/usecase/storage_usecase.go
package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"path"
	"strings"

	mintdom "atelier/internal/domain/mint"
)

// ============================================================
// StorageUsecase（/storage/upload の裏側）
// ============================================================

var (
	ErrStorageUsecaseNil = errors.New("storage usecase is nil")
	ErrBlobRefEmpty      = errors.New("blobBase64OrURL is empty")
)

// BlobSource は URL 参照（https:// や gs://）から blob を取得するポート。
type BlobSource interface {
	Fetch(ctx context.Context, ref string) (mintdom.AssetBlob, error)
}

type StorageUsecase struct {
	uploader mintdom.AssetUploader
	source   BlobSource
}

func NewStorageUsecase(uploader mintdom.AssetUploader, source BlobSource) *StorageUsecase {
	return &StorageUsecase{
		uploader: uploader,
		source:   source,
	}
}

// UploadFromReference は blobBase64OrURL を AssetBlob に解決してから
// ストレージネットワークへアップロードします。
//
// 受け付ける参照:
//   - base64 文字列（生データ）
//   - https:// / http:// / gs:// の URL（BlobSource 経由で取得）
func (u *StorageUsecase) UploadFromReference(ctx context.Context, ref, fileNameHint string) (string, error) {
	if u == nil || u.uploader == nil {
		return "", ErrStorageUsecaseNil
	}

	r := strings.TrimSpace(ref)
	if r == "" {
		return "", mintdom.NewStepError(mintdom.CategoryValidation, "", "blobBase64OrURL is required", ErrBlobRefEmpty)
	}

	blob, err := u.resolve(ctx, r, fileNameHint)
	if err != nil {
		return "", err
	}

	baseName := strings.TrimSpace(fileNameHint)
	if baseName == "" {
		baseName = defaultBaseName(blob.ContentType)
	}

	return u.uploader.Upload(ctx, blob, baseName)
}

func (u *StorageUsecase) resolve(ctx context.Context, ref, fileNameHint string) (mintdom.AssetBlob, error) {
	if strings.Contains(ref, "://") {
		if u.source == nil {
			return mintdom.AssetBlob{}, mintdom.NewStepError(
				mintdom.CategoryValidation, "", "URL references are not enabled", nil)
		}
		return u.source.Fetch(ctx, ref)
	}

	data, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		return mintdom.AssetBlob{}, mintdom.NewStepError(
			mintdom.CategoryValidation, "", "blobBase64OrURL is neither a URL nor valid base64", err)
	}

	return mintdom.AssetBlob{
		Data:        data,
		ContentType: contentTypeFor(fileNameHint, data),
	}, nil
}

// contentTypeFor はヒントの拡張子を優先し、なければ先頭バイトで判定する。
func contentTypeFor(fileNameHint string, data []byte) string {
	switch strings.ToLower(path.Ext(strings.TrimSpace(fileNameHint))) {
	case ".png":
		return mintdom.ContentTypePNG
	case ".json":
		return mintdom.ContentTypeJSON
	}

	detected := http.DetectContentType(data)
	if strings.HasPrefix(detected, "image/png") {
		return mintdom.ContentTypePNG
	}
	if strings.HasPrefix(detected, "text/plain") || strings.HasPrefix(detected, "application/json") {
		return mintdom.ContentTypeJSON
	}
	return detected
}

func defaultBaseName(contentType string) string {
	switch contentType {
	case mintdom.ContentTypeJSON:
		return "blob.json"
	default:
		return "blob.png"
	}
}
