// internal/adapters/out/blobsource/fetcher.go
package blobsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	usecase "atelier/internal/application/usecase"
	mintdom "atelier/internal/domain/mint"
)

var (
	ErrFetcherNotConfigured = errors.New("blobsource: not configured")
	ErrUnsupportedScheme    = errors.New("blobsource: unsupported scheme")
)

// 取得サイズの上限。画像生成 API の出力を想定しているので 16MiB で十分。
const maxBlobBytes = 16 << 20

// Fetcher resolves https:// and gs:// blob references for /storage/upload.
// The GCS client is optional; without it only plain HTTP(S) works.
type Fetcher struct {
	HTTP *http.Client
	GCS  *gcs.Client
}

var _ usecase.BlobSource = (*Fetcher)(nil)

func NewFetcher(gcsClient *gcs.Client) *Fetcher {
	return &Fetcher{
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
		GCS: gcsClient,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, ref string) (mintdom.AssetBlob, error) {
	if f == nil || f.HTTP == nil {
		return mintdom.AssetBlob{}, ErrFetcherNotConfigured
	}

	r := strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(r, "gs://"):
		return f.fetchGCS(ctx, r)
	case strings.HasPrefix(r, "https://"), strings.HasPrefix(r, "http://"):
		return f.fetchHTTP(ctx, r)
	default:
		return mintdom.AssetBlob{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, r)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) (mintdom.AssetBlob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mintdom.AssetBlob{}, fmt.Errorf("blobsource: new request: %w", err)
	}

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return mintdom.AssetBlob{}, fmt.Errorf("blobsource: http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mintdom.AssetBlob{}, fmt.Errorf("blobsource: fetch failed: status=%d url=%s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes))
	if err != nil {
		return mintdom.AssetBlob{}, fmt.Errorf("blobsource: read body: %w", err)
	}

	ct := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	log.Printf("[blobsource] fetched url=%s bytes=%d type=%s", url, len(data), ct)
	return mintdom.AssetBlob{Data: data, ContentType: ct}, nil
}

// fetchGCS は gs://bucket/object 形式の参照を読む。
func (f *Fetcher) fetchGCS(ctx context.Context, ref string) (mintdom.AssetBlob, error) {
	if f.GCS == nil {
		return mintdom.AssetBlob{}, fmt.Errorf("%w: gcs client missing for %s", ErrFetcherNotConfigured, ref)
	}

	rest := strings.TrimPrefix(ref, "gs://")
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return mintdom.AssetBlob{}, fmt.Errorf("blobsource: malformed gs reference: %s", ref)
	}

	rd, err := f.GCS.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return mintdom.AssetBlob{}, fmt.Errorf("blobsource: gcs open %s: %w", ref, err)
	}
	defer rd.Close()

	data, err := io.ReadAll(io.LimitReader(rd, maxBlobBytes))
	if err != nil {
		return mintdom.AssetBlob{}, fmt.Errorf("blobsource: gcs read %s: %w", ref, err)
	}

	ct := strings.TrimSpace(rd.Attrs.ContentType)
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	log.Printf("[blobsource] fetched gcs=%s bytes=%d type=%s", ref, len(data), ct)
	return mintdom.AssetBlob{Data: data, ContentType: ct}, nil
}
