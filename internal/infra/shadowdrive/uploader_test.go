package shadowdrive

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mintdom "atelier/internal/domain/mint"
)

type testSigner struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &testSigner{pub: pub, priv: priv}
}

func (s *testSigner) PublicKeyBase58() string        { return base58.Encode(s.pub) }
func (s *testSigner) PrivateKey() ed25519.PrivateKey { return s.priv }

// uploadCapture は /upload に来た multipart フィールドの記録。
type uploadCapture struct {
	mu        sync.Mutex
	fileNames []string
	messages  []string
	signers   []string
	accounts  []string
}

func (c *uploadCapture) record(r *http.Request) error {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileNames = append(c.fileNames, r.FormValue("fileNames"))
	c.messages = append(c.messages, r.FormValue("message"))
	c.signers = append(c.signers, r.FormValue("signer"))
	c.accounts = append(c.accounts, r.FormValue("storage_account"))
	return nil
}

// newTestUploader は httptest サーバを Host / APIBase の両方に使う。
// GET（verify）は常に 200 を返す。
func newTestUploader(t *testing.T, signer UploadSigner, upload http.HandlerFunc) (*Uploader, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/upload", upload)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	u := NewUploader(srv.URL, srv.URL, "acct123", signer, 3, time.Millisecond, 0)
	u.Namer = FileNamer{Now: func() time.Time { return time.UnixMilli(777).UTC() }}
	return u, srv
}

func TestUploadSuccessReturnsDeterministicURI(t *testing.T) {
	signer := newTestSigner(t)
	capt := &uploadCapture{}

	u, srv := newTestUploader(t, signer, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, capt.record(r))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"finalized_locations":["ignored"]}`))
	})

	uri, err := u.Upload(context.Background(), mintdom.AssetBlob{
		Data:        []byte("png-bytes"),
		ContentType: mintdom.ContentTypePNG,
	}, "artwork.png")
	require.NoError(t, err)

	require.Len(t, capt.fileNames, 1)
	fileName := capt.fileNames[0]
	assert.Equal(t, "artwork-777-1.png", fileName)
	assert.Equal(t, fmt.Sprintf("%s/acct123/%s", srv.URL, fileName), uri)
	assert.Equal(t, "acct123", capt.accounts[0])
	assert.Equal(t, signer.PublicKeyBase58(), capt.signers[0])
}

func TestUploadSignsCanonicalMessage(t *testing.T) {
	signer := newTestSigner(t)
	capt := &uploadCapture{}

	u, _ := newTestUploader(t, signer, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, capt.record(r))
		w.WriteHeader(http.StatusOK)
	})

	_, err := u.Upload(context.Background(), mintdom.AssetBlob{
		Data:        []byte(`{}`),
		ContentType: mintdom.ContentTypeJSON,
	}, "metadata.json")
	require.NoError(t, err)

	require.Len(t, capt.messages, 1)
	sig, err := base58.Decode(capt.messages[0])
	require.NoError(t, err)

	expected := fmt.Sprintf(
		"Shadow Drive Signed Message:\nStorage Account: acct123\nUpload files with hash: %s",
		hashFileNames([]string{capt.fileNames[0]}),
	)
	assert.True(t, ed25519.Verify(signer.pub, []byte(expected), sig),
		"signature must verify against the canonical authorization message")
}

func TestUploadRetriesTransientFailuresWithFreshNames(t *testing.T) {
	signer := newTestSigner(t)
	capt := &uploadCapture{}
	var calls int

	u, _ := newTestUploader(t, signer, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, capt.record(r))
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	u.BackoffBase = 20 * time.Millisecond

	start := time.Now()
	_, err := u.Upload(context.Background(), mintdom.AssetBlob{
		Data:        []byte("x"),
		ContentType: mintdom.ContentTypePNG,
	}, "artwork.png")
	elapsed := time.Since(start)
	require.NoError(t, err)

	require.Len(t, capt.fileNames, 3)
	// 試行ごとに名前を採番し直す（認可メッセージの replay 防止）
	assert.NotEqual(t, capt.fileNames[0], capt.fileNames[1])
	assert.NotEqual(t, capt.fileNames[1], capt.fileNames[2])
	assert.NotEqual(t, capt.messages[0], capt.messages[1])

	// 失敗 2 回分のバックオフ（20ms + 40ms）を実際に待っている
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestUploadDoesNotRetryValidationErrors(t *testing.T) {
	signer := newTestSigner(t)
	var calls int

	u, _ := newTestUploader(t, signer, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad file"}`))
	})

	_, err := u.Upload(context.Background(), mintdom.AssetBlob{
		Data:        []byte("x"),
		ContentType: mintdom.ContentTypePNG,
	}, "artwork.png")
	require.Error(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, mintdom.CategoryValidation, mintdom.CategoryOf(err))
}

func TestUploadDoesNotRetryAuthorizationErrors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		signer := newTestSigner(t)
		var calls int

		u, _ := newTestUploader(t, signer, func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(status)
		})

		_, err := u.Upload(context.Background(), mintdom.AssetBlob{
			Data:        []byte("x"),
			ContentType: mintdom.ContentTypePNG,
		}, "artwork.png")
		require.Error(t, err, "status=%d", status)

		assert.Equal(t, 1, calls, "status=%d", status)
		assert.Equal(t, mintdom.CategoryAuthorization, mintdom.CategoryOf(err), "status=%d", status)
	}
}

func TestUploadExhaustsRetries(t *testing.T) {
	signer := newTestSigner(t)
	var calls int

	u, _ := newTestUploader(t, signer, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := u.Upload(context.Background(), mintdom.AssetBlob{
		Data:        []byte("x"),
		ContentType: mintdom.ContentTypePNG,
	}, "artwork.png")
	require.Error(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, mintdom.CategoryExhaustedRetries, mintdom.CategoryOf(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestUploadRejectsInvalidBlobWithoutNetwork(t *testing.T) {
	signer := newTestSigner(t)
	var calls int

	u, _ := newTestUploader(t, signer, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := u.Upload(context.Background(), mintdom.AssetBlob{
		Data:        nil,
		ContentType: mintdom.ContentTypePNG,
	}, "artwork.png")
	require.Error(t, err)

	assert.Equal(t, 0, calls)
	assert.Equal(t, mintdom.CategoryValidation, mintdom.CategoryOf(err))

	_, err = u.Upload(context.Background(), mintdom.AssetBlob{
		Data:        []byte("x"),
		ContentType: "text/html",
	}, "artwork.png")
	require.Error(t, err)
	assert.Equal(t, mintdom.CategoryValidation, mintdom.CategoryOf(err))
	assert.Equal(t, 0, calls)
}

func TestUploadRequiresAccount(t *testing.T) {
	signer := newTestSigner(t)
	u := NewUploader("https://host", "https://api", "", signer, 1, time.Millisecond, 0)

	_, err := u.Upload(context.Background(), mintdom.AssetBlob{
		Data:        []byte("x"),
		ContentType: mintdom.ContentTypePNG,
	}, "artwork.png")
	require.Error(t, err)
	assert.Equal(t, mintdom.CategoryValidation, mintdom.CategoryOf(err))
	assert.True(t, strings.Contains(err.Error(), "storage account"))
}
