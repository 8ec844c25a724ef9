package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mintdom "atelier/internal/domain/mint"
)

type fakeBlobSource struct {
	blob mintdom.AssetBlob
	err  error
	refs []string
}

func (f *fakeBlobSource) Fetch(_ context.Context, ref string) (mintdom.AssetBlob, error) {
	f.refs = append(f.refs, ref)
	if f.err != nil {
		return mintdom.AssetBlob{}, f.err
	}
	return f.blob, nil
}

func TestUploadFromReferenceDecodesBase64(t *testing.T) {
	up := &fakeUploader{}
	uc := NewStorageUsecase(up, nil)

	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	ref := base64.StdEncoding.EncodeToString(pngHeader)

	uri, err := uc.UploadFromReference(context.Background(), ref, "cover.png")
	require.NoError(t, err)
	assert.Equal(t, "https://drive.test/acct/cover.png", uri)

	require.Len(t, up.uploads, 1)
	assert.Equal(t, pngHeader, up.uploads[0].Data)
	assert.Equal(t, mintdom.ContentTypePNG, up.uploads[0].ContentType)
}

func TestUploadFromReferenceFetchesURLs(t *testing.T) {
	up := &fakeUploader{}
	src := &fakeBlobSource{blob: mintdom.AssetBlob{
		Data:        []byte(`{"a":1}`),
		ContentType: mintdom.ContentTypeJSON,
	}}
	uc := NewStorageUsecase(up, src)

	_, err := uc.UploadFromReference(context.Background(), "https://example.com/meta.json", "meta.json")
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.com/meta.json"}, src.refs)
	require.Len(t, up.uploads, 1)
	assert.Equal(t, mintdom.ContentTypeJSON, up.uploads[0].ContentType)
}

func TestUploadFromReferenceURLWithoutSource(t *testing.T) {
	uc := NewStorageUsecase(&fakeUploader{}, nil)

	_, err := uc.UploadFromReference(context.Background(), "gs://bucket/obj.png", "obj.png")
	require.Error(t, err)
	assert.Equal(t, mintdom.CategoryValidation, mintdom.CategoryOf(err))
}

func TestUploadFromReferenceRejectsEmptyAndGarbage(t *testing.T) {
	up := &fakeUploader{}
	uc := NewStorageUsecase(up, nil)

	_, err := uc.UploadFromReference(context.Background(), "  ", "x.png")
	require.Error(t, err)
	assert.Equal(t, mintdom.CategoryValidation, mintdom.CategoryOf(err))

	_, err = uc.UploadFromReference(context.Background(), "%%%not-base64%%%", "x.png")
	require.Error(t, err)
	assert.Equal(t, mintdom.CategoryValidation, mintdom.CategoryOf(err))

	assert.Empty(t, up.uploads)
}

func TestUploadFromReferencePropagatesSourceErrors(t *testing.T) {
	src := &fakeBlobSource{err: errors.New("bucket gone")}
	uc := NewStorageUsecase(&fakeUploader{}, src)

	_, err := uc.UploadFromReference(context.Background(), "gs://bucket/missing.png", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestUploadFromReferenceDefaultBaseName(t *testing.T) {
	up := &fakeUploader{}
	uc := NewStorageUsecase(up, nil)

	ref := base64.StdEncoding.EncodeToString([]byte(`{"name":"x"}`))
	_, err := uc.UploadFromReference(context.Background(), ref, "")
	require.NoError(t, err)

	// ヒント無し + JSON 判定 → blob.json
	require.Equal(t, []string{"blob.json"}, up.calls)
}

func TestContentTypeForPrefersHintExtension(t *testing.T) {
	jsonBytes := []byte(`{"a":1}`)

	assert.Equal(t, mintdom.ContentTypePNG, contentTypeFor("a.PNG", jsonBytes))
	assert.Equal(t, mintdom.ContentTypeJSON, contentTypeFor("meta.json", []byte{0x89}))

	// ヒントが無ければ先頭バイトで判定する
	assert.Equal(t, mintdom.ContentTypeJSON, contentTypeFor("", jsonBytes))

	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	assert.Equal(t, mintdom.ContentTypePNG, contentTypeFor("", pngHeader))
}
