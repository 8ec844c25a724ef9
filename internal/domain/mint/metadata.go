// internal/domain/mint/metadata.go
package mint

import (
	"encoding/json"
	"errors"
	"strings"
)

// ------------------------------------------------------
// AssetBlob / MintMetadata / MintResult
// ------------------------------------------------------

// ContentTypePNG / ContentTypeJSON はこのパイプラインで扱う 2 種類の blob。
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
)

// AssetBlob はアップロード対象のバイナリ + content type。
// 生成元（画像生成 API など）はこのドメインの外側。
type AssetBlob struct {
	Data        []byte
	ContentType string
}

var (
	ErrEmptyBlob              = errors.New("mint: blob data is empty")
	ErrUnsupportedContentType = errors.New("mint: unsupported content type")
	ErrMetadataImageEmpty     = errors.New("mint: metadata image uri is empty")
	ErrMetadataNameEmpty      = errors.New("mint: metadata name is empty")
)

func (b AssetBlob) Validate() error {
	if len(b.Data) == 0 {
		return ErrEmptyBlob
	}
	switch b.ContentType {
	case ContentTypePNG, ContentTypeJSON:
		return nil
	default:
		return ErrUnsupportedContentType
	}
}

// MetadataAttribute は Metaplex 標準の attributes 配列の 1 要素。
type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// MetadataFile は properties.files の 1 要素。
type MetadataFile struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// MetadataCreator は properties.creators の 1 要素。share は合計 100。
type MetadataCreator struct {
	Address string `json:"address"`
	Share   int    `json:"share"`
}

// MetadataProperties は Metaplex off-chain metadata の properties ブロック。
type MetadataProperties struct {
	Files    []MetadataFile    `json:"files"`
	Category string            `json:"category"`
	Creators []MetadataCreator `json:"creators"`
}

// MintMetadata は Metaplex 互換の off-chain metadata JSON。
// Image はアップロード済み（durable）の StoredAssetURI でなければならない。
// 順序不変条件: image → metadata → transaction → submission。
type MintMetadata struct {
	Name        string              `json:"name"`
	Symbol      string              `json:"symbol"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
	Properties  MetadataProperties  `json:"properties"`
}

// NewMintMetadata は画像 URI が確定した後に呼ぶこと。
func NewMintMetadata(name, symbol, description, imageURI, creator string, attrs []MetadataAttribute) (MintMetadata, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return MintMetadata{}, ErrMetadataNameEmpty
	}
	img := strings.TrimSpace(imageURI)
	if img == "" {
		return MintMetadata{}, ErrMetadataImageEmpty
	}

	if attrs == nil {
		attrs = []MetadataAttribute{}
	}

	creators := []MetadataCreator{}
	if c := strings.TrimSpace(creator); c != "" {
		creators = append(creators, MetadataCreator{Address: c, Share: 100})
	}

	return MintMetadata{
		Name:        n,
		Symbol:      strings.TrimSpace(symbol),
		Description: strings.TrimSpace(description),
		Image:       img,
		Attributes:  attrs,
		Properties: MetadataProperties{
			Files:    []MetadataFile{{URI: img, Type: ContentTypePNG}},
			Category: "image",
			Creators: creators,
		},
	}, nil
}

// EncodeJSON はアップロード用の []byte を返します。
func (m MintMetadata) EncodeJSON() ([]byte, error) {
	if strings.TrimSpace(m.Image) == "" {
		return nil, ErrMetadataImageEmpty
	}
	return json.Marshal(m)
}

// MintResult はパイプラインの終端。以後不変。
type MintResult struct {
	MintAddress          string `json:"mintAddress"`
	TransactionSignature string `json:"transactionSignature"`
	ExplorerURL          string `json:"explorerUrl"`
}
