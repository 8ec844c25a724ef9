// internal/domain/mint/entity.go
package mint

import (
	"errors"
	"strings"
	"time"
)

// ------------------------------------------------------
// Entity: MintRecord (mints コレクション 1 レコード)
// ------------------------------------------------------
//
// 1 回の「画像 → ストレージ → NFT ミント」パイプラインの記録。
// /mint/build の時点で pending として作成し、/mint/relay の確定時に
// minted=true + transactionSignature を書き込む。
//
// 想定スキーマ:
//
// - id                   : string     // requestId（呼び出し側指定）か mintAddress
// - mintAddress          : string     // ビルド時に確定する（mint keypair はサーバ側で生成）
// - userWalletAddress    : string
// - name                 : string
// - description          : string
// - imageUri             : string     // ストレージ上の画像 URL
// - metadataUri          : string     // ストレージ上の metadata.json URL
// - transactionSignature : string     // relay 確定後のみ
// - explorerUrl          : string
// - minted               : bool
// - createdAt            : time.Time
// - mintedAt             : *time.Time
type MintRecord struct {
	ID                   string     `json:"id"`
	MintAddress          string     `json:"mintAddress"`
	UserWalletAddress    string     `json:"userWalletAddress"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	ImageURI             string     `json:"imageUri"`
	MetadataURI          string     `json:"metadataUri"`
	TransactionSignature string     `json:"transactionSignature,omitempty"`
	ExplorerURL          string     `json:"explorerUrl,omitempty"`
	Minted               bool       `json:"minted"`
	CreatedAt            time.Time  `json:"createdAt"`
	MintedAt             *time.Time `json:"mintedAt,omitempty"`
}

// ------------------------------------------------------
// Errors
// ------------------------------------------------------

var (
	ErrInvalidRecordID          = errors.New("mint: invalid id")
	ErrInvalidMintAddress       = errors.New("mint: invalid mintAddress")
	ErrInvalidUserWallet        = errors.New("mint: invalid userWalletAddress")
	ErrInvalidImageURI          = errors.New("mint: invalid imageUri")
	ErrInvalidMetadataURI       = errors.New("mint: invalid metadataUri")
	ErrInvalidCreatedAt         = errors.New("mint: invalid createdAt")
	ErrInconsistentMintedStatus = errors.New("mint: inconsistent minted / mintedAt")
	ErrNotFound                 = errors.New("mint: not found")
)

// ------------------------------------------------------
// Constructors
// ------------------------------------------------------

// NewMintRecord は /mint/build 完了時点の pending レコードを作ります。
// transactionSignature / mintedAt は relay 確定時に MarkMinted で埋める想定。
func NewMintRecord(
	id string,
	mintAddress string,
	userWalletAddress string,
	name string,
	description string,
	imageURI string,
	metadataURI string,
	createdAt time.Time,
) (MintRecord, error) {

	ma := strings.TrimSpace(mintAddress)
	if ma == "" {
		return MintRecord{}, ErrInvalidMintAddress
	}

	wallet := strings.TrimSpace(userWalletAddress)
	if wallet == "" {
		return MintRecord{}, ErrInvalidUserWallet
	}

	img := strings.TrimSpace(imageURI)
	if img == "" {
		return MintRecord{}, ErrInvalidImageURI
	}

	meta := strings.TrimSpace(metadataURI)
	if meta == "" {
		return MintRecord{}, ErrInvalidMetadataURI
	}

	if createdAt.IsZero() {
		return MintRecord{}, ErrInvalidCreatedAt
	}

	rid := strings.TrimSpace(id)
	if rid == "" {
		// requestId が無ければ mintAddress をそのままドキュメント ID にする
		rid = ma
	}

	return MintRecord{
		ID:                rid,
		MintAddress:       ma,
		UserWalletAddress: wallet,
		Name:              strings.TrimSpace(name),
		Description:       strings.TrimSpace(description),
		ImageURI:          img,
		MetadataURI:       meta,
		Minted:            false,
		CreatedAt:         createdAt.UTC(),
	}, nil
}

// Validate は保存前の整合性チェックです。
func (m MintRecord) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrInvalidRecordID
	}
	if strings.TrimSpace(m.MintAddress) == "" {
		return ErrInvalidMintAddress
	}
	if strings.TrimSpace(m.UserWalletAddress) == "" {
		return ErrInvalidUserWallet
	}
	if strings.TrimSpace(m.ImageURI) == "" {
		return ErrInvalidImageURI
	}
	if strings.TrimSpace(m.MetadataURI) == "" {
		return ErrInvalidMetadataURI
	}
	if m.CreatedAt.IsZero() {
		return ErrInvalidCreatedAt
	}

	// minted=true なのに mintedAt が無い（または逆）は保存させない
	if m.Minted && (m.MintedAt == nil || m.MintedAt.IsZero()) {
		return ErrInconsistentMintedStatus
	}
	if !m.Minted && m.MintedAt != nil {
		return ErrInconsistentMintedStatus
	}

	return nil
}

// MarkMinted は relay 確定時の状態遷移です。
func (m *MintRecord) MarkMinted(signature, explorerURL string, at time.Time) error {
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return errors.New("mint: transaction signature is empty")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	t := at.UTC()

	m.TransactionSignature = sig
	m.ExplorerURL = strings.TrimSpace(explorerURL)
	m.Minted = true
	m.MintedAt = &t
	return nil
}
