// internal/domain/mint/ports.go
package mint

import (
	"context"
	"time"
)

// ------------------------------------------------------
// Ports（usecase から見た外側）
// ------------------------------------------------------

// AssetUploader はストレージネットワークへの署名付きアップロード。
// baseName は拡張子付きのヒント（例 "artwork.png"）。実際の保存名は
// 実装側がタイムスタンプを埋め込んで採番する。
type AssetUploader interface {
	Upload(ctx context.Context, blob AssetBlob, baseName string) (string, error)
}

// BuildParams は TransactionBuilder への入力。
type BuildParams struct {
	MetadataURI        string
	Name               string
	Symbol             string
	RoyaltyBasisPoints uint16
	UserWalletAddress  string
}

// BuildResult は部分署名済みトランザクションと、その mint アドレス。
type BuildResult struct {
	MintAddress               string
	UnsignedTransactionBase64 string
}

// TransactionBuilder は未署名（部分署名）ミントトランザクションの組み立て。
type TransactionBuilder interface {
	BuildMintTransaction(ctx context.Context, in BuildParams) (BuildResult, error)
}

// TransactionRelay は署名済みバイト列の再送 + 確認ポーリング。
// バイト列は relay の中で書き換えてはならない。
type TransactionRelay interface {
	Relay(ctx context.Context, signedTxBase64 string, expectedMintAddress string) (MintResult, error)
}

// WalletSigner は外部ウォレットの署名ケーパビリティ。
// sign(bytes) -> bytes のみを仮定し、SDK の具象型には依存しない。
// 通常はブラウザ側ウォレットが担うため、サーバ側では注入されないことも多い。
type WalletSigner interface {
	Sign(ctx context.Context, unsignedTxBase64 string) (string, error)
}

// RecordRepository は mint レコードの永続化（外部コラボレータの put/get 相当）。
// idempotency キャッシュとしても使う: 同じ requestId の build は既存レコードを返す。
type RecordRepository interface {
	Create(ctx context.Context, rec MintRecord) (MintRecord, error)
	GetByID(ctx context.Context, id string) (*MintRecord, error)
	GetByMintAddress(ctx context.Context, mintAddress string) (*MintRecord, error)
	MarkMinted(ctx context.Context, mintAddress, signature, explorerURL string, at time.Time) (*MintRecord, error)
}

// Notifier はミント確定後のベストエフォート通知（メール等）。
// 失敗してもパイプラインは失敗させない。
type Notifier interface {
	NotifyMinted(ctx context.Context, rec MintRecord) error
}
