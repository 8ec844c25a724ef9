// internal/application/usecase/mint_usecase.go
package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	mintdom "atelier/internal/domain/mint"
)

// ============================================================
// MintUsecase（パイプラインのオーケストレータ）
// ============================================================
//
// 厳密な順序: 画像アップロード → metadata アップロード → tx ビルド →
// （外部署名）→ relay。クロスステップの不変条件を知っているのはここだけ:
//
//   - metadata.image は durable な StoredAssetURI でなければならない
//   - metadata が durable になる前に tx をビルドしない
//
// どこかの段が終端エラーを返したら以降の段は実行せず、どの段で
// 失敗したかをタグ付けして返す。途中まで上がったアセットの掃除はしない
// （orphan は許容。ストレージは安いが、リトライ安全性は高い）。

var (
	ErrMintUsecaseNil      = errors.New("mint usecase is nil")
	ErrWalletRequired      = errors.New("userWalletAddress is required")
	ErrImageSourceRequired = errors.New("either image blob or imageURI is required")
	ErrSignerRequired      = errors.New("wallet signer is not configured")
)

type MintUsecase struct {
	uploader mintdom.AssetUploader
	builder  mintdom.TransactionBuilder
	relay    mintdom.TransactionRelay

	// 任意: mint レコード永続化（idempotency キャッシュ兼コラボレータ store）
	records mintdom.RecordRepository
	// 任意: ミント確定のベストエフォート通知
	notifier mintdom.Notifier

	symbol    string
	royaltyBP uint16

	now func() time.Time
}

// NewMintUsecase は MintUsecase のコンストラクタです。
// records / notifier は nil でもよい（その場合は永続化・通知をスキップ）。
func NewMintUsecase(
	uploader mintdom.AssetUploader,
	builder mintdom.TransactionBuilder,
	relay mintdom.TransactionRelay,
	records mintdom.RecordRepository,
	notifier mintdom.Notifier,
	symbol string,
	royaltyBP uint16,
) *MintUsecase {
	return &MintUsecase{
		uploader:  uploader,
		builder:   builder,
		relay:     relay,
		records:   records,
		notifier:  notifier,
		symbol:    strings.TrimSpace(symbol),
		royaltyBP: royaltyBP,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ============================================================
// 入出力 DTO
// ============================================================

type PrepareMintInput struct {
	// 任意の idempotency キー。同じ RequestID で既に minted なら
	// 新しい mint を作らず既存結果を返す。
	RequestID string

	// 画像ソースはどちらか一方:
	// - ImageBlob: これからストレージへアップロードする生バイト
	// - ImageURI : 既に durable な StoredAssetURI（/storage/upload 済みなど）
	ImageBlob *mintdom.AssetBlob
	ImageURI  string

	Name              string
	Description       string
	Attributes        []mintdom.MetadataAttribute
	UserWalletAddress string
}

type PrepareMintResult struct {
	MintAddress               string `json:"mintAddress"`
	UnsignedTransactionBase64 string `json:"unsignedTransactionBase64"`
	ImageURI                  string `json:"imageUri"`
	MetadataURI               string `json:"metadataUri"`

	// idempotency キャッシュにヒットした場合のみ
	AlreadyMinted bool                `json:"alreadyMinted,omitempty"`
	Existing      *mintdom.MintResult `json:"existing,omitempty"`
}

type CompleteMintInput struct {
	SignedTransactionBase64 string
	MintAddress             string
}

// ============================================================
// Public API
// ============================================================

// PrepareMint は署名前までのパイプライン前半:
// 画像 → metadata → 未署名 tx。pending レコードも書く（store があれば）。
func (u *MintUsecase) PrepareMint(ctx context.Context, in PrepareMintInput) (PrepareMintResult, error) {
	if u == nil {
		return PrepareMintResult{}, ErrMintUsecaseNil
	}

	wallet := strings.TrimSpace(in.UserWalletAddress)
	if wallet == "" {
		return PrepareMintResult{}, mintdom.NewStepError(
			mintdom.CategoryValidation, mintdom.StepBuild, "userWalletAddress is required", ErrWalletRequired)
	}

	// idempotency: 完了済みの RequestID は既存結果に合流する
	reqID := strings.TrimSpace(in.RequestID)
	if reqID != "" && u.records != nil {
		if rec, err := u.records.GetByID(ctx, reqID); err == nil && rec != nil && rec.Minted {
			log.Printf("[mint_usecase] idempotency hit requestId=%s mint=%s", reqID, rec.MintAddress)
			return PrepareMintResult{
				MintAddress:   rec.MintAddress,
				ImageURI:      rec.ImageURI,
				MetadataURI:   rec.MetadataURI,
				AlreadyMinted: true,
				Existing: &mintdom.MintResult{
					MintAddress:          rec.MintAddress,
					TransactionSignature: rec.TransactionSignature,
					ExplorerURL:          rec.ExplorerURL,
				},
			}, nil
		}
	}

	// 1) 画像を durable にする
	imageURI := strings.TrimSpace(in.ImageURI)
	if imageURI == "" {
		if in.ImageBlob == nil {
			return PrepareMintResult{}, mintdom.NewStepError(
				mintdom.CategoryValidation, mintdom.StepUploadImage, "no image source", ErrImageSourceRequired)
		}
		uri, err := u.uploader.Upload(ctx, *in.ImageBlob, "artwork.png")
		if err != nil {
			return PrepareMintResult{}, tagStep(err, mintdom.StepUploadImage, "image upload failed")
		}
		imageURI = uri
	}

	// 2) metadata JSON（image は確定済み URI）をアップロード
	meta, err := mintdom.NewMintMetadata(in.Name, u.symbol, in.Description, imageURI, wallet, in.Attributes)
	if err != nil {
		return PrepareMintResult{}, mintdom.NewStepError(
			mintdom.CategoryValidation, mintdom.StepUploadMetadata, "invalid metadata", err)
	}
	metaJSON, err := meta.EncodeJSON()
	if err != nil {
		return PrepareMintResult{}, mintdom.NewStepError(
			mintdom.CategoryValidation, mintdom.StepUploadMetadata, "encode metadata", err)
	}
	metadataURI, err := u.uploader.Upload(ctx, mintdom.AssetBlob{
		Data:        metaJSON,
		ContentType: mintdom.ContentTypeJSON,
	}, "metadata.json")
	if err != nil {
		return PrepareMintResult{}, tagStep(err, mintdom.StepUploadMetadata, "metadata upload failed")
	}

	// 3) metadata が durable になってから tx をビルドする
	build, err := u.builder.BuildMintTransaction(ctx, mintdom.BuildParams{
		MetadataURI:        metadataURI,
		Name:               in.Name,
		Symbol:             u.symbol,
		RoyaltyBasisPoints: u.royaltyBP,
		UserWalletAddress:  wallet,
	})
	if err != nil {
		return PrepareMintResult{}, tagStep(err, mintdom.StepBuild, "transaction build failed")
	}

	// 4) pending レコード（store が無ければスキップ、失敗しても止めない）
	if u.records != nil {
		rec, recErr := mintdom.NewMintRecord(
			reqID, build.MintAddress, wallet, in.Name, in.Description, imageURI, metadataURI, u.now())
		if recErr == nil {
			if _, recErr = u.records.Create(ctx, rec); recErr != nil {
				log.Printf("[mint_usecase] WARN: pending record create failed mint=%s err=%v", build.MintAddress, recErr)
			}
		} else {
			log.Printf("[mint_usecase] WARN: pending record invalid mint=%s err=%v", build.MintAddress, recErr)
		}
	}

	log.Printf("[mint_usecase] prepared mint=%s image=%s metadata=%s", build.MintAddress, imageURI, metadataURI)

	return PrepareMintResult{
		MintAddress:               build.MintAddress,
		UnsignedTransactionBase64: build.UnsignedTransactionBase64,
		ImageURI:                  imageURI,
		MetadataURI:               metadataURI,
	}, nil
}

// CompleteMint は署名後のパイプライン後半: relay + レコード確定 + 通知。
func (u *MintUsecase) CompleteMint(ctx context.Context, in CompleteMintInput) (mintdom.MintResult, error) {
	if u == nil {
		return mintdom.MintResult{}, ErrMintUsecaseNil
	}

	signed := strings.TrimSpace(in.SignedTransactionBase64)
	mintAddr := strings.TrimSpace(in.MintAddress)
	if signed == "" || mintAddr == "" {
		return mintdom.MintResult{}, mintdom.NewStepError(
			mintdom.CategoryValidation, mintdom.StepRelay,
			"signedTransactionBase64 and mintAddress are required", nil)
	}

	res, err := u.relay.Relay(ctx, signed, mintAddr)
	if err != nil {
		return mintdom.MintResult{}, err // relay は自分で step/category をタグ済み
	}

	// レコード確定と通知はベストエフォート
	if u.records != nil {
		rec, recErr := u.records.MarkMinted(ctx, res.MintAddress, res.TransactionSignature, res.ExplorerURL, u.now())
		if recErr != nil {
			log.Printf("[mint_usecase] WARN: mark minted failed mint=%s err=%v", res.MintAddress, recErr)
		} else if u.notifier != nil && rec != nil {
			if nErr := u.notifier.NotifyMinted(ctx, *rec); nErr != nil {
				log.Printf("[mint_usecase] WARN: notify failed mint=%s err=%v", res.MintAddress, nErr)
			}
		}
	}

	return res, nil
}

// MintDirect は署名ケーパビリティを注入してパイプラインを一気通貫で実行する
// バリアントです（サーバ側カストディやテストで使う）。
func (u *MintUsecase) MintDirect(ctx context.Context, in PrepareMintInput, signer mintdom.WalletSigner) (mintdom.MintResult, error) {
	if u == nil {
		return mintdom.MintResult{}, ErrMintUsecaseNil
	}
	if signer == nil {
		return mintdom.MintResult{}, mintdom.NewStepError(
			mintdom.CategoryValidation, mintdom.StepSign, "no wallet signer", ErrSignerRequired)
	}

	prep, err := u.PrepareMint(ctx, in)
	if err != nil {
		return mintdom.MintResult{}, err
	}
	if prep.AlreadyMinted && prep.Existing != nil {
		return *prep.Existing, nil
	}

	signed, err := signer.Sign(ctx, prep.UnsignedTransactionBase64)
	if err != nil {
		return mintdom.MintResult{}, mintdom.NewStepError(
			mintdom.CategoryAuthorization, mintdom.StepSign, "wallet refused to sign", err)
	}

	return u.CompleteMint(ctx, CompleteMintInput{
		SignedTransactionBase64: signed,
		MintAddress:             prep.MintAddress,
	})
}

// GetRecord は mintAddress から永続化済みレコードを引きます。
func (u *MintUsecase) GetRecord(ctx context.Context, mintAddress string) (*mintdom.MintRecord, error) {
	if u == nil {
		return nil, ErrMintUsecaseNil
	}
	if u.records == nil {
		return nil, mintdom.ErrNotFound
	}
	addr := strings.TrimSpace(mintAddress)
	if addr == "" {
		return nil, mintdom.NewStepError(mintdom.CategoryValidation, "", "mintAddress is required", nil)
	}
	return u.records.GetByMintAddress(ctx, addr)
}

// tagStep は下位コンポーネントのエラーに失敗ステップを付け直します。
// 分類が付いていないエラーは transient 扱い（パイプライン全体の再実行は安全）。
func tagStep(err error, step mintdom.Step, msg string) error {
	category := mintdom.CategoryOf(err)
	if category == "" {
		category = mintdom.CategoryTransientNetwork
	}
	return mintdom.NewStepError(category, step, msg, err)
}
