// internal/infra/solana/tx_builder.go
package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	mintdom "atelier/internal/domain/mint"
)

var (
	ErrBuilderNotConfigured = errors.New("tx_builder: not configured")
	ErrBuilderWalletEmpty   = errors.New("tx_builder: userWalletAddress is empty")
	ErrBuilderURIEmpty      = errors.New("tx_builder: metadataURI is empty")
	ErrBuilderNameEmpty     = errors.New("tx_builder: name is empty")
)

// TxBuilder は未署名ミントトランザクションの組み立てを担当します。
//
// - mint keypair は呼び出しごとに新規生成（再利用しない）
// - fee payer はエンドユーザーのウォレット。署名スロットは空のまま返す
// - mint keypair の署名だけをサーバ側で付けてから base64 で返す
// - blockhash は組み立て直前に取得する（失効ウィンドウがあるため）
type TxBuilder struct {
	RPC    *client.Client
	Signer *ServiceSigner
}

var _ mintdom.TransactionBuilder = (*TxBuilder)(nil)

// NewTxBuilder constructs builder. rpcEndpoint must be non-empty.
func NewTxBuilder(rpcEndpoint string, signer *ServiceSigner) *TxBuilder {
	return &TxBuilder{
		RPC:    client.NewClient(strings.TrimSpace(rpcEndpoint)),
		Signer: signer,
	}
}

// BuildMintTransaction は mintdom.TransactionBuilder の実装です。
//
// 命令列は 1 枚もの NFT の定番構成:
//  1. CreateAccount (mint)
//  2. InitializeMint (decimals=0)
//  3. CreateMetadataAccountV3
//  4. CreateAssociatedTokenAccount (user)
//  5. MintTo (1)
//  6. CreateMasterEditionV3 (MaxSupply=1)
//
// blockhash の取得に失敗した場合はこの層では再試行しない。
// 呼び出し側がパイプライン全体を再実行する。
func (b *TxBuilder) BuildMintTransaction(ctx context.Context, in mintdom.BuildParams) (mintdom.BuildResult, error) {
	if b == nil || b.RPC == nil || b.Signer == nil {
		return mintdom.BuildResult{}, ErrBuilderNotConfigured
	}

	wallet := strings.TrimSpace(in.UserWalletAddress)
	if wallet == "" {
		return mintdom.BuildResult{}, ErrBuilderWalletEmpty
	}
	uri := strings.TrimSpace(in.MetadataURI)
	if uri == "" {
		return mintdom.BuildResult{}, ErrBuilderURIEmpty
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return mintdom.BuildResult{}, ErrBuilderNameEmpty
	}

	owner := common.PublicKeyFromString(wallet)
	mint := types.NewAccount() // NFT 用 mint アカウント新規作成

	ata, _, err := common.FindAssociatedTokenAddress(owner, mint.PublicKey)
	if err != nil {
		return mintdom.BuildResult{}, fmt.Errorf("tx_builder: FindAssociatedTokenAddress: %w", err)
	}

	metadataPubkey, err := token_metadata.GetTokenMetaPubkey(mint.PublicKey)
	if err != nil {
		return mintdom.BuildResult{}, fmt.Errorf("tx_builder: GetTokenMetaPubkey: %w", err)
	}
	masterEditionPubkey, err := token_metadata.GetMasterEdition(mint.PublicKey)
	if err != nil {
		return mintdom.BuildResult{}, fmt.Errorf("tx_builder: GetMasterEdition: %w", err)
	}

	mintRent, err := b.RPC.GetMinimumBalanceForRentExemption(ctx, token.MintAccountSize)
	if err != nil {
		return mintdom.BuildResult{}, fmt.Errorf("tx_builder: GetMinimumBalanceForRentExemption: %w", err)
	}

	// blockhash は最後に取得して返却までの猶予を最大化する
	recent, err := b.RPC.GetLatestBlockhash(ctx)
	if err != nil {
		return mintdom.BuildResult{}, fmt.Errorf("tx_builder: GetLatestBlockhash: %w", err)
	}

	// 1 ミント = 1 トークン固定（MaxSupply = 1）
	maxSupply := uint64(1)

	creators := []token_metadata.Creator{
		{
			Address:  owner,
			Verified: false, // ウォレット署名後にネットワーク側で検証される
			Share:    100,
		},
		{
			// プロビナンス用にサービスのアドレスも載せる（配分は 0）
			Address:  b.Signer.Account.PublicKey,
			Verified: false,
			Share:    0,
		},
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		// 部分署名: mint keypair のみ。fee payer（ユーザーウォレット）の
		// スロットはゼロ署名のまま残し、外部ウォレットに委ねる。
		Signers: []types.Account{mint},
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        owner,
			RecentBlockhash: recent.Blockhash,
			Instructions: []types.Instruction{
				system.CreateAccount(system.CreateAccountParam{
					From:     owner,
					New:      mint.PublicKey,
					Owner:    common.TokenProgramID,
					Lamports: mintRent,
					Space:    token.MintAccountSize,
				}),
				token.InitializeMint(token.InitializeMintParam{
					Decimals:   0,
					Mint:       mint.PublicKey,
					MintAuth:   owner,
					FreezeAuth: &owner,
				}),
				token_metadata.CreateMetadataAccountV3(
					token_metadata.CreateMetadataAccountV3Param{
						Metadata:                metadataPubkey,
						Mint:                    mint.PublicKey,
						MintAuthority:           owner,
						UpdateAuthority:         owner,
						Payer:                   owner,
						UpdateAuthorityIsSigner: true,
						IsMutable:               true,
						Data: token_metadata.DataV2{
							Name:                 name,
							Symbol:               strings.TrimSpace(in.Symbol),
							Uri:                  uri,
							SellerFeeBasisPoints: in.RoyaltyBasisPoints,
							Creators:             &creators,
						},
						CollectionDetails: nil,
					},
				),
				associated_token_account.CreateAssociatedTokenAccount(
					associated_token_account.CreateAssociatedTokenAccountParam{
						Funder:                 owner,
						Owner:                  owner,
						Mint:                   mint.PublicKey,
						AssociatedTokenAccount: ata,
					},
				),
				token.MintTo(token.MintToParam{
					Mint:   mint.PublicKey,
					To:     ata,
					Auth:   owner,
					Amount: 1,
				}),
				token_metadata.CreateMasterEditionV3(
					token_metadata.CreateMasterEditionParam{
						Edition:         masterEditionPubkey,
						Mint:            mint.PublicKey,
						UpdateAuthority: owner,
						MintAuthority:   owner,
						Metadata:        metadataPubkey,
						Payer:           owner,
						MaxSupply:       &maxSupply,
					},
				),
			},
		}),
	})
	if err != nil {
		return mintdom.BuildResult{}, fmt.Errorf("tx_builder: NewTransaction: %w", err)
	}

	raw, err := tx.Serialize()
	if err != nil {
		return mintdom.BuildResult{}, fmt.Errorf("tx_builder: Serialize: %w", err)
	}

	mintAddr := mint.PublicKey.ToBase58()

	log.Printf(
		"[tx_builder] built mint tx mint=%s wallet=%s uri=%s blockhash=%s bytes=%d",
		maskShort(mintAddr),
		maskShort(wallet),
		uri,
		maskShort(recent.Blockhash),
		len(raw),
	)

	return mintdom.BuildResult{
		MintAddress:               mintAddr,
		UnsignedTransactionBase64: base64.StdEncoding.EncodeToString(raw),
	}, nil
}
