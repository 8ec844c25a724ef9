package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mintdom "atelier/internal/domain/mint"
)

// builderRPC は tx ビルドに必要な 2 メソッドだけ返すスタブ。
func builderRPC(t *testing.T) *httptest.Server {
	t.Helper()

	blockhash := types.NewAccount().PublicKey.ToBase58()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")

		switch req.Method {
		case "getMinimumBalanceForRentExemption":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":1461600}`, req.ID)
		case "getLatestBlockhash":
			fmt.Fprintf(w,
				`{"jsonrpc":"2.0","id":%d,"result":{"context":{"slot":1},"value":{"blockhash":%q,"lastValidBlockHeight":1000}}}`,
				req.ID, blockhash)
		default:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestBuilder(t *testing.T) *TxBuilder {
	t.Helper()
	srv := builderRPC(t)
	return NewTxBuilder(srv.URL, &ServiceSigner{Account: types.NewAccount()})
}

func testBuildParams() mintdom.BuildParams {
	return mintdom.BuildParams{
		MetadataURI:        "https://shdw-drive.genesysgo.net/acct/metadata-1-1.json",
		Name:               "Artwork #1",
		Symbol:             "ATLR",
		RoyaltyBasisPoints: 500,
		UserWalletAddress:  types.NewAccount().PublicKey.ToBase58(),
	}
}

func TestBuildMintTransactionProducesPartiallySignedTx(t *testing.T) {
	b := newTestBuilder(t)
	wallet := types.NewAccount()

	in := testBuildParams()
	in.UserWalletAddress = wallet.PublicKey.ToBase58()

	res, err := b.BuildMintTransaction(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, res.MintAddress)

	raw, err := base64.StdEncoding.DecodeString(res.UnsignedTransactionBase64)
	require.NoError(t, err)

	tx, err := types.TransactionDeserialize(raw)
	require.NoError(t, err)

	// fee payer はユーザーウォレット。先頭アカウントが一致するはず
	require.NotEmpty(t, tx.Message.Accounts)
	assert.Equal(t, wallet.PublicKey, tx.Message.Accounts[0])

	// fee payer + mint keypair の 2 署名スロット。
	// fee payer のスロットは未署名（全ゼロ）で外部ウォレットに委ねる
	require.Len(t, tx.Signatures, 2)
	assert.Equal(t, make([]byte, 64), []byte(tx.Signatures[0]))
	assert.NotEqual(t, make([]byte, 64), []byte(tx.Signatures[1]))
}

func TestBuildMintTransactionGeneratesFreshMintPerCall(t *testing.T) {
	b := newTestBuilder(t)

	first, err := b.BuildMintTransaction(context.Background(), testBuildParams())
	require.NoError(t, err)
	second, err := b.BuildMintTransaction(context.Background(), testBuildParams())
	require.NoError(t, err)

	assert.NotEqual(t, first.MintAddress, second.MintAddress)
	assert.NotEqual(t, first.UnsignedTransactionBase64, second.UnsignedTransactionBase64)
}

func TestBuildMintTransactionValidatesInput(t *testing.T) {
	b := newTestBuilder(t)

	in := testBuildParams()
	in.UserWalletAddress = " "
	_, err := b.BuildMintTransaction(context.Background(), in)
	assert.ErrorIs(t, err, ErrBuilderWalletEmpty)

	in = testBuildParams()
	in.MetadataURI = ""
	_, err = b.BuildMintTransaction(context.Background(), in)
	assert.ErrorIs(t, err, ErrBuilderURIEmpty)

	in = testBuildParams()
	in.Name = ""
	_, err = b.BuildMintTransaction(context.Background(), in)
	assert.ErrorIs(t, err, ErrBuilderNameEmpty)
}

func TestBuildMintTransactionNotConfigured(t *testing.T) {
	var b *TxBuilder
	_, err := b.BuildMintTransaction(context.Background(), testBuildParams())
	assert.ErrorIs(t, err, ErrBuilderNotConfigured)

	b = &TxBuilder{}
	_, err = b.BuildMintTransaction(context.Background(), testBuildParams())
	assert.ErrorIs(t, err, ErrBuilderNotConfigured)
}
