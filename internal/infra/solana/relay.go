// internal/infra/solana/relay.go
package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	mintdom "atelier/internal/domain/mint"
)

var (
	ErrRelayNotConfigured    = errors.New("relay: not configured")
	ErrRelayMintEmpty        = errors.New("relay: expected mint address is empty")
	ErrRelayMalformedPayload = errors.New("relay: malformed signed transaction payload")
	ErrConfirmationTimedOut  = errors.New("relay: confirmation timed out")
)

// relay の状態遷移。ログにだけ出す。
// RECEIVED → DESERIALIZED → SUBMITTED → CONFIRMING → {CONFIRMED | FAILED | TIMED_OUT}
const (
	stateReceived     = "RECEIVED"
	stateDeserialized = "DESERIALIZED"
	stateSubmitted    = "SUBMITTED"
	stateConfirming   = "CONFIRMING"
	stateConfirmed    = "CONFIRMED"
	stateFailed       = "FAILED"
	stateTimedOut     = "TIMED_OUT"
)

// Relay は署名済みトランザクションの再送 + 確認ポーリングを担当します。
//
// 信頼境界: 署名の検証はネットワークに任せる。relay は命令の意味を見ないし、
// 再送の間にバイト列を作り直すこともしない（blockhash と命令が固定なので、
// 同じバイト列の再送はネットワーク側で signature により重複排除される）。
type Relay struct {
	RPC    *client.Client
	Status *StatusClient

	Commitment      string
	ExplorerCluster string
	SubmitRetries   int
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
}

var _ mintdom.TransactionRelay = (*Relay)(nil)

// NewRelay constructs relay. Zero options fall back to devnet-ish defaults.
func NewRelay(rpcEndpoint, commitment, explorerCluster string) *Relay {
	ep := strings.TrimSpace(rpcEndpoint)
	c := strings.TrimSpace(commitment)
	if c == "" {
		c = "confirmed"
	}
	return &Relay{
		RPC:             client.NewClient(ep),
		Status:          NewStatusClient(ep),
		Commitment:      c,
		ExplorerCluster: strings.TrimSpace(explorerCluster),
		SubmitRetries:   3,
		ConfirmTimeout:  60 * time.Second,
		PollInterval:    2 * time.Second,
	}
}

// Relay は mintdom.TransactionRelay の実装です。
func (r *Relay) Relay(ctx context.Context, signedTxBase64 string, expectedMintAddress string) (mintdom.MintResult, error) {
	if r == nil || r.RPC == nil || r.Status == nil {
		return mintdom.MintResult{}, ErrRelayNotConfigured
	}

	mintAddr := strings.TrimSpace(expectedMintAddress)
	if mintAddr == "" {
		return mintdom.MintResult{}, mintdom.NewStepError(
			mintdom.CategoryValidation, mintdom.StepRelay,
			"mintAddress is required", ErrRelayMintEmpty,
		)
	}

	log.Printf("[relay] state=%s mint=%s payload=%dB", stateReceived, maskShort(mintAddr), len(signedTxBase64))

	// 1) deserialize: 失敗は非リトライ。ネットワークには一切触れない。
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signedTxBase64))
	if err != nil {
		return mintdom.MintResult{}, mintdom.NewStepError(
			mintdom.CategoryValidation, mintdom.StepRelay,
			"signedTransactionBase64 is not valid base64", fmt.Errorf("%w: %v", ErrRelayMalformedPayload, err),
		)
	}

	tx, err := types.TransactionDeserialize(raw)
	if err != nil {
		return mintdom.MintResult{}, mintdom.NewStepError(
			mintdom.CategoryValidation, mintdom.StepRelay,
			"payload does not decode to a transaction", fmt.Errorf("%w: %v", ErrRelayMalformedPayload, err),
		)
	}

	log.Printf("[relay] state=%s mint=%s signatures=%d", stateDeserialized, maskShort(mintAddr), len(tx.Signatures))

	// 送信前から tx signature は確定している（先頭 = fee payer の署名）。
	// duplicate 解決のときに使う。
	knownSig := ""
	if len(tx.Signatures) > 0 {
		knownSig = base58.Encode(tx.Signatures[0])
	}

	// 2) submit: preflight 有効のまま、上限付きで再送。
	sig, err := r.submit(ctx, tx, mintAddr, knownSig)
	if err != nil {
		return mintdom.MintResult{}, err
	}

	log.Printf("[relay] state=%s mint=%s tx=%s", stateSubmitted, maskShort(mintAddr), maskShort(sig))

	// 3) confirm: commitment 到達までポーリング。
	if err := r.awaitConfirmation(ctx, sig, mintAddr); err != nil {
		return mintdom.MintResult{}, err
	}

	log.Printf("[relay] state=%s mint=%s tx=%s", stateConfirmed, maskShort(mintAddr), maskShort(sig))

	return mintdom.MintResult{
		MintAddress:          mintAddr,
		TransactionSignature: sig,
		ExplorerURL:          r.explorerURL(sig),
	}, nil
}

func (r *Relay) submit(ctx context.Context, tx types.Transaction, mintAddr, knownSig string) (string, error) {
	retries := r.SubmitRetries
	if retries <= 0 {
		retries = 3
	}

	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= retries; attempt++ {
		sig, err := r.RPC.SendTransaction(ctx, tx)
		if err == nil {
			return sig, nil
		}
		lastErr = err

		msg := strings.ToLower(err.Error())
		switch {
		// ネットワークは既にこの署名を処理済み → 二重ミントではなく既存結果に合流
		case strings.Contains(msg, "already been processed") || strings.Contains(msg, "alreadyprocessed"):
			log.Printf("[relay] duplicate submission detected mint=%s tx=%s", maskShort(mintAddr), maskShort(knownSig))
			if knownSig == "" {
				return "", mintdom.NewStepError(
					mintdom.CategoryValidation, mintdom.StepRelay,
					"duplicate transaction without recoverable signature", err,
				)
			}
			return knownSig, nil

		// blockhash 失効 → この層では回復不能。呼び出し側が再ビルドする
		case strings.Contains(msg, "blockhash not found"):
			log.Printf("[relay] state=%s mint=%s stale blockhash", stateFailed, maskShort(mintAddr))
			return "", mintdom.NewStepError(
				mintdom.CategoryStaleTransaction, mintdom.StepRelay,
				"transaction blockhash has expired; rebuild and re-sign", err,
			)

		// preflight がプログラムエラーを報告 → 論理的失敗。再送しても無駄
		case strings.Contains(msg, "custom program error") || strings.Contains(msg, "instructionerror"):
			log.Printf("[relay] state=%s mint=%s program error on preflight: %v", stateFailed, maskShort(mintAddr), err)
			return "", mintdom.NewStepError(
				mintdom.CategoryLogicalChain, mintdom.StepRelay,
				"program rejected the transaction", err,
			)
		}

		log.Printf("[relay] submit attempt=%d/%d failed mint=%s err=%v", attempt, retries, maskShort(mintAddr), err)

		if attempt < retries {
			if err := sleepCtx(ctx, backoff); err != nil {
				return "", mintdom.NewStepError(
					mintdom.CategoryTransientNetwork, mintdom.StepRelay,
					"submission cancelled", err,
				)
			}
			backoff *= 2
		}
	}

	return "", mintdom.NewStepError(
		mintdom.CategoryExhaustedRetries, mintdom.StepRelay,
		fmt.Sprintf("submission failed after %d attempts", retries), lastErr,
	)
}

func (r *Relay) awaitConfirmation(ctx context.Context, sig, mintAddr string) error {
	timeout := r.ConfirmTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	interval := r.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	log.Printf("[relay] state=%s tx=%s commitment=%s timeout=%s", stateConfirming, maskShort(sig), r.Commitment, timeout)

	deadline := time.Now().Add(timeout)

	for {
		status, err := r.Status.GetSignatureStatus(ctx, sig)
		if err != nil {
			// ポーリング自体の失敗は transient。期限までは続ける
			log.Printf("[relay] status poll failed tx=%s err=%v", maskShort(sig), err)
		}

		if status != nil {
			if status.Err != nil {
				// ネットワークは受理したがプログラムが失敗を報告した。
				// payload をそのまま載せて返す（transport エラーと区別する）
				payload, _ := json.Marshal(status.Err)
				log.Printf("[relay] state=%s tx=%s program error=%s", stateFailed, maskShort(sig), payload)
				return mintdom.NewStepError(
					mintdom.CategoryLogicalChain, mintdom.StepRelay,
					fmt.Sprintf("transaction failed on chain: %s", payload), errors.New(string(payload)),
				)
			}
			if status.ReachedCommitment(r.Commitment) {
				return nil
			}
		}

		if time.Now().After(deadline) {
			log.Printf("[relay] state=%s tx=%s", stateTimedOut, maskShort(sig))
			return mintdom.NewStepError(
				mintdom.CategoryTransientNetwork, mintdom.StepRelay,
				fmt.Sprintf("confirmation not reached within %s", timeout), ErrConfirmationTimedOut,
			)
		}

		if err := sleepCtx(ctx, interval); err != nil {
			return mintdom.NewStepError(
				mintdom.CategoryTransientNetwork, mintdom.StepRelay,
				"confirmation polling cancelled", err,
			)
		}
	}
}

func (r *Relay) explorerURL(sig string) string {
	if r.ExplorerCluster == "" || r.ExplorerCluster == "mainnet-beta" {
		return fmt.Sprintf("https://explorer.solana.com/tx/%s", sig)
	}
	return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s", sig, r.ExplorerCluster)
}

// sleepCtx waits d or returns early when ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
