// internal/domain/mint/taxonomy.go
package mint

import (
	"errors"
	"fmt"
)

// ------------------------------------------------------
// エラー分類（taxonomy）
// ------------------------------------------------------
//
// パイプラインの各コンポーネントは「どの種類の失敗か」をタグ付けして返す。
// ハンドラ側はこの分類だけを見て HTTP ステータスに落とす。
//
// - Validation       : 入力不正。リトライしない（400）
// - Authorization    : ストレージ/チェーン側の署名・権限拒否。リトライしない（401）
// - TransientNetwork : タイムアウト・5xx 等。バックオフ付きで再試行される
// - ExhaustedRetries : 再試行上限に達した終端エラー（500）
// - LogicalChain     : ネットワークは受理したがプログラムが失敗を報告（500）
// - StaleTransaction : blockhash 失効。relay 層では再試行不可、再ビルドが必要
type Category string

const (
	CategoryValidation       Category = "validation"
	CategoryAuthorization    Category = "authorization"
	CategoryTransientNetwork Category = "transient_network"
	CategoryExhaustedRetries Category = "exhausted_retries"
	CategoryLogicalChain     Category = "logical_chain"
	CategoryStaleTransaction Category = "stale_transaction"
)

// Step はオーケストレータのどの段で失敗したか。
type Step string

const (
	StepUploadImage    Step = "upload_image"
	StepUploadMetadata Step = "upload_metadata"
	StepBuild          Step = "build_transaction"
	StepSign           Step = "sign_transaction"
	StepRelay          Step = "relay_transaction"
)

// StepError は category + step + 原因をまとめたタグ付きエラー。
// ユーザー向けメッセージは Error() で返し、内部詳細は Unwrap 先に残す。
type StepError struct {
	Category Category
	Step     Step
	Message  string
	Err      error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.Step != "" {
		return fmt.Sprintf("%s (step=%s, category=%s)", e.Message, e.Step, e.Category)
	}
	return fmt.Sprintf("%s (category=%s)", e.Message, e.Category)
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStepError はタグ付きエラーを作ります。
func NewStepError(category Category, step Step, message string, cause error) *StepError {
	return &StepError{
		Category: category,
		Step:     step,
		Message:  message,
		Err:      cause,
	}
}

// CategoryOf は err から Category を取り出します。タグが無ければ
// ExhaustedRetries ではなく空文字を返し、呼び出し側に判断を委ねる。
func CategoryOf(err error) Category {
	var se *StepError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// IsRetryable は再試行してよい分類かどうか。
func IsRetryable(c Category) bool {
	return c == CategoryTransientNetwork
}
