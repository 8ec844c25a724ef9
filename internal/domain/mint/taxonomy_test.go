package mint

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepErrorMessage(t *testing.T) {
	err := NewStepError(CategoryValidation, StepBuild, "userWalletAddress is required", nil)
	assert.Contains(t, err.Error(), "step=build_transaction")
	assert.Contains(t, err.Error(), "category=validation")

	noStep := NewStepError(CategoryAuthorization, "", "rejected", nil)
	assert.NotContains(t, noStep.Error(), "step=")
	assert.Contains(t, noStep.Error(), "category=authorization")
}

func TestCategoryOfUnwrapsNestedErrors(t *testing.T) {
	cause := errors.New("boom")
	tagged := NewStepError(CategoryStaleTransaction, StepRelay, "expired", cause)
	wrapped := fmt.Errorf("pipeline: %w", tagged)

	assert.Equal(t, CategoryStaleTransaction, CategoryOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)
}

func TestCategoryOfPlainError(t *testing.T) {
	assert.Equal(t, Category(""), CategoryOf(errors.New("plain")))
	assert.Equal(t, Category(""), CategoryOf(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(CategoryTransientNetwork))
	assert.False(t, IsRetryable(CategoryValidation))
	assert.False(t, IsRetryable(CategoryAuthorization))
	assert.False(t, IsRetryable(CategoryExhaustedRetries))
	assert.False(t, IsRetryable(CategoryLogicalChain))
	assert.False(t, IsRetryable(CategoryStaleTransaction))
}
