package solana

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/infra/config"
)

func keypairJSON(t *testing.T, acc types.Account) []byte {
	t.Helper()
	ints := make([]int, len(acc.PrivateKey))
	for i, b := range acc.PrivateKey {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)
	return data
}

func TestLoadServiceSignerFromEnvJSON(t *testing.T) {
	acc := types.NewAccount()
	cfg := &config.Config{ServiceKeyJSON: string(keypairJSON(t, acc))}

	s, err := LoadServiceSigner(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, acc.PublicKey.ToBase58(), s.PublicKeyBase58())
	assert.Len(t, []byte(s.PrivateKey()), 64)
}

func TestLoadServiceSignerFromFile(t *testing.T) {
	acc := types.NewAccount()
	path := filepath.Join(t.TempDir(), "service-key.json")
	require.NoError(t, os.WriteFile(path, keypairJSON(t, acc), 0600))

	cfg := &config.Config{ServiceKeyFile: path}
	s, err := LoadServiceSigner(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, acc.PublicKey.ToBase58(), s.PublicKeyBase58())
}

func TestLoadServiceSignerNotConfigured(t *testing.T) {
	_, err := LoadServiceSigner(context.Background(), &config.Config{})
	assert.ErrorIs(t, err, ErrServiceKeyNotConfigured)

	_, err = LoadServiceSigner(context.Background(), nil)
	assert.ErrorIs(t, err, ErrServiceKeyNotConfigured)
}

func TestDecodeKeypairJSONRejectsBadInput(t *testing.T) {
	_, err := decodeKeypairJSON([]byte(`"not an array"`))
	assert.ErrorIs(t, err, ErrServiceKeyInvalid)

	_, err = decodeKeypairJSON([]byte(`[1,2,3]`))
	assert.ErrorIs(t, err, ErrServiceKeyInvalid)

	_, err = decodeKeypairJSON([]byte(`[999]`))
	assert.ErrorIs(t, err, ErrServiceKeyInvalid)
}
