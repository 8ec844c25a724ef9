package shadowdrive

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(ms int64) Clock {
	return func() time.Time { return time.UnixMilli(ms).UTC() }
}

func TestFileNamerDeterministicWithFixedClock(t *testing.T) {
	n := FileNamer{Now: fixedClock(1735689600123)}

	assert.Equal(t, "artwork-1735689600123-1.png", n.Name("artwork.png", 1))
	assert.Equal(t, "artwork-1735689600123-2.png", n.Name("artwork.png", 2))
}

func TestFileNamerDistinctPerAttempt(t *testing.T) {
	n := FileNamer{Now: fixedClock(1000)}

	// 同一ミリ秒でも attempt で名前が変わる
	assert.NotEqual(t, n.Name("metadata.json", 1), n.Name("metadata.json", 2))
}

func TestFileNamerSanitizesBaseName(t *testing.T) {
	n := FileNamer{Now: fixedClock(42)}

	// パス区切りはベース名に落とされる
	assert.Equal(t, "evil-42-1.png", n.Name("../../evil.png", 1))

	// 空はデフォルト名
	assert.Equal(t, "asset-42-1.bin", n.Name("", 1))

	// attempt < 1 は 1 に寄せる
	assert.Equal(t, "a-42-1.png", n.Name("a.png", 0))
}

func TestHashFileNames(t *testing.T) {
	sum := sha256.Sum256([]byte("a.png,b.json"))
	assert.Equal(t, hex.EncodeToString(sum[:]), hashFileNames([]string{"a.png", "b.json"}))

	single := sha256.Sum256([]byte("artwork-1-1.png"))
	assert.Equal(t, hex.EncodeToString(single[:]), hashFileNames([]string{"artwork-1-1.png"}))
}
