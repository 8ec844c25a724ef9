// internal/infra/shadowdrive/naming.go
package shadowdrive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// Clock は時刻取得の差し替えポイント。リトライごとのファイル名が
// 時刻に依存するので、テストでは固定クロックを注入する。
type Clock func() time.Time

// FileNamer は試行ごとのファイル名を採番します。
//
// リトライのたびに名前を変えるのは認可メッセージの replay を避けるため:
// メッセージにはファイル名のハッシュが入るので、名前が変われば
// 認可も保存先パスも毎回変わる。attempt を名前に含めて、同一ミリ秒内の
// リトライでも衝突しないようにしている。
type FileNamer struct {
	Now Clock
}

// Name は baseName（例 "artwork.png"）と試行番号から保存名を作ります。
// 例: "artwork-1735689600123-2.png"
func (n FileNamer) Name(baseName string, attempt int) string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	base := strings.TrimSpace(baseName)
	if base == "" {
		base = "asset.bin"
	}
	// パス区切りなどは落とし、ベース名だけ使う
	base = path.Base(base)

	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "asset"
	}
	if attempt < 1 {
		attempt = 1
	}

	return fmt.Sprintf("%s-%d-%d%s", stem, now().UTC().UnixMilli(), attempt, ext)
}

// hashFileNames はアップロード対象ファイル名リストのハッシュ。
// プロトコルはカンマ結合した名前リストの sha256 を要求する。
// （このシステムは常に 1 ファイルずつアップロードするが、形式は合わせる）
func hashFileNames(names []string) string {
	joined := strings.Join(names, ",")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
