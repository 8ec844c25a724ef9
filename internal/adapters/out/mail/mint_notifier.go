// internal/adapters/out/mail/mint_notifier.go
package mail

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	mintdom "atelier/internal/domain/mint"
)

// MintNotifier implements mintdom.Notifier over SendGrid.
// ミント確定のお知らせメール。失敗してもパイプラインは止めない前提。
type MintNotifier struct {
	apiKey string
	from   string
	to     string
}

var _ mintdom.Notifier = (*MintNotifier)(nil)

func NewMintNotifier(apiKey, from, to string) *MintNotifier {
	return &MintNotifier{
		apiKey: strings.TrimSpace(apiKey),
		from:   strings.TrimSpace(from),
		to:     strings.TrimSpace(to),
	}
}

// NotifyMinted sends a mint-confirmation email.
func (n *MintNotifier) NotifyMinted(ctx context.Context, rec mintdom.MintRecord) error {
	if n == nil || n.apiKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}
	if n.from == "" {
		return fmt.Errorf("from address is empty")
	}
	if n.to == "" {
		return fmt.Errorf("to address is empty")
	}

	subject := fmt.Sprintf("NFT minted: %s", rec.Name)
	body := fmt.Sprintf(
		"Mint confirmed.\n\nName: %s\nMint address: %s\nWallet: %s\nSignature: %s\nExplorer: %s\nMetadata: %s\n",
		rec.Name, rec.MintAddress, rec.UserWalletAddress,
		rec.TransactionSignature, rec.ExplorerURL, rec.MetadataURI,
	)

	fromEmail := mail.NewEmail("Atelier", n.from)
	toEmail := mail.NewEmail("", n.to)

	// Text & HTML — HTML は最低限整形
	message := mail.NewSingleEmail(
		fromEmail,
		subject,
		toEmail,
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	client := sendgrid.NewSendClient(n.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}

	if response.StatusCode >= 400 {
		log.Printf("[sendgrid] error status=%d, body=%s", response.StatusCode, response.Body)
		return fmt.Errorf("sendgrid send failed: status=%d", response.StatusCode)
	}

	log.Printf("[sendgrid] mint notification sent: status=%d mint=%s", response.StatusCode, rec.MintAddress)
	return nil
}
