package mailer

import (
	"context"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Client sends transactional mail (OTP codes, seller-application decisions)
// through SendGrid. With an empty API key it logs instead of sending, which
// keeps local development working without credentials.
type Client struct {
	apiKey string
	from   string
}

func New(apiKey, from string) *Client {
	return &Client{apiKey: apiKey, from: from}
}

func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("mailer: to address is empty")
	}
	if c.apiKey == "" {
		log.Printf("mailer: no API key, would send to=%s subject=%q", to, subject)
		return nil
	}

	message := mail.NewSingleEmail(
		mail.NewEmail("Campus Market", c.from),
		subject,
		mail.NewEmail("", to),
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	resp, err := sendgrid.NewSendClient(c.apiKey).Send(message)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mailer: send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}

	log.Printf("mailer: sent status=%d to=%s subject=%q", resp.StatusCode, to, subject)
	return nil
}
