package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"unicarbon-backend/internal/domain"

	"github.com/rs/zerolog/log"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender `json:"sender"`
	To          []BrevoTo   `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Alert describes a saga failure that needs an operator.
type Alert struct {
	Saga      string
	Reference string
	Kind      domain.ErrorKind
	Message   string
	TxHash    string
	Cause     string
	At        time.Time
}

// Alerter delivers operator alerts. Nil = no-op.
type Alerter interface {
	SendOperatorAlert(ctx context.Context, alert Alert) error
}

// BrevoClient sends operator alerts via the Brevo (Sendinblue) transactional API.
type BrevoClient struct {
	APIKey        string
	MailFrom      string
	OperatorEmail string
	Endpoint      string
	Client        *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "alerts@unicarbon.in"
}

func (c *BrevoClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

// send sends one email via Brevo API.
func (c *BrevoClient) send(ctx context.Context, toEmail, subject, html string) error {
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: "unicarbon settlement"},
		To:          []BrevoTo{{Email: toEmail}},
		Subject:     subject,
		HTMLContent: html,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendOperatorAlert mails alert to the operator inbox. Without an API key or inbox it does nothing.
func (c *BrevoClient) SendOperatorAlert(ctx context.Context, alert Alert) error {
	if c.APIKey == "" || c.OperatorEmail == "" {
		return nil
	}
	subject := fmt.Sprintf("[%s] %s %s", alert.Kind, alert.Saga, alert.Reference)
	return c.send(ctx, c.OperatorEmail, subject, EmailLayout(alertContent(alert)))
}

// alertKinds are the failures that leave the ledger and the chain disagreeing.
var alertKinds = map[domain.ErrorKind]bool{
	domain.KindCompensationFailed:    true,
	domain.KindChainSettlementFailed: true,
	domain.KindPartialSuccess:        true,
	domain.KindOversold:              true,
	domain.KindUntrackedSubmission:   true,
}

// NeedsOperator reports whether err should page an operator.
func NeedsOperator(err error) bool {
	return err != nil && alertKinds[domain.KindOf(err)]
}

// Notify sends an alert for err in the background when it needs an operator.
func Notify(ctx context.Context, a Alerter, saga, reference string, err error) {
	if a == nil || !NeedsOperator(err) {
		return
	}
	alert := Alert{
		Saga:      saga,
		Reference: reference,
		Kind:      domain.KindOf(err),
		Message:   err.Error(),
		At:        time.Now().UTC(),
	}
	if e, ok := err.(*domain.Error); ok {
		alert.Message = e.Message
		alert.TxHash = e.TxHash
		if e.Err != nil {
			alert.Cause = e.Err.Error()
		}
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
		defer cancel()
		if err := a.SendOperatorAlert(ctx, alert); err != nil {
			log.Error().Err(err).Str("saga", saga).Str("reference", reference).Msg("operator alert not delivered")
		}
	}()
}

func alertContent(a Alert) string {
	tx := "none"
	if a.TxHash != "" {
		tx = fmt.Sprintf(`<code>%s</code>`, EscapeHTML(a.TxHash))
	}
	cause := ""
	if a.Cause != "" {
		cause = fmt.Sprintf(`<p><strong>Cause:</strong> <code>%s</code></p>`, EscapeHTML(a.Cause))
	}
	return fmt.Sprintf(`
    <h1>%s needs attention</h1>
    <p><strong>Saga:</strong> %s<br><strong>Reference:</strong> %s<br><strong>Kind:</strong> %s<br><strong>Transaction:</strong> %s<br><strong>At:</strong> %s</p>
    <p>%s</p>%s
    <p>Check the operator queue at <code>GET /api/v1/admin/submissions</code> before retrying.</p>
`, EscapeHTML(a.Saga), EscapeHTML(a.Saga), EscapeHTML(a.Reference), EscapeHTML(string(a.Kind)), tx,
		a.At.Format(time.RFC3339), EscapeHTML(a.Message), cause)
}
