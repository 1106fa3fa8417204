package ses

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"invoicelens/internal/config"
	"invoicelens/internal/port"
)

// emailClient is the part of *sesv2.Client the notifier uses.
type emailClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesNotifier struct {
	client      emailClient
	fromAddress string
	fromName    string
	recipients  []string
	baseURL     string
}

// NewNotifier creates an SES-backed Notifier that mails reviewers about flagged invoices.
func NewNotifier(ctx context.Context, cfg *config.NotifyConfig) (port.Notifier, error) {
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("ses.NewNotifier: no recipients configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return newNotifier(sesv2.NewFromConfig(awsCfg), cfg), nil
}

func newNotifier(client emailClient, cfg *config.NotifyConfig) *sesNotifier {
	return &sesNotifier{
		client:      client,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		recipients:  cfg.Recipients,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (s *sesNotifier) NotifyFlagged(ctx context.Context, alert port.FlaggedInvoiceAlert) error {
	link := fmt.Sprintf("%s/invoices/%s", s.baseURL, alert.InvoiceID)
	vendor := alert.Vendor
	if vendor == "" {
		vendor = "unknown vendor"
	}

	subject := fmt.Sprintf("Invoice flagged for review: %s", alert.Filename)
	textBody := fmt.Sprintf("Invoice %s from %s (total %s) was flagged.\n\nConfidence: %.2f\nHighest severity: %.2f\n\n%s\n\nReview it at %s\n",
		alert.Filename, vendor, alert.Total, alert.Confidence, alert.MaxScore, "- "+strings.Join(alert.Reasons, "\n- "), link)
	htmlBody := buildFlaggedHTML(alert, vendor, link)
	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody)},
					Text: &types.Content{Data: aws.String(textBody)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildFlaggedHTML(alert port.FlaggedInvoiceAlert, vendor, link string) string {
	var reasons strings.Builder
	for _, r := range alert.Reasons {
		reasons.WriteString("<li>")
		reasons.WriteString(html.EscapeString(r))
		reasons.WriteString("</li>")
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Invoice flagged for review</h2>
  <p><strong>%s</strong> from %s, total %s.</p>
  <p>Confidence %.2f, highest severity %.2f.</p>
  <ul>%s</ul>
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Review Invoice</a>
  </p>
</body>
</html>`, html.EscapeString(alert.Filename), html.EscapeString(vendor), html.EscapeString(alert.Total),
		alert.Confidence, alert.MaxScore, reasons.String(), link)
}
