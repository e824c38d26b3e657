package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Service handles email composition and sending
type Service struct {
	sender        Sender
	fromAddress   string
	fromName      string
	templateCache *template.Template
}

// NewService creates a new email service using the embedded templates.
func NewService(sender Sender, fromAddress, fromName string) (*Service, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Service{
		sender:        sender,
		fromAddress:   fromAddress,
		fromName:      fromName,
		templateCache: tmpl,
	}, nil
}

// SendReceipt emails a VAT receipt with its PDF attached.
func (s *Service) SendReceipt(ctx context.Context, data ReceiptEmail) error {
	if data.To == "" {
		return ErrNoRecipient
	}

	htmlBody, textBody, err := s.renderTemplate(data.TemplateName(), data)
	if err != nil {
		return err
	}

	msg := &Email{
		To:       []string{data.To},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	if len(data.PDF) > 0 {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    data.AttachmentName(),
			ContentType: "application/pdf",
			Content:     data.PDF,
		})
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send receipt email: %w", err)
	}

	return nil
}

// Helper method to render a template
func (s *Service) renderTemplate(templateName string, data interface{}) (string, string, error) {
	var htmlBuf bytes.Buffer
	if err := s.templateCache.ExecuteTemplate(&htmlBuf, templateName, data); err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrTemplateRender, templateName, err)
	}

	htmlBody := htmlBuf.String()

	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText creates a simple plain text version from HTML
func generatePlainText(html string) string {
	text := html

	for _, tag := range []string{"<br>", "<br/>", "<br />", "</div>", "</tr>"} {
		text = strings.ReplaceAll(text, tag, "\n")
	}
	for _, tag := range []string{"</p>", "</h1>", "</h2>", "</h3>", "</table>"} {
		text = strings.ReplaceAll(text, tag, "\n\n")
	}
	text = strings.ReplaceAll(text, "</td>", " ")
	text = strings.ReplaceAll(text, "</th>", " ")

	for strings.Contains(text, "<") && strings.Contains(text, ">") {
		start := strings.Index(text, "<")
		end := strings.Index(text, ">")
		if start >= 0 && end > start {
			text = text[:start] + text[end+1:]
		} else {
			break
		}
	}

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#43;", "+")
	text = strings.ReplaceAll(text, "&#39;", "'")

	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
