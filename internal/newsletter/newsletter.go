package newsletter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/NewsRadar/internal/ai"
	"github.com/LJTian/NewsRadar/internal/storage"
)

const (
	sendgridMailSendURL  = "https://api.sendgrid.com/v3/mail/send"
	sendClientTimeout    = 20 * time.Second
	sendMaxResponseBytes = 64 * 1024
)

// Newsletter 把新入库的文章汇成 HTML 摘要邮件，经 SendGrid 发送。
// 未配置 API key 时 Available 为 false，调用方跳过发送
type Newsletter struct {
	apiKey string
	from   string
	to     string
	client *http.Client
}

func New(apiKey, from, to string) *Newsletter {
	return &Newsletter{
		apiKey: apiKey,
		from:   from,
		to:     to,
		client: &http.Client{Timeout: sendClientTimeout},
	}
}

func (n *Newsletter) Available() bool {
	return n.apiKey != "" && n.to != ""
}

// Send 发送一期摘要。articles 为空时直接跳过
func (n *Newsletter) Send(articles []storage.Article, subject string) error {
	if !n.Available() {
		return fmt.Errorf("newsletter unavailable: SENDGRID_API_KEY or recipient not configured")
	}
	if len(articles) == 0 {
		return fmt.Errorf("no articles to send")
	}

	dateStr := time.Now().Format("January 2, 2006")
	if subject == "" {
		subject = fmt.Sprintf("NewsRadar Digest - %d New Articles (%s)", len(articles), dateStr)
	}

	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": n.to}}},
		},
		"from":    map[string]string{"email": n.from, "name": "NewsRadar"},
		"subject": subject,
		"content": []map[string]string{
			{"type": "text/html", "value": renderHTML(articles, dateStr)},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, sendgridMailSendURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, sendMaxResponseBytes))
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	log.Printf("newsletter sent to %s (%d articles)", n.to, len(articles))
	return nil
}

// SendTest 发一封验证配置的测试邮件
func (n *Newsletter) SendTest() error {
	return n.Send([]storage.Article{{
		Title:      "Test Article - NewsRadar is Working!",
		URL:        "https://example.com",
		SourceName: "Test Source",
		TLDR:       "This is a test email to verify the newsletter configuration. If you can read this, everything works.",
	}}, "NewsRadar - Test Email")
}

// renderHTML 生成邮件正文，卡片式排版，行内样式保证邮件客户端兼容
func renderHTML(articles []storage.Article, dateStr string) string {
	var cards strings.Builder
	for i, a := range articles {
		tldr := a.TLDR
		if tldr == "" {
			tldr = a.Summary
		}

		stocksHTML := ""
		if len(a.ImpactedStocks) > 0 {
			var impacted []ai.ImpactedStock
			if err := json.Unmarshal(a.ImpactedStocks, &impacted); err == nil && len(impacted) > 0 {
				var badges, reasons strings.Builder
				for _, s := range impacted {
					fmt.Fprintf(&badges, `<span style="display:inline-block;background:#4b5563;color:#fff;padding:2px 8px;border-radius:12px;font-size:11px;margin:0 4px 4px 0;">%s</span>`, html.EscapeString(s.Ticker))
					fmt.Fprintf(&reasons, `<li><strong>%s</strong>: %s</li>`, html.EscapeString(s.Ticker), html.EscapeString(s.Reason))
				}
				stocksHTML = fmt.Sprintf(`<div style="margin-top:8px;"><span style="color:#6b7280;font-size:12px;margin-right:8px;">Impacted:</span>%s</div><ul style="margin:8px 0 0 0;padding-left:20px;font-size:12px;color:#6b7280;">%s</ul>`,
					badges.String(), reasons.String())
			}
		}

		fmt.Fprintf(&cards, `
<div style="background:#fff;border-radius:12px;padding:20px;margin-bottom:16px;border:1px solid #e5e7eb;">
  <div style="margin-bottom:8px;">
    <span style="background:#f3f4f6;color:#4b5563;padding:4px 12px;border-radius:20px;font-size:12px;">%s</span>
    <span style="float:right;color:#9ca3af;font-size:12px;">#%d</span>
  </div>
  <h3 style="margin:0 0 8px 0;font-size:16px;"><a href="%s" style="color:#1f2937;text-decoration:none;" target="_blank">%s</a></h3>
  <p style="margin:0;color:#4b5563;font-size:14px;line-height:1.5;">%s</p>
  %s
</div>`,
			html.EscapeString(a.SourceName), i+1,
			html.EscapeString(a.URL), html.EscapeString(a.Title),
			html.EscapeString(tldr), stocksHTML)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>NewsRadar Digest - %s</title></head>
<body style="margin:0;padding:0;font-family:-apple-system,Segoe UI,Roboto,Arial,sans-serif;background:#f9fafb;">
  <div style="max-width:600px;margin:0 auto;padding:20px;">
    <div style="text-align:center;padding:30px 0;">
      <h1 style="margin:0;font-size:28px;color:#1f2937;">NewsRadar Digest</h1>
      <p style="margin:8px 0 0 0;color:#6b7280;font-size:14px;">%s &middot; %d new articles</p>
    </div>
    %s
    <div style="text-align:center;padding:30px 0;border-top:1px solid #e5e7eb;color:#9ca3af;font-size:11px;">
      NewsRadar
    </div>
  </div>
</body>
</html>`, dateStr, dateStr, len(articles), cards.String())
}
