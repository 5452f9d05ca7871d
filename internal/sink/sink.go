// Package sink posts inspection change summaries to chat or HTTP webhooks.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/go-resty/resty/v2"
)

// Change is one entry that moved between inspections.
type Change struct {
	Key        string `json:"key"`
	Durability string `json:"durability,omitempty"`
	Status     string `json:"status"`
	Value      any    `json:"value"`
}

// ChangePayload is the data passed to sinks.
type ChangePayload struct {
	Network      string   `json:"network"`
	ContractID   string   `json:"contractId"`
	LatestLedger uint32   `json:"latestLedger"`
	Changes      []Change `json:"changes"`
}

type Sender interface {
	Send(ctx context.Context, payload ChangePayload) error
}

type httpSender struct {
	url    string
	method string
	render *template.Template
	client *resty.Client
}

// NewWebhookSender builds a generic HTTP sink.
func NewWebhookSender(url, method, tmpl string, headers map[string]string) (Sender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url required")
	}
	if method == "" {
		method = http.MethodPost
	}
	t, err := parseTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	client := resty.New().
		SetTimeout(8 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeaders(headers)
	return &httpSender{
		url:    url,
		method: strings.ToUpper(method),
		render: t,
		client: client,
	}, nil
}

// NewSlackSender builds a Slack-compatible webhook sink.
func NewSlackSender(url, tmpl string) (Sender, error) {
	return NewWebhookSender(url, http.MethodPost, tmpl, nil)
}

// NewTeamsSender builds a Teams-compatible webhook sink.
func NewTeamsSender(url, tmpl string) (Sender, error) {
	// Teams accepts simple {text: "..."} payloads.
	return NewWebhookSender(url, http.MethodPost, tmpl, nil)
}

// New picks a sender by type: slack, teams or webhook.
func New(kind, url, method, tmpl string) (Sender, error) {
	switch strings.ToLower(kind) {
	case "slack":
		return NewSlackSender(url, tmpl)
	case "teams":
		return NewTeamsSender(url, tmpl)
	case "webhook":
		return NewWebhookSender(url, method, tmpl, nil)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", kind)
	}
}

func (s *httpSender) Send(ctx context.Context, payload ChangePayload) error {
	text, err := executeTemplate(s.render, payload)
	if err != nil {
		return err
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"text": text, "changes": payload}).
		Execute(s.method, s.url)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("sink http status %d", resp.StatusCode())
	}
	return nil
}

const defaultTemplate = "state-lens {{.Network}} {{short_addr .ContractID}}: {{len .Changes}} change(s) at ledger {{.LatestLedger}}"

func parseTemplate(tmpl string) (*template.Template, error) {
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	funcs := template.FuncMap{
		"pretty_json": func(v any) string {
			out, _ := json.MarshalIndent(v, "", "  ")
			return string(out)
		},
		"short_addr": func(addr string) string {
			if len(addr) <= 10 {
				return addr
			}
			return addr[:6] + "..." + addr[len(addr)-4:]
		},
	}
	return template.New("msg").Funcs(funcs).Parse(tmpl)
}

func executeTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}
