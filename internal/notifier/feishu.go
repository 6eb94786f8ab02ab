package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ETFRotation/internal/httpclient"
)

// FeishuNotifier posts text messages to a Feishu custom bot webhook.
type FeishuNotifier struct {
	Webhook string
	Client  *http.Client
}

// NewFeishuNotifier creates a notifier with optional proxy support.
func NewFeishuNotifier(webhook, proxyURL string) *FeishuNotifier {
	return &FeishuNotifier{
		Webhook: webhook,
		Client:  httpclient.New(proxyURL, 15*time.Second),
	}
}

func (f *FeishuNotifier) Name() string { return "feishu" }

type feishuText struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

type feishuResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Send posts the report text. The webhook cannot carry images, so the chart is dropped.
func (f *FeishuNotifier) Send(ctx context.Context, r Report) error {
	payload := feishuText{MsgType: "text"}
	payload.Content.Text = r.Text
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("feishu webhook error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	var fr feishuResponse
	if len(respBody) > 0 && json.Unmarshal(respBody, &fr) == nil && fr.Code != 0 {
		return fmt.Errorf("feishu webhook error: code %d: %s", fr.Code, fr.Msg)
	}
	return nil
}
