package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"uptimebot/internal/domain"
)

// Webhook POSTs each event as JSON to a configured URL. This is the
// default transport adapter; chat transports implement Sink the same way.
type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	PrincipalID string  `json:"principal_id"`
	TargetID    string  `json:"target_id"`
	URL         string  `json:"url"`
	Transition  string  `json:"transition"`
	IncidentID  string  `json:"incident_id"`
	At          string  `json:"at"`
	HTTPStatus  int     `json:"http_status,omitempty"`
	LatencyMS   float64 `json:"latency_ms"`
	Kind        string  `json:"kind,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

func (w *Webhook) Send(ctx context.Context, p domain.PrincipalID, ev domain.NotificationEvent) error {
	if w == nil || w.URL == "" {
		return errors.New("webhook disabled")
	}
	body, _ := json.Marshal(webhookPayload{
		PrincipalID: string(p),
		TargetID:    string(ev.TargetID),
		URL:         ev.TargetURL,
		Transition:  string(ev.Transition),
		IncidentID:  string(ev.IncidentID),
		At:          ev.At.Format(time.RFC3339),
		HTTPStatus:  ev.Outcome.StatusCode,
		LatencyMS:   float64(ev.Outcome.Latency.Microseconds()) / 1000.0,
		Kind:        string(ev.Outcome.Kind),
		Reason:      ev.Outcome.Reason,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
