// Package notify formats change-sets and delivers them to a webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"untiscal/internal/model"
)

// Headline is the fixed first line of every change notification.
const Headline = "Timetable changes detected"

// detailLimit is the change count at which the message switches from one
// block per change to the first few plus a remainder count.
const detailLimit = 5

const detailedWhenTruncated = 3

// Webhook delivers formatted change notifications as JSON {"text": ...}.
type Webhook struct {
	client *http.Client
	url    string
}

// NewWebhook creates a webhook notifier for the given endpoint.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		url: url,
	}
}

// Notify formats the change-set and posts it. Delivery failure is returned
// to the caller, which logs it as a warning; it never fails the sync run.
func (w *Webhook) Notify(ctx context.Context, changes model.ChangeSet) error {
	if w.url == "" {
		return errors.New("webhook url is empty")
	}
	if len(changes) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"text": FormatChangeSet(changes),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook delivery: %s", resp.Status)
	}
	return nil
}

// FormatChangeSet renders the human-readable notification body: the fixed
// headline, then per-change detail blocks. Five or more changes collapse to
// the first three plus a remainder count to keep the message readable.
func FormatChangeSet(changes model.ChangeSet) string {
	var b strings.Builder
	b.WriteString(Headline)

	detailed := changes
	if len(changes) >= detailLimit {
		detailed = changes[:detailedWhenTruncated]
	}

	for _, c := range detailed {
		b.WriteString("\n")
		b.WriteString(formatChange(c))
	}

	if rest := len(changes) - len(detailed); rest > 0 {
		fmt.Fprintf(&b, "\n… and %d more changes", rest)
	}

	return b.String()
}

// formatChange renders one change as
//
//	{summary} - {date} {time} ({location})
//	  {status_old} → {status_new}, {type_old} → {type_new}
func formatChange(c model.ChangeRecord) string {
	return fmt.Sprintf("%s - %s %s (%s)\n  %s → %s, %s → %s",
		c.New.Summary,
		c.New.Start.Format("2006-01-02"),
		c.New.Start.Format("15:04"),
		c.New.Location,
		c.Old.Status, c.New.Status,
		c.Old.Type, c.New.Type,
	)
}
