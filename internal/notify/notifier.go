// Package notify delivers employee-facing payslip notifications to the
// HR platform's notification webhook. Delivery is best-effort and fully
// decoupled from the state machine: a failed notification never rolls back
// a publish or revoke that already committed.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nominahq/payslip-service/internal/db"
)

type Notifier interface {
	Deliver(ctx context.Context, n Notification) error
}

type Notification struct {
	Event      string `json:"event"`
	EmployeeID string `json:"employee_id"`
	ItemID     string `json:"item_id"`
}

// WebhookNotifier posts signed notifications and records each attempt in
// notification_log for support diagnostics.
type WebhookNotifier struct {
	url        string
	secret     string
	pool       db.Pool
	httpClient *http.Client
}

func NewWebhookNotifier(url, secret string, pool db.Pool) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		pool:       pool,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Deliver(ctx context.Context, notif Notification) error {
	payload, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notify-Event", notif.Event)
	req.Header.Set("X-Notify-Signature", sign(payload, n.secret))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.record(ctx, notif, 0, err)
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	n.record(ctx, notif, resp.StatusCode, nil)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification rejected (%d)", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) record(ctx context.Context, notif Notification, status int, deliveryErr error) {
	var deliveredAt *time.Time
	if deliveryErr == nil && status < 400 {
		now := time.Now()
		deliveredAt = &now
	}

	_, err := n.pool.Exec(ctx,
		`INSERT INTO notification_log (event, employee_id, item_id, response_status, delivered_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		notif.Event, notif.EmployeeID, notif.ItemID, status, deliveredAt,
	)
	if err != nil {
		slog.Error("failed to record notification attempt", "error", err)
	}
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
