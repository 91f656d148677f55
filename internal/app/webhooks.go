package app

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

var allowedWebhookEvents = map[string]struct{}{
	"ticket.created":     {},
	"ticket.resolved":    {},
	"approval.decided":   {},
	"invoice.paid":       {},
	"contract.sent":      {},
	"contract.completed": {},
	"issue.moved":        {},
	"social.published":   {},
}

func (s *Service) CreateWebhook(ctx context.Context, event, url, secret, createdBy string) (store.Webhook, error) {
	if _, ok := allowedWebhookEvents[event]; !ok {
		return store.Webhook{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown webhook event", map[string]any{"event": event})
	}
	if url == "" {
		return store.Webhook{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "url is required", nil)
	}
	hook := store.Webhook{
		ID:        util.NewID("wh"),
		Event:     event,
		URL:       url,
		Secret:    secret,
		Active:    true,
		CreatedBy: createdBy,
	}
	if err := s.store.InsertWebhook(ctx, hook); err != nil {
		return store.Webhook{}, err
	}
	return hook, nil
}

func (s *Service) ListWebhooks(ctx context.Context) ([]store.Webhook, error) {
	return s.store.ListWebhooks(ctx)
}

func (s *Service) DeleteWebhook(ctx context.Context, id string) error {
	return s.store.DeleteWebhook(ctx, id)
}

// dispatchWebhooks delivers the event to every matching hook in the
// background. Delivery failures are logged and never surface to the caller.
func (s *Service) dispatchWebhooks(event string, payload any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		hooks, err := s.store.ListActiveWebhooksByEvent(ctx, event)
		if err != nil {
			log.Printf("webhooks: list for %s: %v", event, err)
			return
		}
		if len(hooks) == 0 {
			return
		}

		body, err := json.Marshal(map[string]any{
			"event":      event,
			"occurredAt": time.Now().UTC().Format(time.RFC3339),
			"data":       payload,
		})
		if err != nil {
			log.Printf("webhooks: marshal %s payload: %v", event, err)
			return
		}

		for _, hook := range hooks {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
			if err != nil {
				log.Printf("webhooks: build request %s: %v", hook.ID, err)
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Meridian-Event", event)
			if hook.Secret != "" {
				req.Header.Set("X-Meridian-Signature", signWebhookBody(hook.Secret, body))
			}

			resp, err := s.webhooks.Do(req)
			if err != nil {
				log.Printf("webhooks: deliver %s to %s: %v", event, hook.URL, err)
				continue
			}
			resp.Body.Close()
			if resp.StatusCode >= 300 {
				log.Printf("webhooks: deliver %s to %s: status %d", event, hook.URL, resp.StatusCode)
			}
		}
	}()
}

func signWebhookBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
