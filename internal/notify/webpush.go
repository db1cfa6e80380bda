package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"venue-vote/internal/domain/recipient"
)

type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

type PushSender struct {
	vapid  VAPIDConfig
	client *http.Client
	ttl    int
}

func NewPushSender(cfg VAPIDConfig, timeout time.Duration) (*PushSender, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, errors.New("vapid keys are required")
	}
	return &PushSender{
		vapid:  cfg,
		client: &http.Client{Timeout: timeout},
		ttl:    24 * 60 * 60,
	}, nil
}

type pushPayload struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Data  pushPayloadData `json:"data"`
}

type pushPayloadData struct {
	URL  string `json:"url"`
	Kind Kind   `json:"kind"`
}

func RenderPush(msg Message) ([]byte, error) {
	url := msg.URL
	if url == "" {
		url = "/"
	}
	return json.Marshal(pushPayload{
		Title: msg.Title,
		Body:  msg.Body,
		Data:  pushPayloadData{URL: url, Kind: msg.Kind},
	})
}

func (s *PushSender) Send(ctx context.Context, to recipient.Recipient, msg Message) error {
	if to.Keys == nil {
		return errors.New("push recipient without keys")
	}
	payload, err := RenderPush(msg)
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: to.Address,
		Keys:     webpush.Keys{P256dh: to.Keys.P256dh, Auth: to.Keys.Auth},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.vapid.Subject,
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		TTL:             s.ttl,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push service responded %d", resp.StatusCode)
	}
	return nil
}

func (s *PushSender) PublicKey() string {
	return s.vapid.PublicKey
}
