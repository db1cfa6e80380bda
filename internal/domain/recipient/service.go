package recipient

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidChat         = errors.New("invalid telegram chat id")
	ErrInvalidSubscription = errors.New("invalid push subscription")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RegisterTelegram adds an active telegram recipient. A chat that is already
// known is reactivated instead of duplicated.
func (s *Service) RegisterTelegram(ctx context.Context, chatID int64, firstName, username string) (bool, error) {
	if chatID == 0 {
		return false, ErrInvalidChat
	}
	return s.repo.UpsertTelegramUser(ctx, &TelegramUser{
		ChatID:       chatID,
		FirstName:    strings.TrimSpace(firstName),
		Username:     strings.TrimSpace(username),
		RegisteredAt: s.now().UTC(),
		Active:       true,
	})
}

// DeregisterTelegram marks a chat inactive. Unknown chats are not an error.
func (s *Service) DeregisterTelegram(ctx context.Context, chatID int64) (bool, error) {
	if chatID == 0 {
		return false, ErrInvalidChat
	}
	return s.repo.SetTelegramActive(ctx, chatID, false)
}

func (s *Service) Subscribe(ctx context.Context, sub PushSubscription) (bool, error) {
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	u, err := url.Parse(sub.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false, ErrInvalidSubscription
	}
	if sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return false, ErrInvalidSubscription
	}
	sub.SubscribedAt = s.now().UTC()
	sub.Active = true
	return s.repo.UpsertPushSubscription(ctx, &sub)
}

// ActiveRecipients lists every active target across channels.
func (s *Service) ActiveRecipients(ctx context.Context) ([]Recipient, error) {
	users, err := s.repo.ListTelegramUsers(ctx, true)
	if err != nil {
		return nil, err
	}
	subs, err := s.repo.ListPushSubscriptions(ctx, true)
	if err != nil {
		return nil, err
	}
	res := make([]Recipient, 0, len(users)+len(subs))
	for _, u := range users {
		res = append(res, u.Recipient())
	}
	for _, sub := range subs {
		res = append(res, sub.Recipient())
	}
	return res, nil
}
