package recipient

import (
	"context"
	"strconv"
	"time"
)

type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelPush     Channel = "push"
)

type TelegramUser struct {
	ChatID       int64     `json:"chatId"`
	FirstName    string    `json:"firstName"`
	Username     string    `json:"username,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
	Active       bool      `json:"active"`
}

type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type PushSubscription struct {
	Endpoint     string    `json:"endpoint"`
	Keys         PushKeys  `json:"keys"`
	SubscribedAt time.Time `json:"subscribedAt"`
	Active       bool      `json:"active"`
}

// Recipient is a channel-addressable notification target.
type Recipient struct {
	Channel Channel
	Address string
	Keys    *PushKeys
}

func (u TelegramUser) Recipient() Recipient {
	return Recipient{Channel: ChannelTelegram, Address: strconv.FormatInt(u.ChatID, 10)}
}

func (s PushSubscription) Recipient() Recipient {
	keys := s.Keys
	return Recipient{Channel: ChannelPush, Address: s.Endpoint, Keys: &keys}
}

// Repository stores recipients. Records are never deleted, only flagged.
type Repository interface {
	UpsertTelegramUser(ctx context.Context, u *TelegramUser) (created bool, err error)
	SetTelegramActive(ctx context.Context, chatID int64, active bool) (found bool, err error)
	ListTelegramUsers(ctx context.Context, activeOnly bool) ([]TelegramUser, error)
	UpsertPushSubscription(ctx context.Context, s *PushSubscription) (created bool, err error)
	ListPushSubscriptions(ctx context.Context, activeOnly bool) ([]PushSubscription, error)
}
