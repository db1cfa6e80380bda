package memory

import (
	"context"
	"sync"

	"venue-vote/internal/domain/recipient"
)

type RecipientRepo struct {
	mu    sync.Mutex
	users []recipient.TelegramUser
	subs  []recipient.PushSubscription
}

func NewRecipientRepo() *RecipientRepo {
	return &RecipientRepo{}
}

func (r *RecipientRepo) UpsertTelegramUser(ctx context.Context, u *recipient.TelegramUser) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ChatID == u.ChatID {
			r.users[i].Active = true
			return false, nil
		}
	}
	r.users = append(r.users, *u)
	return true, nil
}

func (r *RecipientRepo) SetTelegramActive(ctx context.Context, chatID int64, active bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ChatID == chatID {
			r.users[i].Active = active
			return true, nil
		}
	}
	return false, nil
}

func (r *RecipientRepo) ListTelegramUsers(ctx context.Context, activeOnly bool) ([]recipient.TelegramUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []recipient.TelegramUser{}
	for _, u := range r.users {
		if activeOnly && !u.Active {
			continue
		}
		res = append(res, u)
	}
	return res, nil
}

func (r *RecipientRepo) UpsertPushSubscription(ctx context.Context, s *recipient.PushSubscription) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.subs {
		if r.subs[i].Endpoint == s.Endpoint {
			r.subs[i].Keys = s.Keys
			r.subs[i].Active = true
			return false, nil
		}
	}
	r.subs = append(r.subs, *s)
	return true, nil
}

func (r *RecipientRepo) ListPushSubscriptions(ctx context.Context, activeOnly bool) ([]recipient.PushSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []recipient.PushSubscription{}
	for _, s := range r.subs {
		if activeOnly && !s.Active {
			continue
		}
		res = append(res, s)
	}
	return res, nil
}
