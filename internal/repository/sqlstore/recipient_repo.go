package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"venue-vote/internal/domain/recipient"
)

type telegramRow struct {
	ChatID       int64  `db:"chat_id"`
	FirstName    string `db:"first_name"`
	Username     string `db:"username"`
	RegisteredAt int64  `db:"registered_at"`
	Active       bool   `db:"active"`
}

type pushRow struct {
	Endpoint     string `db:"endpoint"`
	P256dh       string `db:"p256dh"`
	Auth         string `db:"auth"`
	SubscribedAt int64  `db:"subscribed_at"`
	Active       bool   `db:"active"`
}

type RecipientRepo struct {
	db *sqlx.DB
}

func NewRecipientRepo(db *sqlx.DB) *RecipientRepo {
	return &RecipientRepo{db: db}
}

// UpsertTelegramUser inserts a new chat or reactivates a known one.
func (r *RecipientRepo) UpsertTelegramUser(ctx context.Context, u *recipient.TelegramUser) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, `
        INSERT INTO telegram_users (chat_id, first_name, username, registered_at, active)
        VALUES (:chat_id, :first_name, :username, :registered_at, :active)
        ON CONFLICT (chat_id) DO NOTHING
    `, telegramRow{
		ChatID:       u.ChatID,
		FirstName:    u.FirstName,
		Username:     u.Username,
		RegisteredAt: toMillis(u.RegisteredAt),
		Active:       true,
	})
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n > 0 {
		return true, nil
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`UPDATE telegram_users SET active = ? WHERE chat_id = ?`), true, u.ChatID)
	return false, err
}

func (r *RecipientRepo) SetTelegramActive(ctx context.Context, chatID int64, active bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE telegram_users SET active = ? WHERE chat_id = ?`), active, chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RecipientRepo) ListTelegramUsers(ctx context.Context, activeOnly bool) ([]recipient.TelegramUser, error) {
	query := `SELECT chat_id, first_name, username, registered_at, active FROM telegram_users`
	args := []any{}
	if activeOnly {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY registered_at, chat_id`

	var rows []telegramRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	res := make([]recipient.TelegramUser, 0, len(rows))
	for _, row := range rows {
		res = append(res, recipient.TelegramUser{
			ChatID:       row.ChatID,
			FirstName:    row.FirstName,
			Username:     row.Username,
			RegisteredAt: fromMillis(row.RegisteredAt),
			Active:       row.Active,
		})
	}
	return res, nil
}

// UpsertPushSubscription inserts a new endpoint or refreshes the keys of a
// known one and reactivates it.
func (r *RecipientRepo) UpsertPushSubscription(ctx context.Context, s *recipient.PushSubscription) (bool, error) {
	row := pushRow{
		Endpoint:     s.Endpoint,
		P256dh:       s.Keys.P256dh,
		Auth:         s.Keys.Auth,
		SubscribedAt: toMillis(s.SubscribedAt),
		Active:       true,
	}
	res, err := r.db.NamedExecContext(ctx, `
        INSERT INTO push_subscriptions (endpoint, p256dh, auth, subscribed_at, active)
        VALUES (:endpoint, :p256dh, :auth, :subscribed_at, :active)
        ON CONFLICT (endpoint) DO NOTHING
    `, row)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n > 0 {
		return true, nil
	}

	_, err = r.db.NamedExecContext(ctx, `
        UPDATE push_subscriptions SET p256dh = :p256dh, auth = :auth, active = :active
        WHERE endpoint = :endpoint
    `, row)
	return false, err
}

func (r *RecipientRepo) ListPushSubscriptions(ctx context.Context, activeOnly bool) ([]recipient.PushSubscription, error) {
	query := `SELECT endpoint, p256dh, auth, subscribed_at, active FROM push_subscriptions`
	args := []any{}
	if activeOnly {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY subscribed_at, endpoint`

	var rows []pushRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	res := make([]recipient.PushSubscription, 0, len(rows))
	for _, row := range rows {
		res = append(res, recipient.PushSubscription{
			Endpoint:     row.Endpoint,
			Keys:         recipient.PushKeys{P256dh: row.P256dh, Auth: row.Auth},
			SubscribedAt: fromMillis(row.SubscribedAt),
			Active:       row.Active,
		})
	}
	return res, nil
}
