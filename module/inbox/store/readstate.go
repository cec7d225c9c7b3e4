package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"SMSDesk/module/inbox/model"
	"SMSDesk/tools/errs"
)

// ReadStateRepo owns the conversations table. All writes are upserts on
// the (user_id, phone_number) key so a retry lands on the same row.
type ReadStateRepo struct {
	Pool *pgxpool.Pool
}

func NewReadStateRepo(pool *pgxpool.Pool) *ReadStateRepo {
	return &ReadStateRepo{Pool: pool}
}

const upsertReadStateSQL = `
INSERT INTO conversations (user_id, phone_number, last_read_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (user_id, phone_number)
DO UPDATE SET last_read_at = EXCLUDED.last_read_at, updated_at = EXCLUDED.updated_at
RETURNING user_id, phone_number, last_read_at, updated_at`

// Upsert records at as the moment the conversation was last read and
// returns the persisted row.
func (r *ReadStateRepo) Upsert(ctx context.Context, userID, phone string, at time.Time) (*model.ConversationReadState, error) {
	var out model.ConversationReadState
	err := r.Pool.QueryRow(ctx, upsertReadStateSQL, userID, phone, at).
		Scan(&out.UserID, &out.PhoneNumber, &out.LastReadAt, &out.UpdatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "upsert read state user=%s phone=%s", userID, phone)
	}
	return &out, nil
}

// ListByUser returns every read-state row the user owns.
func (r *ReadStateRepo) ListByUser(ctx context.Context, userID string) ([]model.ConversationReadState, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT user_id, phone_number, last_read_at, updated_at FROM conversations WHERE user_id = $1`,
		userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list read states user=%s", userID)
	}
	defer rows.Close()

	var out []model.ConversationReadState
	for rows.Next() {
		var rs model.ConversationReadState
		if err := rows.Scan(&rs.UserID, &rs.PhoneNumber, &rs.LastReadAt, &rs.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan read state")
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (r *ReadStateRepo) Get(ctx context.Context, userID, phone string) (*model.ConversationReadState, error) {
	var rs model.ConversationReadState
	err := r.Pool.QueryRow(ctx,
		`SELECT user_id, phone_number, last_read_at, updated_at FROM conversations WHERE user_id = $1 AND phone_number = $2`,
		userID, phone).
		Scan(&rs.UserID, &rs.PhoneNumber, &rs.LastReadAt, &rs.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errs.ErrNotFound.WithDetail("read state " + userID + "/" + phone)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get read state user=%s phone=%s", userID, phone)
	}
	return &rs, nil
}
