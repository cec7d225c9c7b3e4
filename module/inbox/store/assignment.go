package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"SMSDesk/module/inbox/model"
	"SMSDesk/tools/errs"
)

type AssignmentRepo struct {
	Pool *pgxpool.Pool
}

func NewAssignmentRepo(pool *pgxpool.Pool) *AssignmentRepo {
	return &AssignmentRepo{Pool: pool}
}

// Assign gives userID the number, replacing any previous assignment in
// the same transaction so a user never holds two numbers.
func (r *AssignmentRepo) Assign(ctx context.Context, userID, phone string) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin assign tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM user_phone_numbers WHERE user_id = $1`, userID); err != nil {
		return errors.Wrapf(err, "clear assignment user=%s", userID)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO user_phone_numbers (user_id, phone_number) VALUES ($1, $2)`,
		userID, phone); err != nil {
		return errors.Wrapf(err, "assign %s to user=%s", phone, userID)
	}
	return errors.Wrap(tx.Commit(ctx), "commit assign tx")
}

func (r *AssignmentRepo) Remove(ctx context.Context, userID string) error {
	_, err := r.Pool.Exec(ctx, `DELETE FROM user_phone_numbers WHERE user_id = $1`, userID)
	return errors.Wrapf(err, "remove assignment user=%s", userID)
}

// PhoneOf returns the user's assigned number, or "" when none is assigned.
func (r *AssignmentRepo) PhoneOf(ctx context.Context, userID string) (string, error) {
	var phone string
	err := r.Pool.QueryRow(ctx,
		`SELECT phone_number FROM user_phone_numbers WHERE user_id = $1 LIMIT 1`, userID).
		Scan(&phone)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "get phone user=%s", userID)
	}
	return phone, nil
}

func (r *AssignmentRepo) UserIDByPhone(ctx context.Context, phone string) (string, error) {
	var userID string
	err := r.Pool.QueryRow(ctx,
		`SELECT user_id FROM user_phone_numbers WHERE phone_number = $1 LIMIT 1`, phone).
		Scan(&userID)
	if err == pgx.ErrNoRows {
		return "", errs.ErrNotFound.WithDetail("phone " + phone)
	}
	if err != nil {
		return "", errors.Wrapf(err, "get user by phone %s", phone)
	}
	return userID, nil
}

func (r *AssignmentRepo) ListAll(ctx context.Context) ([]model.PhoneAssignment, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT user_id, phone_number FROM user_phone_numbers ORDER BY phone_number`)
	if err != nil {
		return nil, errors.Wrap(err, "list assignments")
	}
	defer rows.Close()

	var out []model.PhoneAssignment
	for rows.Next() {
		var a model.PhoneAssignment
		if err := rows.Scan(&a.UserID, &a.PhoneNumber); err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
