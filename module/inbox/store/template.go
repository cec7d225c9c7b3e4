package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"SMSDesk/module/inbox/model"
	"SMSDesk/tools/errs"
)

type TemplateRepo struct {
	Pool *pgxpool.Pool
}

func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{Pool: pool}
}

func (r *TemplateRepo) ListByUser(ctx context.Context, userID string) ([]model.MessageTemplate, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, user_id, type, name, content, created_at, updated_at
		 FROM message_templates WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list templates user=%s", userID)
	}
	defer rows.Close()

	var out []model.MessageTemplate
	for rows.Next() {
		var t model.MessageTemplate
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Name, &t.Content, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan template")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) Create(ctx context.Context, userID, typ, name, content string) (*model.MessageTemplate, error) {
	now := time.Now().UTC()
	t := model.MessageTemplate{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Name:      name,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO message_templates (id, user_id, type, name, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.Type, t.Name, t.Content, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert template")
	}
	return &t, nil
}

// Update only touches rows owned by userID; updating someone else's
// template reports not-found rather than permission details.
func (r *TemplateRepo) Update(ctx context.Context, userID, id, typ, name, content string) (*model.MessageTemplate, error) {
	var t model.MessageTemplate
	err := r.Pool.QueryRow(ctx,
		`UPDATE message_templates SET type = $3, name = $4, content = $5, updated_at = $6
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, type, name, content, created_at, updated_at`,
		id, userID, typ, name, content, time.Now().UTC()).
		Scan(&t.ID, &t.UserID, &t.Type, &t.Name, &t.Content, &t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errs.ErrNotFound.WithDetail("template " + id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "update template %s", id)
	}
	return &t, nil
}

func (r *TemplateRepo) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.Pool.Exec(ctx,
		`DELETE FROM message_templates WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.Wrapf(err, "delete template %s", id)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound.WithDetail("template " + id)
	}
	return nil
}
