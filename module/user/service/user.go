package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	midsec "SMSDesk/middleware/security"
	"SMSDesk/module/user/model"
	"SMSDesk/tools/errs"
)

type UserService struct {
	Pool *pgxpool.Pool
}

func NewUserService(pool *pgxpool.Pool) *UserService {
	return &UserService{Pool: pool}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

func (s *UserService) byUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.Pool.QueryRow(ctx,
		`SELECT id, username, name, role, password, salt FROM users WHERE username = $1`,
		username).
		Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.Password, &u.Salt)
	if err == pgx.ErrNoRows {
		return nil, errs.ErrNotFound.WithDetail("user " + username)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get user %s", username)
	}
	return &u, nil
}

// Login checks the credentials and returns a signed session token plus
// the user record. Wrong username and wrong password are not
// distinguished in the error.
func (s *UserService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	if username == "" || password == "" {
		return "", nil, errs.ErrArgs.WithDetail("username and password are required")
	}
	u, err := s.byUsername(ctx, username)
	if err != nil {
		if errs.ErrNotFound.Is(err) {
			return "", nil, errs.ErrToken.WithDetail("bad credentials")
		}
		return "", nil, err
	}
	if hashPassword(password, u.Salt) != u.Password {
		return "", nil, errs.ErrToken.WithDetail("bad credentials")
	}
	token, err := midsec.GenerateToken(u.ID, u.Username, u.Role)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign token")
	}
	return token, u, nil
}
