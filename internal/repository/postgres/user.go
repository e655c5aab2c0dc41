package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/pkg/database"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

const userColumns = `id::text, username, email, full_name, avatar, cover_image,
		watch_history::text[], password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	const query = `
		INSERT INTO users (id, username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "CreateUser", query)
	defer func() { end(err) }()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Username,
		u.Email,
		u.FullName,
		u.Avatar,
		u.CoverImage,
		u.PasswordHash,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateUser(err, u.Username, u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	u.WatchHistory = []string{}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (_ *domain.User, err error) {
	if !parseID(id) {
		return nil, apperrors.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "GetUserByID", query)
	defer func() { end(err) }()

	return r.scanUser(ctx, query, id)
}

// GetByUsernameOrEmail retrieves the user whose username or email matches.
func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (_ *domain.User, err error) {
	if username == "" && email == "" {
		return nil, apperrors.ErrNotFound
	}

	// Empty arguments compare against NULL and match nothing.
	query := `SELECT ` + userColumns + ` FROM users
		WHERE username = NULLIF($1, '') OR email = NULLIF($2, '')
		LIMIT 1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "GetUserByUsernameOrEmail", query)
	defer func() { end(err) }()

	return r.scanUser(ctx, query, username, email)
}

// Update sets the non-nil fields of upd and returns the updated row.
func (r *UserRepository) Update(ctx context.Context, id string, upd domain.UserUpdate) (_ *domain.User, err error) {
	if !parseID(id) {
		return nil, apperrors.NotFound("user", id)
	}

	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("full_name", upd.FullName)
	add("email", upd.Email)
	add("avatar", upd.Avatar)
	add("cover_image", upd.CoverImage)
	add("password_hash", upd.PasswordHash)
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "UpdateUser", query)
	defer func() { end(err) }()

	u, err := r.scanUser(ctx, query, args...)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return nil, apperrors.NotFound("user", id)
	case isUniqueViolation(err):
		email := ""
		if upd.Email != nil {
			email = *upd.Email
		}
		return nil, apperrors.AlreadyExists("user", "email", email)
	}
	return u, err
}

// SetRefreshToken overwrites the stored refresh token.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) (err error) {
	if !parseID(id) {
		return apperrors.NotFound("user", id)
	}

	const query = `UPDATE users SET refresh_token = $1 WHERE id = $2`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "SetRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, token, id)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// SwapRefreshToken sets next only where the stored token equals expected.
// A single UPDATE ... WHERE makes the compare and the write one step.
func (r *UserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (_ bool, err error) {
	if !parseID(id) || expected == "" {
		return false, nil
	}

	const query = `UPDATE users SET refresh_token = $1 WHERE id = $2 AND refresh_token = $3`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "SwapRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, next, id, expected)
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// UnsetRefreshToken clears the stored refresh token.
func (r *UserRepository) UnsetRefreshToken(ctx context.Context, id string) (err error) {
	if !parseID(id) {
		return nil
	}

	const query = `UPDATE users SET refresh_token = NULL WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "UnsetRefreshToken", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("unset refresh token: %w", err)
	}
	return nil
}

// AppendWatchHistory adds videoID to the end of the user's watch history.
func (r *UserRepository) AppendWatchHistory(ctx context.Context, userID, videoID string) (err error) {
	if !parseID(userID) {
		return apperrors.NotFound("user", userID)
	}
	if !parseID(videoID) {
		return apperrors.InvalidInput("invalid video id")
	}

	const query = `UPDATE users SET watch_history = array_append(watch_history, $1::uuid) WHERE id = $2`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "AppendWatchHistory", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, videoID, userID)
	if err != nil {
		return fmt.Errorf("append watch history: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}
	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.Avatar,
		&u.CoverImage,
		&u.WatchHistory,
		&u.PasswordHash,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if u.WatchHistory == nil {
		u.WatchHistory = []string{}
	}
	return &u, nil
}

// duplicateUser names the field whose unique constraint rejected the write.
func duplicateUser(err error, username, email string) error {
	if strings.Contains(violatedConstraint(err), "email") {
		return apperrors.AlreadyExists("user", "email", email)
	}
	return apperrors.AlreadyExists("user", "username", username)
}
