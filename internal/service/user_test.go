package service

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/media"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

func registerInput(avatar *multipart.FileHeader) RegisterInput {
	return RegisterInput{
		Username: "  Alice ",
		Email:    "Alice@X.com",
		FullName: " Alice A ",
		Password: "pw123",
		Avatar:   avatar,
	}
}

// --- Register ---

func TestRegister_NormalizesAndSanitizes(t *testing.T) {
	f := newFixture(t)
	avatar := &multipart.FileHeader{Filename: "a.png"}
	f.uploader.On("Upload", mock.Anything, media.FolderAvatars, avatar).Return("https://media.test/a.png", nil)

	u, err := f.users.Register(context.Background(), registerInput(avatar))
	require.NoError(t, err)

	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.Equal(t, "Alice A", u.FullName)
	assert.Equal(t, "https://media.test/a.png", u.Avatar)
	assert.Empty(t, u.CoverImage)
	assert.Empty(t, u.PasswordHash)
	assert.Empty(t, u.RefreshToken)
	assert.Equal(t, []string{}, u.WatchHistory)

	stored, err := f.store.Users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, testHasher().Verify("pw123", stored.PasswordHash))
	assert.NotEqual(t, "pw123", stored.PasswordHash)

	f.events.AssertCalled(t, "PublishUserRegistered", mock.Anything, mock.Anything)
	f.uploader.AssertExpectations(t)
}

func TestRegister_MissingFields(t *testing.T) {
	f := newFixture(t)

	in := registerInput(&multipart.FileHeader{Filename: "a.png"})
	in.Email = "   "
	in.Password = ""

	_, err := f.users.Register(context.Background(), in)
	appErr := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "all fields are required", appErr.Message)
	require.Len(t, appErr.Errors, 2)
	assert.Equal(t, "email", appErr.Errors[0].Field)
	assert.Equal(t, "password", appErr.Errors[1].Field)
	f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_DuplicateUsernameOrEmail(t *testing.T) {
	f := newFixture(t)
	avatar := &multipart.FileHeader{Filename: "a.png"}
	f.uploader.On("Upload", mock.Anything, media.FolderAvatars, avatar).Return("https://media.test/a.png", nil)

	_, err := f.users.Register(context.Background(), registerInput(avatar))
	require.NoError(t, err)

	sameUsername := registerInput(avatar)
	sameUsername.Email = "other@x.com"
	sameEmail := registerInput(avatar)
	sameEmail.Username = "other"

	for _, in := range []RegisterInput{sameUsername, sameEmail, sameUsername} {
		_, err := f.users.Register(context.Background(), in)
		requireStatus(t, err, http.StatusConflict)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	}
}

func TestRegister_AvatarRequired(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Register(context.Background(), registerInput(nil))
	appErr := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "avatar file is required", appErr.Message)
}

func TestRegister_AvatarUploadFails(t *testing.T) {
	f := newFixture(t)
	avatar := &multipart.FileHeader{Filename: "a.png"}
	f.uploader.On("Upload", mock.Anything, media.FolderAvatars, avatar).Return("", errors.New("host down"))

	_, err := f.users.Register(context.Background(), registerInput(avatar))
	appErr := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "avatar file is required", appErr.Message)

	_, err = f.store.Users.GetByUsernameOrEmail(context.Background(), "alice", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRegister_PasswordTooLongUploadsNothing(t *testing.T) {
	f := newFixture(t)
	in := registerInput(&multipart.FileHeader{Filename: "a.png"})
	in.CoverImage = &multipart.FileHeader{Filename: "c.png"}
	in.Password = strings.Repeat("x", 73)

	_, err := f.users.Register(context.Background(), in)
	appErr := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "password must be at most 72 bytes", appErr.Message)
	f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)

	_, err = f.store.Users.GetByUsernameOrEmail(context.Background(), "alice", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRegister_CoverUploadFailureIsTolerated(t *testing.T) {
	f := newFixture(t)
	avatar := &multipart.FileHeader{Filename: "a.png"}
	cover := &multipart.FileHeader{Filename: "c.png"}
	f.uploader.On("Upload", mock.Anything, media.FolderAvatars, avatar).Return("https://media.test/a.png", nil)
	f.uploader.On("Upload", mock.Anything, media.FolderCovers, cover).Return("", errors.New("host down"))

	in := registerInput(avatar)
	in.CoverImage = cover

	u, err := f.users.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, u.CoverImage)
}

func TestRegister_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	events := &mockPublisher{}
	events.On("PublishUserRegistered", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	f.users.producer = events

	avatar := &multipart.FileHeader{Filename: "a.png"}
	f.uploader.On("Upload", mock.Anything, media.FolderAvatars, avatar).Return("https://media.test/a.png", nil)

	_, err := f.users.Register(context.Background(), registerInput(avatar))
	assert.NoError(t, err)
}

// --- Login / Logout ---

func TestLogin_ByUsernameOrEmail(t *testing.T) {
	tests := []struct {
		name string
		in   LoginInput
	}{
		{"username", LoginInput{Username: "ALICE", Password: "pw123"}},
		{"email", LoginInput{Email: " alice@x.com ", Password: "pw123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			seeded := f.seedUser(t, "alice")

			u, pair, err := f.users.Login(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, seeded.ID, u.ID)
			assert.Empty(t, u.PasswordHash)
			assert.Empty(t, u.RefreshToken)

			stored, err := f.store.Users.GetByID(context.Background(), seeded.ID)
			require.NoError(t, err)
			assert.Equal(t, pair.RefreshToken, stored.RefreshToken)
		})
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "alice")

	tests := []struct {
		name    string
		in      LoginInput
		status  int
		message string
	}{
		{"no identifier", LoginInput{Password: "pw123"}, http.StatusBadRequest, "username or email is required"},
		{"no password", LoginInput{Username: "alice"}, http.StatusBadRequest, "password is required"},
		{"unknown user", LoginInput{Username: "bob", Password: "pw123"}, http.StatusNotFound, "user does not exist"},
		{"wrong password", LoginInput{Username: "alice", Password: "nope"}, http.StatusUnauthorized, "invalid user credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.users.Login(context.Background(), tt.in)
			appErr := requireStatus(t, err, tt.status)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestLogin_InvalidatesPreviousSession(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "alice")

	_, first, err := f.users.Login(context.Background(), LoginInput{Username: "alice", Password: "pw123"})
	require.NoError(t, err)
	_, _, err = f.users.Login(context.Background(), LoginInput{Username: "alice", Password: "pw123"})
	require.NoError(t, err)

	_, err = f.tokens.RotateRefreshToken(context.Background(), first.RefreshToken)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestLogout_UnsetsRefreshToken(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "alice")
	_, _, err := f.users.Login(context.Background(), LoginInput{Username: "alice", Password: "pw123"})
	require.NoError(t, err)

	require.NoError(t, f.users.Logout(context.Background(), u.ID))

	stored, err := f.store.Users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)
}

// --- ChangePassword ---

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "alice")
	_, pair, err := f.users.Login(context.Background(), LoginInput{Username: "alice", Password: "pw123"})
	require.NoError(t, err)

	err = f.users.ChangePassword(context.Background(), u.ID, "wrong", "new-pw")
	appErr := requireStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, "invalid old password", appErr.Message)

	require.NoError(t, f.users.ChangePassword(context.Background(), u.ID, "pw123", "new-pw"))

	_, _, err = f.users.Login(context.Background(), LoginInput{Username: "alice", Password: "pw123"})
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = f.tokens.RotateRefreshToken(context.Background(), pair.RefreshToken)
	requireStatus(t, err, http.StatusUnauthorized)

	_, _, err = f.users.Login(context.Background(), LoginInput{Username: "alice", Password: "new-pw"})
	assert.NoError(t, err)
}

func TestChangePassword_MissingFields(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "alice")

	err := f.users.ChangePassword(context.Background(), u.ID, "pw123", "  ")
	requireStatus(t, err, http.StatusBadRequest)
}

// --- Account ---

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "alice")

	got, err := f.users.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, got.PasswordHash)

	_, err = f.users.GetUser(context.Background(), "missing")
	requireStatus(t, err, http.StatusNotFound)
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "alice")
	f.seedUser(t, "bob")

	name, email := " Alice Jones ", " ALICE.J@X.com "
	got, err := f.users.UpdateAccount(context.Background(), u.ID, UpdateAccountInput{FullName: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Alice Jones", got.FullName)
	assert.Equal(t, "alice.j@x.com", got.Email)
	f.events.AssertCalled(t, "PublishUserUpdated", mock.Anything, mock.Anything)

	taken := "bob@x.com"
	_, err = f.users.UpdateAccount(context.Background(), u.ID, UpdateAccountInput{Email: &taken})
	requireStatus(t, err, http.StatusConflict)

	blank := "  "
	_, err = f.users.UpdateAccount(context.Background(), u.ID, UpdateAccountInput{FullName: &blank})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestUpdateAvatarAndCover(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "alice")

	avatar := &multipart.FileHeader{Filename: "new.png"}
	cover := &multipart.FileHeader{Filename: "cover.png"}
	f.uploader.On("Upload", mock.Anything, media.FolderAvatars, avatar).Return("https://media.test/new.png", nil)
	f.uploader.On("Upload", mock.Anything, media.FolderCovers, cover).Return("https://media.test/cover.png", nil)

	got, err := f.users.UpdateAvatar(context.Background(), u.ID, avatar)
	require.NoError(t, err)
	assert.Equal(t, "https://media.test/new.png", got.Avatar)

	got, err = f.users.UpdateCoverImage(context.Background(), u.ID, cover)
	require.NoError(t, err)
	assert.Equal(t, "https://media.test/cover.png", got.CoverImage)
	assert.Empty(t, got.PasswordHash)
}

func TestUpdateAvatar_Failures(t *testing.T) {
	f := newFixture(t)
	u := f.seedUser(t, "alice")

	_, err := f.users.UpdateAvatar(context.Background(), u.ID, nil)
	appErr := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "avatar file is missing", appErr.Message)

	broken := &multipart.FileHeader{Filename: "x.png"}
	f.uploader.On("Upload", mock.Anything, mock.Anything, broken).Return("", errors.New("host down"))

	_, err = f.users.UpdateAvatar(context.Background(), u.ID, broken)
	appErr = requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "error while uploading avatar", appErr.Message)

	_, err = f.users.UpdateCoverImage(context.Background(), u.ID, broken)
	appErr = requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "error while uploading cover image", appErr.Message)

	stored, err := f.store.Users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Avatar, stored.Avatar)
}

func TestMissingFields_StableOrder(t *testing.T) {
	got := missingFields(map[string]string{"password": "", "username": "", "email": "x", "fullName": ""})
	fields := make([]string, 0, len(got))
	for _, fe := range got {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"username", "fullName", "password"}, fields)
	assert.Empty(t, missingFields(map[string]string{"username": "a"}))

}
