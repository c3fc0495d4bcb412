package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/repository"
	"github.com/shinyyama/herald-backend/internal/storage"
)

var (
	ErrInvalidUsername = errors.New("username must be 3-32 letters, digits or underscores")
	ErrUsernameTaken   = errors.New("username is already taken")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

var avatarExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type ProfileInput struct {
	Username    string
	DisplayName string
}

type ProfileService interface {
	Get(ctx context.Context, uid string) (*model.Profile, error)
	Save(ctx context.Context, uid string, in ProfileInput) (*model.Profile, error)
	UploadAvatar(ctx context.Context, uid, contentType string, r io.Reader) (*model.Profile, error)
	RemoveAvatar(ctx context.Context, uid string) (*model.Profile, error)
}

type profileService struct {
	repos  *repository.Repositories
	store  storage.ObjectStore
	logger *slog.Logger
}

func NewProfileService(repos *repository.Repositories, store storage.ObjectStore, logger *slog.Logger) ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &profileService{repos: repos, store: store, logger: logger.With("component", "profiles")}
}

func (s *profileService) Get(ctx context.Context, uid string) (*model.Profile, error) {
	p, err := s.repos.Profiles.FindByID(ctx, uid)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return p, nil
}

// Save creates or updates the caller's profile. The first save is the
// signup step, so the wallet is created alongside the profile.
func (s *profileService) Save(ctx context.Context, uid string, in ProfileInput) (*model.Profile, error) {
	username := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(in.Username), "@"))
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = username
	}
	var out *model.Profile
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if other, err := tx.Profiles.FindByUsername(ctx, username); err == nil && other.ID != uid {
			return ErrUsernameTaken
		}
		p := &model.Profile{ID: uid, Username: username, DisplayName: display}
		if err := tx.Profiles.Upsert(ctx, p); err != nil {
			return err
		}
		if _, err := tx.Wallets.Ensure(ctx, uid); err != nil {
			return err
		}
		saved, err := tx.Profiles.FindByID(ctx, uid)
		if err != nil {
			return err
		}
		out = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile saved", "uid", uid, "username", username)
	return out, nil
}

func (s *profileService) UploadAvatar(ctx context.Context, uid, contentType string, r io.Reader) (*model.Profile, error) {
	ext, ok := avatarExt[contentType]
	if !ok {
		return nil, ErrUnsupportedType
	}
	p, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	objectPath := path.Join("avatars", uid, uuid.NewString()+ext)
	publicURL, err := s.store.Upload(ctx, objectPath, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("avatar upload: %w", err)
	}
	old := p.AvatarPath
	if err := s.repos.Profiles.UpdateFields(ctx, uid, map[string]interface{}{
		"avatar_url":  publicURL,
		"avatar_path": objectPath,
	}); err != nil {
		_ = s.store.Delete(ctx, objectPath)
		return nil, err
	}
	if old != "" {
		s.deleteObject(ctx, old)
	}
	return s.Get(ctx, uid)
}

func (s *profileService) RemoveAvatar(ctx context.Context, uid string) (*model.Profile, error) {
	p, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if p.AvatarPath == "" && p.AvatarURL == "" {
		return p, nil
	}
	if err := s.repos.Profiles.UpdateFields(ctx, uid, map[string]interface{}{
		"avatar_url":  "",
		"avatar_path": "",
	}); err != nil {
		return nil, err
	}
	if p.AvatarPath != "" {
		s.deleteObject(ctx, p.AvatarPath)
	}
	return s.Get(ctx, uid)
}

func (s *profileService) deleteObject(ctx context.Context, objectPath string) {
	if err := s.store.Delete(ctx, objectPath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("avatar delete failed", "path", objectPath, "error", err)
	}
}
