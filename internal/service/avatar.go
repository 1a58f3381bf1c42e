package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/logger"
	"github.com/dtroode/socialhub/internal/model"
)

// MaxAvatarBytes caps the size of uploaded avatar images.
const MaxAvatarBytes = 2 << 20

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Avatar stores profile pictures in object storage and links them to users.
type Avatar struct {
	userStore model.UserStore
	storage   model.Storage
	clock     clockwork.Clock
	logger    *logger.Logger
}

func NewAvatar(userStore model.UserStore, storage model.Storage, clock clockwork.Clock, logger *logger.Logger) *Avatar {
	return &Avatar{
		userStore: userStore,
		storage:   storage,
		clock:     clock,
		logger:    logger,
	}
}

// Upload replaces the avatar of userID with the image read from r.
func (s *Avatar) Upload(ctx context.Context, userID uuid.UUID, contentType string, size int64, r io.Reader) (model.User, error) {
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return model.User{}, apperr.Validation("avatar must be a png, jpeg, gif or webp image")
	}
	if size <= 0 || size > MaxAvatarBytes {
		return model.User{}, apperr.Validation(fmt.Sprintf("avatar must be between 1 byte and %d bytes", MaxAvatarBytes))
	}

	user, err := s.userStore.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, apperr.Unauthorized("account no longer exists")
	}
	if err != nil {
		return model.User{}, apperr.Internal("failed to get user by id", err)
	}

	key := path.Join("avatars", userID.String(), uuid.NewString()+ext)
	if err := s.storage.Upload(ctx, key, io.LimitReader(r, size), size, contentType); err != nil {
		return model.User{}, apperr.Internal("failed to upload avatar", err)
	}

	previous := user.AvatarKey
	user.AvatarKey = key
	user.UpdatedAt = s.clock.Now()

	saved, err := s.userStore.Update(ctx, user)
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Error("Avatar service: failed to clean up orphaned upload",
				"key", key,
				"error", delErr.Error())
		}
		return model.User{}, apperr.Internal("failed to update user", err)
	}

	if previous != "" {
		if err := s.storage.Delete(ctx, previous); err != nil {
			s.logger.Warn("Avatar service: failed to delete previous avatar",
				"key", previous,
				"error", err.Error())
		}
	}

	s.logger.Info("Avatar service: avatar updated",
		"user_id", userID,
		"key", key)

	return saved, nil
}

// Download opens the avatar of userID. The caller must close the returned reader.
func (s *Avatar) Download(ctx context.Context, userID uuid.UUID) (io.ReadCloser, string, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, "", apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, "", apperr.Internal("failed to get user by id", err)
	}
	if user.AvatarKey == "" {
		return nil, "", apperr.NotFound("user has no avatar")
	}

	rc, err := s.storage.Download(ctx, user.AvatarKey)
	if errors.Is(err, model.ErrNotFound) {
		return nil, "", apperr.NotFound("avatar object is missing")
	}
	if err != nil {
		return nil, "", apperr.Internal("failed to download avatar", err)
	}

	return rc, contentTypeOf(user.AvatarKey), nil
}

func contentTypeOf(key string) string {
	ext := path.Ext(key)
	for ct, e := range avatarExtensions {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}
