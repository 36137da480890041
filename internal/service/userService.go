package service

import (
	"context"
	"errors"

	repository "github.com/ds124wfegd/railbook/internal/database/postgres"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/sirupsen/logrus"
)

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// GetMe возвращает пользователя, создавая запись при первом обращении
func (s *userService) GetMe(ctx context.Context, identity *entity.Identity) (*entity.User, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, identity.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, entity.ErrUserNotFound) {
		return nil, err
	}

	user = &entity.User{ID: identity.UserID, Email: identity.Email}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// LinkTelegram привязывает чат Telegram, полученный от бота командой /start
func (s *userService) LinkTelegram(ctx context.Context, identity *entity.Identity, telegramID string) (*entity.User, error) {
	user, err := s.GetMe(ctx, identity)
	if err != nil {
		return nil, err
	}

	if owner, err := s.userRepo.GetByTelegramID(ctx, telegramID); err == nil && owner.ID != user.ID {
		return nil, entity.NewValidationError("telegram chat is linked to another account", entity.ErrInvalidInput)
	} else if err != nil && !errors.Is(err, entity.ErrUserNotFound) {
		return nil, err
	}

	if err := s.userRepo.UpdateTelegramID(ctx, user.ID, telegramID); err != nil {
		return nil, err
	}
	user.TelegramID = telegramID

	logrus.WithField("user_id", user.ID).Info("Telegram linked")
	return user, nil
}
