package service

import (
	"context"
	"strings"

	repository "github.com/ds124wfegd/railbook/internal/database/postgres"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/ds124wfegd/railbook/internal/passenger"
	"github.com/sirupsen/logrus"
)

// MaxSavedProfiles ограничивает число сохраненных пассажиров на пользователя
const MaxSavedProfiles = 20

type profileService struct {
	profileRepo repository.ProfileRepository
}

func NewProfileService(profileRepo repository.ProfileRepository) ProfileService {
	return &profileService{profileRepo: profileRepo}
}

func (s *profileService) CreateProfile(ctx context.Context, identity *entity.Identity, details entity.PassengerDetails) (*entity.SavedProfile, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	details.Name = strings.TrimSpace(details.Name)
	if err := passenger.Validate(details); err != nil {
		return nil, err
	}

	existing, err := s.profileRepo.ListByUser(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= MaxSavedProfiles {
		return nil, entity.NewCapacityError(entity.ErrTooManyProfiles)
	}

	profile := &entity.SavedProfile{
		UserID: identity.UserID,
		Name:   details.Name,
		Age:    details.Age,
		Gender: details.Gender,
		Berth:  details.PreferredBerth,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, entity.NewStoreWriteError(err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    identity.UserID,
		"profile_id": profile.ID,
	}).Info("Saved passenger profile created")
	return profile, nil
}

func (s *profileService) ListProfiles(ctx context.Context, identity *entity.Identity) ([]*entity.SavedProfile, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	return s.profileRepo.ListByUser(ctx, identity.UserID)
}

func (s *profileService) DeleteProfile(ctx context.Context, identity *entity.Identity, id int64) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	return s.profileRepo.Delete(ctx, identity.UserID, id)
}
