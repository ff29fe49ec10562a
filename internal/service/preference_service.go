package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/uniplan/enrollment-api/internal/dto"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/optimizer"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
)

type preferenceWriter interface {
	GetByUser(ctx context.Context, userID string) (*models.PreferenceProfile, error)
	Upsert(ctx context.Context, profile *models.PreferenceProfile) error
}

// PreferenceService manages scheduling preference profiles.
type PreferenceService struct {
	repo     preferenceWriter
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPreferenceService constructs the service.
func NewPreferenceService(repo preferenceWriter, validate *validator.Validate, logger *zap.Logger) *PreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{repo: repo, validate: validate, logger: logger}
}

// Get returns the caller's profile; a missing profile is a neutral one.
func (s *PreferenceService) Get(ctx context.Context, userID string) (*dto.PreferenceResponse, error) {
	profile, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.PreferenceResponse{UserID: userID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	return preferenceResponse(profile), nil
}

// Upsert validates and stores the caller's profile.
func (s *PreferenceService) Upsert(ctx context.Context, userID string, req dto.PreferenceRequest) (*dto.PreferenceResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	days := make([]models.Weekday, 0, len(req.AvoidDays))
	for _, raw := range req.AvoidDays {
		day, ok := models.ParseWeekday(raw)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", raw))
		}
		days = append(days, day)
	}
	days = lo.Uniq(days)

	if _, err := applyWeightOverrides(optimizer.DefaultWeights(), req.WeightOverride); err != nil {
		return nil, err
	}

	profile := &models.PreferenceProfile{
		UserID:          userID,
		PreferredShift:  models.Shift(req.PreferredShift),
		Compactness:     req.Compactness,
		AvoidDays:       days,
		WeightOverrides: req.WeightOverride,
	}
	if err := s.repo.Upsert(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store preferences")
	}
	s.logger.Info("preferences updated", zap.String("user_id", userID))
	return preferenceResponse(profile), nil
}

func preferenceResponse(profile *models.PreferenceProfile) *dto.PreferenceResponse {
	return &dto.PreferenceResponse{
		UserID:         profile.UserID,
		PreferredShift: profile.PreferredShift,
		Compactness:    profile.Compactness,
		AvoidDays:      profile.AvoidDays,
		WeightOverride: profile.WeightOverrides,
	}
}
