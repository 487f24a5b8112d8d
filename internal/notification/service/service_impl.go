package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/config"
	"github.com/smallbiznis/rentflow/internal/notification/domain"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	pkgdb "github.com/smallbiznis/rentflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxThresholdDays = 365

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Defaults *config.AlertDefaultsHolder
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	defaults *config.AlertDefaultsHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("notification.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		defaults: p.Defaults,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Notification, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	items, err := s.repo.List(ctx, s.db, orgID, domain.ListLimit)
	if err != nil {
		return nil, pkgdb.Classify(err)
	}
	out := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, domain.ErrInvalidOrganization
	}
	count, err := s.repo.CountUnread(ctx, s.db, orgID)
	if err != nil {
		return 0, pkgdb.Classify(err)
	}
	return count, nil
}

func (s *Service) MarkRead(ctx context.Context, rawID string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.ErrInvalidID
	}
	affected, err := s.repo.MarkRead(ctx, s.db, orgID, id)
	if err != nil {
		return pkgdb.Classify(err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, domain.ErrInvalidOrganization
	}
	affected, err := s.repo.MarkAllRead(ctx, s.db, orgID)
	if err != nil {
		return 0, pkgdb.Classify(err)
	}
	return affected, nil
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Settings{}, domain.ErrInvalidOrganization
	}
	return s.SettingsFor(ctx, orgID)
}

func (s *Service) SettingsFor(ctx context.Context, orgID snowflake.ID) (domain.Settings, error) {
	settings, err := s.ensure(ctx, s.db, orgID)
	if err != nil {
		return domain.Settings{}, pkgdb.Classify(err)
	}
	return *settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.UpdateSettingsRequest) (domain.UpdateSettingsResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.UpdateSettingsResponse{}, domain.ErrInvalidOrganization
	}

	var resp domain.UpdateSettingsResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.ensure(ctx, tx, orgID)
		if err != nil {
			return err
		}
		next := *current
		if err := applyUpdate(&next, req); err != nil {
			return err
		}
		next.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.UpdateSettings(ctx, tx, &next); err != nil {
			return err
		}
		for _, t := range domain.Types {
			if !current.Rule(t).Enabled && next.Rule(t).Enabled {
				resp.Reenabled = append(resp.Reenabled, t)
			}
		}
		resp.Settings = next
		return nil
	})
	if err != nil {
		return domain.UpdateSettingsResponse{}, pkgdb.Classify(err)
	}
	return resp, nil
}

// ensure returns the owner's settings row, creating it from the current
// alert defaults when missing.
func (s *Service) ensure(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.Settings, error) {
	found, err := s.repo.FindSettings(ctx, db, orgID)
	if err != nil || found != nil {
		return found, err
	}

	seed := s.seed(orgID)
	if err := s.repo.InsertSettings(ctx, db, &seed); err != nil {
		return nil, err
	}
	found, err = s.repo.FindSettings(ctx, db, orgID)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return &seed, nil
	}
	return found, nil
}

func (s *Service) seed(orgID snowflake.ID) domain.Settings {
	d := config.DefaultAlertDefaults()
	if s.defaults != nil {
		d = s.defaults.Get()
	}
	freq := domain.Frequency(d.ReminderFrequency)
	if !freq.Valid() {
		freq = domain.FrequencyWeekly
	}
	return domain.Settings{
		OrgID:               orgID,
		LatePaymentEnabled:  d.LatePayment.Enabled,
		LatePaymentDays:     d.LatePayment.ThresholdDays,
		LeaseEndingEnabled:  d.LeaseEnding.Enabled,
		LeaseEndingDays:     d.LeaseEnding.ThresholdDays,
		VacancyAlertEnabled: d.VacancyAlert.Enabled,
		VacancyAlertDays:    d.VacancyAlert.ThresholdDays,
		EmailReminders:      d.EmailReminders,
		ReminderFrequency:   freq,
		UpdatedAt:           s.clock.Now().UTC(),
	}
}

func applyUpdate(s *domain.Settings, req domain.UpdateSettingsRequest) error {
	setBool(&s.LatePaymentEnabled, req.LatePaymentEnabled)
	setBool(&s.LeaseEndingEnabled, req.LeaseEndingEnabled)
	setBool(&s.VacancyAlertEnabled, req.VacancyAlertEnabled)
	setBool(&s.EmailReminders, req.EmailReminders)
	for _, pair := range []struct {
		dst *int
		src *int
	}{
		{&s.LatePaymentDays, req.LatePaymentDays},
		{&s.LeaseEndingDays, req.LeaseEndingDays},
		{&s.VacancyAlertDays, req.VacancyAlertDays},
	} {
		if pair.src == nil {
			continue
		}
		if *pair.src < 0 || *pair.src > maxThresholdDays {
			return domain.ErrInvalidThreshold
		}
		*pair.dst = *pair.src
	}
	if req.ReminderFrequency != nil {
		freq := domain.Frequency(strings.ToLower(strings.TrimSpace(*req.ReminderFrequency)))
		if !freq.Valid() {
			return domain.ErrInvalidFrequency
		}
		s.ReminderFrequency = freq
	}
	return nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
