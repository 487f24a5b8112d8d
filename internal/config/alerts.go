package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RuleDefault is the initial (enabled, threshold_days) pair for one alert rule.
type RuleDefault struct {
	Enabled       bool `mapstructure:"enabled"`
	ThresholdDays int  `mapstructure:"thresholdDays"`
}

// AlertDefaults seeds an owner's notification settings the first time they are read.
type AlertDefaults struct {
	LatePayment       RuleDefault `mapstructure:"latePayment"`
	LeaseEnding       RuleDefault `mapstructure:"leaseEnding"`
	VacancyAlert      RuleDefault `mapstructure:"vacancyAlert"`
	EmailReminders    bool        `mapstructure:"emailReminders"`
	ReminderFrequency string      `mapstructure:"reminderFrequency"`
}

func DefaultAlertDefaults() AlertDefaults {
	return AlertDefaults{
		LatePayment:       RuleDefault{Enabled: true, ThresholdDays: 5},
		LeaseEnding:       RuleDefault{Enabled: true, ThresholdDays: 60},
		VacancyAlert:      RuleDefault{Enabled: true, ThresholdDays: 30},
		EmailReminders:    false,
		ReminderFrequency: "weekly",
	}
}

type AlertDefaultsHolder struct {
	current atomic.Value // holds AlertDefaults
}

// NewStaticAlertDefaults returns a holder that never reloads.
func NewStaticAlertDefaults(d AlertDefaults) *AlertDefaultsHolder {
	h := &AlertDefaultsHolder{}
	h.current.Store(d)
	return h
}

func NewAlertDefaultsHolder(cfg Config, log *zap.Logger) (*AlertDefaultsHolder, error) {
	log = log.Named("config.alerts")
	v := viper.New()

	v.SetConfigName("alerts")
	v.SetConfigType("yml")
	if cfg.AlertsConfigPath != "" {
		v.AddConfigPath(cfg.AlertsConfigPath)
	}
	v.AddConfigPath("/var/lib/rentflow/config")
	v.AddConfigPath("/etc/rentflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RENTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAlertDefaults()
	v.SetDefault("alerts.latePayment.enabled", defaults.LatePayment.Enabled)
	v.SetDefault("alerts.latePayment.thresholdDays", defaults.LatePayment.ThresholdDays)
	v.SetDefault("alerts.leaseEnding.enabled", defaults.LeaseEnding.Enabled)
	v.SetDefault("alerts.leaseEnding.thresholdDays", defaults.LeaseEnding.ThresholdDays)
	v.SetDefault("alerts.vacancyAlert.enabled", defaults.VacancyAlert.Enabled)
	v.SetDefault("alerts.vacancyAlert.thresholdDays", defaults.VacancyAlert.ThresholdDays)
	v.SetDefault("alerts.emailReminders", defaults.EmailReminders)
	v.SetDefault("alerts.reminderFrequency", defaults.ReminderFrequency)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	loaded, err := unmarshalAlertDefaults(v)
	if err != nil {
		return nil, err
	}
	if err := ValidateAlertDefaults(loaded); err != nil {
		return nil, err
	}

	holder := NewStaticAlertDefaults(loaded)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalAlertDefaults(v)
		if err != nil {
			log.Warn("alert defaults reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := ValidateAlertDefaults(updated); err != nil {
			log.Warn("invalid alert defaults ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("alert defaults reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// unmarshalAlertDefaults decodes the whole tree so nested defaults fill keys the file omits.
func unmarshalAlertDefaults(v *viper.Viper) (AlertDefaults, error) {
	var wrapper struct {
		Alerts AlertDefaults `mapstructure:"alerts"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return AlertDefaults{}, err
	}
	return wrapper.Alerts, nil
}

func (h *AlertDefaultsHolder) Get() AlertDefaults {
	return h.current.Load().(AlertDefaults)
}

func ValidateAlertDefaults(d AlertDefaults) error {
	for name, rule := range map[string]RuleDefault{
		"latePayment":  d.LatePayment,
		"leaseEnding":  d.LeaseEnding,
		"vacancyAlert": d.VacancyAlert,
	} {
		if rule.ThresholdDays < 0 || rule.ThresholdDays > 3650 {
			return fmt.Errorf("alerts.%s.thresholdDays out of range: %d", name, rule.ThresholdDays)
		}
	}
	switch d.ReminderFrequency {
	case "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("alerts.reminderFrequency must be daily, weekly or monthly, got %q", d.ReminderFrequency)
	}
	return nil
}
