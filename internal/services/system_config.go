package services

import (
	"strconv"
	"strings"

	"github.com/sitesafe/hsekpi/internal/lifecycle"
	"github.com/sitesafe/hsekpi/internal/models"
	"gorm.io/gorm"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("config_key = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.GetWithDefault(key, "")))
	if err != nil {
		return defaultValue
	}
	return n
}

func (s *SystemConfigService) GetBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s.GetWithDefault(key, "")))
	if err != nil {
		return defaultValue
	}
	return b
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where("config_key = ?", key).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		cfg = models.SystemConfig{
			Key:   key,
			Value: value,
		}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where("config_group = ?", group).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// Update changes the value of a seeded setting after checking it against the
// setting's type. Keys ending in _time take an "HH:MM" clock value.
func (s *SystemConfigService) Update(key, value string) (*models.SystemConfig, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("config_key = ?", key).First(&cfg).Error; err != nil {
		return nil, err
	}

	value = strings.TrimSpace(value)
	switch cfg.Type {
	case "int":
		if _, err := strconv.Atoi(value); err != nil {
			return nil, lifecycle.Invalid(key, lifecycle.ErrInvalidValue, "expected an integer")
		}
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, lifecycle.Invalid(key, lifecycle.ErrInvalidValue, "expected true or false")
		}
		value = strconv.FormatBool(b)
	}
	if strings.HasSuffix(key, "_time") {
		if _, ok := clockToCron(value); !ok {
			return nil, lifecycle.Invalid(key, lifecycle.ErrInvalidValue, "expected HH:MM")
		}
	}

	if err := s.db.Model(&cfg).Update("value", value).Error; err != nil {
		return nil, err
	}
	cfg.Value = value
	return &cfg, nil
}

// ClockToCron turns an "HH:MM" setting into a daily cron spec, using fallback
// when the value is malformed.
func ClockToCron(value, fallback string) string {
	spec, ok := clockToCron(value)
	if !ok {
		spec, _ = clockToCron(fallback)
	}
	return spec
}

func clockToCron(value string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return "", false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", false
	}
	return strconv.Itoa(minute) + " " + strconv.Itoa(hour) + " * * *", true
}

func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
