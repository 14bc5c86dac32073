package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"careLinkWs/internal/modules/reminders/application/port"
	"careLinkWs/internal/modules/reminders/domain"
)

type scheduleFile struct {
	Schedules []domain.Schedule `mapstructure:"schedules"`
}

// FileScheduleSource serves schedules from a YAML file:
//
//	schedules:
//	  - user: John Doe
//	    appointments:
//	      - {id: 1, doctorName: Dr. Smith, date: "2025-04-20", time: "10:00 AM"}
//	    medications:
//	      - {id: 3, name: Metformin, dosage: 500mg, time: "09:00,21:00"}
type FileScheduleSource struct {
	path string
	mu   sync.RWMutex
	byID map[string]domain.Schedule
}

var _ port.ScheduleSource = (*FileScheduleSource)(nil)

// LoadScheduleFile reads path once. A missing file yields an empty source.
func LoadScheduleFile(path string) (*FileScheduleSource, error) {
	s := &FileScheduleSource{path: path, byID: make(map[string]domain.Schedule)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file, replacing the served schedules only on success.
func (s *FileScheduleSource) Reload() error {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading schedules %s: %w", s.path, err)
	}

	var file scheduleFile
	if err := v.Unmarshal(&file); err != nil {
		return fmt.Errorf("parsing schedules %s: %w", s.path, err)
	}
	byID := make(map[string]domain.Schedule, len(file.Schedules))
	for _, schedule := range file.Schedules {
		user := strings.TrimSpace(schedule.User)
		if user == "" {
			continue
		}
		existing := byID[user]
		existing.User = user
		existing.Appointments = append(existing.Appointments, schedule.Appointments...)
		existing.Medications = append(existing.Medications, schedule.Medications...)
		byID[user] = existing
	}

	s.mu.Lock()
	s.byID = byID
	s.mu.Unlock()
	return nil
}

func (s *FileScheduleSource) Appointments(_ context.Context, identity string) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Appointment(nil), s.byID[strings.TrimSpace(identity)].Appointments...), nil
}

func (s *FileScheduleSource) Medications(_ context.Context, identity string) ([]domain.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Medication(nil), s.byID[strings.TrimSpace(identity)].Medications...), nil
}

// NopScheduleSource is used when no schedule backend is configured.
type NopScheduleSource struct{}

func (NopScheduleSource) Appointments(context.Context, string) ([]domain.Appointment, error) {
	return nil, nil
}

func (NopScheduleSource) Medications(context.Context, string) ([]domain.Medication, error) {
	return nil, nil
}
