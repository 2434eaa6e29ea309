package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/store"
)

// MeetingService schedules consultations. Each date and time slot holds one meeting.
type MeetingService struct {
	meetings store.MeetingStore
	accounts store.AccountStore
	notify   *Dispatcher
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewMeetingService(repos *store.Repos, notify *Dispatcher, logger *zap.SugaredLogger) *MeetingService {
	return &MeetingService{
		meetings: repos.Meetings,
		accounts: repos.Accounts,
		notify:   notify,
		logger:   logger,
		now:      time.Now,
	}
}

// Create books a slot for caller, then notifies caller and the first admin
func (s *MeetingService) Create(ctx context.Context, caller *models.Account, req *models.MeetingRequest) (*models.Meeting, error) {
	m := &models.Meeting{
		ID:            uuid.New(),
		RequesterID:   caller.ID,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Email:         caller.Email,
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		PreferredDate: strings.TrimSpace(req.PreferredDate),
		PreferredTime: strings.TrimSpace(req.PreferredTime),
		Description:   strings.TrimSpace(req.Description),
	}
	if m.FirstName == "" || m.LastName == "" || m.ContactNumber == "" ||
		m.PreferredDate == "" || m.PreferredTime == "" || m.Description == "" {
		return nil, apperr.Validation("All fields are required")
	}
	if _, err := time.Parse("2006-01-02", m.PreferredDate); err != nil {
		return nil, apperr.Validation("Preferred date must be in YYYY-MM-DD format")
	}
	slot, ok := parseSlotTime(m.PreferredTime)
	if !ok {
		return nil, apperr.Validation("Preferred time must be in HH:MM format")
	}
	m.PreferredTime = slot

	m.CreatedAt = s.now()
	if err := s.meetings.Create(ctx, m); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict(fmt.Sprintf(
				"The selected time slot (%s on %s) is already full. Please choose another time.", m.PreferredTime, m.PreferredDate))
		}
		return nil, apperr.Internal("insert meeting", err)
	}

	s.logger.Infow("Meeting scheduled", "meeting", m.ID, "date", m.PreferredDate, "time", m.PreferredTime)
	s.notify.Notify(ctx, caller.ID,
		fmt.Sprintf("Your meeting is scheduled for %s at %s.", m.PreferredDate, m.PreferredTime), NotifyRef{})
	if admin := firstAdmin(ctx, s.accounts, s.logger); admin != nil && admin.ID != caller.ID {
		s.notify.Notify(ctx, admin.ID,
			fmt.Sprintf("A new schedule was created by %s for %s at %s.", caller.DisplayName(), m.PreferredDate, m.PreferredTime), NotifyRef{})
	}
	return m, nil
}

// List returns every meeting in slot order
func (s *MeetingService) List(ctx context.Context) ([]models.Meeting, error) {
	items, err := s.meetings.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list meetings", err)
	}
	return items, nil
}

// parseSlotTime normalizes a 24-hour clock time to HH:MM so equal slots
// compare equal. Seconds, when given, must be zero.
func parseSlotTime(raw string) (string, bool) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, raw)
		if err == nil && t.Second() == 0 {
			return t.Format("15:04"), true
		}
	}
	return "", false
}
