// Package attendance implements the per-day attendance lifecycle of an
// employee: Absent, then CheckedIn, then CheckedOut. Each day has at most one
// record, created by the first check-in and closed once by the punch-out.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/notify"
)

// Status is the outcome of a check-in attempt as shown to the user
type Status string

const (
	StatusSuccess           Status = "Success"
	StatusAlreadyMarked     Status = "Already Marked"
	StatusAlreadyPunchedOut Status = "Already Punched Out"
	StatusError             Status = "Error"
)

var (
	// ErrPunchOutRejected is returned when there is no open check-in to close.
	ErrPunchOutRejected = errors.New("no open check-in for today")

	// ErrInvalidSettings is returned for office times not in HH:MM:SS form or a
	// start time that is not before the end time.
	ErrInvalidSettings = errors.New("invalid office settings")
)

// Store is the persistence needed by the service
type Store interface {
	database.IdentityReader
	database.AttendanceStore
	database.SettingsStore
}

// Notifier queues confirmation messages
type Notifier interface {
	Dispatch(msg notify.Message)
}

// Outcome is the result of Mark
type Outcome struct {
	Status  Status
	Message string
	Record  *database.AttendanceRecord
}

// Service drives attendance transitions
type Service struct {
	store    Store
	notifier Notifier
	defaults database.OfficeSettings
	now      func() time.Time
	logger   logrus.FieldLogger
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithDefaults sets the office settings used when none are stored
func WithDefaults(office config.OfficeDefaults) Option {
	return func(s *Service) {
		s.defaults = database.OfficeSettings{
			StartTime:   office.StartTime,
			EndTime:     office.EndTime,
			OnTimeLimit: office.OnTimeLimit,
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates an attendance service. A nil notifier disables notifications.
func NewService(store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		defaults: database.OfficeSettings{
			StartTime:   "09:00:00",
			EndTime:     "18:00:00",
			OnTimeLimit: constants.DefaultOnTimeLimit,
		},
		now:    time.Now,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time of the service clock
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) notify(msg notify.Message) {
	if s.notifier != nil {
		s.notifier.Dispatch(msg)
	}
}

// parseTimeOfDay parses HH:MM:SS into an offset from midnight.
func parseTimeOfDay(value string) (time.Duration, error) {
	t, err := time.Parse(constants.TimeOfDayLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// timeOfDay returns the offset of t from its local midnight.
func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// onTimeLimit reads the limit fresh from storage, falling back to the default.
func (s *Service) onTimeLimit(ctx context.Context) time.Duration {
	fallback, err := parseTimeOfDay(s.defaults.OnTimeLimit)
	if err != nil {
		fallback, _ = parseTimeOfDay(constants.DefaultOnTimeLimit)
	}

	settings, err := s.store.GetOfficeSettings(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read office settings, using default on-time limit")
		return fallback
	}
	if settings == nil || settings.OnTimeLimit == "" {
		return fallback
	}

	limit, err := parseTimeOfDay(settings.OnTimeLimit)
	if err != nil {
		s.logger.WithField("on_time_limit", settings.OnTimeLimit).Warn("Unparseable on-time limit, using default")
		return fallback
	}
	return limit
}

// Classify returns Late if the time of day of t is strictly after limit.
func Classify(t time.Time, limit time.Duration) database.AttendanceStatus {
	if timeOfDay(t) > limit {
		return database.StatusLate
	}
	return database.StatusOnTime
}

// Mark applies a recognition of emp at time t. The first check-in of the day
// creates the record and sends a confirmation; later ones change nothing.
// Storage failures yield StatusError together with the cause.
func (s *Service) Mark(ctx context.Context, emp *database.Employee, t time.Time) (Outcome, error) {
	date := t.Format(constants.DateLayout)
	log := s.logger.WithFields(logrus.Fields{
		"employee_id": emp.ID,
		"date":        date,
	})

	failed := Outcome{
		Status:  StatusError,
		Message: fmt.Sprintf("%s: Error logging attendance", emp.Name),
	}

	rec, err := s.store.GetAttendance(ctx, emp.ID, date)
	if err != nil {
		return failed, fmt.Errorf("reading attendance: %w", err)
	}

	switch {
	case rec.CheckedOut():
		return Outcome{
			Status:  StatusAlreadyPunchedOut,
			Message: fmt.Sprintf("%s: Already punched out for the day.", emp.Name),
			Record:  rec,
		}, nil
	case rec.CheckedIn():
		return s.alreadyMarked(emp, rec), nil
	}

	status := Classify(t, s.onTimeLimit(ctx))
	checkIn := t
	rec = &database.AttendanceRecord{
		EmployeeID: emp.ID,
		Date:       date,
		CheckIn:    &checkIn,
		Status:     status,
	}

	if err := s.store.InsertAttendance(ctx, rec); err != nil {
		if errors.Is(err, database.ErrAttendanceExists) {
			// a concurrent recognition created the record first
			log.Debug("Check-in already recorded by a concurrent request")
			current, getErr := s.store.GetAttendance(ctx, emp.ID, date)
			if getErr == nil && current.CheckedOut() {
				return Outcome{
					Status:  StatusAlreadyPunchedOut,
					Message: fmt.Sprintf("%s: Already punched out for the day.", emp.Name),
					Record:  current,
				}, nil
			}
			return s.alreadyMarked(emp, current), nil
		}
		return failed, fmt.Errorf("recording check-in: %w", err)
	}

	log.WithField("status", status).Info("Check-in recorded")
	s.notify(notify.PunchInMessage(emp.Email, emp.Name, t, string(status)))

	return Outcome{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("%s: Attendance marked (%s)", emp.Name, status),
		Record:  rec,
	}, nil
}

func (s *Service) alreadyMarked(emp *database.Employee, rec *database.AttendanceRecord) Outcome {
	return Outcome{
		Status:  StatusAlreadyMarked,
		Message: fmt.Sprintf("Welcome, %s! Punch out?", emp.Name),
		Record:  rec,
	}
}

// EmployeeRef identifies an employee by id or, if the id is empty, by name
type EmployeeRef struct {
	ID   string
	Name string
}

func (r EmployeeRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// Resolve looks up the referenced employee. Returns database.ErrNotFound if
// there is no such employee.
func (s *Service) Resolve(ctx context.Context, ref EmployeeRef) (*database.Employee, error) {
	var (
		emp *database.Employee
		err error
	)
	switch {
	case strings.TrimSpace(ref.ID) != "":
		emp, err = s.store.GetIdentity(ctx, strings.TrimSpace(ref.ID))
	case strings.TrimSpace(ref.Name) != "":
		emp, err = s.store.FindIdentityByName(ctx, ref.Name)
	default:
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up employee: %w", err)
	}
	if emp == nil {
		return nil, database.ErrNotFound
	}
	return emp, nil
}

// PunchOut closes today's open check-in of the referenced employee. The
// check-out is only written while it is still empty, so a second punch-out
// returns ErrPunchOutRejected.
func (s *Service) PunchOut(ctx context.Context, ref EmployeeRef, now time.Time) (*database.Employee, error) {
	emp, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	date := now.Format(constants.DateLayout)
	rows, err := s.store.PunchOut(ctx, emp.ID, date, now)
	if err != nil {
		return emp, fmt.Errorf("recording check-out: %w", err)
	}
	if rows == 0 {
		return emp, ErrPunchOutRejected
	}

	s.logger.WithFields(logrus.Fields{
		"employee_id": emp.ID,
		"date":        date,
	}).Info("Check-out recorded")
	s.notify(notify.PunchOutMessage(emp.Email, emp.Name, now))

	return emp, nil
}

// TodayStats summarizes one day of attendance
type TodayStats struct {
	Date           string
	TotalEmployees int
	OnTime         int
	Late           int
	Recent         []database.AttendanceEntry
}

// Today returns the attendance summary for the day of now
func (s *Service) Today(ctx context.Context, now time.Time) (*TodayStats, error) {
	date := now.Format(constants.DateLayout)

	total, err := s.store.CountIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting employees: %w", err)
	}

	entries, err := s.store.ListAttendanceByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("listing attendance: %w", err)
	}

	stats := &TodayStats{Date: date, TotalEmployees: total}
	for _, e := range entries {
		switch e.Status {
		case database.StatusOnTime:
			stats.OnTime++
		case database.StatusLate:
			stats.Late++
		}
	}

	if len(entries) > constants.RecentEntriesLimit {
		entries = entries[:constants.RecentEntriesLimit]
	}
	stats.Recent = entries
	return stats, nil
}

// Settings returns the stored office settings, or the defaults if none are stored
func (s *Service) Settings(ctx context.Context) (database.OfficeSettings, error) {
	settings, err := s.store.GetOfficeSettings(ctx)
	if err != nil {
		return database.OfficeSettings{}, fmt.Errorf("reading office settings: %w", err)
	}
	if settings == nil {
		return s.defaults, nil
	}
	return *settings, nil
}

// UpdateSettings validates and stores new office settings
func (s *Service) UpdateSettings(ctx context.Context, settings database.OfficeSettings) error {
	parsed := make([]time.Duration, 3)
	for i, v := range []string{settings.StartTime, settings.EndTime, settings.OnTimeLimit} {
		d, err := parseTimeOfDay(v)
		if err != nil {
			return fmt.Errorf("%w: %q is not formatted HH:MM:SS", ErrInvalidSettings, v)
		}
		parsed[i] = d
	}
	if parsed[0] >= parsed[1] {
		return fmt.Errorf("%w: start time %s must be before end time %s",
			ErrInvalidSettings, strings.TrimSpace(settings.StartTime), strings.TrimSpace(settings.EndTime))
	}
	settings.StartTime = strings.TrimSpace(settings.StartTime)
	settings.EndTime = strings.TrimSpace(settings.EndTime)
	settings.OnTimeLimit = strings.TrimSpace(settings.OnTimeLimit)

	if err := s.store.UpdateOfficeSettings(ctx, settings); err != nil {
		return fmt.Errorf("saving office settings: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"start_time":    settings.StartTime,
		"end_time":      settings.EndTime,
		"on_time_limit": settings.OnTimeLimit,
	}).Info("Office settings updated")
	return nil
}
