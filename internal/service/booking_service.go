// Package service implements the booking core: validation, conflict
// detection, availability slots and listing on top of a
// repository.BookingRepository.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/gym-booking/internal/model"
	"github.com/iliyamo/gym-booking/internal/queue"
	"github.com/iliyamo/gym-booking/internal/repository"
)

var tracer = otel.Tracer("github.com/iliyamo/gym-booking/internal/service")

// publishTimeout bounds how long a write waits for the broker.
const publishTimeout = 3 * time.Second

// EventPublisher delivers booking lifecycle events.  *queue.Publisher
// satisfies it.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, ev queue.BookingEvent) error
}

// CreateInput is a validated-on-use booking creation request.  Times are
// kept as strings so that missing and malformed values can be told apart.
type CreateInput struct {
	Title       string
	Description *string
	StartTime   string
	EndTime     string
	ResourceID  string
	MemberID    *string
	Type        *string
	Status      *string
	Color       *string
	SeriesID    *string
}

// UpdateInput carries a partial update; nil fields are left untouched.  An
// empty MemberID or SeriesID clears the field.
type UpdateInput struct {
	Title       *string
	Description *string
	StartTime   *string
	EndTime     *string
	ResourceID  *string
	MemberID    *string
	Type        *string
	Status      *string
	Color       *string
	SeriesID    *string
}

// BookingService orchestrates booking writes: validate shape, check for
// conflicts and persist, in that order, while holding the per-resource lock.
type BookingService struct {
	repo   repository.BookingRepository
	locker Locker
	events EventPublisher
	logger *log.Logger
	now    func() time.Time
	newID  func() string
	loc    *time.Location
}

// Option customises a BookingService.
type Option func(*BookingService)

func WithLocker(l Locker) Option { return func(s *BookingService) { s.locker = l } }

// WithPublisher enables lifecycle events.  Without it nothing is published.
func WithPublisher(p EventPublisher) Option { return func(s *BookingService) { s.events = p } }

func WithLogger(l *log.Logger) Option { return func(s *BookingService) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *BookingService) { s.now = now } }

func WithIDGenerator(gen func() string) Option { return func(s *BookingService) { s.newID = gen } }

// WithLocation sets the timezone of calendar days for availability and
// date-only list bounds.
func WithLocation(loc *time.Location) Option { return func(s *BookingService) { s.loc = loc } }

// NewBookingService wires a service around repo.  It defaults to an
// in-process LocalLocker, UTC days and random UUIDs.
func NewBookingService(repo repository.BookingRepository, opts ...Option) *BookingService {
	s := &BookingService{
		repo:   repo,
		locker: NewLocalLocker(),
		logger: log.New("booking"),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// Location returns the timezone calendar days are interpreted in.
func (s *BookingService) Location() *time.Location { return s.loc }

func (s *BookingService) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// Create validates in, rejects it when it overlaps an active booking on the
// same resource and stores it with generated ID, timestamps and defaults.
func (s *BookingService) Create(ctx context.Context, in CreateInput) (model.Booking, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Create",
		trace.WithAttributes(attribute.String("booking.resource_id", in.ResourceID)))
	defer span.End()

	b, err := s.buildBooking(in)
	if err != nil {
		return model.Booking{}, endSpan(span, err)
	}

	unlock, err := s.locker.Lock(ctx, b.ResourceID)
	if err != nil {
		return model.Booking{}, endSpan(span, err)
	}
	defer unlock()

	if b.Status.Active() {
		existing, err := s.repo.List(ctx)
		if err != nil {
			return model.Booking{}, endSpan(span, fmt.Errorf("list bookings: %w", err))
		}
		cand := Candidate{ResourceID: b.ResourceID, StartTime: b.StartTime, EndTime: b.EndTime}
		if hits := FindConflicts(existing, cand, Exclusion{}); len(hits) > 0 {
			s.logger.Infof("create rejected: resource %s %s-%s overlaps %d booking(s)",
				b.ResourceID, b.StartTime.Format(time.RFC3339), b.EndTime.Format(time.RFC3339), len(hits))
			return model.Booking{}, endSpan(span, &ConflictError{Conflicts: hits})
		}
	}

	if err := s.repo.Insert(ctx, b); err != nil {
		return model.Booking{}, endSpan(span, translateRepoError(err))
	}
	span.SetAttributes(attribute.String("booking.id", b.ID))
	s.publish(ctx, queue.EventBookingCreated, b)
	return b, nil
}

func (s *BookingService) buildBooking(in CreateInput) (model.Booking, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Booking{}, ErrInvalidTitle
	}
	if strings.TrimSpace(in.StartTime) == "" || strings.TrimSpace(in.EndTime) == "" {
		return model.Booking{}, ErrInvalidDates
	}
	start, err := ParseInstant(in.StartTime)
	if err != nil {
		return model.Booking{}, fmt.Errorf("%w: startTime %q", ErrInvalidDateFormat, in.StartTime)
	}
	end, err := ParseInstant(in.EndTime)
	if err != nil {
		return model.Booking{}, fmt.Errorf("%w: endTime %q", ErrInvalidDateFormat, in.EndTime)
	}
	if !end.After(start) {
		return model.Booking{}, ErrInvalidDateRange
	}
	resourceID := strings.TrimSpace(in.ResourceID)
	if resourceID == "" {
		return model.Booking{}, ErrInvalidResource
	}

	status := model.StatusConfirmed
	if in.Status != nil {
		status = model.BookingStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		if !status.Valid() {
			return model.Booking{}, ErrInvalidStatus
		}
	}

	now := s.clock()
	b := model.Booking{
		ID:          s.newID(),
		SeriesID:    optional(in.SeriesID),
		Title:       title,
		Description: valueOr(in.Description, ""),
		StartTime:   start,
		EndTime:     end,
		ResourceID:  resourceID,
		MemberID:    optional(in.MemberID),
		Type:        nonEmptyOr(in.Type, model.DefaultType),
		Status:      status,
		Color:       nonEmptyOr(in.Color, model.DefaultColor),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return b, nil
}

// Update merges in over the stored booking.  Conflicts are re-checked when
// the interval or resource changes, or when a cancelled booking becomes
// active again.  Only the booking itself is excluded from the check; its
// series siblings still count (see ShiftSeries for moving a whole series).
func (s *BookingService) Update(ctx context.Context, id string, in UpdateInput) (model.Booking, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Update",
		trace.WithAttributes(attribute.String("booking.id", id)))
	defer span.End()

	b, _, err := s.update(ctx, id, in, false)
	if err != nil {
		return model.Booking{}, endSpan(span, err)
	}
	return b, nil
}

// update runs Update under the resource lock and reports whether anything
// was written.  With skipInactive set, a booking that is already cancelled
// is returned as stored.
func (s *BookingService) update(ctx context.Context, id string, in UpdateInput, skipInactive bool) (model.Booking, bool, error) {
	var current, next model.Booking
	unlock, err := s.lockResources(ctx, func() ([]string, error) {
		var err error
		if current, err = s.repo.Get(ctx, id); err != nil {
			return nil, translateRepoError(err)
		}
		if next, err = applyUpdate(current, in); err != nil {
			return nil, err
		}
		return []string{current.ResourceID, next.ResourceID}, nil
	})
	if err != nil {
		return model.Booking{}, false, err
	}
	defer unlock()

	if skipInactive && !current.Status.Active() {
		return current, false, nil
	}

	if needsConflictCheck(current, next) {
		existing, err := s.repo.List(ctx)
		if err != nil {
			return model.Booking{}, false, fmt.Errorf("list bookings: %w", err)
		}
		cand := Candidate{ResourceID: next.ResourceID, StartTime: next.StartTime, EndTime: next.EndTime}
		if hits := FindConflicts(existing, cand, Exclusion{ID: next.ID}); len(hits) > 0 {
			s.logger.Infof("update of %s rejected: overlaps %d booking(s) on resource %s", id, len(hits), next.ResourceID)
			return model.Booking{}, false, &ConflictError{Conflicts: hits}
		}
	}

	next.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, next); err != nil {
		return model.Booking{}, false, translateRepoError(err)
	}

	evType := queue.EventBookingUpdated
	if current.Status.Active() && !next.Status.Active() {
		evType = queue.EventBookingCancelled
	}
	s.publish(ctx, evType, next)
	return next, true, nil
}

// lockResources takes the per-resource lock for the keys resolve returns,
// then resolves again while holding it.  A booking may have been moved to
// another resource in between; in that case the lock is widened to cover
// both and the check repeats.
func (s *BookingService) lockResources(ctx context.Context, resolve func() ([]string, error)) (func(), error) {
	want, err := resolve()
	if err != nil {
		return nil, err
	}
	for {
		unlock, err := s.locker.Lock(ctx, want...)
		if err != nil {
			return nil, err
		}
		got, err := resolve()
		if err != nil {
			unlock()
			return nil, err
		}
		if coversKeys(want, got) {
			return unlock, nil
		}
		unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		want = normalizeKeys(append(want, got...))
	}
}

func coversKeys(held, need []string) bool {
	set := make(map[string]bool, len(held))
	for _, k := range held {
		set[k] = true
	}
	for _, k := range need {
		if k != "" && !set[k] {
			return false
		}
	}
	return true
}

func applyUpdate(b model.Booking, in UpdateInput) (model.Booking, error) {
	b = b.Clone()
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return model.Booking{}, ErrInvalidTitle
		}
		b.Title = title
	}
	if in.StartTime != nil {
		if strings.TrimSpace(*in.StartTime) == "" {
			return model.Booking{}, ErrInvalidDates
		}
		t, err := ParseInstant(*in.StartTime)
		if err != nil {
			return model.Booking{}, fmt.Errorf("%w: startTime %q", ErrInvalidDateFormat, *in.StartTime)
		}
		b.StartTime = t
	}
	if in.EndTime != nil {
		if strings.TrimSpace(*in.EndTime) == "" {
			return model.Booking{}, ErrInvalidDates
		}
		t, err := ParseInstant(*in.EndTime)
		if err != nil {
			return model.Booking{}, fmt.Errorf("%w: endTime %q", ErrInvalidDateFormat, *in.EndTime)
		}
		b.EndTime = t
	}
	if !b.EndTime.After(b.StartTime) {
		return model.Booking{}, ErrInvalidDateRange
	}
	if in.ResourceID != nil {
		rid := strings.TrimSpace(*in.ResourceID)
		if rid == "" {
			return model.Booking{}, ErrInvalidResource
		}
		b.ResourceID = rid
	}
	if in.Status != nil {
		st := model.BookingStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		if !st.Valid() {
			return model.Booking{}, ErrInvalidStatus
		}
		b.Status = st
	}
	if in.Description != nil {
		b.Description = *in.Description
	}
	if in.MemberID != nil {
		b.MemberID = optional(in.MemberID)
	}
	if in.SeriesID != nil {
		b.SeriesID = optional(in.SeriesID)
	}
	if in.Type != nil {
		b.Type = nonEmptyOr(in.Type, b.Type)
	}
	if in.Color != nil {
		b.Color = nonEmptyOr(in.Color, b.Color)
	}
	return b, nil
}

func needsConflictCheck(prev, next model.Booking) bool {
	if !next.Status.Active() {
		return false
	}
	if !prev.Status.Active() {
		return true
	}
	return !prev.StartTime.Equal(next.StartTime) ||
		!prev.EndTime.Equal(next.EndTime) ||
		prev.ResourceID != next.ResourceID
}

// Cancel soft-deletes the booking by setting its status to cancelled.
// Cancelling an already cancelled booking returns it unchanged.
func (s *BookingService) Cancel(ctx context.Context, id string) (model.Booking, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Cancel",
		trace.WithAttributes(attribute.String("booking.id", id)))
	defer span.End()

	cancelled := string(model.StatusCancelled)
	b, changed, err := s.update(ctx, id, UpdateInput{Status: &cancelled}, true)
	if err != nil {
		return model.Booking{}, endSpan(span, err)
	}
	if changed {
		s.logger.Infof("booking %s on resource %s cancelled", b.ID, b.ResourceID)
	}
	return b, nil
}

// ShiftSeries moves every active booking of seriesID by minutes (negative
// moves earlier).  The series moves as a unit: siblings are ignored by the
// conflict check since they all shift together, and nothing is written
// unless every moved booking is free of conflicts.  Cancelled instances
// stay where they are.
func (s *BookingService) ShiftSeries(ctx context.Context, seriesID string, minutes int) ([]model.Booking, error) {
	ctx, span := tracer.Start(ctx, "BookingService.ShiftSeries",
		trace.WithAttributes(attribute.String("booking.series_id", seriesID)))
	defer span.End()

	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return nil, endSpan(span, ErrInvalidSeries)
	}
	if minutes == 0 || minutes < -MaxShiftMinutes || minutes > MaxShiftMinutes {
		return nil, endSpan(span, ErrInvalidShift)
	}
	offset := time.Duration(minutes) * time.Minute

	var (
		existing []model.Booking
		members  []model.Booking
	)
	unlock, err := s.lockResources(ctx, func() ([]string, error) {
		var err error
		if existing, err = s.repo.List(ctx); err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		members = seriesMembers(existing, seriesID)
		keys := make([]string, 0, len(members))
		for _, b := range members {
			keys = append(keys, b.ResourceID)
		}
		return keys, nil
	})
	if err != nil {
		return nil, endSpan(span, err)
	}
	defer unlock()

	if len(members) == 0 {
		return nil, endSpan(span, ErrSeriesNotFound)
	}

	ex := Exclusion{SeriesID: seriesID}
	var hits []model.Booking
	seen := map[string]bool{}
	for _, b := range members {
		cand := Candidate{ResourceID: b.ResourceID, StartTime: b.StartTime.Add(offset), EndTime: b.EndTime.Add(offset)}
		for _, hit := range FindConflicts(existing, cand, ex) {
			if !seen[hit.ID] {
				seen[hit.ID] = true
				hits = append(hits, hit)
			}
		}
	}
	if len(hits) > 0 {
		s.logger.Infof("shift of series %s by %dm rejected: overlaps %d booking(s)", seriesID, minutes, len(hits))
		return nil, endSpan(span, &ConflictError{Conflicts: hits})
	}

	// Move the instance furthest in the direction of travel first, so that
	// no intermediate state has two siblings overlapping on one resource.
	sort.Slice(members, func(i, j int) bool {
		if offset > 0 {
			return members[i].StartTime.After(members[j].StartTime)
		}
		return members[i].StartTime.Before(members[j].StartTime)
	})
	now := s.clock()
	moved := make([]model.Booking, 0, len(members))
	for _, b := range members {
		b.StartTime = b.StartTime.Add(offset)
		b.EndTime = b.EndTime.Add(offset)
		b.UpdatedAt = now
		if err := s.repo.Update(ctx, b); err != nil {
			return nil, endSpan(span, fmt.Errorf("shift %s: %w", b.ID, translateRepoError(err)))
		}
		moved = append(moved, b)
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].StartTime.Before(moved[j].StartTime) })
	for _, b := range moved {
		s.publish(ctx, queue.EventBookingUpdated, b)
	}
	span.SetAttributes(attribute.Int("booking.moved", len(moved)))
	return moved, nil
}

// seriesMembers returns the active bookings that belong to seriesID,
// including a series root whose ID equals it.
func seriesMembers(all []model.Booking, seriesID string) []model.Booking {
	var out []model.Booking
	for _, b := range all {
		if !b.Status.Active() {
			continue
		}
		if b.ID == seriesID || b.Series() == seriesID {
			out = append(out, b.Clone())
		}
	}
	return out
}

// Get returns a booking regardless of its status.
func (s *BookingService) Get(ctx context.Context, id string) (model.Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Booking{}, translateRepoError(err)
	}
	return b, nil
}

// List filters, sorts and paginates every stored booking.
func (s *BookingService) List(ctx context.Context, q ListQuery) (BookingPage, error) {
	ctx, span := tracer.Start(ctx, "BookingService.List")
	defer span.End()

	all, err := s.repo.List(ctx)
	if err != nil {
		return BookingPage{}, endSpan(span, fmt.Errorf("list bookings: %w", err))
	}
	page := ApplyQuery(all, q)
	span.SetAttributes(attribute.Int("booking.total", page.Total))
	return page, nil
}

// Availability lists the free durationMinutes-long candidates of the
// working window on date together with the day's bookings on resourceID.
func (s *BookingService) Availability(ctx context.Context, resourceID, date string, durationMinutes int) (model.Availability, error) {
	ctx, span := tracer.Start(ctx, "BookingService.Availability",
		trace.WithAttributes(attribute.String("booking.resource_id", resourceID)))
	defer span.End()

	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return model.Availability{}, endSpan(span, ErrInvalidResource)
	}
	if strings.TrimSpace(date) == "" {
		return model.Availability{}, endSpan(span, ErrInvalidDate)
	}
	day, err := ParseDay(date, s.loc)
	if err != nil {
		return model.Availability{}, endSpan(span, fmt.Errorf("%w: %q", ErrInvalidDate, date))
	}
	if durationMinutes <= 0 || durationMinutes > MaxSlotMinutes {
		return model.Availability{}, endSpan(span, ErrInvalidDuration)
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return model.Availability{}, endSpan(span, fmt.Errorf("list bookings: %w", err))
	}
	dayBookings := DayBookings(all, resourceID, day)
	for i := range dayBookings {
		dayBookings[i].StartTime = dayBookings[i].StartTime.In(s.loc)
		dayBookings[i].EndTime = dayBookings[i].EndTime.In(s.loc)
	}

	return model.Availability{
		Date:           day.Format(dayLayout),
		ResourceID:     resourceID,
		Duration:       durationMinutes,
		AvailableSlots: GenerateSlots(day, time.Duration(durationMinutes)*time.Minute, dayBookings),
		BookedSlots:    BookedSlots(dayBookings),
	}, nil
}

// publish emits a lifecycle event.  The write has already been persisted,
// so a failing broker is only logged.
func (s *BookingService) publish(ctx context.Context, eventType string, b model.Booking) {
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.NewBookingEvent(eventType, b, s.clock())
	if err := s.events.PublishBookingEvent(pctx, ev); err != nil {
		s.logger.Warnf("publish %s for booking %s failed: %v", eventType, b.ID, err)
	}
}

func translateRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrBookingNotFound
	case errors.Is(err, repository.ErrConflict):
		return &ConflictError{}
	}
	return err
}

// endSpan records err on span unless it is a client error, and returns it.
func endSpan(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	if !isClientError(err) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func isClientError(err error) bool {
	for _, target := range []error{
		ErrInvalidTitle, ErrInvalidDates, ErrInvalidDateFormat, ErrInvalidDateRange,
		ErrInvalidResource, ErrInvalidStatus, ErrInvalidDate, ErrInvalidDuration,
		ErrInvalidSeries, ErrInvalidShift, ErrBookingNotFound, ErrSeriesNotFound,
		ErrBookingConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func optional(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func valueOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func nonEmptyOr(p *string, def string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return def
	}
	return strings.TrimSpace(*p)
}
