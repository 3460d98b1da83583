package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"familytrack/internal/core/apperr"
	"familytrack/internal/core/geo"
	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"
	"familytrack/internal/core/tracker"

	"golang.org/x/sync/errgroup"
)

// IngestRequest is a position report as received from a client.
type IngestRequest struct {
	UserID    string     `json:"userId" validate:"required"`
	Latitude  *float64   `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64   `json:"longitude" validate:"required,gte=-180,lte=180"`
	Accuracy  *float64   `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	Altitude  *float64   `json:"altitude,omitempty"`
	Heading   *float64   `json:"heading,omitempty" validate:"omitempty,gte=0,lte=360"`
	Speed     *float64   `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// Origin identifies the realtime connection that sent the sample, if any.
	Origin string `json:"-"`
}

// Distance is the great-circle distance between the current positions of two users.
type Distance struct {
	UserA          string  `json:"userA"`
	UserB          string  `json:"userB"`
	DistanceMeters float64 `json:"distanceMeters"`
	DistanceKm     float64 `json:"distanceKm"` // rounded to two decimals
}

type LocationService interface {
	// Ingest validates and records a sample, then runs the derived checks. Only a failure to
	// record the sample is returned; derived check failures are logged.
	Ingest(ctx context.Context, req IngestRequest) (*model.LocationSample, error)
	GetCurrent(ctx context.Context, callerID, userID string) (*model.CachedPosition, error)
	GetHistory(ctx context.Context, callerID, userID string, q repository.HistoryQuery) ([]*model.LocationSample, error)
	GetDistance(ctx context.Context, callerID, userA, userB string) (*Distance, error)
	// HandleInactivity fans out an alert raised by the sweeper.
	HandleInactivity(ctx context.Context, alert *model.InactivityAlert)
}

// Trackers groups the stateful detectors the ingestion path drives.
type Trackers struct {
	Positions  *tracker.PositionCache
	Membership *tracker.MembershipTracker
	Proximity  *tracker.ProximityDetector
	Speed      *tracker.SpeedDetector
}

type locationService struct {
	repos     *repository.Repositories
	trackers  Trackers
	publisher Publisher
	notifier  Notifier
	now       func() time.Time
}

func NewLocationService(repos *repository.Repositories, trackers Trackers, publisher Publisher, notifier Notifier) LocationService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &locationService{
		repos:     repos,
		trackers:  trackers,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

func (s *locationService) Ingest(ctx context.Context, req IngestRequest) (*model.LocationSample, error) {
	const op = "location.ingest"

	if err := validate.Struct(req); err != nil {
		return nil, apperr.Validation(op, "%s", describe(err))
	}

	ts := s.now()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = *req.Timestamp
		if err := s.trackers.Positions.CheckTimestamp(ts); err != nil {
			return nil, apperr.Validation(op, "%v", err)
		}
	}
	sample := model.NewLocationSample(req.UserID, *req.Latitude, *req.Longitude, ts)
	sample.Accuracy = req.Accuracy
	sample.Altitude = req.Altitude
	sample.Heading = req.Heading
	sample.Speed = req.Speed

	// History first: a failed append leaves the cache untouched.
	if err := s.repos.Locations.Create(ctx, sample); err != nil {
		return nil, apperr.Storage(op, err)
	}

	stored, err := s.trackers.Positions.Put(ctx, sample.Position())
	if err != nil {
		// undo the append so a failed ingestion leaves nothing behind
		if derr := s.repos.Locations.Delete(context.WithoutCancel(ctx), sample.ID); derr != nil {
			log.Printf("[location] could not remove sample %s after cache failure: %v", sample.ID, derr)
		}
		return nil, apperr.Storage(op, err)
	}
	if !stored {
		log.Printf("[location] sample for %s at %s is older than the cached position, skipping checks", sample.UserID, sample.Timestamp.Format(time.RFC3339))
		return sample, nil
	}

	s.derive(context.WithoutCancel(ctx), sample, req.Origin)
	return sample, nil
}

// derive publishes the update and runs the derived checks concurrently. Each check is
// isolated: an error or panic in one is logged and never reaches the others or the caller.
func (s *locationService) derive(ctx context.Context, sample *model.LocationSample, origin string) {
	member, err := s.repos.Families.FindByUserID(ctx, sample.UserID)
	if err != nil {
		log.Printf("[location] family lookup for %s failed: %v", sample.UserID, err)
	}
	familyID := ""
	if member != nil {
		familyID = member.FamilyID
	}

	s.publish(familyID, model.Event{
		Type:   model.EventFamilyLocationUpdate,
		UserID: sample.UserID,
		Data: model.LocationUpdate{
			UserID:    sample.UserID,
			Latitude:  sample.Latitude,
			Longitude: sample.Longitude,
			Timestamp: sample.Timestamp,
		},
		Origin: origin,
	})

	pos := sample.Position()
	var g errgroup.Group
	g.Go(isolate("geofence", func() error { return s.checkGeofences(ctx, familyID, pos) }))
	g.Go(isolate("proximity", func() error { return s.checkProximity(ctx, familyID, pos) }))
	g.Go(isolate("speed", func() error { return s.checkSpeed(ctx, familyID, sample) }))
	g.Wait()
}

func isolate(name string, check func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			if err != nil {
				log.Printf("[location] %s check failed: %v", name, apperr.Compute(name, err))
			}
			err = nil
		}()
		return check()
	}
}

func (s *locationService) checkGeofences(ctx context.Context, familyID string, pos model.CachedPosition) error {
	fences, err := s.repos.Geofences.FindActiveByOwner(ctx, pos.UserID)
	if err != nil {
		return err
	}

	var errs []error
	for _, fence := range fences {
		transition, err := s.trackers.Membership.Evaluate(ctx, pos.UserID, pos, fence)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if transition == model.TransitionUnchanged {
			continue
		}

		alert := model.NewGeofenceAlert(fence, pos.UserID, transition, pos)
		if err := s.repos.Alerts.CreateGeofenceAlert(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("persist geofence alert: %w", err))
		}

		s.publish(familyID, model.Event{Type: model.EventGeofenceTransition, UserID: pos.UserID, Data: alert})
		priority := "high"
		if fence.Kind == model.KindRestrictedZone {
			priority = "urgent"
		}
		s.notify(ctx, model.Notice{
			Type:     model.NoticeGeofence,
			UserID:   pos.UserID,
			Title:    "Geofence alert",
			Body:     fmt.Sprintf("%s %s %s", pos.UserID, transition, fence.Name),
			Priority: priority,
		})
	}
	return errors.Join(errs...)
}

func (s *locationService) checkProximity(ctx context.Context, familyID string, pos model.CachedPosition) error {
	if familyID == "" {
		return nil
	}
	members, err := s.repos.Families.FindByFamilyID(ctx, familyID)
	if err != nil {
		return err
	}

	events, err := s.trackers.Proximity.Check(ctx, pos.UserID, pos, members)
	for _, ev := range events {
		s.publish(familyID, model.Event{Type: model.EventProximity, UserID: pos.UserID, Data: ev})
		s.notify(ctx, model.Notice{
			Type:     model.NoticeProximity,
			UserID:   pos.UserID,
			Title:    "Family member nearby",
			Body:     fmt.Sprintf("%s is %.0fm from %s", pos.UserID, ev.DistanceMeters, ev.OtherUserID),
			Priority: "low",
		})
	}
	return err
}

func (s *locationService) checkSpeed(ctx context.Context, familyID string, sample *model.LocationSample) error {
	alert, err := s.trackers.Speed.Check(ctx, sample)
	if err != nil || alert == nil {
		return err
	}

	s.publish(familyID, model.Event{Type: model.EventSpeedAlert, UserID: sample.UserID, Data: alert})
	s.notify(ctx, model.Notice{
		Type:     model.NoticeSpeed,
		UserID:   sample.UserID,
		Title:    "Speed alert",
		Body:     fmt.Sprintf("%s is moving at %.1f km/h", sample.UserID, alert.SpeedMps*3.6),
		Priority: "high",
	})
	return nil
}

func (s *locationService) HandleInactivity(ctx context.Context, alert *model.InactivityAlert) {
	member, err := s.repos.Families.FindByUserID(ctx, alert.UserID)
	if err != nil {
		log.Printf("[location] family lookup for %s failed: %v", alert.UserID, err)
	}
	if member != nil {
		s.publish(member.FamilyID, model.Event{Type: model.EventInactivity, UserID: alert.UserID, Data: alert})
	}
	s.notify(ctx, model.Notice{
		Type:     model.NoticeInactivity,
		UserID:   alert.UserID,
		Title:    "No recent location",
		Body:     fmt.Sprintf("%s has not reported since %s", alert.UserID, alert.LastSeenAt.Format(time.RFC3339)),
		Priority: "medium",
	})
}

func (s *locationService) publish(familyID string, event model.Event) {
	if familyID == "" {
		return
	}
	event.FamilyID = familyID
	s.publisher.Publish(familyID, event)
}

func (s *locationService) notify(ctx context.Context, notice model.Notice) {
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = s.now()
	}
	if err := s.notifier.Notify(ctx, notice); err != nil {
		log.Printf("[location] %v", apperr.Fanout("notify", err))
	}
}

func (s *locationService) GetCurrent(ctx context.Context, callerID, userID string) (*model.CachedPosition, error) {
	const op = "location.current"
	if err := validateFamilyAccess(ctx, s.repos.Families, op, callerID, userID); err != nil {
		return nil, err
	}

	pos, err := s.trackers.Positions.Get(ctx, userID)
	if err == nil {
		return pos, nil
	}
	if !errors.Is(err, tracker.ErrUnknown) {
		log.Printf("[location] cache read for %s failed, using history: %v", userID, err)
	}

	latest, err := s.repos.Locations.FindLatestByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if latest == nil {
		return nil, apperr.NotFound(op, "no location for user %s", userID)
	}
	p := latest.Position()
	return &p, nil
}

func (s *locationService) GetHistory(ctx context.Context, callerID, userID string, q repository.HistoryQuery) ([]*model.LocationSample, error) {
	const op = "location.history"
	if err := validateFamilyAccess(ctx, s.repos.Families, op, callerID, userID); err != nil {
		return nil, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return nil, apperr.Validation(op, "from must not be after to")
	}
	if q.Limit < 0 {
		return nil, apperr.Validation(op, "limit must be positive")
	}

	samples, err := s.repos.Locations.FindByUserID(ctx, userID, q)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	return samples, nil
}

func (s *locationService) GetDistance(ctx context.Context, callerID, userA, userB string) (*Distance, error) {
	const op = "location.distance"
	if userA == "" || userB == "" {
		return nil, apperr.Validation(op, "userA and userB are required")
	}
	for _, id := range []string{userA, userB} {
		if err := validateFamilyAccess(ctx, s.repos.Families, op, callerID, id); err != nil {
			return nil, err
		}
	}

	a, err := s.fresh(ctx, op, userA)
	if err != nil {
		return nil, err
	}
	b, err := s.fresh(ctx, op, userB)
	if err != nil {
		return nil, err
	}

	meters := geo.Distance(a.Point(), b.Point())
	return &Distance{
		UserA:          userA,
		UserB:          userB,
		DistanceMeters: meters,
		DistanceKm:     math.Round(meters/10) / 100,
	}, nil
}

func (s *locationService) fresh(ctx context.Context, op, userID string) (*model.CachedPosition, error) {
	pos, err := s.trackers.Positions.Get(ctx, userID)
	if errors.Is(err, tracker.ErrUnknown) {
		return nil, apperr.NotFound(op, "location not available for user %s", userID)
	}
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	return pos, nil
}
