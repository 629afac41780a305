package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/workflow"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/sentinel"
	txcontext "github.com/ak652231/TraceQ-sub001/pkg/platform/tx"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// numShards spreads units of work across independent locks keyed by report.
const numShards = 64

// InMemory keeps every workflow entity in process memory. Units of work are
// serialised per report by sharded locks and staged until commit, so readers
// never observe half of a transition.
type InMemory struct {
	mu            sync.RWMutex
	users         map[id.UserID]models.User
	police        map[id.UserID]models.PoliceDetails
	persons       map[id.MissingPersonID]models.MissingPerson
	reports       map[id.SightingReportID]models.SightingReport
	actions       map[id.SightingReportID]models.PoliceAction
	interactions  map[id.SightingReportID]models.FamilyInteraction
	notifications []models.Notification
	events        map[id.SightingReportID][]models.ReportEvent

	shards  [numShards]chan struct{}
	timeout time.Duration
}

// NewInMemory constructs an empty store. timeout bounds each unit of work even
// under a longer caller deadline; zero selects txcontext.DefaultTimeout.
func NewInMemory(timeout time.Duration) *InMemory {
	s := &InMemory{
		users:        make(map[id.UserID]models.User),
		police:       make(map[id.UserID]models.PoliceDetails),
		persons:      make(map[id.MissingPersonID]models.MissingPerson),
		reports:      make(map[id.SightingReportID]models.SightingReport),
		actions:      make(map[id.SightingReportID]models.PoliceAction),
		interactions: make(map[id.SightingReportID]models.FamilyInteraction),
		events:       make(map[id.SightingReportID][]models.ReportEvent),
		timeout:      timeout,
	}
	for i := range s.shards {
		s.shards[i] = make(chan struct{}, 1)
	}
	return s
}

// RunInTx runs fn against a staged view and commits its writes atomically.
func (s *InMemory) RunInTx(ctx context.Context, fn func(store workflow.Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w: %w", sentinel.ErrUnavailable, err)
	}
	timeout := s.timeout
	if timeout == 0 {
		timeout = txcontext.DefaultTimeout
	}
	// The store timeout applies under any caller deadline; the earlier one wins.
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shard := s.shards[selectShard(txcontext.ShardKey(ctx))]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for report lock: %w: %w", sentinel.ErrUnavailable, ctx.Err())
	}
	defer func() { <-shard }()

	unit := &memoryUnit{base: s}
	if err := fn(unit); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted before commit: %w: %w", sentinel.ErrUnavailable, err)
	}
	return unit.commit()
}

func selectShard(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numShards)
}

// CreateUser inserts or replaces an identity record.
func (s *InMemory) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

// CreatePoliceDetails inserts or replaces an officer profile.
func (s *InMemory) CreatePoliceDetails(_ context.Context, details *models.PoliceDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.police[details.UserID] = *details
	return nil
}

// CreateMissingPerson inserts a new case.
func (s *InMemory) CreateMissingPerson(_ context.Context, person *models.MissingPerson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[person.ID]; ok {
		return sentinel.ErrConflict
	}
	s.persons[person.ID] = *person
	return nil
}

// AssignCase records the officer handling a case.
func (s *InMemory) AssignCase(_ context.Context, caseID id.MissingPersonID, officerID id.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	person, ok := s.persons[caseID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if person.AssignedOfficerID != officerID {
		person.SeenByOfficer = false
	}
	person.AssignedOfficerID = officerID
	person.UpdatedAt = at
	s.persons[caseID] = person
	return nil
}

func (s *InMemory) FindUser(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &user, nil
}

func (s *InMemory) FindPoliceDetails(_ context.Context, userID id.UserID) (*models.PoliceDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	details, ok := s.police[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &details, nil
}

func (s *InMemory) FindMissingPerson(_ context.Context, caseID id.MissingPersonID) (*models.MissingPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	person, ok := s.persons[caseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &person, nil
}

func (s *InMemory) FindSightingReport(_ context.Context, reportID id.SightingReportID) (*models.SightingReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &report, nil
}

func (s *InMemory) FindPoliceAction(_ context.Context, reportID id.SightingReportID) (*models.PoliceAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	action, ok := s.actions[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &action, nil
}

func (s *InMemory) FindFamilyInteraction(_ context.Context, reportID id.SightingReportID) (*models.FamilyInteraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	interaction, ok := s.interactions[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &interaction, nil
}

// ListReportsByOfficer returns the reports an officer verifies, newest first.
// A nil caseID lists across all cases.
func (s *InMemory) ListReportsByOfficer(_ context.Context, officerID id.UserID, caseID id.MissingPersonID) ([]models.SightingReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SightingReport
	for _, report := range s.reports {
		if report.VerifiedByOfficer != officerID {
			continue
		}
		if !caseID.IsNil() && report.MissingPersonID != caseID {
			continue
		}
		out = append(out, report)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *InMemory) ListNotifications(_ context.Context, userID id.UserID) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

// LatestNotification returns the newest notification for a user about one report.
func (s *InMemory) LatestNotification(_ context.Context, userID id.UserID, reportID id.SightingReportID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.UserID == userID && n.SightingReportID == reportID {
			return &n, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// CountUnread counts unread notifications matching filter.
func (s *InMemory) CountUnread(_ context.Context, userID id.UserID, filter models.NotificationFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID != userID || n.IsRead {
			continue
		}
		if !filter.MissingPersonID.IsNil() && n.MissingPersonID != filter.MissingPersonID {
			continue
		}
		if !filter.SightingReportID.IsNil() && n.SightingReportID != filter.SightingReportID {
			continue
		}
		count++
	}
	return count, nil
}

// MarkNotificationsRead flips the read flag on a user's notifications for one
// report and returns how many changed.
func (s *InMemory) MarkNotificationsRead(_ context.Context, userID id.UserID, reportID id.SightingReportID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.UserID == userID && n.SightingReportID == reportID && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

// MarkCaseSeen sets seen-by-officer when officerID is the assigned officer.
// It returns false when the flag was already set.
func (s *InMemory) MarkCaseSeen(_ context.Context, caseID id.MissingPersonID, officerID id.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	person, ok := s.persons[caseID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if person.AssignedOfficerID != officerID {
		return false, sentinel.ErrInvalidState
	}
	if person.SeenByOfficer {
		return false, nil
	}
	person.SeenByOfficer = true
	person.UpdatedAt = at
	s.persons[caseID] = person
	return true, nil
}

// CountUnseenCases counts cases assigned to an officer that they have not opened.
func (s *InMemory) CountUnseenCases(_ context.Context, officerID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, person := range s.persons {
		if person.AssignedOfficerID == officerID && !person.SeenByOfficer {
			count++
		}
	}
	return count, nil
}

// ListEvents returns a report's history in revision order.
func (s *InMemory) ListEvents(_ context.Context, reportID id.SightingReportID) ([]models.ReportEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[reportID]
	out := make([]models.ReportEvent, len(events))
	copy(out, events)
	return out, nil
}

// FetchUnpublished returns up to limit events not yet relayed, oldest first.
func (s *InMemory) FetchUnpublished(_ context.Context, limit int) ([]models.ReportEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ReportEvent
	for _, events := range s.events {
		for _, e := range events {
			if e.PublishedAt == nil {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Revision < out[j].Revision
		}
		return out[i].At.Before(out[j].At)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkPublished stamps relayed events.
func (s *InMemory) MarkPublished(_ context.Context, keys []models.EventKey, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		events := s.events[key.SightingReportID]
		for i := range events {
			if events[i].Revision == key.Revision && events[i].PublishedAt == nil {
				stamp := at
				events[i].PublishedAt = &stamp
			}
		}
	}
	return nil
}

// memoryUnit stages writes for one unit of work. Reads go to the committed
// state; the per-report shard lock keeps that state stable for the report in play.
type memoryUnit struct {
	base *InMemory

	caseStatuses  []caseStatusWrite
	newReports    []models.SightingReport
	reportUpdates []reportWrite
	actions       []models.PoliceAction
	interactions  []models.FamilyInteraction
	notifications []models.Notification
	events        []models.ReportEvent
}

type caseStatusWrite struct {
	caseID id.MissingPersonID
	status models.CaseStatus
	at     time.Time
}

type reportWrite struct {
	report   models.SightingReport
	expected int64
}

func (u *memoryUnit) FindUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	return u.base.FindUser(ctx, userID)
}

func (u *memoryUnit) FindPoliceDetails(ctx context.Context, userID id.UserID) (*models.PoliceDetails, error) {
	return u.base.FindPoliceDetails(ctx, userID)
}

func (u *memoryUnit) FindMissingPerson(ctx context.Context, caseID id.MissingPersonID) (*models.MissingPerson, error) {
	return u.base.FindMissingPerson(ctx, caseID)
}

func (u *memoryUnit) FindSightingReportForUpdate(ctx context.Context, reportID id.SightingReportID) (*models.SightingReport, error) {
	return u.base.FindSightingReport(ctx, reportID)
}

func (u *memoryUnit) UpdateMissingPersonStatus(_ context.Context, caseID id.MissingPersonID, status models.CaseStatus, at time.Time) error {
	u.caseStatuses = append(u.caseStatuses, caseStatusWrite{caseID: caseID, status: status, at: at})
	return nil
}

func (u *memoryUnit) CreateSightingReport(_ context.Context, report *models.SightingReport) error {
	u.newReports = append(u.newReports, *report)
	return nil
}

func (u *memoryUnit) UpdateSightingReport(_ context.Context, report *models.SightingReport, expectedRevision int64) error {
	u.reportUpdates = append(u.reportUpdates, reportWrite{report: *report, expected: expectedRevision})
	return nil
}

func (u *memoryUnit) UpsertPoliceAction(_ context.Context, action *models.PoliceAction) (*models.PoliceAction, error) {
	stored := *action
	if existing, err := u.base.FindPoliceAction(context.Background(), action.SightingReportID); err == nil {
		stored.CreatedAt = existing.CreatedAt
	}
	u.actions = append(u.actions, stored)
	return &stored, nil
}

func (u *memoryUnit) UpsertFamilyInteraction(_ context.Context, interaction *models.FamilyInteraction) (*models.FamilyInteraction, error) {
	stored := *interaction
	if existing, err := u.base.FindFamilyInteraction(context.Background(), interaction.SightingReportID); err == nil {
		stored.CreatedAt = existing.CreatedAt
	}
	u.interactions = append(u.interactions, stored)
	return &stored, nil
}

func (u *memoryUnit) CreateNotifications(ctx context.Context, notes []models.Notification) ([]models.Notification, error) {
	out := make([]models.Notification, 0, len(notes))
	for _, n := range notes {
		if n.ID.IsNil() {
			n.ID = id.NewNotificationID()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = requestcontext.Now(ctx)
		}
		n.IsRead = false
		out = append(out, n)
	}
	u.notifications = append(u.notifications, out...)
	return out, nil
}

func (u *memoryUnit) AppendEvent(_ context.Context, event *models.ReportEvent) error {
	u.events = append(u.events, *event)
	return nil
}

// commit validates every staged precondition, then applies all writes under
// one lock.
func (u *memoryUnit) commit() error {
	s := u.base
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range u.newReports {
		if _, exists := s.reports[r.ID]; exists {
			return fmt.Errorf("create sighting report: %w", sentinel.ErrConflict)
		}
	}
	revisions := make(map[id.SightingReportID]int64)
	for _, w := range u.reportUpdates {
		current, ok := revisions[w.report.ID]
		if !ok {
			stored, exists := s.reports[w.report.ID]
			if !exists {
				return fmt.Errorf("update sighting report: %w", sentinel.ErrNotFound)
			}
			current = stored.Revision
		}
		if current != w.expected {
			return fmt.Errorf("update sighting report: %w", sentinel.ErrConflict)
		}
		revisions[w.report.ID] = w.report.Revision
	}
	for _, w := range u.caseStatuses {
		if _, ok := s.persons[w.caseID]; !ok {
			return fmt.Errorf("update case status: %w", sentinel.ErrNotFound)
		}
	}
	next := make(map[id.SightingReportID]int64)
	for _, e := range u.events {
		last, ok := next[e.SightingReportID]
		if !ok {
			last = int64(len(s.events[e.SightingReportID]))
		}
		if e.Revision != last+1 {
			return fmt.Errorf("append report event: %w", sentinel.ErrConflict)
		}
		next[e.SightingReportID] = e.Revision
	}

	for _, r := range u.newReports {
		s.reports[r.ID] = r
	}
	for _, w := range u.reportUpdates {
		s.reports[w.report.ID] = w.report
	}
	for _, w := range u.caseStatuses {
		person := s.persons[w.caseID]
		person.Status = w.status
		person.UpdatedAt = w.at
		s.persons[w.caseID] = person
	}
	for _, a := range u.actions {
		s.actions[a.SightingReportID] = a
	}
	for _, i := range u.interactions {
		s.interactions[i.SightingReportID] = i
	}
	s.notifications = append(s.notifications, u.notifications...)
	for _, e := range u.events {
		s.events[e.SightingReportID] = append(s.events[e.SightingReportID], e)
	}
	return nil
}
