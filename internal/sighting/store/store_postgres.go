package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/workflow"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/sentinel"
	txcontext "github.com/ak652231/TraceQ-sub001/pkg/platform/tx"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Postgres persists the workflow in PostgreSQL. Units of work lock the report
// row with SELECT ... FOR UPDATE and guard the write with a revision check.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB, timeout time.Duration) *Postgres {
	return &Postgres{db: db, timeout: timeout}
}

// Migrate creates the tables when they do not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply sighting schema: %w", err)
	}
	return nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn in one database transaction.
func (s *Postgres) RunInTx(ctx context.Context, fn func(store workflow.Store) error) error {
	return txcontext.Run(ctx, s.db, s.timeout, func(txCtx context.Context) error {
		tx, _ := txcontext.From(txCtx)
		return fn(&pgUnit{q: tx})
	})
}

// classify maps driver errors onto store sentinels.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	var connErr *pgconn.ConnectError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return sentinel.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, sql.ErrTxDone),
		errors.As(err, &connErr),
		pgconn.Timeout(err):
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type scanner interface {
	Scan(dest ...any) error
}

// -----------------------------------------------------------------------------
// Users and cases
// -----------------------------------------------------------------------------

func (s *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			role = EXCLUDED.role
	`, uuid.UUID(user.ID), user.Name, user.Email, string(user.Role))
	return classify(err, "create user")
}

func (s *Postgres) CreatePoliceDetails(ctx context.Context, d *models.PoliceDetails) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO police_details (user_id, full_name, email, phone, badge_id, rank, station, department, district, state, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			badge_id = EXCLUDED.badge_id,
			rank = EXCLUDED.rank,
			station = EXCLUDED.station,
			department = EXCLUDED.department,
			district = EXCLUDED.district,
			state = EXCLUDED.state,
			verified = EXCLUDED.verified
	`, uuid.UUID(d.UserID), d.FullName, d.Email, d.Phone, d.BadgeID, d.Rank, d.Station, d.Department, d.District, d.State, d.Verified)
	return classify(err, "create police details")
}

func (s *Postgres) CreateMissingPerson(ctx context.Context, p *models.MissingPerson) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO missing_persons (
			id, full_name, age, gender, photo, last_seen_location, last_seen_at,
			latitude, longitude, status, owner_id, assigned_officer_id, seen_by_officer,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		uuid.UUID(p.ID), p.FullName, p.Age, p.Gender, p.Photo, p.LastSeenLocation, nullTime(p.LastSeenAt),
		p.Latitude, p.Longitude, string(p.Status), uuid.UUID(p.OwnerID), nullUUID(uuid.UUID(p.AssignedOfficerID)), p.SeenByOfficer,
		p.CreatedAt, p.UpdatedAt,
	)
	return classify(err, "create missing person")
}

// AssignCase records the officer handling a case. Reassignment resets the seen flag.
func (s *Postgres) AssignCase(ctx context.Context, caseID id.MissingPersonID, officerID id.UserID, at time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE missing_persons
		SET seen_by_officer = CASE WHEN assigned_officer_id = $2 THEN seen_by_officer ELSE FALSE END,
			assigned_officer_id = $2,
			updated_at = $3
		WHERE id = $1
	`, uuid.UUID(caseID), uuid.UUID(officerID), at)
	if err != nil {
		return classify(err, "assign case")
	}
	return requireRow(res, "assign case")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, op)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	return findUser(ctx, s.conn(ctx), userID)
}

func findUser(ctx context.Context, q queryer, userID id.UserID) (*models.User, error) {
	var (
		raw  uuid.UUID
		user models.User
		role string
	)
	err := q.QueryRowContext(ctx, `SELECT id, name, email, role FROM users WHERE id = $1`, uuid.UUID(userID)).
		Scan(&raw, &user.Name, &user.Email, &role)
	if err != nil {
		return nil, classify(err, "find user")
	}
	user.ID = id.UserID(raw)
	parsed, err := id.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.Role = parsed
	return &user, nil
}

func (s *Postgres) FindPoliceDetails(ctx context.Context, userID id.UserID) (*models.PoliceDetails, error) {
	return findPoliceDetails(ctx, s.conn(ctx), userID)
}

func findPoliceDetails(ctx context.Context, q queryer, userID id.UserID) (*models.PoliceDetails, error) {
	var (
		raw uuid.UUID
		d   models.PoliceDetails
	)
	err := q.QueryRowContext(ctx, `
		SELECT user_id, full_name, email, phone, badge_id, rank, station, department, district, state, verified
		FROM police_details WHERE user_id = $1
	`, uuid.UUID(userID)).Scan(&raw, &d.FullName, &d.Email, &d.Phone, &d.BadgeID, &d.Rank, &d.Station, &d.Department, &d.District, &d.State, &d.Verified)
	if err != nil {
		return nil, classify(err, "find police details")
	}
	d.UserID = id.UserID(raw)
	return &d, nil
}

const personColumns = `id, full_name, age, gender, photo, last_seen_location, last_seen_at,
	latitude, longitude, status, owner_id, assigned_officer_id, seen_by_officer, created_at, updated_at`

func scanPerson(row scanner) (*models.MissingPerson, error) {
	var (
		p        models.MissingPerson
		raw      uuid.UUID
		owner    uuid.UUID
		officer  uuid.NullUUID
		lastSeen sql.NullTime
		status   string
	)
	if err := row.Scan(&raw, &p.FullName, &p.Age, &p.Gender, &p.Photo, &p.LastSeenLocation, &lastSeen,
		&p.Latitude, &p.Longitude, &status, &owner, &officer, &p.SeenByOfficer, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = id.MissingPersonID(raw)
	p.OwnerID = id.UserID(owner)
	if officer.Valid {
		p.AssignedOfficerID = id.UserID(officer.UUID)
	}
	if lastSeen.Valid {
		p.LastSeenAt = lastSeen.Time
	}
	p.Status = models.CaseStatus(status)
	return &p, nil
}

func (s *Postgres) FindMissingPerson(ctx context.Context, caseID id.MissingPersonID) (*models.MissingPerson, error) {
	return findPerson(ctx, s.conn(ctx), caseID)
}

func findPerson(ctx context.Context, q queryer, caseID id.MissingPersonID) (*models.MissingPerson, error) {
	row := q.QueryRowContext(ctx, `SELECT `+personColumns+` FROM missing_persons WHERE id = $1`, uuid.UUID(caseID))
	p, err := scanPerson(row)
	if err != nil {
		return nil, classify(err, "find missing person")
	}
	return p, nil
}

// MarkCaseSeen sets seen_by_officer for the assigned officer. It returns false
// when the flag was already set.
func (s *Postgres) MarkCaseSeen(ctx context.Context, caseID id.MissingPersonID, officerID id.UserID, at time.Time) (bool, error) {
	var (
		assigned uuid.NullUUID
		seen     bool
	)
	err := s.db.QueryRowContext(ctx, `
		WITH target AS (
			SELECT id, assigned_officer_id, seen_by_officer FROM missing_persons WHERE id = $1
		), updated AS (
			UPDATE missing_persons m
			SET seen_by_officer = TRUE, updated_at = $3
			FROM target t
			WHERE m.id = t.id AND t.assigned_officer_id = $2 AND t.seen_by_officer = FALSE
			RETURNING m.id
		)
		SELECT t.assigned_officer_id, t.seen_by_officer FROM target t
	`, uuid.UUID(caseID), uuid.UUID(officerID), at).Scan(&assigned, &seen)
	if err != nil {
		return false, classify(err, "mark case seen")
	}
	if !assigned.Valid || id.UserID(assigned.UUID) != officerID {
		return false, sentinel.ErrInvalidState
	}
	return !seen, nil
}

// CountUnseenCases counts cases assigned to an officer that they have not opened.
func (s *Postgres) CountUnseenCases(ctx context.Context, officerID id.UserID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM missing_persons WHERE assigned_officer_id = $1 AND seen_by_officer = FALSE
	`, uuid.UUID(officerID)).Scan(&n)
	if err != nil {
		return 0, classify(err, "count unseen cases")
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Sighting reports
// -----------------------------------------------------------------------------

const reportColumns = `id, missing_person_id, reported_by_id, verified_by_officer_id, sighted_at, latitude, longitude,
	reporter_photo, sighting_name, location_details, appearance_notes, behavior_notes, identifying_marks, seen_with,
	original_photo, analysis, reporter_heat, original_heat, match_percentage, status, verified_by_family,
	show_to_family, is_sent_verification, revision, created_at, updated_at`

func scanReport(row scanner) (*models.SightingReport, error) {
	var (
		r                      models.SightingReport
		raw, person, reporter  uuid.UUID
		officer                uuid.NullUUID
		match                  sql.NullFloat64
		status, familyResponse string
	)
	if err := row.Scan(&raw, &person, &reporter, &officer, &r.SightedAt, &r.Latitude, &r.Longitude,
		&r.ReporterPhoto, &r.SightingName, &r.LocationDetails, &r.AppearanceNotes, &r.BehaviorNotes, &r.IdentifyingMarks, &r.SeenWith,
		&r.OriginalPhoto, &r.Analysis, &r.ReporterHeat, &r.OriginalHeat, &match, &status, &familyResponse,
		&r.ShowToFamily, &r.IsSentVerification, &r.Revision, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = id.SightingReportID(raw)
	r.MissingPersonID = id.MissingPersonID(person)
	r.ReportedByID = id.UserID(reporter)
	if officer.Valid {
		r.VerifiedByOfficer = id.UserID(officer.UUID)
	}
	if match.Valid {
		v := match.Float64
		r.MatchPercentage = &v
	}
	r.Status = models.ReportStatus(status)
	r.VerifiedByFamily = models.FamilyResponse(familyResponse)
	return &r, nil
}

func (s *Postgres) FindSightingReport(ctx context.Context, reportID id.SightingReportID) (*models.SightingReport, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+reportColumns+` FROM sighting_reports WHERE id = $1`, uuid.UUID(reportID))
	r, err := scanReport(row)
	if err != nil {
		return nil, classify(err, "find sighting report")
	}
	return r, nil
}

// ListReportsByOfficer returns the reports an officer verifies, newest first.
// A nil caseID lists across all cases.
func (s *Postgres) ListReportsByOfficer(ctx context.Context, officerID id.UserID, caseID id.MissingPersonID) ([]models.SightingReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM sighting_reports
		WHERE verified_by_officer_id = $1 AND ($2::uuid IS NULL OR missing_person_id = $2)
		ORDER BY created_at DESC
	`, uuid.UUID(officerID), nullUUID(uuid.UUID(caseID)))
	if err != nil {
		return nil, classify(err, "list officer reports")
	}
	defer rows.Close()

	var out []models.SightingReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sighting report: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate sighting reports")
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

const notificationColumns = `id, user_id, type, message, sighting_report_id, missing_person_id, report_status, is_read, created_at`

func scanNotification(row scanner) (*models.Notification, error) {
	var (
		n                         models.Notification
		raw, user, report, person uuid.UUID
		kind, status              string
	)
	if err := row.Scan(&raw, &user, &kind, &n.Message, &report, &person, &status, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ID = id.NotificationID(raw)
	n.UserID = id.UserID(user)
	n.Kind = models.NotificationKind(kind)
	n.SightingReportID = id.SightingReportID(report)
	n.MissingPersonID = id.MissingPersonID(person)
	n.ReportStatus = models.ReportStatus(status)
	return &n, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Postgres) ListNotifications(ctx context.Context, userID id.UserID) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 ORDER BY seq DESC
	`, uuid.UUID(userID))
	if err != nil {
		return nil, classify(err, "list notifications")
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate notifications")
	}
	return out, nil
}

// LatestNotification returns the newest notification for a user about one report.
func (s *Postgres) LatestNotification(ctx context.Context, userID id.UserID, reportID id.SightingReportID) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND sighting_report_id = $2
		ORDER BY seq DESC
		LIMIT 1
	`, uuid.UUID(userID), uuid.UUID(reportID))
	n, err := scanNotification(row)
	if err != nil {
		return nil, classify(err, "latest notification")
	}
	return n, nil
}

// CountUnread counts unread notifications matching filter.
func (s *Postgres) CountUnread(ctx context.Context, userID id.UserID, filter models.NotificationFilter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = FALSE
		  AND ($2::uuid IS NULL OR missing_person_id = $2)
		  AND ($3::uuid IS NULL OR sighting_report_id = $3)
	`, uuid.UUID(userID), nullUUID(uuid.UUID(filter.MissingPersonID)), nullUUID(uuid.UUID(filter.SightingReportID))).Scan(&n)
	if err != nil {
		return 0, classify(err, "count unread notifications")
	}
	return n, nil
}

// MarkNotificationsRead flips the read flag on a user's notifications for one report.
func (s *Postgres) MarkNotificationsRead(ctx context.Context, userID id.UserID, reportID id.SightingReportID) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND sighting_report_id = $2 AND is_read = FALSE
	`, uuid.UUID(userID), uuid.UUID(reportID))
	if err != nil {
		return 0, classify(err, "mark notifications read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(err, "mark notifications read")
	}
	return int(n), nil
}

// -----------------------------------------------------------------------------
// Event log and outbox
// -----------------------------------------------------------------------------

const eventColumns = `sighting_report_id, revision, kind, from_status, to_status, response, actor_id, at, published_at`

func scanEvent(row scanner) (*models.ReportEvent, error) {
	var (
		e                        models.ReportEvent
		report, actor            uuid.UUID
		kind, from, to, response string
		published                sql.NullTime
	)
	if err := row.Scan(&report, &e.Revision, &kind, &from, &to, &response, &actor, &e.At, &published); err != nil {
		return nil, err
	}
	e.SightingReportID = id.SightingReportID(report)
	e.ActorID = id.UserID(actor)
	e.Kind = models.EventKind(kind)
	e.FromStatus = models.ReportStatus(from)
	e.ToStatus = models.ReportStatus(to)
	e.Response = models.FamilyResponse(response)
	if published.Valid {
		t := published.Time
		e.PublishedAt = &t
	}
	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]models.ReportEvent, error) {
	defer rows.Close()
	var out []models.ReportEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report event: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate report events")
	}
	return out, nil
}

// ListEvents returns a report's history in revision order.
func (s *Postgres) ListEvents(ctx context.Context, reportID id.SightingReportID) ([]models.ReportEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM report_events WHERE sighting_report_id = $1 ORDER BY revision
	`, uuid.UUID(reportID))
	if err != nil {
		return nil, classify(err, "list report events")
	}
	return collectEvents(rows)
}

// FetchUnpublished returns up to limit events not yet relayed, oldest first.
func (s *Postgres) FetchUnpublished(ctx context.Context, limit int) ([]models.ReportEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM report_events
		WHERE published_at IS NULL
		ORDER BY at, revision
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, classify(err, "fetch unpublished events")
	}
	return collectEvents(rows)
}

// MarkPublished stamps relayed events in one round trip.
func (s *Postgres) MarkPublished(ctx context.Context, keys []models.EventKey, at time.Time) error {
	if len(keys) == 0 {
		return nil
	}
	reports := make([]string, len(keys))
	revisions := make([]int64, len(keys))
	for i, k := range keys {
		reports[i] = k.SightingReportID.String()
		revisions[i] = k.Revision
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE report_events e
		SET published_at = $3
		FROM unnest($1::uuid[], $2::bigint[]) AS k(sighting_report_id, revision)
		WHERE e.sighting_report_id = k.sighting_report_id
		  AND e.revision = k.revision
		  AND e.published_at IS NULL
	`, pq.Array(reports), pq.Array(revisions), at)
	return classify(err, "mark events published")
}

// -----------------------------------------------------------------------------
// Unit of work
// -----------------------------------------------------------------------------

// pgUnit is the workflow.Store view bound to one open transaction.
type pgUnit struct {
	q queryer
}

func (u *pgUnit) FindUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	return findUser(ctx, u.q, userID)
}

func (u *pgUnit) FindPoliceDetails(ctx context.Context, userID id.UserID) (*models.PoliceDetails, error) {
	return findPoliceDetails(ctx, u.q, userID)
}

func (u *pgUnit) FindMissingPerson(ctx context.Context, caseID id.MissingPersonID) (*models.MissingPerson, error) {
	return findPerson(ctx, u.q, caseID)
}

func (u *pgUnit) UpdateMissingPersonStatus(ctx context.Context, caseID id.MissingPersonID, status models.CaseStatus, at time.Time) error {
	res, err := u.q.ExecContext(ctx, `
		UPDATE missing_persons SET status = $2, updated_at = $3 WHERE id = $1
	`, uuid.UUID(caseID), string(status), at)
	if err != nil {
		return classify(err, "update case status")
	}
	return requireRow(res, "update case status")
}

func (u *pgUnit) FindSightingReportForUpdate(ctx context.Context, reportID id.SightingReportID) (*models.SightingReport, error) {
	row := u.q.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM sighting_reports WHERE id = $1 FOR UPDATE`, uuid.UUID(reportID))
	r, err := scanReport(row)
	if err != nil {
		return nil, classify(err, "find sighting report")
	}
	return r, nil
}

func (u *pgUnit) CreateSightingReport(ctx context.Context, r *models.SightingReport) error {
	var match sql.NullFloat64
	if r.MatchPercentage != nil {
		match = sql.NullFloat64{Float64: *r.MatchPercentage, Valid: true}
	}
	_, err := u.q.ExecContext(ctx, `
		INSERT INTO sighting_reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`,
		uuid.UUID(r.ID), uuid.UUID(r.MissingPersonID), uuid.UUID(r.ReportedByID), nullUUID(uuid.UUID(r.VerifiedByOfficer)),
		r.SightedAt, r.Latitude, r.Longitude,
		r.ReporterPhoto, r.SightingName, r.LocationDetails, r.AppearanceNotes, r.BehaviorNotes, r.IdentifyingMarks, r.SeenWith,
		r.OriginalPhoto, r.Analysis, r.ReporterHeat, r.OriginalHeat, match, string(r.Status), string(r.VerifiedByFamily),
		r.ShowToFamily, r.IsSentVerification, r.Revision, r.CreatedAt, r.UpdatedAt,
	)
	return classify(err, "create sighting report")
}

func (u *pgUnit) UpdateSightingReport(ctx context.Context, r *models.SightingReport, expectedRevision int64) error {
	res, err := u.q.ExecContext(ctx, `
		UPDATE sighting_reports
		SET verified_by_officer_id = $3,
			status = $4,
			verified_by_family = $5,
			show_to_family = $6,
			is_sent_verification = $7,
			revision = $8,
			updated_at = $9
		WHERE id = $1 AND revision = $2
	`,
		uuid.UUID(r.ID), expectedRevision, nullUUID(uuid.UUID(r.VerifiedByOfficer)),
		string(r.Status), string(r.VerifiedByFamily), r.ShowToFamily, r.IsSentVerification, r.Revision, r.UpdatedAt,
	)
	if err != nil {
		return classify(err, "update sighting report")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "update sighting report")
	}
	if n == 0 {
		return fmt.Errorf("update sighting report: %w", sentinel.ErrConflict)
	}
	return nil
}

func (u *pgUnit) UpsertPoliceAction(ctx context.Context, a *models.PoliceAction) (*models.PoliceAction, error) {
	out := *a
	var officer uuid.UUID
	var action string
	err := u.q.QueryRowContext(ctx, `
		INSERT INTO police_actions (sighting_report_id, officer_id, action, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sighting_report_id) DO UPDATE SET
			officer_id = EXCLUDED.officer_id,
			action = EXCLUDED.action,
			updated_at = EXCLUDED.updated_at
		RETURNING officer_id, action, created_at, updated_at
	`, uuid.UUID(a.SightingReportID), uuid.UUID(a.OfficerID), string(a.Action), a.CreatedAt, a.UpdatedAt).
		Scan(&officer, &action, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, classify(err, "upsert police action")
	}
	out.OfficerID = id.UserID(officer)
	out.Action = models.ReportStatus(action)
	return &out, nil
}

func (u *pgUnit) UpsertFamilyInteraction(ctx context.Context, f *models.FamilyInteraction) (*models.FamilyInteraction, error) {
	out := *f
	err := u.q.QueryRowContext(ctx, `
		INSERT INTO family_interactions (sighting_report_id, family_user_id, response, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sighting_report_id) DO UPDATE SET
			family_user_id = EXCLUDED.family_user_id,
			response = EXCLUDED.response,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, uuid.UUID(f.SightingReportID), uuid.UUID(f.FamilyUserID), string(f.Response), f.Notes, f.CreatedAt, f.UpdatedAt).
		Scan(&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, classify(err, "upsert family interaction")
	}
	return &out, nil
}

func (u *pgUnit) CreateNotifications(ctx context.Context, notes []models.Notification) ([]models.Notification, error) {
	out := make([]models.Notification, 0, len(notes))
	for _, n := range notes {
		if n.ID.IsNil() {
			n.ID = id.NewNotificationID()
		}
		n.IsRead = false
		err := u.q.QueryRowContext(ctx, `
			INSERT INTO notifications (id, user_id, type, message, sighting_report_id, missing_person_id, report_status, is_read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, COALESCE($8, now()))
			RETURNING created_at
		`, uuid.UUID(n.ID), uuid.UUID(n.UserID), string(n.Kind), n.Message, uuid.UUID(n.SightingReportID),
			uuid.UUID(n.MissingPersonID), string(n.ReportStatus), nullTime(n.CreatedAt)).Scan(&n.CreatedAt)
		if err != nil {
			return nil, classify(err, "create notification")
		}
		out = append(out, n)
	}
	return out, nil
}

func (u *pgUnit) AppendEvent(ctx context.Context, e *models.ReportEvent) error {
	_, err := u.q.ExecContext(ctx, `
		INSERT INTO report_events (sighting_report_id, revision, kind, from_status, to_status, response, actor_id, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(e.SightingReportID), e.Revision, string(e.Kind), string(e.FromStatus), string(e.ToStatus),
		string(e.Response), uuid.UUID(e.ActorID), e.At)
	return classify(err, "append report event")
}
