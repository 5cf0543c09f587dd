package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-relief-triage/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

var (
	_ RequestRepository   = (*SQLiteDB)(nil)
	_ DonationRepository  = (*SQLiteDB)(nil)
	_ ResponderRepository = (*SQLiteDB)(nil)
)

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// SQLite serialises writers anyway; a single connection also keeps
	// ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			analysis TEXT NOT NULL,
			priority TEXT NOT NULL,
			total_score REAL NOT NULL,
			urgency_level TEXT NOT NULL,
			urgency_rank INTEGER NOT NULL,
			location TEXT NOT NULL,
			status TEXT NOT NULL,
			assigned_to TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			received_at INTEGER NOT NULL,
			resolved_at INTEGER
		);

		CREATE TABLE IF NOT EXISTS donations (
			id TEXT PRIMARY KEY,
			donor_name TEXT NOT NULL,
			location TEXT NOT NULL,
			resources TEXT NOT NULL,
			quantity TEXT NOT NULL DEFAULT '',
			contact TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			assigned_to TEXT NOT NULL DEFAULT '',
			posted_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS safe_zones (
			id TEXT PRIMARY KEY,
			location TEXT NOT NULL,
			status TEXT NOT NULL,
			resources TEXT NOT NULL,
			contact_person TEXT NOT NULL DEFAULT '',
			contact_number TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS needs (
			id TEXT PRIMARY KEY,
			location TEXT NOT NULL,
			need_type TEXT NOT NULL,
			quantity TEXT NOT NULL DEFAULT '',
			urgency TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			posted_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS responders (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			assigned_zone TEXT NOT NULL DEFAULT '',
			family_members TEXT NOT NULL,
			family_location TEXT NOT NULL,
			family_contact TEXT NOT NULL DEFAULT '',
			family_status TEXT NOT NULL,
			family_notes TEXT NOT NULL DEFAULT '',
			last_contact INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_requests_score ON requests(total_score DESC);
		CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
		CREATE INDEX IF NOT EXISTS idx_donations_status ON donations(status);
		CREATE INDEX IF NOT EXISTS idx_needs_location ON needs(location);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Times are stored as unix nanoseconds in UTC.
func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// Requests

const requestColumns = `id, message, analysis, priority, status, assigned_to, notes, received_at, resolved_at`

func (s *SQLiteDB) AddRequest(ctx context.Context, r *models.Request) error {
	analysis, err := json.Marshal(r.Analysis)
	if err != nil {
		return fmt.Errorf("error encoding analysis: %w", err)
	}
	priority, err := json.Marshal(r.Priority)
	if err != nil {
		return fmt.Errorf("error encoding priority: %w", err)
	}

	var resolved sql.NullInt64
	if r.ResolvedAt != nil {
		resolved = sql.NullInt64{Int64: toUnix(*r.ResolvedAt), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests (id, message, analysis, priority, total_score, urgency_level, urgency_rank,
			location, status, assigned_to, notes, received_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Message, string(analysis), string(priority),
		r.Priority.TotalScore, string(r.Priority.UrgencyLevel), r.Priority.UrgencyLevel.Rank(),
		r.Analysis.Location, string(r.Status), r.AssignedTo, r.Notes,
		toUnix(r.ReceivedAt), resolved,
	)
	if err != nil {
		return fmt.Errorf("error inserting request %s: %w", r.ID, err)
	}
	return nil
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r                  models.Request
		analysis, priority string
		status             string
		received           int64
		resolved           sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Message, &analysis, &priority, &status, &r.AssignedTo, &r.Notes, &received, &resolved); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(analysis), &r.Analysis); err != nil {
		return nil, fmt.Errorf("error decoding analysis for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(priority), &r.Priority); err != nil {
		return nil, fmt.Errorf("error decoding priority for %s: %w", r.ID, err)
	}
	r.Status = models.RequestStatus(status)
	r.ReceivedAt = fromUnix(received)
	if resolved.Valid {
		t := fromUnix(resolved.Int64)
		r.ResolvedAt = &t
	}
	return &r, nil
}

func (s *SQLiteDB) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting request %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteDB) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM requests WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("error checking request %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLiteDB) ListRequests(ctx context.Context, opts RequestFilter) ([]models.Request, error) {
	var (
		where []string
		args  []any
	)
	if opts.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*opts.Status))
	}
	if opts.Location != "" {
		where = append(where, "location = ? COLLATE NOCASE")
		args = append(args, strings.TrimSpace(opts.Location))
	}
	if opts.MinUrgency != nil {
		where = append(where, "urgency_rank >= ?")
		args = append(args, opts.MinUrgency.Rank())
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY total_score DESC, received_at ASC"
	switch {
	case opts.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	case opts.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT; -1 lifts the cap.
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing requests: %w", err)
	}
	defer rows.Close()

	results := []models.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning request: %w", err)
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// UpdateStatus applies a lifecycle change inside a transaction so that two
// responders cannot both move the same request.
func (s *SQLiteDB) UpdateStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.Request, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting request %s: %w", id, err)
	}

	if err := r.Apply(u); err != nil {
		return nil, fmt.Errorf("request %s %s -> %s: %w", id, r.Status, u.Status, err)
	}

	var resolved sql.NullInt64
	if r.ResolvedAt != nil {
		resolved = sql.NullInt64{Int64: toUnix(*r.ResolvedAt), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE requests SET status = ?, assigned_to = ?, notes = ?, resolved_at = ? WHERE id = ?`,
		string(r.Status), r.AssignedTo, r.Notes, resolved, id,
	)
	if err != nil {
		return nil, fmt.Errorf("error updating request %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing status update: %w", err)
	}
	return r, nil
}

func (s *SQLiteDB) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		ByStatus:   make(map[string]int),
		ByUrgency:  make(map[string]int),
		ByLocation: make(map[string]int),
	}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"status", stats.ByStatus},
		{"urgency_level", stats.ByUrgency},
		{"location", stats.ByLocation},
	}
	for _, g := range groups {
		if err := s.countBy(ctx, g.column, g.into); err != nil {
			return nil, err
		}
	}

	for _, n := range stats.ByStatus {
		stats.Total += n
	}
	return stats, nil
}

// countBy only ever receives column names from Statistics.
func (s *SQLiteDB) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+`, COUNT(1) FROM requests GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("error counting requests by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("error scanning %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

// Donations

const donationColumns = `id, donor_name, location, resources, quantity, contact, notes, status, assigned_to, posted_at`

func (s *SQLiteDB) AddDonation(ctx context.Context, d *models.Donation) error {
	resources, err := json.Marshal(d.Resources)
	if err != nil {
		return fmt.Errorf("error encoding resources: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO donations (`+donationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.DonorName, d.Location, string(resources), d.Quantity, d.Contact, d.Notes,
		string(d.Status), d.AssignedTo, toUnix(d.PostedAt),
	)
	if err != nil {
		return fmt.Errorf("error inserting donation %s: %w", d.ID, err)
	}
	return nil
}

func scanDonation(row rowScanner) (*models.Donation, error) {
	var (
		d         models.Donation
		resources string
		status    string
		posted    int64
	)
	if err := row.Scan(&d.ID, &d.DonorName, &d.Location, &resources, &d.Quantity, &d.Contact, &d.Notes, &status, &d.AssignedTo, &posted); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resources), &d.Resources); err != nil {
		return nil, fmt.Errorf("error decoding resources for %s: %w", d.ID, err)
	}
	d.Status = models.DonationStatus(status)
	d.PostedAt = fromUnix(posted)
	return &d, nil
}

func (s *SQLiteDB) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = ?`, id)
	d, err := scanDonation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting donation %s: %w", id, err)
	}
	return d, nil
}

// ListDonations returns donations in posting order. An empty status
// returns all of them.
func (s *SQLiteDB) ListDonations(ctx context.Context, status models.DonationStatus) ([]models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY posted_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing donations: %w", err)
	}
	defer rows.Close()

	results := []models.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning donation: %w", err)
		}
		results = append(results, *d)
	}
	return results, rows.Err()
}

// CommitDonation hands an available donation to a request.
func (s *SQLiteDB) CommitDonation(ctx context.Context, id, requestID string) (*models.Donation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = ?`, id)
	d, err := scanDonation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting donation %s: %w", id, err)
	}
	if !d.Available() {
		return nil, fmt.Errorf("donation %s: %w", id, models.ErrDonationCommitted)
	}

	d.Status = models.DonationCommitted
	d.AssignedTo = requestID
	_, err = tx.ExecContext(ctx, `UPDATE donations SET status = ?, assigned_to = ? WHERE id = ?`,
		string(d.Status), d.AssignedTo, id)
	if err != nil {
		return nil, fmt.Errorf("error committing donation %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}
	return d, nil
}

// Safe zones

func (s *SQLiteDB) AddSafeZone(ctx context.Context, z *models.SafeZone) error {
	resources, err := json.Marshal(z.Resources)
	if err != nil {
		return fmt.Errorf("error encoding resources: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO safe_zones (id, location, status, resources, contact_person, contact_number)
		VALUES (?, ?, ?, ?, ?, ?)`,
		z.ID, z.Location, z.Status, string(resources), z.ContactPerson, z.ContactNumber,
	)
	if err != nil {
		return fmt.Errorf("error inserting safe zone %s: %w", z.ID, err)
	}
	return nil
}

func (s *SQLiteDB) ListSafeZones(ctx context.Context) ([]models.SafeZone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, location, status, resources, contact_person, contact_number
		FROM safe_zones ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("error listing safe zones: %w", err)
	}
	defer rows.Close()

	results := []models.SafeZone{}
	for rows.Next() {
		var (
			z         models.SafeZone
			resources string
		)
		if err := rows.Scan(&z.ID, &z.Location, &z.Status, &resources, &z.ContactPerson, &z.ContactNumber); err != nil {
			return nil, fmt.Errorf("error scanning safe zone: %w", err)
		}
		if err := json.Unmarshal([]byte(resources), &z.Resources); err != nil {
			return nil, fmt.Errorf("error decoding resources for %s: %w", z.ID, err)
		}
		results = append(results, z)
	}
	return results, rows.Err()
}

// Needs

func (s *SQLiteDB) AddNeed(ctx context.Context, n *models.Need) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO needs (id, location, need_type, quantity, urgency, description, status, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Location, n.Resource, n.Quantity, string(n.Urgency), n.Description,
		string(n.Status), toUnix(n.PostedAt),
	)
	if err != nil {
		return fmt.Errorf("error inserting need %s: %w", n.ID, err)
	}
	return nil
}

// ListNeeds returns needs in posting order. An empty status returns all of
// them.
func (s *SQLiteDB) ListNeeds(ctx context.Context, status models.NeedStatus) ([]models.Need, error) {
	query := `SELECT id, location, need_type, quantity, urgency, description, status, posted_at FROM needs`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY posted_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing needs: %w", err)
	}
	defer rows.Close()

	results := []models.Need{}
	for rows.Next() {
		var (
			n           models.Need
			urgency, st string
			posted      int64
		)
		if err := rows.Scan(&n.ID, &n.Location, &n.Resource, &n.Quantity, &urgency, &n.Description, &st, &posted); err != nil {
			return nil, fmt.Errorf("error scanning need: %w", err)
		}
		n.Urgency = models.UrgencyLevel(urgency)
		n.Status = models.NeedStatus(st)
		n.PostedAt = fromUnix(posted)
		results = append(results, n)
	}
	return results, rows.Err()
}

// Responders

const responderColumns = `id, name, role, assigned_zone, family_members, family_location, family_contact, family_status, family_notes, last_contact`

func (s *SQLiteDB) AddResponder(ctx context.Context, r *models.Responder) error {
	members, err := json.Marshal(r.Family.Members)
	if err != nil {
		return fmt.Errorf("error encoding family members: %w", err)
	}
	var last sql.NullInt64
	if r.Family.LastContact != nil {
		last = sql.NullInt64{Int64: toUnix(*r.Family.LastContact), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO responders (`+responderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Role, r.AssignedZone, string(members), r.Family.Location,
		r.Family.Contact, string(r.Family.Status), r.Family.Notes, last,
	)
	if err != nil {
		return fmt.Errorf("error inserting responder %s: %w", r.ID, err)
	}
	return nil
}

func scanResponder(row rowScanner) (*models.Responder, error) {
	var (
		r       models.Responder
		members string
		status  string
		last    sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Role, &r.AssignedZone, &members, &r.Family.Location,
		&r.Family.Contact, &status, &r.Family.Notes, &last); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(members), &r.Family.Members); err != nil {
		return nil, fmt.Errorf("error decoding family members for %s: %w", r.ID, err)
	}
	r.Family.Status = models.FamilyStatus(status)
	if last.Valid {
		t := fromUnix(last.Int64)
		r.Family.LastContact = &t
	}
	return &r, nil
}

func (s *SQLiteDB) ListResponders(ctx context.Context) ([]models.Responder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+responderColumns+` FROM responders ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("error listing responders: %w", err)
	}
	defer rows.Close()

	results := []models.Responder{}
	for rows.Next() {
		r, err := scanResponder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning responder: %w", err)
		}
		results = append(results, *r)
	}
	return results, rows.Err()
}

// UpdateFamilyStatus records a check-in with a responder's family. Empty
// notes keep the previous ones.
func (s *SQLiteDB) UpdateFamilyStatus(ctx context.Context, id string, status models.FamilyStatus, notes string, at time.Time) (*models.Responder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+responderColumns+` FROM responders WHERE id = ?`, id)
	r, err := scanResponder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting responder %s: %w", id, err)
	}

	r.Family.Status = status
	if notes != "" {
		r.Family.Notes = notes
	}
	last := at.UTC()
	r.Family.LastContact = &last

	_, err = tx.ExecContext(ctx,
		`UPDATE responders SET family_status = ?, family_notes = ?, last_contact = ? WHERE id = ?`,
		string(status), r.Family.Notes, toUnix(last), id,
	)
	if err != nil {
		return nil, fmt.Errorf("error updating responder %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing family status: %w", err)
	}
	return r, nil
}
