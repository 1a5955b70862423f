package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const requestColumns = `id, requester_id, applicant_name, unit, device_name, damage_description,
	photo_url, applicant_date, status, created_at, updated_at`

// PostgresRequestStore persists maintenance requests.
type PostgresRequestStore struct {
	conn *Connection
}

// NewPostgresRequestStore creates a request store over conn.
func NewPostgresRequestStore(conn *Connection) *PostgresRequestStore {
	return &PostgresRequestStore{conn: conn}
}

// Create inserts req with a new id. A zero status becomes pending and a zero
// applicant date becomes today.
func (s *PostgresRequestStore) Create(ctx context.Context, req *Request) (*Request, error) {
	status := req.Status
	if status == "" {
		status = StatusPending
	}

	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	applicantDate := req.ApplicantDate
	if applicantDate.IsZero() {
		applicantDate = today()
	}

	query := `
		INSERT INTO maintenance_requests
			(id, requester_id, applicant_name, unit, device_name, damage_description, photo_url, applicant_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + requestColumns

	row := s.conn.QueryRowContext(ctx, query,
		uuid.NewString(),
		nullString(req.RequesterID),
		req.ApplicantName,
		req.Unit,
		req.DeviceName,
		req.DamageDescription,
		nullString(req.PhotoURL),
		applicantDate,
		string(status),
	)

	created, err := scanRequest(row)
	if err != nil {
		return nil, translate(err, "create request")
	}

	return created, nil
}

// Get returns the request with id.
func (s *PostgresRequestStore) Get(ctx context.Context, id string) (*Request, error) {
	if !validID(id) {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	row := s.conn.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM maintenance_requests WHERE id = $1`, id)

	req, err := scanRequest(row)
	if err != nil {
		return nil, translate(err, "get request")
	}

	return req, nil
}

// List returns the requests matching filter, newest first.
func (s *PostgresRequestStore) List(ctx context.Context, filter RequestFilter) ([]*Request, error) {
	var (
		where []string
		args  []any
	)

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	if filter.Unit != "" {
		args = append(args, filter.Unit)
		where = append(where, fmt.Sprintf("unit = $%d", len(args)))
	}

	if filter.RequesterID != "" {
		if !validID(filter.RequesterID) {
			return nil, nil
		}

		args = append(args, filter.RequesterID)
		where = append(where, fmt.Sprintf("requester_id = $%d", len(args)))
	}

	query := `SELECT ` + requestColumns + ` FROM maintenance_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "list requests")
	}

	defer func() {
		_ = rows.Close()
	}()

	var requests []*Request

	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, translate(err, "scan request")
		}

		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, translate(err, "list requests")
	}

	return requests, nil
}

// Update applies patch to the request with id.
func (s *PostgresRequestStore) Update(ctx context.Context, id string, patch RequestPatch) (*Request, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.Status)
	}

	if !validID(id) {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	var set setClause

	if patch.ApplicantName != nil {
		set.add("applicant_name", *patch.ApplicantName)
	}

	if patch.Unit != nil {
		set.add("unit", *patch.Unit)
	}

	if patch.DeviceName != nil {
		set.add("device_name", *patch.DeviceName)
	}

	if patch.DamageDescription != nil {
		set.add("damage_description", *patch.DamageDescription)
	}

	if patch.PhotoURL != nil {
		set.add("photo_url", nullString(*patch.PhotoURL))
	}

	if patch.Status != nil {
		set.add("status", string(*patch.Status))
	}

	if set.empty() {
		return s.Get(ctx, id)
	}

	set.raw("updated_at = NOW()")

	args := append(set.args, id)
	query := fmt.Sprintf(`UPDATE maintenance_requests SET %s WHERE id = $%d RETURNING %s`,
		set.String(), len(args), requestColumns)

	req, err := scanRequest(s.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, translate(err, "update request")
	}

	return req, nil
}

// Delete removes the request with id.
func (s *PostgresRequestStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	result, err := s.conn.ExecContext(ctx, `DELETE FROM maintenance_requests WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete request")
	}

	return affectedOrNotFound(result, "delete request")
}

// CountByStatus returns a count for every status, including zero counts.
func (s *PostgresRequestStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM maintenance_requests GROUP BY status`)
	if err != nil {
		return nil, translate(err, "count requests")
	}

	defer func() {
		_ = rows.Close()
	}()

	counts := zeroCounts()

	for rows.Next() {
		var (
			status string
			count  int
		)

		if err := rows.Scan(&status, &count); err != nil {
			return nil, translate(err, "scan request count")
		}

		counts[Status(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, translate(err, "count requests")
	}

	return counts, nil
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		req         Request
		requesterID sql.NullString
		photoURL    sql.NullString
		status      string
	)

	err := row.Scan(
		&req.ID,
		&requesterID,
		&req.ApplicantName,
		&req.Unit,
		&req.DeviceName,
		&req.DamageDescription,
		&photoURL,
		&req.ApplicantDate,
		&status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.RequesterID = requesterID.String
	req.PhotoURL = photoURL.String
	req.Status = Status(status)

	return &req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
