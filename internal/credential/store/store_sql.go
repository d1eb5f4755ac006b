package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/models"
	"devcred/pkg/domain"
	"devcred/pkg/platform/sentinel"
)

// dialect captures the few differences between the SQL backends.
type dialect struct {
	// positional rewrites $n placeholders for drivers that only accept ?.
	positional bool
	// textTime stores timestamps as RFC 3339 text instead of native values.
	textTime bool
	// isConflict reports a primary-key violation.
	isConflict func(err error) bool
}

// SQLStore persists credentials through database/sql. Claims, proof, issuer
// and metadata are stored as JSON documents.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *SQLStore) query(q string) string {
	if !s.dialect.positional {
		return q
	}
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		if q[i] == '$' && i+1 < len(q) && q[i+1] >= '0' && q[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(q) && q[i+1] >= '0' && q[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// textTimeLayout has a fixed width so stored timestamps sort as text.
const textTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *SQLStore) timeValue(t time.Time) any {
	if s.dialect.textTime {
		return t.UTC().Format(textTimeLayout)
	}
	return t.UTC()
}

func (s *SQLStore) Store(ctx context.Context, c *credential.Credential) (domain.CredentialID, error) {
	if c == nil {
		return "", fmt.Errorf("credential is required")
	}
	rec := credential.ToModel(c)

	issuer, err := json.Marshal(rec.Issuer)
	if err != nil {
		return "", fmt.Errorf("encode issuer: %w", err)
	}
	claims, err := json.Marshal(rec.Claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	proof, err := json.Marshal(rec.Proof)
	if err != nil {
		return "", fmt.Errorf("encode proof: %w", err)
	}
	var metadata any
	if len(rec.Metadata) > 0 {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return "", fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(raw)
	}
	var expiresAt any
	if rec.ExpiresAt != nil {
		expiresAt = s.timeValue(*rec.ExpiresAt)
	}

	query := `
		INSERT INTO credentials (
			id, subject, type, version, issuer, claims, proof, issued_at, expires_at, metadata, status, privacy_level
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, s.query(query),
		rec.ID.String(),
		rec.Subject.String(),
		string(rec.Type),
		rec.Version,
		string(issuer),
		string(claims),
		string(proof),
		s.timeValue(rec.IssuedAt),
		expiresAt,
		metadata,
		string(rec.Status),
		rec.PrivacyLevel,
	)
	if err != nil {
		if s.dialect.isConflict != nil && s.dialect.isConflict(err) {
			return "", fmt.Errorf("credential %s: %w", rec.ID, sentinel.ErrConflict)
		}
		return "", dbError("store credential", err)
	}
	return rec.ID, nil
}

func (s *SQLStore) Retrieve(ctx context.Context, id domain.CredentialID) (*credential.Credential, error) {
	query := `
		SELECT id, subject, type, version, issuer, claims, proof, issued_at, expires_at, metadata, status, privacy_level
		FROM credentials
		WHERE id = $1
	`
	rec, err := scanCredential(s.db.QueryRowContext(ctx, s.query(query), id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, dbError("retrieve credential", err)
	}
	c, err := credential.FromModel(*rec)
	if err != nil {
		return nil, fmt.Errorf("decode credential %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLStore) List(ctx context.Context, subject domain.SubjectID) ([]domain.CredentialID, error) {
	query := `SELECT id FROM credentials WHERE subject = $1 ORDER BY issued_at, id`
	rows, err := s.db.QueryContext(ctx, s.query(query), subject.String())
	if err != nil {
		return nil, dbError("list credentials", err)
	}
	defer rows.Close()

	var ids []domain.CredentialID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan credential id: %w", err)
		}
		ids = append(ids, domain.CredentialID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list credentials", err)
	}
	return ids, nil
}

func (s *SQLStore) Delete(ctx context.Context, id domain.CredentialID) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.query(`DELETE FROM credentials WHERE id = $1`), id.String())
	if err != nil {
		return false, dbError("delete credential", err)
	}
	return affected(res)
}

func (s *SQLStore) UpdateStatus(ctx context.Context, id domain.CredentialID, status models.Status) (bool, error) {
	if err := checkStatus(status); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.query(`UPDATE credentials SET status = $1 WHERE id = $2`), string(status), id.String())
	if err != nil {
		return false, dbError("update credential status", err)
	}
	return affected(res)
}

// dbError marks lost connections as sentinel.ErrUnavailable so callers can
// tell an outage from a bad row.
func dbError(op string, err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Health pings the database.
func (s *SQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type credentialRow interface {
	Scan(dest ...any) error
}

func scanCredential(row credentialRow) (*models.CredentialRecord, error) {
	var (
		rec                           models.CredentialRecord
		id, subject, credType, status string
		issuer, claims, proof         []byte
		metadata                      []byte
		privacyLevel                  sql.NullString
		issuedAt, expiresAt           any
	)
	if err := row.Scan(&id, &subject, &credType, &rec.Version, &issuer, &claims, &proof, &issuedAt, &expiresAt, &metadata, &status, &privacyLevel); err != nil {
		return nil, err
	}
	rec.ID = domain.CredentialID(id)
	rec.Subject = domain.SubjectID(subject)
	rec.Type = models.CredentialType(credType)
	rec.Status = models.Status(status)
	rec.PrivacyLevel = privacyLevel.String

	if err := json.Unmarshal(issuer, &rec.Issuer); err != nil {
		return nil, fmt.Errorf("decode issuer: %w", err)
	}
	if err := json.Unmarshal(claims, &rec.Claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	if err := json.Unmarshal(proof, &rec.Proof); err != nil {
		return nil, fmt.Errorf("decode proof: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}

	var err error
	if rec.IssuedAt, err = parseTime(issuedAt); err != nil {
		return nil, fmt.Errorf("decode issued_at: %w", err)
	}
	if expiresAt != nil {
		t, err := parseTime(expiresAt)
		if err != nil {
			return nil, fmt.Errorf("decode expires_at: %w", err)
		}
		rec.ExpiresAt = &t
	}
	return &rec, nil
}

// parseTime accepts native timestamps and the text form used by SQLite.
func parseTime(src any) (time.Time, error) {
	switch v := src.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, v)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(v))
	case int64:
		return time.UnixMilli(v).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %T", src)
	}
}
