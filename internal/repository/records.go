package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/docvault/internal/analyze"
)

// Record is the flattened view of a confirmed document used by listings and
// the spreadsheet export.
type Record struct {
	ID           uuid.UUID
	OwnerID      string
	DocumentType string
	Title        string
	Summary      string
	Amount       *float64
	DocumentDate *string
	CreatedAt    time.Time
}

// Store persists confirmed documents. Each confirm writes one documents row
// plus, for the structured categories, one category record row in the same
// transaction.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) insertDocument(ctx context.Context, tx *sql.Tx, ownerID, docType string, res analyze.Result) (uuid.UUID, error) {
	const query = `
		INSERT INTO documents (id, owner_id, document_type, title, summary, points_of_attention, raw_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id`

	points, err := json.Marshal(res.PointsOfAttention)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode points of attention: %w", err)
	}

	var id uuid.UUID
	err = tx.QueryRowContext(ctx, query,
		uuid.New(), ownerID, docType, res.Title, res.Summary, points, res.RawText,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// SaveMedical stores a document plus its medical record.
func (s *Store) SaveMedical(ctx context.Context, ownerID string, res analyze.Result) (uuid.UUID, error) {
	const query = `
		INSERT INTO medical_records (document_id, doctor_name, specialty, diagnosis, exam_date, medications)
		VALUES ($1, $2, $3, $4, $5, $6)`

	meds, err := json.Marshal(res.Medications)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode medications: %w", err)
	}

	var id uuid.UUID
	err = WithTx(ctx, s.db, func(tx *sql.Tx) error {
		id, err = s.insertDocument(ctx, tx, ownerID, "medical", res)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, id, res.DoctorName, res.Specialty, res.Diagnosis, res.ExamDate, meds)
		if err != nil {
			return fmt.Errorf("insert medical record: %w", err)
		}
		return nil
	})
	return id, err
}

// SaveFinancial stores a document plus its financial record.
func (s *Store) SaveFinancial(ctx context.Context, ownerID string, res analyze.Result) (uuid.UUID, error) {
	const query = `
		INSERT INTO financial_records (document_id, institution, amount, due_date, status)
		VALUES ($1, $2, $3, $4, $5)`

	var id uuid.UUID
	err := WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		id, err = s.insertDocument(ctx, tx, ownerID, "financial", res)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, id, res.Institution, res.Amount, res.DueDate, res.Status)
		if err != nil {
			return fmt.Errorf("insert financial record: %w", err)
		}
		return nil
	})
	return id, err
}

// SaveBudget stores a document plus its budget record.
func (s *Store) SaveBudget(ctx context.Context, ownerID string, res analyze.Result) (uuid.UUID, error) {
	const query = `
		INSERT INTO budget_records (document_id, provider, total_amount, valid_until, items)
		VALUES ($1, $2, $3, $4, $5)`

	items, err := json.Marshal(res.Items)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode budget items: %w", err)
	}

	var id uuid.UUID
	err = WithTx(ctx, s.db, func(tx *sql.Tx) error {
		id, err = s.insertDocument(ctx, tx, ownerID, "budget", res)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, id, res.Provider, res.TotalAmount, res.ValidUntil, items)
		if err != nil {
			return fmt.Errorf("insert budget record: %w", err)
		}
		return nil
	})
	return id, err
}

// SaveDocument stores a document of a category with no structured record
// table (personal, legal, education, work, other).
func (s *Store) SaveDocument(ctx context.Context, ownerID, docType string, res analyze.Result) (uuid.UUID, error) {
	var id uuid.UUID
	err := WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		id, err = s.insertDocument(ctx, tx, ownerID, docType, res)
		return err
	})
	return id, err
}

// ListByOwner returns the owner's confirmed documents, newest first, with
// the amount and date pulled from whichever record table applies.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	const query = `
		SELECT d.id, d.owner_id, d.document_type, d.title, d.summary,
		       COALESCE(f.amount, b.total_amount) AS amount,
		       COALESCE(f.due_date, b.valid_until, m.exam_date) AS document_date,
		       d.created_at
		FROM documents d
		LEFT JOIN financial_records f ON f.document_id = d.id
		LEFT JOIN budget_records b ON b.document_id = d.id
		LEFT JOIN medical_records m ON m.document_id = d.id
		WHERE d.owner_id = $1
		ORDER BY d.created_at DESC`

	return QueryMany(ctx, s.db, query, func(row interface{ Scan(dest ...any) error }) (Record, error) {
		var r Record
		err := row.Scan(&r.ID, &r.OwnerID, &r.DocumentType, &r.Title, &r.Summary, &r.Amount, &r.DocumentDate, &r.CreatedAt)
		return r, err
	}, ownerID)
}
