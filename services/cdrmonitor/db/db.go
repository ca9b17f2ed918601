package db

import (
	"context"
	"database/sql"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type SeenRecord struct {
	Account   string
	RecordKey string
	FirstSeen int64
}

type CreateSeenRecordParams struct {
	Account   string
	RecordKey string
	FirstSeen int64
}

const createSeenRecord = `
INSERT INTO seen_record (account, record_key, first_seen)
VALUES (?, ?, ?)
ON CONFLICT (account, record_key) DO NOTHING
`

func (q *Queries) CreateSeenRecord(ctx context.Context, arg CreateSeenRecordParams) error {
	_, err := q.db.ExecContext(ctx, createSeenRecord, arg.Account, arg.RecordKey, arg.FirstSeen)
	return err
}

const getSeenRecords = `
SELECT account, record_key, first_seen FROM seen_record
`

func (q *Queries) GetSeenRecords(ctx context.Context) ([]SeenRecord, error) {
	rows, err := q.db.QueryContext(ctx, getSeenRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeenRecord
	for rows.Next() {
		var r SeenRecord
		err := rows.Scan(&r.Account, &r.RecordKey, &r.FirstSeen)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
