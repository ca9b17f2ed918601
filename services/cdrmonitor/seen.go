package cdrmonitor

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"cdrwatch-backend/services/cdrmonitor/db"
)

// SeenStore is the dedup gate: it remembers which record identities have
// already been announced, namespaced per account so two accounts never
// suppress each other's identical-looking rows. The in-memory set is
// authoritative for the process lifetime; when a database is attached,
// entries are loaded on startup and written through on insert so dedup
// survives restarts.
type SeenStore struct {
	mu   sync.Mutex
	seen map[string]map[string]struct{}

	qry *db.Queries
}

// NewSeenStore builds an in-memory store. `database` may be nil, in which
// case nothing is persisted.
func NewSeenStore(ctx context.Context, database *sql.DB) (*SeenStore, error) {
	s := &SeenStore{
		seen: map[string]map[string]struct{}{},
	}
	if database == nil {
		return s, nil
	}

	s.qry = db.New(database)
	rows, err := s.qry.GetSeenRecords(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		account := s.seen[row.Account]
		if account == nil {
			account = map[string]struct{}{}
			s.seen[row.Account] = account
		}
		account[row.RecordKey] = struct{}{}
	}

	return s, nil
}

// MarkNew reports whether the identity has not been announced before for
// this account, marking it seen in the same step. Check-and-set is atomic
// with respect to concurrent polling.
func (s *SeenStore) MarkNew(ctx context.Context, account, key string) bool {
	s.mu.Lock()
	acct := s.seen[account]
	if acct == nil {
		acct = map[string]struct{}{}
		s.seen[account] = acct
	}
	_, exists := acct[key]
	if !exists {
		acct[key] = struct{}{}
	}
	s.mu.Unlock()

	if exists {
		return false
	}

	if s.qry != nil {
		err := s.qry.CreateSeenRecord(ctx, db.CreateSeenRecordParams{
			Account:   account,
			RecordKey: key,
			FirstSeen: time.Now().Unix(),
		})
		if err != nil {
			// the in-memory mark still holds, persistence is best-effort
			slog.WarnContext(ctx, "persist seen record", "account", account, "err", err)
		}
	}
	return true
}

// Len reports how many identities are tracked for an account.
func (s *SeenStore) Len(account string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen[account])
}
