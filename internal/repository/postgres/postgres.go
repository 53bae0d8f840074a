package postgres

import (
	"database/sql"
	"errors"

	"joinguard/internal/repository"

	"github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.JoinRequestRepository
	repository.BanRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                    db,
		JoinRequestRepository: NewJoinRequestRepository(db),
		BanRepository:         NewBanRepository(db),
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
