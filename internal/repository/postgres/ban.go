package postgres

import (
	"context"
	"database/sql"
	"errors"

	"joinguard/internal/domain"
	"joinguard/internal/logger"
	"joinguard/internal/repository"
)

type banRepository struct {
	db *sql.DB
}

func NewBanRepository(db *sql.DB) repository.BanRepository {
	return &banRepository{db: db}
}

func (r *banRepository) Create(ctx context.Context, ban *domain.Ban) error {
	query := `INSERT INTO banned_users (applicant_id, moderator_id, reason, banned_at)
	          VALUES ($1, $2, $3, $4) ON CONFLICT (applicant_id) DO NOTHING`
	logger.StoreCall("CreateBan", query, "applicant_id", ban.ApplicantID)
	res, err := r.db.ExecContext(ctx, query, ban.ApplicantID, ban.ModeratorID, ban.Reason, ban.BannedAt)
	if err != nil {
		logger.StoreResult("CreateBan", 0, err)
		return err
	}
	n, _ := res.RowsAffected()
	logger.StoreResult("CreateBan", n, nil)
	return nil
}

func (r *banRepository) IsBanned(ctx context.Context, applicantID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM banned_users WHERE applicant_id = $1)`
	err := r.db.QueryRowContext(ctx, query, applicantID).Scan(&exists)
	return exists, err
}

func (r *banRepository) GetByApplicant(ctx context.Context, applicantID int64) (*domain.Ban, error) {
	ban := &domain.Ban{}
	query := `SELECT applicant_id, moderator_id, reason, banned_at FROM banned_users WHERE applicant_id = $1`
	err := r.db.QueryRowContext(ctx, query, applicantID).Scan(&ban.ApplicantID, &ban.ModeratorID, &ban.Reason, &ban.BannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ban, nil
}
