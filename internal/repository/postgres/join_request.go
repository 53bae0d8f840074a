package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"joinguard/internal/domain"
	"joinguard/internal/logger"
	"joinguard/internal/repository"

	"github.com/google/uuid"
)

const joinRequestColumns = `id, applicant_id, display_name, username, language_code, status, reason,
	moderator_message_id, moderator_id, platform_outcome, platform_success, applicant_notified,
	replies, created_at, updated_at`

type joinRequestRepository struct {
	db *sql.DB
}

func NewJoinRequestRepository(db *sql.DB) repository.JoinRequestRepository {
	return &joinRequestRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJoinRequest(row rowScanner) (*domain.JoinRequest, error) {
	var (
		req               domain.JoinRequest
		moderatorMessage  sql.NullInt64
		moderatorID       sql.NullInt64
		platformSuccess   sql.NullBool
		applicantNotified sql.NullBool
		replies           []byte
	)
	err := row.Scan(&req.ID, &req.ApplicantID, &req.DisplayName, &req.Username, &req.LanguageCode,
		&req.Status, &req.Reason, &moderatorMessage, &moderatorID, &req.Audit.PlatformOutcome,
		&platformSuccess, &applicantNotified, &replies, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if moderatorMessage.Valid {
		req.ModeratorMessageID = &moderatorMessage.Int64
	}
	if moderatorID.Valid {
		req.Audit.ModeratorID = &moderatorID.Int64
	}
	if platformSuccess.Valid {
		req.Audit.PlatformSuccess = &platformSuccess.Bool
	}
	if applicantNotified.Valid {
		req.Audit.ApplicantNotified = &applicantNotified.Bool
	}

	req.Replies = []domain.Reply{}
	if len(replies) > 0 {
		if err := json.Unmarshal(replies, &req.Replies); err != nil {
			return nil, fmt.Errorf("failed to decode replies of join request %s: %w", req.ID, err)
		}
	}
	return &req, nil
}

func (r *joinRequestRepository) Create(ctx context.Context, req *domain.JoinRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Replies == nil {
		req.Replies = []domain.Reply{}
	}
	replies, err := json.Marshal(req.Replies)
	if err != nil {
		return fmt.Errorf("failed to encode replies: %w", err)
	}

	query := `INSERT INTO join_requests (id, applicant_id, display_name, username, language_code, status, reason, replies, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	logger.StoreCall("CreateJoinRequest", query, "applicant_id", req.ApplicantID)
	_, err = r.db.ExecContext(ctx, query, req.ID, req.ApplicantID, req.DisplayName, req.Username,
		req.LanguageCode, req.Status, req.Reason, replies, req.CreatedAt, req.UpdatedAt)
	if isUniqueViolation(err) {
		logger.StoreResult("CreateJoinRequest", 0, nil, "duplicate_pending", true)
		return repository.ErrDuplicatePending
	}
	if err != nil {
		logger.StoreResult("CreateJoinRequest", 0, err)
		return err
	}
	logger.StoreResult("CreateJoinRequest", 1, nil)
	return nil
}

func (r *joinRequestRepository) GetLatestByApplicant(ctx context.Context, applicantID int64) (*domain.JoinRequest, error) {
	query := `SELECT ` + joinRequestColumns + ` FROM join_requests
	          WHERE applicant_id = $1 ORDER BY created_at DESC LIMIT 1`
	req, err := scanJoinRequest(r.db.QueryRowContext(ctx, query, applicantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// UpdateStatus keeps the stored reason when update.Reason is empty.
func (r *joinRequestRepository) UpdateStatus(ctx context.Context, id string, update repository.StatusUpdate) error {
	query := `UPDATE join_requests
	          SET status = $1, reason = COALESCE(NULLIF($2, ''), reason), moderator_id = $3, platform_outcome = $4, platform_success = $5, updated_at = $6
	          WHERE id = $7 AND status = 'pending'`
	logger.StoreCall("UpdateJoinRequestStatus", query, "id", id, "status", update.Status)
	res, err := r.db.ExecContext(ctx, query, update.Status, update.Reason, nullInt64(update.ModeratorID),
		update.PlatformOutcome, nullBool(update.PlatformSuccess), update.UpdatedAt, id)
	if err != nil {
		logger.StoreResult("UpdateJoinRequestStatus", 0, err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	logger.StoreResult("UpdateJoinRequestStatus", n, nil)
	if n == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

func (r *joinRequestRepository) UpdateDelivery(ctx context.Context, id string, notified bool, reason string) error {
	query := `UPDATE join_requests
	          SET applicant_notified = $1, reason = COALESCE(NULLIF($2, ''), reason)
	          WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, notified, reason, id)
	return err
}

func (r *joinRequestRepository) SetModeratorMessage(ctx context.Context, id string, messageID int64) (bool, error) {
	query := `UPDATE join_requests SET moderator_message_id = $1
	          WHERE id = $2 AND moderator_message_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, messageID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *joinRequestRepository) ListExpiredPending(ctx context.Context, createdBefore time.Time) ([]domain.JoinRequest, error) {
	query := `SELECT ` + joinRequestColumns + ` FROM join_requests
	          WHERE status = 'pending' AND created_at < $1 ORDER BY created_at`
	logger.StoreCall("ListExpiredPending", query, "created_before", createdBefore)
	rows, err := r.db.QueryContext(ctx, query, createdBefore)
	if err != nil {
		logger.StoreResult("ListExpiredPending", 0, err)
		return nil, err
	}
	defer rows.Close()

	var reqs []domain.JoinRequest
	for rows.Next() {
		req, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.StoreResult("ListExpiredPending", int64(len(reqs)), nil)
	return reqs, nil
}

func (r *joinRequestRepository) AppendReply(ctx context.Context, id string, reply domain.Reply) error {
	entry, err := json.Marshal([]domain.Reply{reply})
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	query := `UPDATE join_requests SET replies = replies || $1::jsonb, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, entry, reply.Timestamp, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *joinRequestRepository) CountByStatus(ctx context.Context) (map[domain.JoinRequestStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM join_requests GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.JoinRequestStatus]int)
	for rows.Next() {
		var status domain.JoinRequestStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
