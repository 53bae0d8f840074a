//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"joinguard/internal/config"
	"joinguard/internal/domain"
	"joinguard/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "../../../config/config.test.yaml", "path to config file")
}

func prepareDB(t *testing.T) *sql.DB {
	if !flag.Parsed() {
		flag.Parse()
	}

	finalPath := configPath
	if _, err := os.Stat(finalPath); os.IsNotExist(err) {
		altPath := filepath.Join("..", "..", "..", configPath)
		if _, err := os.Stat(altPath); err == nil {
			finalPath = altPath
		}
	}

	cfg, err := config.Load(finalPath)
	if err != nil {
		t.Fatalf("failed to load config from %s: %v", finalPath, err)
	}

	var db *sql.DB
	// Retry connection as DB might still be starting up
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	require.NoError(t, EnsureSchema(context.Background(), db))
	t.Cleanup(func() { db.Close() })
	return db
}

// testApplicantID keeps concurrent runs from colliding on applicant ids.
func testApplicantID() int64 {
	return int64(uuid.New().ID()) + 9_000_000_000
}

func cleanup(t *testing.T, db *sql.DB, applicantID int64) {
	t.Cleanup(func() {
		db.Exec("DELETE FROM join_requests WHERE applicant_id = $1", applicantID)
		db.Exec("DELETE FROM banned_users WHERE applicant_id = $1", applicantID)
	})
}

func TestIntegration_JoinRequestLifecycle(t *testing.T) {
	db := prepareDB(t)
	store := NewStore(db)
	ctx := context.Background()
	applicantID := testApplicantID()
	cleanup(t, db, applicantID)

	created := time.Now().UTC().Add(-25 * time.Hour).Truncate(time.Microsecond)
	req := domain.NewJoinRequest(domain.ApplicantProfile{UserID: applicantID, FirstName: "Ann", Username: "ann"}, created)
	require.NoError(t, store.JoinRequestRepository.Create(ctx, req))

	t.Run("Second pending request is refused", func(t *testing.T) {
		dup := domain.NewJoinRequest(domain.ApplicantProfile{UserID: applicantID, FirstName: "Ann"}, created)
		err := store.JoinRequestRepository.Create(ctx, dup)
		assert.ErrorIs(t, err, repository.ErrDuplicatePending)
	})

	t.Run("Moderator message is written once", func(t *testing.T) {
		ok, err := store.JoinRequestRepository.SetModeratorMessage(ctx, req.ID, 100)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.JoinRequestRepository.SetModeratorMessage(ctx, req.ID, 200)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Replies are appended in order", func(t *testing.T) {
		require.NoError(t, store.JoinRequestRepository.AppendReply(ctx, req.ID, domain.Reply{Message: "hi", Sender: domain.ReplySenderUser, Timestamp: created}))
		require.NoError(t, store.JoinRequestRepository.AppendReply(ctx, req.ID, domain.Reply{Message: "why?", Sender: domain.ReplySenderAdmin, Timestamp: created}))

		latest, err := store.JoinRequestRepository.GetLatestByApplicant(ctx, applicantID)
		require.NoError(t, err)
		require.Len(t, latest.Replies, 2)
		assert.Equal(t, "hi", latest.Replies[0].Message)
		assert.Equal(t, domain.ReplySenderAdmin, latest.Replies[1].Sender)
		require.NotNil(t, latest.ModeratorMessageID)
		assert.Equal(t, int64(100), *latest.ModeratorMessageID)
	})

	t.Run("Expired pending requests are listed", func(t *testing.T) {
		expired, err := store.JoinRequestRepository.ListExpiredPending(ctx, time.Now().UTC().Add(-24*time.Hour))
		require.NoError(t, err)

		var found bool
		for _, r := range expired {
			if r.ID == req.ID {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("Delivery reason survives an approval", func(t *testing.T) {
		require.NoError(t, store.JoinRequestRepository.UpdateDelivery(ctx, req.ID, false, "applicant unreachable: instructions not delivered"))
	})

	t.Run("Only the first transition applies", func(t *testing.T) {
		modID := int64(7)
		success := true
		err := store.JoinRequestRepository.UpdateStatus(ctx, req.ID, repository.StatusUpdate{
			Status:          domain.JoinRequestStatusApproved,
			ModeratorID:     &modID,
			PlatformOutcome: "none",
			PlatformSuccess: &success,
			UpdatedAt:       time.Now().UTC(),
		})
		require.NoError(t, err)

		err = store.JoinRequestRepository.UpdateStatus(ctx, req.ID, repository.StatusUpdate{
			Status:    domain.JoinRequestStatusExpired,
			Reason:    "auto-expired",
			UpdatedAt: time.Now().UTC(),
		})
		assert.ErrorIs(t, err, repository.ErrStatusConflict)

		latest, err := store.JoinRequestRepository.GetLatestByApplicant(ctx, applicantID)
		require.NoError(t, err)
		assert.Equal(t, domain.JoinRequestStatusApproved, latest.Status)
		assert.Equal(t, "applicant unreachable: instructions not delivered", latest.Reason)
		require.NotNil(t, latest.Audit.ModeratorID)
		assert.Equal(t, modID, *latest.Audit.ModeratorID)
	})

	t.Run("Reapplying after a terminal status creates a new record", func(t *testing.T) {
		again := domain.NewJoinRequest(domain.ApplicantProfile{UserID: applicantID, FirstName: "Ann"}, time.Now().UTC())
		require.NoError(t, store.JoinRequestRepository.Create(ctx, again))
		assert.NotEqual(t, req.ID, again.ID)

		latest, err := store.JoinRequestRepository.GetLatestByApplicant(ctx, applicantID)
		require.NoError(t, err)
		assert.Equal(t, again.ID, latest.ID)
	})
}

func TestIntegration_BanList(t *testing.T) {
	db := prepareDB(t)
	store := NewStore(db)
	ctx := context.Background()
	applicantID := testApplicantID()
	cleanup(t, db, applicantID)

	banned, err := store.BanRepository.IsBanned(ctx, applicantID)
	require.NoError(t, err)
	assert.False(t, banned)

	first := &domain.Ban{ApplicantID: applicantID, ModeratorID: 7, Reason: "spam", BannedAt: time.Now().UTC().Truncate(time.Microsecond)}
	require.NoError(t, store.BanRepository.Create(ctx, first))
	require.NoError(t, store.BanRepository.Create(ctx, &domain.Ban{ApplicantID: applicantID, ModeratorID: 8, Reason: "again", BannedAt: time.Now().UTC()}))

	ban, err := store.BanRepository.GetByApplicant(ctx, applicantID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), ban.ModeratorID)
	assert.Equal(t, "spam", ban.Reason)

	banned, err = store.BanRepository.IsBanned(ctx, applicantID)
	require.NoError(t, err)
	assert.True(t, banned)
}
