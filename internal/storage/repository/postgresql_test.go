package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/chat-gateway/internal/migrations"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
)

// setupTestStorage поднимает контейнер PostgreSQL, применяет миграции
// и возвращает готовое хранилище.
func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.DB.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

func createProfile(t *testing.T, storage *Storage, userUID, plan string, active bool, status string) {
	_, err := storage.DB.Exec(`INSERT INTO profiles (user_uid, subscription_plan, subscription_active, subscription_status)
		VALUES ($1, $2, $3, $4)`, userUID, plan, active, status)
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func TestReadProfile(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	userUID := uuid.New().String()
	createProfile(t, storage, userUID, "10_monthly", true, "active")

	profile, err := storage.ReadProfile(ctx, userUID)
	require.NoError(t, err)
	require.Equal(t, userUID, profile.UserUID)
	require.Equal(t, "10_monthly", profile.SubscriptionPlan)
	require.True(t, profile.SubscriptionActive)
	require.True(t, profile.HasActiveSubscription())

	_, err = storage.ReadProfile(ctx, uuid.New().String())
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestReadProfile_NullSubscriptionColumns(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	userUID := uuid.New().String()
	// Зарегистрированный, но никогда не подписывавшийся пользователь:
	// plan и status остаются NULL.
	_, err := storage.DB.Exec(`INSERT INTO profiles (user_uid) VALUES ($1)`, userUID)
	require.NoError(t, err)

	profile, err := storage.ReadProfile(ctx, userUID)
	require.NoError(t, err)
	require.Equal(t, userUID, profile.UserUID)
	require.Empty(t, profile.SubscriptionPlan)
	require.Empty(t, profile.SubscriptionStatus)
	require.False(t, profile.HasActiveSubscription())
}

func TestUsageCounters(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	userUID := uuid.New().String()
	const period = "2026-08"

	used, err := storage.ReadUsage(ctx, userUID, models.FeatureVoiceSeconds, period)
	require.NoError(t, err)
	require.Equal(t, 0, used, "missing row reads as zero usage")

	require.NoError(t, storage.IncrementUsage(ctx, userUID, models.FeatureVoiceSeconds, 30, period))
	require.NoError(t, storage.IncrementUsage(ctx, userUID, models.FeatureVoiceSeconds, 15, period))
	require.NoError(t, storage.IncrementUsage(ctx, userUID, models.FeatureInsightsCount, 2, period))

	used, err = storage.ReadUsage(ctx, userUID, models.FeatureVoiceSeconds, period)
	require.NoError(t, err)
	require.Equal(t, 45, used)

	all, err := storage.ListUsage(ctx, userUID, period)
	require.NoError(t, err)
	require.Len(t, all, 2)

	otherPeriod, err := storage.ReadUsage(ctx, userUID, models.FeatureVoiceSeconds, "2026-09")
	require.NoError(t, err)
	require.Equal(t, 0, otherPeriod, "periods are independent")
}

func TestCheckAndIncrementUsage(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	userUID := uuid.New().String()
	const period = "2026-08"

	res, err := storage.CheckAndIncrementUsage(ctx, userUID, models.FeatureVoiceSeconds, 590, 600, period)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 590, res.NewUsage)
	require.Equal(t, 10, res.Remaining)

	res, err = storage.CheckAndIncrementUsage(ctx, userUID, models.FeatureVoiceSeconds, 20, 600, period)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 590, res.NewUsage, "denied call must not change usage")
	require.Equal(t, "LIMIT_EXCEEDED", res.ErrorCode)

	res, err = storage.CheckAndIncrementUsage(ctx, userUID, models.FeatureVoiceSeconds, 10, 600, period)
	require.NoError(t, err)
	require.True(t, res.Allowed, "hitting the limit exactly is allowed")
	require.Equal(t, 600, res.NewUsage)
	require.Equal(t, 0, res.Remaining)
}

func TestCheckAndIncrementUsage_Concurrent(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	userUID := uuid.New().String()
	const (
		period  = "2026-08"
		limit   = 100
		amount  = 10
		callers = 25
	)

	type outcome struct {
		res *CheckAndIncrementResult
		err error
	}
	results := make(chan outcome, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := storage.CheckAndIncrementUsage(ctx, userUID, models.FeatureVoiceSeconds, amount, limit, period)
			results <- outcome{res: res, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var allowed, denied int
	for out := range results {
		require.NoError(t, out.err)
		if out.res.Allowed {
			allowed++
		} else {
			denied++
			require.Equal(t, "LIMIT_EXCEEDED", out.res.ErrorCode)
		}
	}
	require.Equal(t, limit/amount, allowed,
		"exactly limit/amount callers may succeed")
	require.Equal(t, callers-limit/amount, denied)

	used, err := storage.ReadUsage(ctx, userUID, models.FeatureVoiceSeconds, period)
	require.NoError(t, err)
	require.Equal(t, limit, used, "stored usage never exceeds the limit under contention")
}

func TestConversationLifecycle(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	ownerUID := uuid.New().String()
	memberUID := uuid.New().String()

	conv, err := storage.CreateConversation(ctx, models.Conversation{
		ID:           uuid.New().String(),
		UserUID:      ownerUID,
		OwnerUserUID: ownerUID,
		Title:        "morning chat",
		Mode:         "chat",
	})
	require.NoError(t, err)
	require.Equal(t, "morning chat", conv.Title)
	require.False(t, conv.IsPublic)

	got, err := storage.ReadConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, conv.ID, got.ID)

	_, err = storage.ReadConversationForUser(ctx, conv.ID, memberUID)
	require.ErrorIs(t, err, ErrConversationNotFound)

	rows, err := storage.UpdateConversationTitle(ctx, conv.ID, ownerUID, "renamed")
	require.NoError(t, err)
	require.Equal(t, 1, rows)

	rows, err = storage.UpdateConversationVisibility(ctx, conv.ID, ownerUID, true)
	require.NoError(t, err)
	require.Equal(t, 1, rows)

	require.NoError(t, storage.UpsertParticipant(ctx, models.Participant{
		ConversationID: conv.ID, UserUID: memberUID, Role: models.ParticipantRoleMember,
	}))
	require.NoError(t, storage.UpsertParticipant(ctx, models.Participant{
		ConversationID: conv.ID, UserUID: memberUID, Role: models.ParticipantRoleMember,
	}), "upsert is idempotent")

	participants, err := storage.ListParticipants(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, []string{memberUID}, participants)

	shared, err := storage.ListConversations(ctx, memberUID)
	require.NoError(t, err)
	require.Len(t, shared, 1, "participant sees the shared conversation")

	before, err := storage.ReadConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NoError(t, storage.TouchConversation(ctx, conv.ID))
	after, err := storage.ReadConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.False(t, after.UpdatedAt.Before(before.UpdatedAt))

	rows, err = storage.DeleteConversation(ctx, conv.ID, memberUID)
	require.NoError(t, err)
	require.Equal(t, 0, rows, "only the owner can delete")

	rows, err = storage.DeleteConversation(ctx, conv.ID, ownerUID)
	require.NoError(t, err)
	require.Equal(t, 1, rows)

	_, err = storage.ReadConversation(ctx, conv.ID)
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMessages(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	userUID := uuid.New().String()
	chatID := uuid.New().String()

	saved, err := storage.CreateMessage(ctx, models.Message{
		ID:          uuid.New().String(),
		ChatID:      chatID,
		Role:        models.MessageRoleUser,
		Text:        "hello",
		ClientMsgID: uuid.New().String(),
		Status:      models.MessageStatusComplete,
		Mode:        "chat",
		UserUID:     strPtr(userUID),
		UserName:    strPtr("tester"),
	})
	require.NoError(t, err)
	require.Equal(t, "hello", saved.Text)
	require.False(t, saved.CreatedAt.IsZero())

	batch := []models.Message{
		{ID: uuid.New().String(), ChatID: chatID, Role: models.MessageRoleUser, Text: "first",
			ClientMsgID: uuid.New().String(), Status: models.MessageStatusComplete, Mode: "chat",
			UserUID: strPtr(userUID), UserName: strPtr("tester")},
		{ID: uuid.New().String(), ChatID: chatID, Role: models.MessageRoleAssistant, Text: "second",
			ClientMsgID: uuid.New().String(), Status: models.MessageStatusComplete, Mode: "chat"},
	}
	savedBatch, err := storage.CreateMessages(ctx, batch)
	require.NoError(t, err)
	require.Len(t, savedBatch, 2)
	require.Equal(t, "first", savedBatch[0].Text)
	require.Equal(t, "second", savedBatch[1].Text)

	count, err := storage.CountMessages(ctx, chatID)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}
