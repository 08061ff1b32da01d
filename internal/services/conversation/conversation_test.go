package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/storage/repository"
)

const testUserUID = "7b7e3a62-55c0-4cf3-9b3e-1f44a2d9a111"

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateConversation(ctx context.Context, conv models.Conversation) (*models.Conversation, error) {
	args := m.Called(ctx, conv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}
func (m *RepoMock) ReadConversation(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}
func (m *RepoMock) ReadConversationForUser(ctx context.Context, id, userUID string) (*models.Conversation, error) {
	args := m.Called(ctx, id, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}
func (m *RepoMock) ListConversations(ctx context.Context, userUID string) ([]*models.Conversation, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Conversation), args.Error(1)
}
func (m *RepoMock) DeleteConversation(ctx context.Context, id, ownerUID string) (int, error) {
	args := m.Called(ctx, id, ownerUID)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) UpdateConversationVisibility(ctx context.Context, id, ownerUID string, isPublic bool) (int, error) {
	args := m.Called(ctx, id, ownerUID, isPublic)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) UpdateConversationTitle(ctx context.Context, id, userUID, title string) (int, error) {
	args := m.Called(ctx, id, userUID, title)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) TouchConversation(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *RepoMock) UpsertParticipant(ctx context.Context, p models.Participant) error {
	return m.Called(ctx, p).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestCreate(t *testing.T) {
	repo := new(RepoMock)
	repo.On("CreateConversation", mock.Anything, mock.MatchedBy(func(c models.Conversation) bool {
		return c.UserUID == testUserUID &&
			c.OwnerUserUID == testUserUID &&
			c.Title == "morning chat" &&
			uuid.Validate(c.ID) == nil
	})).Return(&models.Conversation{ID: "conv-1", UserUID: testUserUID}, nil)
	repo.On("UpsertParticipant", mock.Anything, models.Participant{
		ConversationID: "conv-1",
		UserUID:        testUserUID,
		Role:           models.ParticipantRoleOwner,
	}).Return(nil)

	svc := New(repo, newNoopLogger())
	got, err := svc.Create(context.Background(), testUserUID, "morning chat", "chat")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ID)
	repo.AssertExpectations(t)
}

func TestGetOrCreate_ReturnsExisting(t *testing.T) {
	existing := &models.Conversation{ID: "conv-1", UserUID: testUserUID}
	repo := new(RepoMock)
	repo.On("ReadConversationForUser", mock.Anything, "conv-1", testUserUID).Return(existing, nil)

	svc := New(repo, newNoopLogger())
	got, err := svc.GetOrCreate(context.Background(), testUserUID, "conv-1", "", "chat")
	require.NoError(t, err)
	assert.Equal(t, existing, got)
	repo.AssertNotCalled(t, "CreateConversation", mock.Anything, mock.Anything)
}

func TestGetOrCreate_CreatesWithClientID(t *testing.T) {
	clientID := uuid.NewString()
	repo := new(RepoMock)
	repo.On("ReadConversationForUser", mock.Anything, clientID, testUserUID).
		Return(nil, repository.ErrConversationNotFound)
	repo.On("CreateConversation", mock.Anything, mock.MatchedBy(func(c models.Conversation) bool {
		return c.ID == clientID
	})).Return(&models.Conversation{ID: clientID}, nil)
	repo.On("UpsertParticipant", mock.Anything, mock.Anything).Return(nil)

	svc := New(repo, newNoopLogger())
	got, err := svc.GetOrCreate(context.Background(), testUserUID, clientID, "t", "chat")
	require.NoError(t, err)
	assert.Equal(t, clientID, got.ID)
}

func TestDelete(t *testing.T) {
	repo := new(RepoMock)
	repo.On("DeleteConversation", mock.Anything, "conv-1", testUserUID).Return(1, nil)

	svc := New(repo, newNoopLogger())
	require.NoError(t, svc.Delete(context.Background(), testUserUID, "conv-1"))
}

func TestDelete_NotOwner(t *testing.T) {
	repo := new(RepoMock)
	repo.On("DeleteConversation", mock.Anything, "conv-1", testUserUID).Return(0, nil)

	svc := New(repo, newNoopLogger())
	err := svc.Delete(context.Background(), testUserUID, "conv-1")
	assert.ErrorIs(t, err, repository.ErrConversationNotFound)
}

func TestShare(t *testing.T) {
	repo := new(RepoMock)
	repo.On("UpdateConversationVisibility", mock.Anything, "conv-1", testUserUID, true).Return(1, nil)

	svc := New(repo, newNoopLogger())
	require.NoError(t, svc.Share(context.Background(), testUserUID, "conv-1"))
}

func TestJoin_PublicConversation(t *testing.T) {
	repo := new(RepoMock)
	repo.On("ReadConversation", mock.Anything, "conv-1").
		Return(&models.Conversation{ID: "conv-1", IsPublic: true}, nil)
	repo.On("UpsertParticipant", mock.Anything, models.Participant{
		ConversationID: "conv-1",
		UserUID:        testUserUID,
		Role:           models.ParticipantRoleMember,
	}).Return(nil)

	svc := New(repo, newNoopLogger())
	got, err := svc.Join(context.Background(), testUserUID, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ID)
}

func TestJoin_PrivateConversation(t *testing.T) {
	repo := new(RepoMock)
	repo.On("ReadConversation", mock.Anything, "conv-1").
		Return(&models.Conversation{ID: "conv-1", IsPublic: false}, nil)

	svc := New(repo, newNoopLogger())
	_, err := svc.Join(context.Background(), testUserUID, "conv-1")
	assert.ErrorIs(t, err, ErrNotPublic)
	repo.AssertNotCalled(t, "UpsertParticipant", mock.Anything, mock.Anything)
}

func TestUnshare(t *testing.T) {
	repo := new(RepoMock)
	repo.On("UpdateConversationVisibility", mock.Anything, "conv-1", testUserUID, false).Return(1, nil)

	svc := New(repo, newNoopLogger())
	require.NoError(t, svc.Unshare(context.Background(), testUserUID, "conv-1"))
}

func TestTouch(t *testing.T) {
	repo := new(RepoMock)
	repo.On("TouchConversation", mock.Anything, "conv-1").Return(nil)

	svc := New(repo, newNoopLogger())
	require.NoError(t, svc.Touch(context.Background(), "conv-1"))
}

func TestRename(t *testing.T) {
	repo := new(RepoMock)
	repo.On("UpdateConversationTitle", mock.Anything, "conv-1", testUserUID, "new title").Return(1, nil)

	svc := New(repo, newNoopLogger())
	require.NoError(t, svc.Rename(context.Background(), testUserUID, "conv-1", "new title"))
}

func TestList_Error(t *testing.T) {
	repo := new(RepoMock)
	repo.On("ListConversations", mock.Anything, testUserUID).Return(nil, errors.New("db down"))

	svc := New(repo, newNoopLogger())
	_, err := svc.List(context.Background(), testUserUID)
	assert.Error(t, err)
}
