package manage_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/conversations/manage"
	"github.com/magabrotheeeer/chat-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/services/conversation"
	"github.com/magabrotheeeer/chat-gateway/internal/storage/repository"
)

const (
	testUserUID = "7b7e3a62-55c0-4cf3-9b3e-1f44a2d9a111"
	testConvID  = "3d3a1f0e-8e0f-4f9a-9a3e-2b7c41d9a222"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Create(ctx context.Context, userUID, title, mode string) (*models.Conversation, error) {
	args := m.Called(ctx, userUID, title, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}
func (m *ServiceMock) GetOrCreate(ctx context.Context, userUID, chatID, title, mode string) (*models.Conversation, error) {
	args := m.Called(ctx, userUID, chatID, title, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}
func (m *ServiceMock) List(ctx context.Context, userUID string) ([]*models.Conversation, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Conversation), args.Error(1)
}
func (m *ServiceMock) Delete(ctx context.Context, userUID, id string) error {
	return m.Called(ctx, userUID, id).Error(0)
}
func (m *ServiceMock) Share(ctx context.Context, ownerUID, id string) error {
	return m.Called(ctx, ownerUID, id).Error(0)
}
func (m *ServiceMock) Unshare(ctx context.Context, ownerUID, id string) error {
	return m.Called(ctx, ownerUID, id).Error(0)
}
func (m *ServiceMock) Join(ctx context.Context, userUID, id string) (*models.Conversation, error) {
	args := m.Called(ctx, userUID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}
func (m *ServiceMock) Rename(ctx context.Context, userUID, id, title string) error {
	return m.Called(ctx, userUID, id, title).Error(0)
}
func (m *ServiceMock) Touch(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func doRequest(handler *manage.Handler, action, body, userUID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations?action="+action, bytes.NewBufferString(body))
	if userUID != "" {
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, userUID))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServeHTTP_CreateConversation(t *testing.T) {
	service := new(ServiceMock)
	service.On("Create", mock.Anything, testUserUID, "morning chat", "chat").
		Return(&models.Conversation{ID: testConvID, Title: "morning chat"}, nil)

	handler := manage.New(newNoopLogger(), service)
	rec := doRequest(handler, "create_conversation", `{"title": "morning chat", "mode": "chat"}`, testUserUID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testConvID)
	service.AssertExpectations(t)
}

func TestServeHTTP_GetOrCreateConversation(t *testing.T) {
	service := new(ServiceMock)
	service.On("GetOrCreate", mock.Anything, testUserUID, testConvID, "", "chat").
		Return(&models.Conversation{ID: testConvID}, nil)

	handler := manage.New(newNoopLogger(), service)
	rec := doRequest(handler, "get_or_create_conversation",
		`{"conversation_id": "`+testConvID+`", "mode": "chat"}`, testUserUID)

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}

func TestServeHTTP_ListConversations(t *testing.T) {
	service := new(ServiceMock)
	service.On("List", mock.Anything, testUserUID).
		Return([]*models.Conversation{{ID: testConvID}}, nil)

	handler := manage.New(newNoopLogger(), service)
	rec := doRequest(handler, "list_conversations", ``, testUserUID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testConvID)
}

func TestServeHTTP_DeleteConversation_NotFound(t *testing.T) {
	service := new(ServiceMock)
	service.On("Delete", mock.Anything, testUserUID, testConvID).
		Return(repository.ErrConversationNotFound)

	handler := manage.New(newNoopLogger(), service)
	rec := doRequest(handler, "delete_conversation",
		`{"conversation_id": "`+testConvID+`"}`, testUserUID)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTP_JoinPrivateConversation(t *testing.T) {
	service := new(ServiceMock)
	service.On("Join", mock.Anything, testUserUID, testConvID).
		Return(nil, conversation.ErrNotPublic)

	handler := manage.New(newNoopLogger(), service)
	rec := doRequest(handler, "join_conversation",
		`{"conversation_id": "`+testConvID+`"}`, testUserUID)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeHTTP_UpdateTitle(t *testing.T) {
	service := new(ServiceMock)
	service.On("Rename", mock.Anything, testUserUID, testConvID, "new title").Return(nil)

	handler := manage.New(newNoopLogger(), service)
	rec := doRequest(handler, "update_conversation_title",
		`{"conversation_id": "`+testConvID+`", "title": "new title"}`, testUserUID)

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}

func TestServeHTTP_MissingConversationID(t *testing.T) {
	handler := manage.New(newNoopLogger(), new(ServiceMock))
	rec := doRequest(handler, "delete_conversation", `{}`, testUserUID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeHTTP_UnknownAction(t *testing.T) {
	handler := manage.New(newNoopLogger(), new(ServiceMock))
	rec := doRequest(handler, "explode_conversation", `{}`, testUserUID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown action")
}

func TestServeHTTP_Unauthorized(t *testing.T) {
	handler := manage.New(newNoopLogger(), new(ServiceMock))
	rec := doRequest(handler, "list_conversations", ``, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
