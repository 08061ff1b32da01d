package get_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/usage/get"
	"github.com/magabrotheeeer/chat-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-gateway/internal/services/usage"
)

const testUserUID = "7b7e3a62-55c0-4cf3-9b3e-1f44a2d9a111"

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) GetSummary(ctx context.Context, userUID string) (*usage.Summary, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usage.Summary), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func doRequest(handler *get.Handler, userUID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil)
	if userUID != "" {
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, userUID))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServeHTTP_ReturnsSummary(t *testing.T) {
	limit := 600
	remaining := 10
	service := new(ServiceMock)
	service.On("GetSummary", mock.Anything, testUserUID).Return(&usage.Summary{
		Period:             "2026-08",
		SubscriptionActive: true,
		SubscriptionPlan:   "10_monthly",
		VoiceSeconds:       usage.FeatureSummary{Used: 590, Limit: &limit, Remaining: &remaining},
	}, nil)

	handler := get.New(newNoopLogger(), service)
	rec := doRequest(handler, testUserUID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2026-08")
	assert.Contains(t, rec.Body.String(), `"used":590`)
}

func TestServeHTTP_ServiceError(t *testing.T) {
	service := new(ServiceMock)
	service.On("GetSummary", mock.Anything, testUserUID).Return(nil, errors.New("db down"))

	handler := get.New(newNoopLogger(), service)
	rec := doRequest(handler, testUserUID)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServeHTTP_Unauthorized(t *testing.T) {
	handler := get.New(newNoopLogger(), new(ServiceMock))
	rec := doRequest(handler, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
