package transcribeopenai_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/speech/transcribeopenai"
	"github.com/magabrotheeeer/chat-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-gateway/internal/services/chat"
)

const (
	testUserUID = "7b7e3a62-55c0-4cf3-9b3e-1f44a2d9a111"
	testChatID  = "3d3a1f0e-8e0f-4f9a-9a3e-2b7c41d9a222"
)

type TranscriberMock struct{ mock.Mock }

func (m *TranscriberMock) Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	args := m.Called(ctx, audio, filename, language)
	return args.String(0), args.Error(1)
}

type VoiceFlowMock struct{ mock.Mock }

func (m *VoiceFlowMock) RunVoiceFlow(in chat.SendInput) {
	m.Called(in)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func multipartBody(t *testing.T, fields map[string]string, audio []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", "recording.webm")
	require.NoError(t, err)
	_, err = part.Write(audio)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func doRequest(handler *transcribeopenai.Handler, body *bytes.Buffer, contentType, userUID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/speech/transcribe/openai", body)
	req.Header.Set("Content-Type", contentType)
	if userUID != "" {
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, userUID))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServeHTTP_Warmup(t *testing.T) {
	handler := transcribeopenai.New(newNoopLogger(), new(TranscriberMock), new(VoiceFlowMock))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/speech/transcribe/openai", nil)
	req.Header.Set("X-Warmup", "1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "warmed up")
}

func TestServeHTTP_ReturnsTranscript(t *testing.T) {
	stt := new(TranscriberMock)
	stt.On("Transcribe", mock.Anything, []byte("audio-bytes"), "recording.webm", "en").
		Return("hello world", nil)

	voice := new(VoiceFlowMock)
	handler := transcribeopenai.New(newNoopLogger(), stt, voice)

	body, contentType := multipartBody(t, map[string]string{"language": "en"}, []byte("audio-bytes"))
	rec := doRequest(handler, body, contentType, testUserUID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello world")
	voice.AssertNotCalled(t, "RunVoiceFlow", mock.Anything)
	stt.AssertExpectations(t)
}

func TestServeHTTP_VoiceChatTypeRunsVoiceFlow(t *testing.T) {
	stt := new(TranscriberMock)
	stt.On("Transcribe", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("spoken words", nil)

	voice := new(VoiceFlowMock)
	voice.On("RunVoiceFlow", mock.MatchedBy(func(in chat.SendInput) bool {
		return in.ChatID == testChatID && in.Text == "spoken words" && in.ChatType == "voice"
	})).Return()

	handler := transcribeopenai.New(newNoopLogger(), stt, voice)

	body, contentType := multipartBody(t, map[string]string{
		"chattype": "voice", "chat_id": testChatID, "mode": "chat",
	}, []byte("audio"))
	rec := doRequest(handler, body, contentType, testUserUID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	voice.AssertExpectations(t)
}

func TestServeHTTP_EmptyTranscript(t *testing.T) {
	stt := new(TranscriberMock)
	stt.On("Transcribe", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("   ", nil)

	handler := transcribeopenai.New(newNoopLogger(), stt, new(VoiceFlowMock))

	body, contentType := multipartBody(t, nil, []byte("audio"))
	rec := doRequest(handler, body, contentType, testUserUID)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"transcript":""`)
}

func TestServeHTTP_Unauthorized(t *testing.T) {
	handler := transcribeopenai.New(newNoopLogger(), new(TranscriberMock), new(VoiceFlowMock))

	body, contentType := multipartBody(t, nil, []byte("audio"))
	rec := doRequest(handler, body, contentType, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
