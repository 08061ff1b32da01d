package speech

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/metrics"
)

// MIME-тип синтезированного аудио.
const SynthesizedMimeType = "audio/mpeg"

const defaultVoice = "Aoede"

// Cache описывает методы кэша для синтезированного аудио.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Synthesizer вызывает Google Text-to-Speech API. Повторные запросы
// одного текста отдаются из кэша, параллельные одинаковые запросы
// схлопываются в один вызов API. Вызов API ограничен таймаутом.
type Synthesizer struct {
	URL     string
	APIKey  string
	Client  *http.Client
	Cache   Cache
	TTL     time.Duration
	Timeout time.Duration
	Log     *slog.Logger

	group singleflight.Group
}

// VoiceName возвращает полное имя голоса Google TTS.
func VoiceName(voice string) string {
	if voice == "" {
		voice = defaultVoice
	}
	return "en-US-Chirp3-HD-" + voice
}

func ttsCacheKey(text, voiceName string) string {
	sum := sha256.Sum256([]byte(voiceName + "::" + text))
	return "tts:" + hex.EncodeToString(sum[:])
}

// Synthesize возвращает синтезированное аудио в base64.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) (string, error) {
	const op = "speech.Synthesizer.Synthesize"

	voiceName := VoiceName(voice)
	key := ttsCacheKey(text, voiceName)

	var cached string
	found, err := s.Cache.Get(key, &cached)
	if err != nil {
		s.Log.Warn("tts cache lookup failed", sl.Err(err))
	}
	if found {
		metrics.TTSCacheHits.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.TTSCacheHits.WithLabelValues("miss").Inc()

	audio, err, _ := s.group.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		defer cancel()

		base64Audio, err := s.callAPI(callCtx, text, voiceName)
		if err != nil {
			return "", err
		}
		if err := s.Cache.Set(key, base64Audio, s.TTL); err != nil {
			s.Log.Warn("failed to cache synthesized audio", sl.Err(err))
		}
		return base64Audio, nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return audio.(string), nil
}

func (s *Synthesizer) callAPI(ctx context.Context, text, voiceName string) (string, error) {
	const op = "speech.Synthesizer.callAPI"

	payload := map[string]any{
		"input": map[string]string{"text": text},
		"voice": map[string]string{
			"languageCode": "en-US",
			"name":         voiceName,
		},
		"audioConfig": map[string]string{"audioEncoding": "MP3"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL+"?key="+s.APIKey, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, msg)
	}

	var parsed struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if parsed.AudioContent == "" {
		return "", fmt.Errorf("%s: empty audioContent", op)
	}
	return parsed.AudioContent, nil
}
