package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// Transcription — результат распознавания с длительностью по данным
// провайдера (источник истины для тарификации).
type Transcription struct {
	Transcript      string
	DurationSeconds int
}

// GoogleSTT вызывает Google Speech-to-Text recognize API.
type GoogleSTT struct {
	URL    string
	APIKey string
	Client *http.Client
}

// mapMimeToEncoding переводит MIME-тип записи в кодек Google STT.
func mapMimeToEncoding(mimeType string) string {
	lower := strings.ToLower(mimeType)
	switch {
	case strings.Contains(lower, "webm"):
		return "WEBM_OPUS"
	case strings.Contains(lower, "ogg"):
		return "OGG_OPUS"
	case strings.Contains(lower, "wav"):
		return "LINEAR16"
	case strings.Contains(lower, "mp3"):
		return "MP3"
	}
	return "ENCODING_UNSPECIFIED"
}

// normalizeLanguageCode приводит короткий код языка к региональному.
func normalizeLanguageCode(language string) string {
	if language == "" || strings.ToLower(language) == "en" {
		return "en-US"
	}
	return language
}

var durationPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

func parseDurationSeconds(s string) int {
	match := durationPattern.FindString(s)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return int(math.Ceil(v))
}

// Transcribe распознаёт запись и возвращает текст с длительностью.
func (g *GoogleSTT) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (*Transcription, error) {
	const op = "speech.GoogleSTT.Transcribe"

	payload := map[string]any{
		"config": map[string]any{
			"encoding":                   mapMimeToEncoding(mimeType),
			"languageCode":               normalizeLanguageCode(language),
			"enableAutomaticPunctuation": true,
		},
		"audio": map[string]string{
			"content": base64.StdEncoding.EncodeToString(audio),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL+"?key="+g.APIKey, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, msg)
	}

	var parsed struct {
		TotalBilledTime string `json:"totalBilledTime"`
		Results         []struct {
			ResultEndTime string `json:"resultEndTime"`
			Alternatives  []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var parts []string
	for _, r := range parsed.Results {
		for _, a := range r.Alternatives {
			if strings.TrimSpace(a.Transcript) != "" {
				parts = append(parts, a.Transcript)
			}
		}
	}

	duration := 0
	if parsed.TotalBilledTime != "" {
		duration = parseDurationSeconds(parsed.TotalBilledTime)
	} else if len(parsed.Results) > 0 {
		duration = parseDurationSeconds(parsed.Results[0].ResultEndTime)
	}

	return &Transcription{
		Transcript:      strings.Join(parts, " "),
		DurationSeconds: duration,
	}, nil
}
