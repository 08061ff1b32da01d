package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
)

// ConfigReader читает значение ключа системной конфигурации.
type ConfigReader interface {
	ReadConfigValue(ctx context.Context, key string) (json.RawMessage, error)
}

// Resolver выбирает провайдера языковой модели по флагу системной
// конфигурации llm_provider.use_gemini. Результат кэшируется на TTL;
// устаревшая запись перечитывается, сбой чтения выбирает Gemini.
type Resolver struct {
	repo    ConfigReader
	log     *slog.Logger
	gemini  Provider
	chatgpt Provider
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	cached    Provider
	fetchedAt time.Time
}

// NewResolver создает Resolver с заданным TTL кэша.
func NewResolver(repo ConfigReader, log *slog.Logger, gemini, chatgpt Provider, ttl time.Duration) *Resolver {
	return &Resolver{
		repo:    repo,
		log:     log,
		gemini:  gemini,
		chatgpt: chatgpt,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Resolve возвращает актуального провайдера, перечитывая конфигурацию
// не чаще одного раза за TTL.
func (r *Resolver) Resolve(ctx context.Context) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.now().Sub(r.fetchedAt) < r.ttl {
		return r.cached
	}

	provider := r.gemini
	raw, err := r.repo.ReadConfigValue(ctx, "llm_provider")
	if err != nil {
		r.log.Warn("failed to fetch llm provider config, defaulting to gemini", sl.Err(err))
	} else {
		var cfg struct {
			UseGemini *bool `json:"use_gemini"`
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			r.log.Warn("malformed llm provider config, defaulting to gemini", sl.Err(err))
		} else if cfg.UseGemini != nil && !*cfg.UseGemini {
			provider = r.chatgpt
		}
	}

	r.cached = provider
	r.fetchedAt = r.now()
	return provider
}
