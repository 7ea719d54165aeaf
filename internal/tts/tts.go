package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/callsim/callsim/internal/cache"
	"github.com/callsim/callsim/internal/logger"
)

// DefaultLanguage is used whenever the requested language is unsupported.
const DefaultLanguage = "en"

// maxTextLen is the upstream per-request limit; longer texts are truncated.
const maxTextLen = 200

// supportedLanguages is the synthesis allow-list.
var supportedLanguages = map[string]bool{
	"en": true, "es": true, "fr": true, "de": true, "it": true,
	"pt": true, "ja": true, "ko": true, "zh-CN": true,
}

// Voices lists the supported language codes in a stable order.
func Voices() []string {
	return []string{"en", "es", "fr", "de", "it", "pt", "ja", "ko", "zh-CN"}
}

// SynthesisError signals that the upstream engine rejected or failed the
// request. Cache failures never produce one.
type SynthesisError struct {
	StatusCode int
	Reason     string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("tts synthesis failed: %s (status %d)", e.Reason, e.StatusCode)
}

// Synthesizer renders text to MP3 audio through the translate endpoint,
// with a write-through cache in front of it.
type Synthesizer struct {
	baseURL  string
	client   *http.Client
	cache    cache.KV // nil disables caching
	cacheTTL time.Duration
}

func NewSynthesizer(baseURL string, kv cache.KV, cacheTTL time.Duration) *Synthesizer {
	if baseURL == "" {
		baseURL = "https://translate.google.com"
	}
	return &Synthesizer{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		cache:    kv,
		cacheTTL: cacheTTL,
	}
}

// Normalize maps any requested language onto the allow-list, falling back to
// the default silently.
func Normalize(lang string) string {
	if supportedLanguages[lang] {
		return lang
	}
	return DefaultLanguage
}

func cacheKey(lang, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "tts:" + lang + ":" + hex.EncodeToString(sum[:])
}

// Synthesize returns MP3 bytes for the given text. The language is
// normalized first, then the cache is consulted; cache errors degrade to a
// live fetch. Successful renders are written back best-effort.
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang string) ([]byte, string, error) {
	lang = Normalize(lang)
	if len(text) > maxTextLen {
		text = text[:maxTextLen]
	}

	key := cacheKey(lang, text)
	if s.cache != nil {
		if audio, err := s.cache.Get(ctx, key); err == nil {
			return audio, lang, nil
		} else if err != cache.ErrMiss {
			logger.L.WithError(err).Warn("tts cache read failed")
		}
	}

	audio, err := s.fetch(ctx, text, lang)
	if err != nil {
		return nil, lang, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, audio, s.cacheTTL); err != nil {
			logger.L.WithError(err).Warn("tts cache write failed")
		}
	}
	return audio, lang, nil
}

func (s *Synthesizer) fetch(ctx context.Context, text, lang string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", lang)
	q.Set("client", "tw-ob")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SynthesisError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SynthesisError{StatusCode: resp.StatusCode, Reason: "unexpected upstream status"}
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{StatusCode: resp.StatusCode, Reason: err.Error()}
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{StatusCode: resp.StatusCode, Reason: "empty audio payload"}
	}
	return audio, nil
}
