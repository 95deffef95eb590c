package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/simpleai-go/simpleai/schema"
)

// Adapter executes one model call against a single provider. Implementations
// translate the canonical Request into the vendor payload, call the vendor API
// and map the response back into a Result. Rate-limit rejections must be
// returned as *RateLimitError so the caller can retry with the vendor's wait
// hint; adapters never retry themselves.
type Adapter interface {
	// Execute performs the provider call. ctx is used for timeouts and cancellation.
	Execute(ctx context.Context, req *Request) (*Result, error)
	// Name returns the canonical provider id ("openai", "claude", ...).
	Name() string
	// Capabilities reports what this provider supports.
	Capabilities() Capabilities
}

// Sentinel errors for adapter implementations. Callers should use errors.Is.
var (
	ErrNilRequest         = errors.New("adapter: request must not be nil")
	ErrMissingAPIKey      = errors.New("adapter: missing API key")
	ErrEmptyResponse      = errors.New("adapter: response contains no content")
	ErrBinaryNotSupported = errors.New("adapter: binary file input not supported by this provider")
)

// Capabilities describes optional provider features.
type Capabilities struct {
	// BinaryFiles reports whether the provider accepts binary attachments
	// (PDF and similar) natively, without local text extraction.
	BinaryFiles bool
}

// Config carries provider-level settings resolved before the call.
type Config struct {
	APIKey  string
	BaseURL string

	// MaxTokens caps total generation; MaxOutputTokens caps visible output
	// where the vendor distinguishes the two. Zero means vendor default.
	MaxTokens       int64
	MaxOutputTokens int64

	// MaxTurns bounds agentic tool-use loops where the vendor runs one.
	MaxTurns int

	// SkipCitationFollowup disables the synthesis follow-up call some
	// adapters make when a forced search turn produces no visible text.
	SkipCitationFollowup bool

	// HTTPClient overrides the default client. Nil uses the vendor SDK
	// default (or http.DefaultClient for raw HTTP adapters).
	HTTPClient *http.Client
}

// Message is one turn of a conversation.
type Message struct {
	Role string // "user", "assistant" or "system"
	Text string
}

// Attachment is one preprocessed input file. Either Text is set (extracted
// locally) or Data is set (binary passthrough for providers that accept it).
type Attachment struct {
	Name     string
	Path     string
	MIMEType string
	Text     string
	Data     []byte
}

// Request is the canonical, provider-independent call description.
type Request struct {
	Model    string
	Messages []Message

	// RequireSearch forces the provider's web-search tool on.
	// ReturnCitations asks for normalized source citations; it implies search.
	RequireSearch   bool
	ReturnCitations bool

	// Output, when set, constrains the response to a JSON schema.
	Output *schema.Format

	Attachments []Attachment

	// Options carries vendor passthrough parameters (temperature, top_p, ...)
	// applied after the canonical fields.
	Options map[string]any
}

// PromptText returns the text of the last user message, which single-prompt
// callers populate as the only message.
func (r *Request) PromptText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Text
		}
	}
	return ""
}

// Usage reports token accounting when the vendor provides it.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Result is the canonical provider response.
type Result struct {
	// Text is the assembled answer text.
	Text string

	// Raw is the decoded vendor response body, kept for citation
	// normalization and debugging.
	Raw map[string]any

	Usage Usage

	// Calls counts vendor API round trips made for this request (follow-up
	// synthesis calls included).
	Calls int
}

// RateLimitError reports a vendor 429 (or equivalent) rejection together with
// the wait hint the vendor supplied. RetryAfter of zero means no hint.
type RateLimitError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("adapter: %s rate limited (status %d, retry after %s)", e.Provider, e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("adapter: %s rate limited (status %d)", e.Provider, e.StatusCode)
}

// ParseRetryAfter interprets a Retry-After header value: integer seconds,
// fractional seconds, or an HTTP date. Returns 0 when the value is absent or
// unparseable, and never a negative duration.
func ParseRetryAfter(value string) time.Duration {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// RetryAfterFromHeader reads the wait hint from a vendor response, preferring
// Retry-After and falling back to the *-reset-* header families OpenAI and
// Anthropic use.
func RetryAfterFromHeader(h http.Header) time.Duration {
	if d := ParseRetryAfter(h.Get("Retry-After")); d > 0 {
		return d
	}
	for _, key := range []string{
		"X-Ratelimit-Reset-Requests",
		"X-Ratelimit-Reset-Tokens",
		"Anthropic-Ratelimit-Requests-Reset",
	} {
		if d := parseResetValue(h.Get(key)); d > 0 {
			return d
		}
	}
	return 0
}

// parseResetValue handles the vendor reset formats: "1.5s"/"6m0s" durations,
// bare seconds, and RFC3339 timestamps.
func parseResetValue(value string) time.Duration {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if at, err := time.Parse(time.RFC3339, v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return ParseRetryAfter(v)
}
