package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/zhancare-client/internal/errors"
)

const (
	DefaultEndpoint    = "https://api.mistral.ai/v1/chat/completions"
	DefaultChatModel   = "open-mistral-nemo"
	DefaultVisionModel = "pixtral-12b-2409"

	historyLimit = 10
	temperature  = 0.3
	topP         = 1
	maxTokens    = 500

	defaultTimeout  = 30 * time.Second
	maxResponseBody = 1 << 20
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Reply is the assistant's answer with markup removed.
type Reply struct {
	Text          string
	SuggestDoctor bool
}

// StatusError is a non 2xx answer from the completion API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d", e.Status)
}

var markerPattern = regexp.MustCompile(`(?is)<show_doctor_button>\s*(true|false)?\s*</show_doctor_button>`)

// Client talks to a Mistral compatible chat completion endpoint.
type Client struct {
	endpoint    string
	chatModel   string
	visionModel string
	httpClient  *http.Client
	logger      zerolog.Logger
	policy      *bluemonday.Policy
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithModels(chat, vision string) Option {
	return func(c *Client) {
		if chat != "" {
			c.chatModel = chat
		}
		if vision != "" {
			c.visionModel = vision
		}
	}
}

// WithBaseTransport sets the transport under the bearer token transport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport.(*oauth2.Transport).Base = rt
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client authenticating with apiKey as a bearer token.
func New(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[assistant.New] api key is required")
	}
	c := &Client{
		endpoint:    DefaultEndpoint,
		chatModel:   DefaultChatModel,
		visionModel: DefaultVisionModel,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}),
			},
		},
		logger: zerolog.Nop(),
		policy: bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send answers the conversation in history. Only the last 10 messages are sent,
// after the system prompt for lang.
func (c *Client) Send(ctx context.Context, history []Message, lang Language) (*Reply, error) {
	if len(history) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[assistant.Send] empty conversation")
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	messages := make([]any, 0, len(history)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: SystemPrompt(lang)})
	for _, m := range history {
		if m.Role == RoleSystem {
			continue
		}
		messages = append(messages, m)
	}
	return c.complete(ctx, completionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Stream:      false,
	})
}

// AnalyzeImage asks about a JPEG image given as base64 without the data URL prefix.
func (c *Client) AnalyzeImage(ctx context.Context, imageBase64, question string, lang Language) (*Reply, error) {
	imageBase64 = strings.TrimSpace(imageBase64)
	if imageBase64 == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[assistant.AnalyzeImage] image is required")
	}
	user := visionMessage{
		Role: RoleUser,
		Content: []contentPart{
			{Type: "text", Text: question},
			{Type: "image_url", ImageURL: "data:image/jpeg;base64," + imageBase64},
		},
	}
	return c.complete(ctx, completionRequest{
		Model:       c.visionModel,
		Messages:    []any{Message{Role: RoleSystem, Content: SystemPrompt(lang)}, user},
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	})
}

type completionRequest struct {
	Model       string  `json:"model"`
	Messages    []any   `json:"messages"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
}

type visionMessage struct {
	Role    Role          `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, in completionRequest) (*Reply, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "[assistant] encode: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "[assistant] build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("model", in.Model).Msg("assistant request failed")
		return nil, fmt.Errorf("%w: %w", errors.ErrNoResponse, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrNoResponse, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("model", in.Model).Msg("assistant rejected request")
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var out completionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrapf(err, "[assistant] decode response")
	}
	c.logger.Debug().Str("model", in.Model).Dur("took", time.Since(start)).Msg("assistant replied")

	if len(out.Choices) == 0 {
		return &Reply{}, nil
	}
	return c.parse(out.Choices[0].Message.Content), nil
}

// parse pulls out the doctor marker and strips any other markup from content.
func (c *Client) parse(content string) *Reply {
	reply := &Reply{}
	for _, m := range markerPattern.FindAllStringSubmatch(content, -1) {
		if strings.EqualFold(m[1], "true") {
			reply.SuggestDoctor = true
		}
	}
	text := markerPattern.ReplaceAllString(content, "")
	text = html.UnescapeString(c.policy.Sanitize(text))
	reply.Text = strings.TrimSpace(text)
	return reply
}
