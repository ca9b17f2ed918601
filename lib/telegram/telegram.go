package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cdrwatch-backend/lib/restyutil"
	"cdrwatch-backend/lib/telemetry"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("telegram")

const defaultBaseUrl = "https://api.telegram.org"

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	Http *resty.Client

	// delivery retry budget for SendMessage, including the first attempt
	MaxAttempts uint64
}

type ClientOptions struct {
	Token string
	// defaults to the public bot api endpoint, overridable for tests
	BaseUrl string
	// defaults to 4
	MaxAttempts uint64
}

func NewClient(opts ClientOptions) *Client {
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = defaultBaseUrl
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 4
	}

	client := resty.New()
	client.SetBaseURL(fmt.Sprintf("%s/bot%s", baseUrl, opts.Token))
	client.SetTimeout(time.Second * 35)

	telemetry.InstrumentResty(client, "telegram/http")
	restyutil.InstrumentClient(client, restyInstrumentOutput)

	return &Client{
		Http:        client,
		MaxAttempts: maxAttempts,
	}
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type User struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
}

type Chat struct {
	Id int64 `json:"id"`
}

type Message struct {
	MessageId int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      Chat   `json:"chat"`
}

type Update struct {
	UpdateId int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, form map[string]string) (json.RawMessage, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(form).
		Post("/" + method)
	if err != nil {
		return nil, err
	}

	var parsed apiResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return nil, fmt.Errorf("%s: parse response: %w", method, err)
	}
	if !parsed.Ok {
		err := fmt.Errorf("%s: %s", method, parsed.Description)
		if res.StatusCode() == 429 || res.StatusCode() >= 500 {
			return nil, err
		}
		// the api rejected the call outright, retrying will not help
		return nil, backoff.Permanent(err)
	}
	return parsed.Result, nil
}

// GetMe validates the bot token against the api.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	ctx, span := tracer.Start(ctx, "GetMe")
	defer span.End()

	raw, err := c.call(ctx, "getMe", nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return User{}, err
	}
	var user User
	err = json.Unmarshal(raw, &user)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return User{}, err
	}
	return user, nil
}

// SendMessage delivers text to a chat, retrying transient failures
// (rate limits, 5xx, network faults) with exponential backoff up to the
// client's attempt budget. Exhaustion surfaces the last error.
func (c *Client) SendMessage(ctx context.Context, chatId, text string) error {
	ctx, span := tracer.Start(ctx, "SendMessage")
	defer span.End()
	span.SetAttributes(attribute.String("chat_id", chatId))

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(time.Millisecond*500),
			),
			c.MaxAttempts-1,
		),
		ctx,
	)

	err := backoff.Retry(func() error {
		_, err := c.call(ctx, "sendMessage", map[string]string{
			"chat_id": chatId,
			"text":    text,
		})
		return err
	}, policy)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// GetUpdates long-polls the api for incoming updates past `offset`.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	ctx, span := tracer.Start(ctx, "GetUpdates")
	defer span.End()

	raw, err := c.call(ctx, "getUpdates", map[string]string{
		"offset":  fmt.Sprint(offset),
		"timeout": fmt.Sprint(int(timeout.Seconds())),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	var updates []Update
	err = json.Unmarshal(raw, &updates)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return updates, nil
}
