package cdrmonitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cdrwatch-backend/lib/scrapers/orange"
	"cdrwatch-backend/lib/telegram"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/cdrmonitor")

type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Config struct {
	PortalBaseUrl string
	Accounts      []Account
	ChatId        string
	// optional chat notified when a record could not be delivered
	OwnerChatId       string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Service drives the poll cycle: every interval it runs the
// auth -> fetch -> dedup -> notify pipeline for each account. Accounts are
// processed in parallel and fail independently; an account that errors
// simply contributes nothing this cycle.
type Service struct {
	cfg   Config
	bot   *telegram.Client
	store *SeenStore
}

func NewService(cfg Config, bot *telegram.Client, store *SeenStore) Service {
	return Service{
		cfg:   cfg,
		bot:   bot,
		store: store,
	}
}

func (s Service) Start(ctx context.Context) {
	go s.pollDaemon(ctx)
	go s.heartbeatDaemon(ctx)
}

func (s Service) pollDaemon(ctx context.Context) {
	// first cycle runs immediately, then on the fixed interval
	s.PollOnce(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollOnce(ctx)
		}
	}
}

// PollOnce runs one full cycle over all configured accounts.
func (s Service) PollOnce(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "PollOnce")
	defer span.End()

	wg := sync.WaitGroup{}
	for _, acct := range s.cfg.Accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.pollAccount(ctx, acct)
			if err != nil {
				slog.ErrorContext(ctx, "poll account", "account", acct.Email, "err", err)
			}
		}()
	}
	wg.Wait()
}

func (s Service) pollAccount(ctx context.Context, acct Account) error {
	ctx, span := tracer.Start(ctx, "pollAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account", acct.Email))

	// sessions are not cached across cycles; the portal enforces expiry
	// on its own schedule so a fresh login per cycle is the only safe bet
	client, err := orange.NewClient(orange.ClientOptions{
		BaseUrl: s.cfg.PortalBaseUrl,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("create portal client: %w", err)
	}
	err = client.Login(ctx, acct.Email, acct.Password)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("login: %w", err)
	}

	records, err := client.Records(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("fetch records: %w", err)
	}
	slog.DebugContext(ctx, "fetched records", "account", acct.Email, "count", len(records))

	announced := 0
	for _, rec := range records {
		if !s.store.MarkNew(ctx, acct.Email, rec.Key()) {
			continue
		}
		announced++

		err := s.bot.SendMessage(ctx, s.cfg.ChatId, FormatRecord(acct.Email, rec))
		if err != nil {
			// the record stays marked seen: delivery was retried inside
			// SendMessage and a lost notification is an accepted failure
			slog.ErrorContext(
				ctx, "deliver record",
				"account", acct.Email,
				"key", rec.Key(),
				"err", err,
			)
			s.notifyOwner(ctx, fmt.Sprintf(
				"failed to deliver a CDR for %s: %s", acct.Email, err,
			))
		}
	}
	span.SetAttributes(
		attribute.Int("rows", len(records)),
		attribute.Int("announced", announced),
	)

	return nil
}

func (s Service) notifyOwner(ctx context.Context, text string) {
	if s.cfg.OwnerChatId == "" {
		return
	}
	err := s.bot.SendMessage(ctx, s.cfg.OwnerChatId, text)
	if err != nil {
		slog.WarnContext(ctx, "notify owner", "err", err)
	}
}

func (s Service) heartbeatDaemon(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.bot.SendMessage(ctx, s.cfg.ChatId, FormatHeartbeat(len(s.cfg.Accounts)))
			if err != nil {
				slog.ErrorContext(ctx, "send heartbeat", "err", err)
			}
		}
	}
}

// StartCommandListener long-polls the bot api for chat commands. Only
// /start is handled; it acknowledges that monitoring is running.
func (s Service) StartCommandListener(ctx context.Context) {
	go s.commandDaemon(ctx)
}

func (s Service) commandDaemon(ctx context.Context) {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := s.bot.GetUpdates(ctx, offset, time.Second*30)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.ErrorContext(ctx, "get updates", "err", err)
			time.Sleep(time.Second * 5)
			continue
		}

		for _, update := range updates {
			if update.UpdateId >= offset {
				offset = update.UpdateId + 1
			}
			if update.Message == nil {
				continue
			}
			if !strings.HasPrefix(update.Message.Text, "/start") {
				continue
			}
			err := s.bot.SendMessage(
				ctx,
				fmt.Sprint(update.Message.Chat.Id),
				fmt.Sprintf(
					"cdrwatch is running and monitoring %d carrier account(s).",
					len(s.cfg.Accounts),
				),
			)
			if err != nil {
				slog.ErrorContext(ctx, "answer /start", "err", err)
			}
		}
	}
}
