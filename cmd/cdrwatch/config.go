package main

import (
	"fmt"

	"cdrwatch-backend/services/cdrmonitor"
)

type Config struct {
	BotToken    string `json:"bot_token"`
	ChatId      string `json:"chat_id"`
	OwnerChatId string `json:"owner_chat_id"`

	PortalBaseUrl string               `json:"portal_base_url"`
	Accounts      []cdrmonitor.Account `json:"accounts"`

	PollIntervalSeconds      int `json:"poll_interval_seconds"`
	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds"`

	// when set, announced record identities are persisted here and
	// reloaded on startup
	SeenDatabase string `json:"seen_database"`

	// answer /start commands sent to the bot
	ListenForCommands bool `json:"listen_for_commands"`
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot_token is required")
	}
	if c.ChatId == "" {
		return fmt.Errorf("chat_id is required")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	for i, acct := range c.Accounts {
		if acct.Email == "" || acct.Password == "" {
			return fmt.Errorf("account %d is missing email or password", i)
		}
	}

	if c.PortalBaseUrl == "" {
		c.PortalBaseUrl = "https://www.orangecarrier.com"
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 10
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		c.HeartbeatIntervalSeconds = 3600
	}
	return nil
}
