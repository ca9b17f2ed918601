package cdrmonitor

import (
	"fmt"

	"cdrwatch-backend/lib/scrapers/orange"
)

// FormatRecord renders a CDR row as the chat message body.
func FormatRecord(account string, rec orange.Record) string {
	return fmt.Sprintf(
		"Account: %s\nCLI: %s\nTo: %s\nTime: %s\nDuration: %s\nType: %s",
		account, rec.Cli, rec.To, rec.Time, rec.Duration, rec.Type,
	)
}

// FormatHeartbeat renders the periodic liveness message.
func FormatHeartbeat(accounts int) string {
	return fmt.Sprintf(
		"cdrwatch is alive, monitoring %d carrier account(s).",
		accounts,
	)
}
