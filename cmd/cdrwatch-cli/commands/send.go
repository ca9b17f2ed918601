package commands

import (
	"context"
	"log/slog"
	"time"

	"cdrwatch-backend/lib/serviceutil"
	"cdrwatch-backend/lib/telegram"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <bot-token> <chat-id> <text>",
	Short: "Sends a test message through the delivery bot.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		bot := telegram.NewClient(telegram.ClientOptions{Token: args[0]})
		me, err := bot.GetMe(ctx)
		if err != nil {
			serviceutil.Fatal("validate bot token", err)
		}
		slog.Info("bot authorized", "username", me.Username)

		err = bot.SendMessage(ctx, args[1], args[2])
		if err != nil {
			serviceutil.Fatal("send message", err)
		}
	},
}
