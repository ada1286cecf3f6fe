// Package widget parses widget command flags and composes one chat session.
package widget

import (
	"context"
	"flag"
	"fmt"
	"os"

	entrypoint "github.com/goamet/chat-widget/internal/platform/cmd"
	"github.com/goamet/chat-widget/internal/widget/api"
	"github.com/goamet/chat-widget/internal/widget/chat"
	"github.com/goamet/chat-widget/internal/widget/view"
)

// Config holds widget command configuration.
type Config struct {
	APIBaseURL     string `env:"GOAMET_WIDGET_API_BASE_URL"    envDefault:"http://localhost:8080"`
	ConversationID string `env:"GOAMET_WIDGET_CONVERSATION_ID"`
	UserID         string `env:"GOAMET_WIDGET_USER_ID"`
	CanSend        bool   `env:"GOAMET_WIDGET_CAN_SEND"        envDefault:"true"`
	Locale         string `env:"GOAMET_WIDGET_LOCALE"          envDefault:"en"`
	Origin         string `env:"GOAMET_WIDGET_ORIGIN"`
	AuthHeader     string `env:"GOAMET_WIDGET_AUTH_HEADER"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.APIBaseURL, "api-base-url", cfg.APIBaseURL, "chat API base URL")
	fs.StringVar(&cfg.ConversationID, "conversation-id", cfg.ConversationID, "local conversation id to resolve")
	fs.StringVar(&cfg.UserID, "user-id", cfg.UserID, "current user id for message attribution")
	fs.BoolVar(&cfg.CanSend, "can-send", cfg.CanSend, "whether the composer may send")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "widget locale (BCP 47)")
	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "websocket handshake origin")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run resolves the conversation and serves the realtime session until ctx
// ends, streaming rendered fragments to stdout.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWidget, func(ctx context.Context) error {
		client, err := api.New(api.Config{
			BaseURL:    cfg.APIBaseURL,
			AuthHeader: cfg.AuthHeader,
		})
		if err != nil {
			return fmt.Errorf("build api client: %w", err)
		}

		session, err := chat.NewSession(chat.Config{
			Client:              client,
			Sink:                view.New(os.Stdout, cfg.Locale),
			LocalConversationID: cfg.ConversationID,
			UserID:              cfg.UserID,
			CanSend:             cfg.CanSend,
			Origin:              cfg.Origin,
		})
		if err != nil {
			return fmt.Errorf("build session: %w", err)
		}

		if err := session.Start(ctx); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		defer session.Close()

		<-ctx.Done()
		return nil
	})
}
