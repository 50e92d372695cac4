package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ipstudio/internal/client"
	"ipstudio/internal/middleware"
	"ipstudio/internal/poller"
)

const tokenTTL = time.Hour

type commandContext struct {
	apiURL       string
	token        string
	user         string
	jsonOutput   bool
	pollInterval time.Duration
	pollAttempts int
	// after replaces the poll timer in tests.
	after func(time.Duration) <-chan time.Time
}

func newRootCommand() *cobra.Command {
	return buildRootCommand(&commandContext{})
}

func buildRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ipctl",
		Short:         "Inspect and drive ipstudio generation tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.apiURL, "api-url", envOr("IPSTUDIO_API_URL", "http://localhost:8080"), "Base URL of the ipstudio API")
	flags.StringVar(&ctx.token, "token", os.Getenv("IPSTUDIO_TOKEN"), "Bearer token for the API")
	flags.StringVar(&ctx.user, "user", "", "Mint a short-lived token for this user id using JWT_SECRET")
	flags.BoolVar(&ctx.jsonOutput, "json", false, "Print JSON instead of tables")
	flags.DurationVar(&ctx.pollInterval, "interval", time.Duration(envInt("POLL_INTERVAL_SECONDS", 5))*time.Second, "Wait between polls")
	flags.IntVar(&ctx.pollAttempts, "attempts", envInt("POLL_MAX_ATTEMPTS", 60), "Polls before giving up")

	rootCmd.AddCommand(newTaskCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand())

	return rootCmd
}

func (c *commandContext) client() (*client.Client, error) {
	token := strings.TrimSpace(c.token)
	if token == "" && c.user != "" {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return nil, errors.New("--user requires JWT_SECRET")
		}
		signed, err := middleware.SignJWT(secret, c.user, tokenTTL)
		if err != nil {
			return nil, err
		}
		token = signed
	}
	if token == "" {
		return nil, errors.New("no credentials: pass --token, set IPSTUDIO_TOKEN, or use --user with JWT_SECRET")
	}
	return client.New(client.Options{BaseURL: c.apiURL, Token: token})
}

func (c *commandContext) poller() *poller.Poller {
	return poller.New(poller.Options{Interval: c.pollInterval, MaxAttempts: c.pollAttempts, After: c.after}, zerolog.Nop())
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
