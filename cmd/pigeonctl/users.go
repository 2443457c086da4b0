package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pigeon/cmd/internal/chatclient"
)

func init() {
	rootCmd.AddCommand(usersCmd)
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users and their presence",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := apiClient(cfg)
		if err != nil {
			return err
		}

		users, err := client.Roster(cmd.Context())
		if err != nil {
			return err
		}

		// Presence rides on the live feed only, so peek at it briefly.
		online := fetchOnlineSet(cmd.Context(), cfg)

		if len(users) == 0 {
			fmt.Println("No other users yet.")
			return nil
		}

		for _, u := range users {
			marker := color.New(color.Faint).Sprint("offline")
			if online[u.ID] {
				marker = color.GreenString("online")
			}
			name := u.Username
			if u.DisplayName != "" {
				name = fmt.Sprintf("%s (%s)", u.DisplayName, u.Username)
			}
			fmt.Printf("%-40s %s  %s\n", name, color.New(color.Faint).Sprint(u.ID), marker)
		}
		return nil
	},
}

// fetchOnlineSet connects the live feed just long enough to catch the
// online-users frame sent on registration. Failure means no markers.
func fetchOnlineSet(ctx context.Context, cfg *Config) map[string]bool {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := chatclient.Dial(dialCtx, serverURL(cfg), cfg.Auth.Token)
	if err != nil {
		return nil
	}
	defer func() { _ = conn.Close() }()

	session := chatclient.NewSession(nil, nil, conn, cfg.Auth.UserID)
	if _, err := session.Subscribe(); err != nil {
		return nil
	}

	// The registration broadcast arrives almost immediately.
	deadline := time.NewTimer(2 * time.Second)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-deadline.C:
			return nil
		case <-tick.C:
			if session.IsOnline(cfg.Auth.UserID) {
				out := make(map[string]bool)
				for _, id := range session.OnlineUsers() {
					out[id] = true
				}
				return out
			}
		}
	}
}
