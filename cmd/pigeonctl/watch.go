package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pigeon/cmd/internal/chatclient"

	v1 "pigeon/shared/contracts/chat/v1"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live messages and presence changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.Token == "" {
			return fmt.Errorf("not logged in: run 'pigeonctl login <username>' first")
		}

		client := chatclient.NewClient(serverURL(cfg), cfg.Auth.Token)

		// Usernames for pretty printing; fall back to raw IDs on failure.
		names := map[string]string{cfg.Auth.UserID: cfg.Auth.Username}
		if users, err := client.Roster(cmd.Context()); err == nil {
			for _, u := range users {
				names[u.ID] = u.Username
			}
		}
		nameOf := func(id string) string {
			if n, ok := names[id]; ok && n != "" {
				return n
			}
			return id
		}

		conn, err := chatclient.Dial(cmd.Context(), serverURL(cfg), cfg.Auth.Token)
		if err != nil {
			return fmt.Errorf("cannot connect live feed: %w", err)
		}
		defer func() { _ = conn.Close() }()

		token, err := conn.Subscribe(func(env v1.Envelope) {
			switch env.Type {
			case v1.TypeNewMessage:
				var m v1.Message
				if json.Unmarshal(env.Payload, &m) != nil {
					return
				}
				text := m.Text
				if m.Image != "" {
					text = strings.TrimSpace(text + " [image]")
				}
				fmt.Printf("%s %s: %s\n",
					color.New(color.Faint).Sprint(m.CreatedAt.Local().Format("15:04:05")),
					color.CyanString(nameOf(m.SenderID)),
					text,
				)
			case v1.TypeOnlineUsers:
				var p v1.OnlineUsersPayload
				if json.Unmarshal(env.Payload, &p) != nil {
					return
				}
				shown := make([]string, 0, len(p.Users))
				for _, id := range p.Users {
					shown = append(shown, nameOf(id))
				}
				color.Yellow("online: %s", strings.Join(shown, ", "))
			}
		})
		if err != nil {
			return err
		}
		defer conn.Unsubscribe(token)

		color.Green("Watching as %s. Ctrl-C to stop.", cfg.Auth.Username)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-stop:
		case <-conn.Done():
			color.Red("Live feed closed by server.")
		}
		return nil
	},
}
