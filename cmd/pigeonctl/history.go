package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pigeon/cmd/internal/chatclient"

	v1 "pigeon/shared/contracts/chat/v1"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

// resolveUser accepts a username or a raw user ID.
func resolveUser(ctx context.Context, client *chatclient.Client, ref string) (v1.User, error) {
	users, err := client.Roster(ctx)
	if err != nil {
		return v1.User{}, err
	}
	for _, u := range users {
		if u.Username == ref || u.ID == ref {
			return u, nil
		}
	}
	return v1.User{}, fmt.Errorf("no such user: %s", ref)
}

func printMessage(selfID string, m v1.Message) {
	who := color.CyanString("them")
	if m.SenderID == selfID {
		who = color.GreenString("you")
	}
	ts := color.New(color.Faint).Sprint(m.CreatedAt.Local().Format("15:04"))

	text := m.Text
	if m.Image != "" {
		if text != "" {
			text += " "
		}
		text += color.New(color.Faint).Sprintf("[image: %s]", m.Image)
	}
	fmt.Printf("%s %s  %s\n", ts, who, text)
}

var historyCmd = &cobra.Command{
	Use:   "history <user>",
	Short: "Print the conversation with a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := apiClient(cfg)
		if err != nil {
			return err
		}

		user, err := resolveUser(cmd.Context(), client, strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}

		msgs, err := client.Conversation(cmd.Context(), user.ID)
		if err != nil {
			return err
		}

		if len(msgs) == 0 {
			fmt.Println("No messages yet.")
			return nil
		}
		for _, m := range msgs {
			printMessage(cfg.Auth.UserID, m)
		}
		return nil
	},
}
