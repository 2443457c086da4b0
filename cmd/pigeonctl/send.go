package main

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pigeon/cmd/internal/chatclient"
)

func init() {
	sendCmd.Flags().StringVar(&flagImage, "image", "", "attach an image file")
	rootCmd.AddCommand(sendCmd)
}

var flagImage string

// imageDataURL inlines a local file the way the server expects uploads.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read image: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("not an image file: %s", path)
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

var sendCmd = &cobra.Command{
	Use:   "send <user> [text...]",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" && flagImage == "" {
			return fmt.Errorf("nothing to send: provide text or --image")
		}

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

		in := chatclient.SendInput{Text: text}
		if flagImage != "" {
			in.Image, err = imageDataURL(flagImage)
			if err != nil {
				return err
			}
		}

		msg, err := client.Send(cmd.Context(), user.ID, in)
		if err != nil {
			return err
		}

		color.Green("Sent to %s at %s.", user.Username, msg.CreatedAt.Local().Format("15:04:05"))
		return nil
	},
}
