package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/forest-guardian/wooded-mask/internal/properties"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed    = 16711680
	colorGreen  = 65280
	colorYellow = 16776960
)

// Discord posts embeds to the configured webhooks. An empty URL disables that
// kind of notification.
type Discord struct {
	ErrorURL   string
	SuccessURL string
	WarnURL    string
	Client     *http.Client
}

// FromEnv builds a notifier from the DISCORD_*_NOTIFICATION_URL variables.
func FromEnv() *Discord {
	return &Discord{
		ErrorURL:   properties.DiscordErrorNotificationUrl(),
		SuccessURL: properties.DiscordSuccessNotificationUrl(),
		WarnURL:    properties.DiscordWarnNotificationUrl(),
		Client:     http.DefaultClient,
	}
}

func (d *Discord) send(url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}
	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}

func (d *Discord) Error(errorMessage string) error {
	return d.send(d.ErrorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("Wooded mask run failed.\n\nAn error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func (d *Discord) Success(successMessage string) error {
	return d.send(d.SuccessURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: successMessage,
		Color:       colorGreen,
	})
}

func (d *Discord) Warn(warnMessage string) error {
	return d.send(d.WarnURL, DiscordEmbed{
		Title:       "⚠️ Warning Notification",
		Description: warnMessage,
		Color:       colorYellow,
	})
}

func SendDiscordErrorNotification(errorMessage string) error {
	return FromEnv().Error(errorMessage)
}

func SendDiscordSuccessNotification(successMessage string) error {
	return FromEnv().Success(successMessage)
}

func SendDiscordWarnNotification(warnMessage string) error {
	return FromEnv().Warn(warnMessage)
}
