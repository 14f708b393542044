// Package social announces newly published episodes.
package social

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"imagecaster/internal/feed"
	"imagecaster/internal/models"
)

// Sender is the part of *tgbotapi.BotAPI the poster needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPoster posts episode announcements to a Telegram channel.
type TelegramPoster struct {
	sender  Sender
	channel string
}

func NewTelegramPoster(token, channel string) (*TelegramPoster, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramPosterWithSender(bot, channel), nil
}

func NewTelegramPosterWithSender(sender Sender, channel string) *TelegramPoster {
	return &TelegramPoster{sender: sender, channel: channel}
}

// Post sends the announcement. It reports false without error when the
// episode has not opted in.
func (p *TelegramPoster) Post(ctx context.Context, e *models.Episode, websiteURL string) (bool, error) {
	if !e.SocialPostEnabled {
		return false, nil
	}

	text := Message(e, websiteURL)
	var msg tgbotapi.MessageConfig
	if chatID, err := strconv.ParseInt(p.channel, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(chatID, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(p.channel, text)
	}

	if _, err := p.sender.Send(msg); err != nil {
		return false, fmt.Errorf("failed to post episode %s to telegram: %w", e.Slug, err)
	}
	return true, nil
}

// Message builds the announcement text. Custom text may reference the
// episode page with {{EPISODE_URL}}; otherwise the link is appended.
func Message(e *models.Episode, websiteURL string) string {
	episodeURL := feed.EpisodeURL(websiteURL, e.Slug)
	text := strings.TrimSpace(e.SocialPostText)
	if text == "" {
		text = e.Title
	}
	if strings.Contains(text, feed.PlaceholderEpisodeURL) {
		return strings.ReplaceAll(text, feed.PlaceholderEpisodeURL, episodeURL)
	}
	return text + "\n" + episodeURL
}

// Disabled never posts.
type Disabled struct{}

func (Disabled) Post(ctx context.Context, e *models.Episode, websiteURL string) (bool, error) {
	return false, nil
}
