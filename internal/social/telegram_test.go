package social

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"imagecaster/internal/models"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func episode() *models.Episode {
	return &models.Episode{ID: "1", Slug: "pilot", Title: "The Pilot", SocialPostEnabled: true}
}

func TestPostToChannel(t *testing.T) {
	sender := &fakeSender{}
	poster := NewTelegramPosterWithSender(sender, "@mychannel")

	posted, err := poster.Post(context.Background(), episode(), "https://example.com/")
	require.NoError(t, err)
	assert.True(t, posted)
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "@mychannel", msg.ChannelUsername)
	assert.Equal(t, "The Pilot\nhttps://example.com/episodes/pilot", msg.Text)
}

func TestPostToChatID(t *testing.T) {
	sender := &fakeSender{}
	poster := NewTelegramPosterWithSender(sender, "-1001234567890")

	_, err := poster.Post(context.Background(), episode(), "https://example.com")
	require.NoError(t, err)
	msg := sender.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(-1001234567890), msg.ChatID)
}

func TestPostRequiresOptIn(t *testing.T) {
	sender := &fakeSender{}
	ep := episode()
	ep.SocialPostEnabled = false

	posted, err := NewTelegramPosterWithSender(sender, "@c").Post(context.Background(), ep, "https://example.com")
	require.NoError(t, err)
	assert.False(t, posted)
	assert.Empty(t, sender.sent)
}

func TestPostError(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	posted, err := NewTelegramPosterWithSender(sender, "@c").Post(context.Background(), episode(), "https://example.com")
	assert.Error(t, err)
	assert.False(t, posted)
}

func TestMessage(t *testing.T) {
	ep := episode()
	ep.SocialPostText = "  New episode is out: {{EPISODE_URL}} enjoy  "
	assert.Equal(t, "New episode is out: https://example.com/episodes/pilot enjoy", Message(ep, "https://example.com"))

	ep.SocialPostText = "Listen now"
	assert.Equal(t, "Listen now\nhttps://example.com/episodes/pilot", Message(ep, "https://example.com"))
}

func TestDisabled(t *testing.T) {
	posted, err := Disabled{}.Post(context.Background(), episode(), "https://example.com")
	assert.NoError(t, err)
	assert.False(t, posted)
}
