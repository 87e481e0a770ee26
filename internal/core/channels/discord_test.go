package channels

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/pkg/models"
)

type fakeDiscordSession struct {
	opened      bool
	closed      bool
	handlers    []interface{}
	sentChannel string
	sentContent string
}

func (f *fakeDiscordSession) Open() error  { f.opened = true; return nil }
func (f *fakeDiscordSession) Close() error { f.closed = true; return nil }

func (f *fakeDiscordSession) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sentChannel = channelID
	f.sentContent = content
	return &discordgo.Message{ID: "m1", ChannelID: channelID, Content: content}, nil
}

func (f *fakeDiscordSession) AddHandler(handler interface{}) func() {
	f.handlers = append(f.handlers, handler)
	return func() {}
}

func TestDiscordAdapterStartRegistersHandlerAndOpens(t *testing.T) {
	session := &fakeDiscordSession{}
	a := NewDiscordAdapter(DiscordConfig{Token: "x"}, bus.New(), session)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !session.opened {
		t.Fatal("expected Start to open the session")
	}
	if len(session.handlers) != 1 {
		t.Fatalf("expected exactly one registered handler, got %d", len(session.handlers))
	}
	if !a.IsRunning() {
		t.Fatal("expected adapter to report running after Start")
	}
}

func TestDiscordAdapterStopClosesSession(t *testing.T) {
	session := &fakeDiscordSession{}
	a := NewDiscordAdapter(DiscordConfig{Token: "x"}, bus.New(), session)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !session.closed {
		t.Fatal("expected Stop to close the session")
	}
	if a.IsRunning() {
		t.Fatal("expected adapter to report not running after Stop")
	}
}

func TestDiscordAdapterStopIsSafeWithoutStart(t *testing.T) {
	a := NewDiscordAdapter(DiscordConfig{Token: "x"}, bus.New(), &fakeDiscordSession{})
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on unstarted adapter: %v", err)
	}
}

func TestDiscordAdapterSendUsesChannelMessageSend(t *testing.T) {
	session := &fakeDiscordSession{}
	a := NewDiscordAdapter(DiscordConfig{Token: "x"}, bus.New(), session)

	if err := a.Send(context.Background(), models.OutboundMessage{ChatID: "chan-1", Content: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if session.sentChannel != "chan-1" || session.sentContent != "hello" {
		t.Fatalf("unexpected send: channel=%q content=%q", session.sentChannel, session.sentContent)
	}
}

func TestDiscordAdapterHandleMessageCreatePublishesInbound(t *testing.T) {
	b := bus.New()
	a := NewDiscordAdapter(DiscordConfig{Token: "x"}, b, &fakeDiscordSession{})

	a.handleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "chan-1",
		Content:   "hi there",
		Author:    &discordgo.User{ID: "user-1"},
	}})

	deadline := time.Now().Add(time.Second)
	for {
		select {
		default:
		}
		msg, err := tryConsume(b)
		if err == nil {
			if msg.UserID != "user-1" || msg.Content != "hi there" || msg.Channel != models.ChannelDiscord {
				t.Fatalf("unexpected inbound message: %+v", msg)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the inbound message to be published")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDiscordAdapterHandleMessageCreateDropsDisallowedUser(t *testing.T) {
	b := bus.New()
	t.Cleanup(b.Close)
	a := NewDiscordAdapter(DiscordConfig{Token: "x", AllowedUsers: []string{"allowed-user"}}, b, &fakeDiscordSession{})

	a.handleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "chan-1",
		Content:   "should be dropped",
		Author:    &discordgo.User{ID: "not-allowed"},
	}})

	time.Sleep(10 * time.Millisecond)
	if _, err := tryConsume(b); err == nil {
		t.Fatal("expected no inbound message for a disallowed user")
	}
}

func tryConsume(b *bus.Bus) (models.InboundMessage, error) {
	type result struct {
		msg models.InboundMessage
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := b.ConsumeInbound()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		return r.msg, r.err
	case <-time.After(20 * time.Millisecond):
		return models.InboundMessage{}, context.DeadlineExceeded
	}
}
