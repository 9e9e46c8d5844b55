package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/duesjobs/duesjobs/internal/model"
)

func TestDispatcher_EmptyJobsIsNoop(t *testing.T) {
	ch := &recordingChannel{name: "email", enabled: true}
	d := NewDispatcher(discardLogger(), ch)

	d.Notify(context.Background(), model.UserPreferences{UserID: "u"}, nil)
	d.Notify(context.Background(), model.UserPreferences{UserID: "u"}, []model.Job{})

	if ch.count() != 0 {
		t.Errorf("expected no sends, got %d", ch.count())
	}
}

func TestDispatcher_SkipsDisabledChannels(t *testing.T) {
	on := &recordingChannel{name: "email", enabled: true}
	off := &recordingChannel{name: "telegram", enabled: false}
	d := NewDispatcher(discardLogger(), on, off)

	d.Notify(context.Background(), model.UserPreferences{UserID: "u"}, []model.Job{sampleJob(1, "Dev", "Acme")})

	if on.count() != 1 {
		t.Errorf("enabled channel sends = %d, want 1", on.count())
	}
	if off.count() != 0 {
		t.Errorf("disabled channel sends = %d, want 0", off.count())
	}
}

func TestDispatcher_ChannelFailureDoesNotBlockOthers(t *testing.T) {
	failing := &recordingChannel{name: "email", enabled: true, err: errors.New("smtp down")}
	panicking := &recordingChannel{name: "slack", enabled: true, panics: true}
	ok := &recordingChannel{name: "telegram", enabled: true}
	d := NewDispatcher(discardLogger(), failing, panicking, ok)

	d.Notify(context.Background(), model.UserPreferences{UserID: "u"}, []model.Job{sampleJob(1, "Dev", "Acme")})

	if ok.count() != 1 {
		t.Errorf("healthy channel sends = %d, want 1", ok.count())
	}
	if failing.count() != 1 {
		t.Errorf("failing channel attempts = %d, want 1", failing.count())
	}
}

func TestEmailChannel_Enabled(t *testing.T) {
	c := NewEmailChannel(NewLogSender(discardLogger()), discardLogger())
	tests := []struct {
		name string
		p    model.UserPreferences
		want bool
	}{
		{"opted in with address", model.UserPreferences{EmailEnabled: true, Email: "a@b.c"}, true},
		{"no address", model.UserPreferences{EmailEnabled: true}, false},
		{"opted out", model.UserPreferences{Email: "a@b.c"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Enabled(tt.p); got != tt.want {
				t.Errorf("Enabled = %v, want %v", got, tt.want)
			}
		})
	}
}

type captureSender struct {
	got []EmailMessage
}

func (s *captureSender) Send(_ context.Context, msg EmailMessage) error {
	s.got = append(s.got, msg)
	return nil
}

func TestEmailChannel_SendComposesDigest(t *testing.T) {
	sender := &captureSender{}
	c := NewEmailChannel(sender, discardLogger())
	jobs := []model.Job{sampleJob(1, "Go Dev", "Acme"), sampleJob(2, "SRE", "Beta")}

	if err := c.Send(context.Background(), model.UserPreferences{UserID: "u", Email: "dev@example.com"}, jobs); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sender.got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.got))
	}
	msg := sender.got[0]
	if msg.To != "dev@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if msg.Subject != "Your Daily Job Summary - 2 New Jobs" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.HTML == "" || msg.Text == "" {
		t.Error("expected both HTML and text bodies")
	}
}

func TestTelegramChannel_Enabled(t *testing.T) {
	c := NewTelegramChannel("", nil, fastRetry, discardLogger())
	if c.Enabled(model.UserPreferences{TelegramEnabled: true}) {
		t.Error("enabled without chat id")
	}
	if c.Enabled(model.UserPreferences{TelegramChatID: strPtr("1")}) {
		t.Error("enabled without opt-in")
	}
	if !c.Enabled(model.UserPreferences{TelegramEnabled: true, TelegramChatID: strPtr("1")}) {
		t.Error("expected enabled with opt-in and chat id")
	}
}

func TestTelegramChannel_MockTokenSkipsNetwork(t *testing.T) {
	// A nil client would panic if the channel tried to send.
	c := NewTelegramChannel("mock_token", nil, fastRetry, discardLogger())
	p := model.UserPreferences{UserID: "u", TelegramEnabled: true, TelegramChatID: strPtr("42")}
	if err := c.Send(context.Background(), p, []model.Job{sampleJob(1, "Dev", "Acme")}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestLogChannel_NeverFails(t *testing.T) {
	c := NewLogChannel(discardLogger())
	if !c.Enabled(model.UserPreferences{}) {
		t.Error("log channel should always be enabled")
	}
	if err := c.Send(context.Background(), model.UserPreferences{UserID: "u"}, []model.Job{sampleJob(1, "Dev", "Acme")}); err != nil {
		t.Errorf("Send = %v, want nil", err)
	}
}
