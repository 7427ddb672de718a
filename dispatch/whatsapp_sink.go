package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types"

	"github.com/rubiojr/dcwatch/sensor"
)

// TextSender sends a plain text WhatsApp message.
type TextSender interface {
	SendText(ctx context.Context, to types.JID, message string) error
}

// WhatsAppSink notifies a list of chats.
type WhatsAppSink struct {
	sender     TextSender
	recipients []types.JID
}

func NewWhatsAppSink(sender TextSender, recipients ...types.JID) *WhatsAppSink {
	return &WhatsAppSink{sender: sender, recipients: recipients}
}

func (s *WhatsAppSink) Name() string {
	return "whatsapp"
}

// Deliver sends the message to every recipient, reporting the ones that
// failed.
func (s *WhatsAppSink) Deliver(ctx context.Context, ev Event) error {
	msg := FormatMessage(ev)

	var errs []error
	for _, to := range s.recipients {
		if err := s.sender.SendText(ctx, to, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

// FormatMessage renders an event for a chat.
func FormatMessage(ev Event) string {
	p, ok := ev.Payload.(sensor.Payload)
	if !ok {
		data, err := json.MarshalIndent(ev.Payload, "", "  ")
		if err != nil {
			return fmt.Sprintf("🔔 %s", ev.Trigger)
		}
		return fmt.Sprintf("🔔 %s\n%s", ev.Trigger, data)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📦 *%s* %s is available\n", text(p.Name), text(p.Version))
	line := func(label string, v any) {
		if s := text(v); s != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, s)
		}
	}
	line("Package", p.Pkgname)
	line("File", p.Filename)
	line("Size", p.Size)
	line("Updated", p.Update)
	line("Author", p.Author)
	line("Contributor", p.Contributor)
	line("Website", p.Website)
	line("Notes", p.More)
	return strings.TrimRight(b.String(), "\n")
}

func text(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
