/**
 * @description
 * This package defines the outbound messaging contract for the payments
 * service. A Messenger sends a single message on one channel (email, SMS,
 * WhatsApp, Telegram); the Dispatcher routes a message to the right Messenger
 * by channel name.
 *
 * The concrete channel clients live in subpackages (resendclient,
 * termiiclient, whatsappclient, telegramclient) and are registered on the
 * Dispatcher at startup.
 */
package messaging

import (
	"context"
	"errors"
	"fmt"
)

// Channel names recognised by the Dispatcher.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
)

// ErrUnknownChannel is returned when no Messenger is registered for a channel.
var ErrUnknownChannel = errors.New("no messenger registered for channel")

// Message is a single outbound message. Recipient is channel-specific: an
// email address, an E.164 phone number, or a Telegram chat ID.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Messenger sends a message on one channel.
type Messenger interface {
	Channel() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher routes messages to registered channel clients.
type Dispatcher struct {
	messengers map[string]Messenger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{messengers: make(map[string]Messenger)}
}

// Register adds a Messenger under its channel name, replacing any existing one.
func (d *Dispatcher) Register(m Messenger) {
	d.messengers[m.Channel()] = m
}

// Send dispatches a message on the named channel.
func (d *Dispatcher) Send(ctx context.Context, channel string, msg Message) error {
	m, ok := d.messengers[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return m.Send(ctx, msg)
}

// Channels returns the channel names with a registered Messenger.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.messengers))
	for name := range d.messengers {
		names = append(names, name)
	}
	return names
}
