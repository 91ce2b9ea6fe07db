// Package messaging delivers short text notifications over SMS and WhatsApp
// through the Twilio Messages API.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Channel is a delivery channel.
type Channel string

const (
	SMS      Channel = "sms"
	WhatsApp Channel = "whatsapp"
)

const whatsappPrefix = "whatsapp:"

// messageCreator is satisfied by the Twilio v2010 API service.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Sender sends messages on one channel from one number.
type Sender struct {
	api     messageCreator
	from    string
	channel Channel
}

// NewClient returns a Twilio REST client for the given account.
func NewClient(accountSID, authToken string) *twilio.RestClient {
	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
}

// NewSender returns a Sender on channel using client. from is the sending
// number in E.164 form; WhatsApp addressing is added when needed.
func NewSender(client *twilio.RestClient, channel Channel, from string) *Sender {
	return &Sender{api: client.Api, from: from, channel: channel}
}

// Channel returns the sender's delivery channel.
func (s *Sender) Channel() Channel { return s.channel }

// Send delivers body to the phone number to.
// The Twilio client does not take a context; ctx is only checked before the call.
func (s *Sender) Send(ctx context.Context, to, body string) error {
	if s.from == "" {
		return fmt.Errorf("%s: sender number not configured", s.channel)
	}
	if to == "" {
		return fmt.Errorf("%s: empty recipient", s.channel)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(s.address(to))
	params.SetFrom(s.address(s.from))
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("%s: %w", s.channel, err)
	}
	if msg == nil || msg.Sid == nil {
		return errors.New(string(s.channel) + ": response without message sid")
	}
	return nil
}

func (s *Sender) address(number string) string {
	if s.channel != WhatsApp || strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}
