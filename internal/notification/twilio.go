package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioNotifier sends SMS through the Twilio Messages API.
type TwilioNotifier struct {
	messages messageCreator
	from     string
}

// NewTwilioNotifier builds a notifier for the given account and sender number.
func NewTwilioNotifier(accountSID, authToken, from string) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{messages: client.Api, from: from}
}

// Send creates one outbound message.
func (n *TwilioNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(message.Destination)
	params.SetFrom(n.from)
	params.SetBody(message.Body)

	if _, err := n.messages.CreateMessage(params); err != nil {
		var apiErr *twilioclient.TwilioRestError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("twilio: status %d code %d: %s", apiErr.Status, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio: %w", err)
	}
	return nil
}
