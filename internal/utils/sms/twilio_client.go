package sms

import (
	"context"
	"errors"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewTwilioSender(accountSID, authToken, fromNumber string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, fromNumber: fromNumber}
}

// Send delivers one SMS. Implements services.SMSSender.
func (t *TwilioSender) Send(ctx context.Context, to, body string) error {
	params := &api.CreateMessageParams{}
	params.SetBody(body)
	params.SetFrom(t.fromNumber)
	params.SetTo(to)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return err
	}
	if resp.Sid == nil {
		return errors.New("twilio returned no message sid")
	}
	return nil
}
