package push

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type FCMClient struct {
	App       *firebase.App
	Messaging *messaging.Client
}

// NewFCMClient creates a Firebase Cloud Messaging client from a service
// account credentials JSON file.
func NewFCMClient(ctx context.Context, serviceAccountPath string) (*FCMClient, error) {
	opt := option.WithCredentialsFile(serviceAccountPath)

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, err
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}

	return &FCMClient{App: app, Messaging: client}, nil
}

// Send delivers one payload to a batch of device tokens and reports the
// per-target outcome. Implements services.PushSender.
func (f *FCMClient) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, int, error) {
	if len(tokens) == 0 {
		return 0, 0, nil
	}
	msg := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:   data,
		Tokens: tokens,
	}
	resp, err := f.Messaging.SendEachForMulticast(ctx, msg)
	if err != nil {
		return 0, len(tokens), err
	}
	return resp.SuccessCount, resp.FailureCount, nil
}
