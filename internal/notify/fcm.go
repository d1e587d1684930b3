package notify

import (
	"context"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMSender delivers via one Firebase Cloud Messaging multicast per
// event. A failure on one token never aborts the rest of the batch;
// that is FCM's own multicast semantics.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &FCMSender{client: client}, nil
}

func (s *FCMSender) Send(ctx context.Context, tokens []string, title, body string) (int, []string, error) {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}
	resp, err := s.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return 0, nil, err
	}
	var invalid []string
	for i, r := range resp.Responses {
		if r.Success || r.Error == nil {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			invalid = append(invalid, tokens[i])
		} else {
			slog.Warn("fcm delivery failed", "error", r.Error)
		}
	}
	return resp.SuccessCount, invalid, nil
}

// LogSender stands in when Firebase credentials are not configured,
// e.g. local development against a broker only.
type LogSender struct{}

func (LogSender) Send(_ context.Context, tokens []string, title, body string) (int, []string, error) {
	slog.Info("push delivery skipped (no sender configured)", "tokens", len(tokens), "title", title, "body", body)
	return 0, nil, nil
}
