package push

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSSender publishes to SNS platform endpoints. Device tokens are
// endpoint ARNs registered by the mobile apps.
type SNSSender struct {
	client *sns.Client
}

func NewSNSSender(ctx context.Context, region string) (*SNSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("error loading aws config: %w", err)
	}
	return &SNSSender{client: sns.NewFromConfig(awsCfg)}, nil
}

type pushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func (s *SNSSender) Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	msg, err := json.Marshal(pushPayload{Title: title, Body: body, Data: data})
	if err != nil {
		return fmt.Errorf("error marshaling payload: %w", err)
	}

	message := string(msg)
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TargetArn: &deviceToken,
		Message:   &message,
	})
	if err != nil {
		return fmt.Errorf("error publishing to endpoint: %w", err)
	}
	return nil
}
