package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNS subjects must be shorter than 100 characters.
const snsMaxSubject = 99

// SNSAPI is the part of *sns.Client used here.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS publishes alerts to a topic. An empty topic ARN disables it.
type SNS struct {
	api      SNSAPI
	topicARN string
}

func NewSNS(api SNSAPI, topicARN string) *SNS {
	return &SNS{api: api, topicARN: topicARN}
}

func (s *SNS) Send(ctx context.Context, msg Message) error {
	if s == nil || s.topicARN == "" || s.api == nil {
		return ErrDisabled
	}
	_, err := s.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  snsSubject(msg.Subject),
		Message:  aws.String(msg.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"endpoint_id": {DataType: aws.String("String"), StringValue: aws.String(msg.EndpointID)},
			"state":       {DataType: aws.String("String"), StringValue: aws.String(string(msg.State))},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// snsSubject replaces line breaks and control characters, which SNS rejects, and
// truncates. An empty result leaves the subject unset.
func snsSubject(s string) *string {
	s = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s))
	s = strings.TrimSpace(truncate(s, snsMaxSubject))
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
