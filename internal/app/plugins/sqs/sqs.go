package sqs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/resonatehq/resmon/internal/app/plugins/base"
	"github.com/resonatehq/resmon/internal/metrics"
)

type Config struct {
	Size    int           `flag:"size" desc:"submission buffered channel size" default:"100"`
	Workers int           `flag:"workers" desc:"number of workers" default:"1"`
	Timeout time.Duration `flag:"timeout" desc:"aws request timeout" default:"30s"`
}

type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, opt ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQS struct {
	*base.Plugin
}

type processor struct {
	client  SQSClient
	timeout time.Duration
}

func New(metrics *metrics.Metrics, config *Config) (*SQS, error) {
	return NewWithClient(metrics, config, nil)
}

func NewWithClient(metrics *metrics.Metrics, config *Config, client SQSClient) (*SQS, error) {
	if client == nil {
		awsConfig, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = sqs.NewFromConfig(awsConfig)
	}

	proc := &processor{
		client:  client,
		timeout: config.Timeout,
	}

	return &SQS{
		Plugin: base.NewPlugin("sqs", &base.Config{Size: config.Size, Workers: config.Workers}, metrics, proc, nil),
	}, nil
}

// Process sends body to the queue whose url is target.
func (p *processor) Process(target string, body []byte) (bool, error) {
	if target == "" {
		return false, errors.New("missing queue url")
	}

	region, err := parse(target)
	if err != nil {
		return false, fmt.Errorf("failed to parse SQS URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(target),
		MessageBody: aws.String(string(body)),
	}, func(o *sqs.Options) {
		o.Region = region
	})
	if err != nil {
		return false, fmt.Errorf("failed to send message: %w", err)
	}

	return true, nil
}

// Parse the SQS URL to extract region.
// Expected format: https://sqs.region.amazonaws.com/account/queue-name
func parse(queueURL string) (string, error) {
	url := strings.TrimSpace(queueURL)

	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	if !strings.HasPrefix(url, "sqs.") {
		return "", errors.New("invalid SQS URL format: must start with sqs")
	}

	url = strings.TrimPrefix(url, "sqs.")

	parts := strings.Split(url, ".")
	if len(parts) < 2 {
		return "", errors.New("invalid SQS URL format: missing region")
	}

	region := parts[0]
	if region == "" {
		return "", errors.New("invalid SQS URL format: empty region")
	}

	return region, nil
}
