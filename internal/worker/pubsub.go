package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler receives jobs from a subscription and publishes results to a topic.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	publisher        *pubsub.Publisher
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	ResultTopic      string
	Config           Config
	Annotator        Annotator
	Sweeper          Sweeper
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	workerCfg := cfg.Config.withDefaults()

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = workerCfg.MaxOutstandingMessages
	subscriber.ReceiveSettings.MaxExtension = workerCfg.MaxExtension

	publisher := client.Publisher(cfg.ResultTopic)

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		publisher:        publisher,
		subscriptionName: cfg.SubscriptionName,
		processor: NewProcessor(ProcessorConfig{
			Config:    workerCfg,
			Annotator: cfg.Annotator,
			Publisher: &topicPublisher{publisher: publisher},
			Sweeper:   cfg.Sweeper,
			Logger:    cfg.Logger,
		}),
		logger: cfg.Logger,
	}, nil
}

// Processor returns the job processor, for statistics.
func (h *PubSubHandler) Processor() *Processor {
	return h.processor
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close flushes pending results and closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	h.publisher.Stop()
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	ack, err := settle(h.processor.Process(ctx, msg.Data))
	if err != nil {
		if ack {
			logger.Warn().Err(err).Msg("dropping malformed job")
		} else {
			logger.Error().Err(err).Msg("job failed")
		}
	}

	if ack {
		msg.Ack()
		return
	}
	msg.Nack()
}

// settle decides whether a processed message is acknowledged. Malformed jobs
// are acknowledged to prevent redelivery; transient failures are not.
func settle(err error) (bool, error) {
	if err == nil || errors.Is(err, ErrMalformedJob) {
		return true, err
	}
	return false, err
}

// topicPublisher adapts a Pub/Sub publisher to Publisher.
type topicPublisher struct {
	publisher *pubsub.Publisher
}

func (p *topicPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes,
	})
	_, err := result.Get(ctx)
	return err
}
