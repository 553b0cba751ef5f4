package cqrs

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danghamo/accountd/pkg/logger"
)

// Event bus backends
const (
	BackendGoChannel   = "gochannel"
	BackendRedisStream = "redisstream"
)

// BusConfig selects the transport and topic naming of the event bus
type BusConfig struct {
	Backend       string
	TopicPrefix   string
	ConsumerGroup string
	CloseTimeout  time.Duration
}

// Bus bundles the watermill publisher, subscriber, router, event bus and event processor
type Bus struct {
	EventBus       *cqrs.EventBus
	EventProcessor *cqrs.EventProcessor
	Router         *message.Router

	publisher       message.Publisher
	subscriber      message.Subscriber
	sharedTransport bool
	logger          *logger.Logger
}

// NewBus creates the event bus. redisClient is only used by the redisstream backend.
func NewBus(cfg BusConfig, redisClient redis.UniversalClient, logger *logger.Logger) (*Bus, error) {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "accountd-events"
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}

	watermillLogger := NewWatermillLogger(logger)

	publisher, subscriber, err := newPubSub(cfg, redisClient, watermillLogger)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	topic := func(eventName string) string {
		return fmt.Sprintf("%s.%s", cfg.TopicPrefix, eventName)
	}

	eventBus, err := cqrs.NewEventBusWithConfig(
		publisher,
		cqrs.EventBusConfig{
			GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
				return topic(params.EventName), nil
			},
			Marshaler: cqrs.JSONMarshaler{},
			Logger:    watermillLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(
		router,
		cqrs.EventProcessorConfig{
			GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
				return topic(params.EventName), nil
			},
			SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
				return subscriber, nil
			},
			Marshaler: cqrs.JSONMarshaler{},
			Logger:    watermillLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event processor: %w", err)
	}

	return &Bus{
		EventBus:        eventBus,
		EventProcessor:  eventProcessor,
		Router:          router,
		publisher:       publisher,
		subscriber:      subscriber,
		sharedTransport: cfg.Backend == "" || cfg.Backend == BackendGoChannel,
		logger:          logger.WithComponent("event-bus"),
	}, nil
}

func newPubSub(cfg BusConfig, redisClient redis.UniversalClient, watermillLogger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	switch cfg.Backend {
	case "", BackendGoChannel:
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermillLogger)
		return pubSub, pubSub, nil

	case BackendRedisStream:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redisstream backend requires a redis client")
		}

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermillLogger,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create publisher: %w", err)
		}

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        redisClient,
				ConsumerGroup: cfg.ConsumerGroup,
			},
			watermillLogger,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create subscriber: %w", err)
		}
		return publisher, subscriber, nil

	default:
		return nil, nil, fmt.Errorf("unknown event bus backend %q", cfg.Backend)
	}
}

// Publish publishes an event on the event bus
func (b *Bus) Publish(ctx context.Context, event interface{}) error {
	return b.EventBus.Publish(ctx, event)
}

// AddHandlers registers event handlers; call before Run
func (b *Bus) AddHandlers(handlers ...cqrs.EventHandler) error {
	return b.EventProcessor.AddHandlers(handlers...)
}

// Run runs the router until ctx is done
func (b *Bus) Run(ctx context.Context) error {
	b.logger.Info("Starting event router")
	return b.Router.Run(ctx)
}

// Running is closed once the router has started all handlers
func (b *Bus) Running() chan struct{} {
	return b.Router.Running()
}

// Close stops the router and closes the transport
func (b *Bus) Close() error {
	if err := b.Router.Close(); err != nil {
		b.logger.Error("Router shutdown error", zap.Error(err))
		return err
	}
	if err := b.publisher.Close(); err != nil {
		return err
	}
	if b.sharedTransport {
		return nil
	}
	return b.subscriber.Close()
}
