package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

// NotificationTopic is the topic broker-backed sinks publish to. The http
// sink ignores it and posts straight to the configured webhook URL.
const NotificationTopic = "prbridge.notifications"

// Notification is one outbound message, already rendered and encoded.
type Notification struct {
	// Body is the JSON-encoded Discord message.
	Body []byte
	// Event is the source event type, carried as message metadata.
	Event string
	// Delivery is the GitHub delivery id, carried as message metadata.
	Delivery string
}

// DeliveryError reports a failed outbound send. Sends are never retried;
// the failure is surfaced once to the caller.
type DeliveryError struct {
	Driver string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Driver, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Sink delivers rendered notifications. The http driver is the Discord
// webhook itself; broker drivers carry the same message for deployments
// that relay it.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
	Close() error
}

// SinkFactory builds the underlying publisher for a custom driver. target
// is the configured webhook URL.
type SinkFactory func(cfg SinkConfig, target string, logger watermill.LoggerAdapter) (message.Publisher, func() error, error)

var sinkFactories = map[string]SinkFactory{}

// RegisterSinkDriver registers a custom sink driver under name.
func RegisterSinkDriver(name string, factory SinkFactory) {
	if name == "" || factory == nil {
		return
	}
	sinkFactories[strings.ToLower(name)] = factory
}

// NewSink builds a sink for every configured driver. A driver that fails
// to build is skipped with a log line; no usable driver at all is an error.
func NewSink(cfg SinkConfig, target string) (Sink, error) {
	logger := watermill.NewStdLogger(false, false)

	drivers := cfg.Drivers
	if len(drivers) == 0 && cfg.Driver != "" {
		drivers = []string{cfg.Driver}
	}
	if len(drivers) == 0 {
		drivers = []string{"http"}
	}

	sinks := make(map[string]Sink, len(drivers))
	order := make([]string, 0, len(drivers))
	for _, driver := range drivers {
		sink, err := newSingleSink(cfg, driver, target, logger)
		if err != nil {
			logger.Error("sink init failed, skipping driver", err, watermill.LogFields{
				"driver": driver,
			})
			continue
		}
		key := strings.ToLower(driver)
		sinks[key] = sink
		order = append(order, key)
	}
	if len(sinks) == 0 {
		return nil, errors.New("no sink drivers available")
	}
	return &sinkMux{sinks: sinks, order: order}, nil
}

func newSingleSink(cfg SinkConfig, driver, target string, logger watermill.LoggerAdapter) (Sink, error) {
	key := strings.ToLower(driver)
	switch key {
	case "http":
		if target == "" {
			return nil, fmt.Errorf("http sink requires a webhook url")
		}
		pub, err := wmhttp.NewPublisher(wmhttp.PublisherConfig{
			MarshalMessageFunc: func(_ string, msg *message.Message) (*http.Request, error) {
				req, err := wmhttp.DefaultMarshalMessageFunc(target, msg)
				if err != nil {
					return nil, err
				}
				req.Header.Set("Content-Type", "application/json")
				return req, nil
			},
		}, logger)
		if err != nil {
			return nil, err
		}
		return &watermillSink{driver: key, publisher: pub}, nil
	case "gochannel":
		pub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.GoChannel.OutputChannelBuffer,
			Persistent:          cfg.GoChannel.Persistent,
		}, logger)
		return &watermillSink{driver: key, publisher: pub}, nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka brokers are required")
		}
		pub, err := wmkafka.NewPublisher(cfg.Kafka.Brokers, wmkafka.DefaultMarshaler{}, nil, logger)
		if err != nil {
			return nil, err
		}
		return &watermillSink{driver: key, publisher: pub}, nil
	case "nats":
		if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
			return nil, fmt.Errorf("nats cluster_id and client_id are required")
		}
		natsCfg := wmnats.StreamingPublisherConfig{
			ClusterID: cfg.NATS.ClusterID,
			ClientID:  cfg.NATS.ClientID,
			Marshaler: wmnats.GobMarshaler{},
		}
		if cfg.NATS.URL != "" {
			natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
		}
		pub, err := wmnats.NewStreamingPublisher(natsCfg, logger)
		if err != nil {
			return nil, err
		}
		return &watermillSink{driver: key, publisher: pub}, nil
	case "amqp":
		if cfg.AMQP.URL == "" {
			return nil, fmt.Errorf("amqp url is required")
		}
		amqpCfg, err := amqpConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
		if err != nil {
			return nil, err
		}
		pub, err := wmamqp.NewPublisher(amqpCfg, logger)
		if err != nil {
			return nil, err
		}
		return &watermillSink{driver: key, publisher: pub}, nil
	default:
		if factory, ok := sinkFactories[key]; ok {
			pub, closeFn, err := factory(cfg, target, logger)
			if err != nil {
				return nil, err
			}
			return &watermillSink{driver: key, publisher: pub, closeFn: closeFn}, nil
		}
		return nil, fmt.Errorf("unsupported sink driver: %s", driver)
	}
}

func amqpConfigFromMode(url, mode string) (wmamqp.Config, error) {
	switch strings.ToLower(mode) {
	case "", "durable_queue":
		return wmamqp.NewDurableQueueConfig(url), nil
	case "nondurable_queue":
		return wmamqp.NewNonDurableQueueConfig(url), nil
	case "durable_pubsub":
		return wmamqp.NewDurablePubSubConfig(url, nil), nil
	case "nondurable_pubsub":
		return wmamqp.NewNonDurablePubSubConfig(url, nil), nil
	default:
		return wmamqp.Config{}, fmt.Errorf("unsupported amqp mode: %s", mode)
	}
}

type watermillSink struct {
	driver    string
	publisher message.Publisher
	closeFn   func() error
}

func (s *watermillSink) Deliver(ctx context.Context, n Notification) error {
	msg := message.NewMessage(watermill.NewUUID(), n.Body)
	msg.Metadata.Set("event", n.Event)
	if n.Delivery != "" {
		msg.Metadata.Set("delivery", n.Delivery)
	}
	msg.SetContext(ctx)

	if err := s.publisher.Publish(NotificationTopic, msg); err != nil {
		IncDeliveryError(s.driver)
		return &DeliveryError{Driver: s.driver, Err: err}
	}
	IncDelivered(s.driver)
	return nil
}

func (s *watermillSink) Close() error {
	if s.publisher == nil {
		return nil
	}
	err := s.publisher.Close()
	if s.closeFn != nil {
		return errors.Join(err, s.closeFn())
	}
	return err
}

type sinkMux struct {
	sinks map[string]Sink
	order []string
}

func (m *sinkMux) Deliver(ctx context.Context, n Notification) error {
	var err error
	for _, driver := range m.order {
		if deliverErr := m.sinks[driver].Deliver(ctx, n); deliverErr != nil {
			err = errors.Join(err, deliverErr)
		}
	}
	return err
}

func (m *sinkMux) Close() error {
	var err error
	for _, sink := range m.sinks {
		err = errors.Join(err, sink.Close())
	}
	return err
}
