//go:build integration

package consumer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lifenavigator/internal/platform/kafka/consumer"
	"lifenavigator/internal/platform/kafka/producer"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/testutil/containers"
)

type ConsumerSuite struct {
	suite.Suite
	brokers []string
}

func TestConsumerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ConsumerSuite))
}

func (s *ConsumerSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *ConsumerSuite) TestConsumesWhatTheRelayPublishes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	topic := "lifenavigator.events.consumer-test"
	p, err := producer.New(s.brokers, topic, logger)
	s.Require().NoError(err)
	defer p.Close()
	s.Require().NoError(p.EnsureTopic(ctx, 1, 1))

	event := events.New(ctx, events.TypeCreditMinted, "referrer-7", map[string]string{"amount": "20.00"})
	s.Require().NoError(p.Publish(ctx, []events.Record{{Event: event}}))

	c, err := consumer.New(s.brokers, topic, "consumer-test", logger, consumer.FromStart())
	s.Require().NoError(err)
	defer c.Close()

	runCtx, stop := context.WithCancel(ctx)
	var got *consumer.Message
	router := consumer.NewRouter(logger, nil)
	router.Register(string(events.TypeCreditMinted), consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
		got = msg
		stop()
		return nil
	}))

	err = c.Run(runCtx, router)
	s.True(errors.Is(err, context.Canceled), "unexpected error: %v", err)
	s.Require().NotNil(got)
	s.Equal("referrer-7", got.Event.AggregateID)
	s.Equal("20.00", got.Event.Attributes["amount"])
}
