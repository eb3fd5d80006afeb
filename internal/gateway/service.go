package gateway

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dispatchly/opsconsole/internal/offer"
	"github.com/dispatchly/opsconsole/internal/realtime"
)

// Service wires the realtime pipeline: JetStream consumer → event bus →
// offer store → WebSocket fan-out.
type Service struct {
	bus      *realtime.Bus
	store    *offer.Store
	cm       *ConnectionManager
	consumer *EventConsumer
}

// Config holds configuration for the console gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the console gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates the console gateway service around an offer store
// and event bus owned by the composition root.
func NewService(config Config, bus *realtime.Bus, store *offer.Store) (*Service, error) {
	cm := NewConnectionManager(config.ConnectionConfig)

	consumer, err := NewEventConsumer(bus, config.JetStreamConfig)
	if err != nil {
		return nil, err
	}

	s := &Service{
		bus:      bus,
		store:    store,
		cm:       cm,
		consumer: consumer,
	}

	// Fan offer transitions and countdown ticks out to connected consoles.
	store.OnChange(func(c offer.Change) {
		if c.Cleared {
			cm.Broadcast(NewOfferClearedEvent(c.OrderID))
			return
		}
		cm.Broadcast(NewOfferUpdateEvent(c.Offer))
	})
	store.OnTick(func(t offer.Tick) {
		cm.Broadcast(NewTimerTickEvent(t))
	})

	return s, nil
}

// ConnectionManager exposes the manager for the WebSocket handler.
func (s *Service) ConnectionManager() *ConnectionManager {
	return s.cm
}

// Start runs the gateway until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting console gateway service")

	s.store.Start(ctx)
	unbind := s.store.BindBus(s.bus)
	defer unbind()

	go s.cm.Start(ctx)

	go func() {
		if err := s.consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("console gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service.
func (s *Service) Stop() error {
	if err := s.consumer.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop event consumer")
	}
	log.Info().Msg("console gateway service stopped")
	return nil
}
