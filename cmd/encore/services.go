package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/encorelive/encore/internal/band"
	"github.com/encorelive/encore/internal/leaderboard"
	"github.com/encorelive/encore/internal/quiz"
	"github.com/encorelive/encore/internal/realtime"
	"github.com/encorelive/encore/internal/session"
)

// Services bundles everything the HTTP layer serves.
type Services struct {
	Sessions    *session.Service
	Band        *band.Service
	Quiz        *quiz.Service
	Leaderboard *leaderboard.Leaderboard
	Catalog     *band.Catalog
	Hub         *realtime.Hub
	Publisher   *realtime.Publisher
	Consumer    *realtime.Consumer
	BaseURL     string
}

func setupServices(ctx context.Context, config *Config, pool *pgxpool.Pool, rdb *redis.Client) (*Services, error) {
	hub := realtime.NewHub(realtime.DefaultHubConfig())

	publisher, err := realtime.NewPublisher(ctx, config.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("setup publisher: %w", err)
	}

	consumerConfig := realtime.DefaultConsumerConfig()
	consumerConfig.URL = config.NATS.URL
	consumer, err := realtime.NewConsumer(hub, consumerConfig)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("setup consumer: %w", err)
	}

	lb := leaderboard.New(rdb)
	catalog := band.NewCatalog(os.DirFS(config.Catalog.Dir))

	// Band hits published by controllers land on the leaderboard.
	hub.SetInboundHandler(band.NewHitScoreHandler(lb))

	return &Services{
		Sessions:    session.NewService(session.NewRepository(pool)),
		Band:        band.NewService(band.NewRepository(pool), publisher, nil),
		Quiz:        quiz.NewService(quiz.NewRepository(pool), publisher, lb, nil),
		Leaderboard: lb,
		Catalog:     catalog,
		Hub:         hub,
		Publisher:   publisher,
		Consumer:    consumer,
		BaseURL:     config.Server.BaseURL,
	}, nil
}
