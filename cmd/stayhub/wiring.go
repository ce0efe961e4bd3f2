package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"stayhub/internal/app/commands"
	bookingapp "stayhub/internal/app/handlers/booking"
	"stayhub/internal/app/identity"
	"stayhub/internal/app/middleware"
	appoutbox "stayhub/internal/app/outbox"
	"stayhub/internal/app/queries"
	"stayhub/internal/app/uow"
	domainbooking "stayhub/internal/domain/booking"
	domainproperty "stayhub/internal/domain/property"
	domainuser "stayhub/internal/domain/user"
	"stayhub/internal/infra/authz"
	kafkabroker "stayhub/internal/infra/broker/kafka"
	rediscache "stayhub/internal/infra/cache/redis"
	"stayhub/internal/infra/config"
	mongostore "stayhub/internal/infra/db/mongo"
	pgstore "stayhub/internal/infra/db/postgres"
	ginserver "stayhub/internal/infra/http/gin"
	"stayhub/internal/infra/obs"
	infraoutbox "stayhub/internal/infra/outbox"
	"stayhub/internal/infra/security"
	"stayhub/internal/infra/storage/memory"
	"stayhub/internal/infra/validation"
)

// storage is what one store driver contributes to the application.
type storage struct {
	factory     uow.UoWFactory
	properties  domainproperty.Directory
	users       domainuser.Directory
	outbox      appoutbox.Outbox
	queue       infraoutbox.Queue
	idempotency middleware.IdempotencyStore
	checks      map[string]obs.Check
	closers     []func(context.Context) error
}

type application struct {
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	worker   *infraoutbox.Worker
	// fixture targets; nil when the driver's directories are read-only
	propertySink propertySaver
	userSink     userSaver
	closers      []func(context.Context) error
}

type propertySaver interface {
	Save(ctx context.Context, p *domainproperty.Property) error
}

type userSaver interface {
	Save(ctx context.Context, p *domainuser.Profile) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &application{closers: store.closers}
	app.propertySink, _ = store.properties.(propertySaver)
	app.userSink, _ = store.users.(userSaver)

	idStore := store.idempotency
	if cfg.RedisAddr != "" {
		rdb := rediscache.NewClient(cfg.RedisAddr)
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		store.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		idStore = rediscache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		store = withPropertyCache(store, rediscache.NewCachedPropertyDirectory(store.properties, rdb, cfg.PropertyCacheTTL, logger))
		logger.Info("redis enabled", "addr", cfg.RedisAddr)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafkabroker.NewProducer(cfg.KafkaBrokers, nil, logger)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
		worker := &infraoutbox.Worker{
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		}
		if store.queue != nil {
			worker.Store = store.queue
			app.worker = worker
		} else if mem, ok := store.outbox.(*memory.Outbox); ok {
			mem.Sink = infraoutbox.PublishRecords(producer, cfg.KafkaTopicPrefix, logger)
		}
	}

	policy, err := authz.NewEnforcer()
	if err != nil {
		app.close(logger)
		return nil, err
	}
	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{
			Commands: buildCommandBus(store, idStore, policy, logger),
			Queries:  buildQueryBus(store, policy, logger),
			Logger:   logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{
			Verifier: security.NewTokenVerifier(cfg.JWTSecret),
			Logger:   logger,
		}.Handle,
	}
	app.health = obs.HealthHandlers{Checks: store.checks, Timeout: 2 * time.Second}
	return app, nil
}

func buildCommandBus(store storage, idStore middleware.IdempotencyStore, policy domainbooking.Policy, logger *slog.Logger) commands.Bus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory: store.factory,
		Outbox:     store.outbox,
		Encoder:    appoutbox.JSONEventEncoder{},
		Logger:     logger,
	})
	commands.RegisterHandler(bus, bookingapp.ConfirmBookingCommand{}.Key(),
		bookingapp.NewConfirmBookingHandler(store.factory, policy, store.outbox, logger))
	commands.RegisterHandler(bus, bookingapp.CancelBookingCommand{}.Key(),
		bookingapp.NewCancelBookingHandler(store.factory, policy, store.outbox, logger))
	commands.RegisterHandler(bus, bookingapp.CompleteBookingCommand{}.Key(),
		bookingapp.NewCompleteBookingHandler(store.factory, policy, store.outbox, logger))

	return middleware.ChainCommands(
		bus,
		middleware.Validation(validation.New()),
		middleware.Authorization(identity.Authorizer{}),
		middleware.Idempotency(idStore, nil, logger),
		middleware.Transaction(store.factory, nil),
		middleware.OutboxFlush(store.outbox),
	)
}

func buildQueryBus(store storage, policy domainbooking.Policy, logger *slog.Logger) queries.Bus {
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler(bus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{
		UoWFactory: store.factory,
		Policy:     policy,
	})
	queries.RegisterHandler(bus, bookingapp.ListGuestBookingsQuery{}.Key(), &bookingapp.ListGuestBookingsHandler{
		UoWFactory: store.factory,
		Logger:     logger,
	})
	queries.RegisterHandler(bus, bookingapp.ListHostBookingsQuery{}.Key(), &bookingapp.ListHostBookingsHandler{
		UoWFactory: store.factory,
		Logger:     logger,
	})
	return middleware.ChainQueries(bus, middleware.QueryAuthorization(identity.Authorizer{}))
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	case config.DriverMemory, "":
		logger.Warn("using in-memory storage; data is lost on restart")
		return openMemory(cfg), nil
	default:
		return storage{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openMemory(cfg config.Config) storage {
	bookings := memory.NewBookingRepository()
	properties := memory.NewPropertyDirectory()
	users := memory.NewUserDirectory()
	return storage{
		factory:     memory.Factory{BookingRepo: bookings, PropertyDir: properties, UserDir: users},
		properties:  properties,
		users:       users,
		outbox:      memory.NewOutbox(),
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		checks:      map[string]obs.Check{},
	}
}

func openMongo(ctx context.Context, cfg config.Config) (storage, error) {
	client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return storage{}, fmt.Errorf("mongo indexes: %w", err)
	}
	bookings := mongostore.NewBookingRepository(client.DB, otel.Tracer("stayhub/db/mongo"))
	properties := mongostore.NewPropertyDirectory(client.DB, cfg.Currency)
	users := mongostore.NewUserDirectory(client.DB)
	box := infraoutbox.NewStore(client.DB)
	return storage{
		factory:     mongostore.Factory{DB: client.DB, BookingRepo: bookings, PropertyDir: properties, UserDir: users},
		properties:  properties,
		users:       users,
		outbox:      box,
		queue:       box,
		idempotency: mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
		checks:      map[string]obs.Check{"mongo": client.Ping},
		closers:     []func(context.Context) error{client.Close},
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config) (storage, error) {
	db, err := pgstore.Connect(cfg.PostgresDSN)
	if err != nil {
		return storage{}, fmt.Errorf("postgres connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return storage{}, err
	}
	if err := pgstore.Migrate(ctx, db); err != nil {
		_ = sqlDB.Close()
		return storage{}, fmt.Errorf("postgres migrate: %w", err)
	}
	bookings := pgstore.NewBookingRepository(db)
	properties := pgstore.NewPropertyDirectory(db)
	users := pgstore.NewUserDirectory(db)
	box := pgstore.NewOutboxStore(db)
	return storage{
		factory:     pgstore.Factory{DB: db, BookingRepo: bookings, PropertyDir: properties, UserDir: users},
		properties:  properties,
		users:       users,
		outbox:      box,
		queue:       box,
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		checks:      map[string]obs.Check{"postgres": sqlDB.PingContext},
		closers:     []func(context.Context) error{func(context.Context) error { return sqlDB.Close() }},
	}, nil
}

// withPropertyCache routes property lookups of every unit of work through dir.
func withPropertyCache(store storage, dir domainproperty.Directory) storage {
	switch f := store.factory.(type) {
	case memory.Factory:
		f.PropertyDir = dir
		store.factory = f
	case mongostore.Factory:
		f.PropertyDir = dir
		store.factory = f
	case pgstore.Factory:
		f.PropertyDir = dir
		store.factory = f
	}
	return store
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}
