// Package container builds the application's collaborators once at startup
// and hands them to the router and the command-line tools.
package container

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-shop-account/config"
	"github.com/oksasatya/go-shop-account/internal/application"
	"github.com/oksasatya/go-shop-account/internal/domain/repository"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/cache"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/events"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/memory"
	mongoinfra "github.com/oksasatya/go-shop-account/internal/infrastructure/mongo"
	pginfra "github.com/oksasatya/go-shop-account/internal/infrastructure/postgres"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/search"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

type Container struct {
	Config      *config.Config
	Logger      *logrus.Logger
	JWT         *helpers.JWTManager
	Hasher      *helpers.Hasher
	Repo        repository.UserRepository
	Credentials *application.CredentialStore
	Service     *application.Service
	ES          *elasticsearch.Client
	UserIndex   *search.UserIndex

	closers []func()
}

// New connects every configured backend. cfg must have passed Validate.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	jwtManager, err := helpers.NewJWTManager(cfg.JWTSecretKey, cfg.JWTExpiresIn())
	if err != nil {
		return nil, err
	}
	c.JWT = jwtManager
	c.Hasher = helpers.NewHasher(cfg.BcryptCost, cfg.HashWorkers)

	base, err := c.openStorage(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Repo = base
	if cfg.RedisAddr != "" {
		rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		c.onClose(func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable; profile cache runs degraded")
		}
		c.Repo = cache.NewUserRepository(base, rdb, cfg.ProfileCacheTTL, logger)
	}

	opts := application.ServiceOptions{
		ResetTTL: cfg.ResetPasswordTTL,
		ResetURL: cfg.ResetPasswordURL,
	}

	if cfg.GCSBucket != "" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		c.onClose(func() { _ = gcsClient.Close() })
		opts.Avatars = helpers.NewGCSObjectStore(gcsClient, cfg.GCSBucket)
	}

	es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init elasticsearch client: %w", err)
	}
	c.ES = es
	c.UserIndex = search.NewUserIndex(es, cfg.ESUsersIndex)
	if c.UserIndex.Enabled() {
		if err := c.UserIndex.EnsureIndex(ctx); err != nil {
			logger.WithError(err).Warn("elasticsearch index check failed; search may be degraded")
		}
		opts.Searcher = c.UserIndex
		opts.Indexer = c.UserIndex
	}

	if cfg.RabbitMQURL != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQUserEventsQueue)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init rabbitmq publisher: %w", err)
		}
		c.onClose(pub.Close)
		opts.Indexer = events.NewPublisher(pub)
	}

	c.Credentials = application.NewCredentialStore(c.Repo, c.Hasher, c.JWT)
	c.Service = application.NewService(c.Repo, c.Credentials, logger, opts)
	return c, nil
}

func (c *Container) openStorage(ctx context.Context) (repository.UserRepository, error) {
	cfg := c.Config
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, c.Logger); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: cfg.DBMaxConnLife,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.onClose(pool.Close)
		return pginfra.NewUserRepository(pool), nil

	case config.StorageMemory:
		c.Logger.Warn("using in-memory storage; data is lost on restart")
		return memory.NewUserRepository(), nil

	default:
		client, err := mongoinfra.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		c.onClose(func() { _ = client.Disconnect(context.Background()) })
		repo := mongoinfra.NewUserRepository(client.Database(cfg.MongoDB), cfg.MongoUsersCollection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return repo, nil
	}
}

func (c *Container) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
