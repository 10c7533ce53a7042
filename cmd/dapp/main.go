package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"tonkit/internal/pkg/caching"
	"tonkit/tonconnect"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

type config struct {
	Addr        string `env:"DAPP_ADDR" envDefault:"0.0.0.0:8080"`
	AppURL      string `env:"DAPP_URL" envDefault:"http://localhost:8080"`
	AppName     string `env:"DAPP_NAME" envDefault:"tonkit demo dapp"`
	AppDomain   string `env:"TON_APP_DOMAIN" envDefault:"localhost"`
	ManifestURL string `env:"TONCONNECT_MANIFEST_URL"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseDSN string `env:"DB_DSN"`

	TonapiBridgeToken string `env:"TONAPI_BRIDGE_TOKEN"`
}

func main() {
	app := &cli.App{
		Name:  "dapp",
		Usage: "demo dapp backend: TonConnect sessions, proof checks and transfers",
		Commands: []*cli.Command{
			commandServer(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandServer() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "start the web server",
		Action: func(c *cli.Context) error {
			cfg, err := env.ParseAs[config]()
			if err != nil {
				return err
			}
			if cfg.ManifestURL == "" {
				cfg.ManifestURL = cfg.AppURL + "/tonconnect-manifest.json"
			}

			container, err := newContainer(cfg)
			if err != nil {
				return err
			}
			defer container.Shutdown()

			router, err := newRouter(container)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:    cfg.Addr,
				Handler: router,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errWg, errCtx := errgroup.WithContext(ctx)

			errWg.Go(func() error {
				log.Printf("ListenAndServe: %s\n", cfg.Addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})

			errWg.Go(func() error {
				<-errCtx.Done()
				do.MustInvoke[*tonconnect.TonConnect](container).Close()
				return srv.Shutdown(context.TODO())
			})

			return errWg.Wait()
		},
	}
}

func newContainer(cfg config) (*do.Injector, error) {
	injector := do.New()

	do.ProvideValue(injector, cfg)

	do.Provide(injector, func(i *do.Injector) (zerolog.Logger, error) {
		return zerolog.New(os.Stderr).With().Timestamp().Logger(), nil
	})

	do.Provide(injector, func(i *do.Injector) (redis.UniversalClient, error) {
		cfg := do.MustInvoke[config](i)
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL not set")
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	})

	do.Provide(injector, func(i *do.Injector) (*bun.DB, error) {
		cfg := do.MustInvoke[config](i)
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("DB_DSN not set")
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(cfg.DatabaseDSN),
			pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
		))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	})

	// Session state prefers Redis, then Postgres, then process memory.
	do.Provide(injector, func(i *do.Injector) (tonconnect.Storage, error) {
		if rdb, err := do.Invoke[redis.UniversalClient](i); err == nil {
			return tonconnect.NewRedisStorage(rdb, 0), nil
		}
		if db, err := do.Invoke[*bun.DB](i); err == nil {
			storage := tonconnect.NewBunStorage(db)
			if err := storage.Migrate(context.Background()); err != nil {
				return nil, err
			}
			return storage, nil
		}
		return tonconnect.NewMemoryStorage(), nil
	})

	do.Provide(injector, func(i *do.Injector) (*tonconnect.WalletsLoader, error) {
		var cache caching.Cache
		if rdb, err := do.Invoke[redis.UniversalClient](i); err == nil {
			cache, err = caching.NewCacheRedis(rdb, true)
			if err != nil {
				return nil, err
			}
		} else {
			cache = caching.NewCacheLocal()
		}
		return tonconnect.NewWalletsLoader(tonconnect.WithWalletsCache(cache)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*tonconnect.TonConnect, error) {
		cfg := do.MustInvoke[config](i)
		storage := do.MustInvoke[tonconnect.Storage](i)
		loader := do.MustInvoke[*tonconnect.WalletsLoader](i)
		log := do.MustInvoke[zerolog.Logger](i)

		opts := []tonconnect.ManagerOption{
			tonconnect.WithWallets(loader),
			tonconnect.WithLogger(log),
		}
		if cfg.TonapiBridgeToken != "" {
			opts = append(opts, tonconnect.WithAPITokens(map[string]string{"tonapi": cfg.TonapiBridgeToken}))
		}
		return tonconnect.New(storage, cfg.ManifestURL, opts...), nil
	})

	do.Provide(injector, func(i *do.Injector) (*tonconnect.ProofVerifier, error) {
		cfg := do.MustInvoke[config](i)
		storage := do.MustInvoke[tonconnect.Storage](i)
		return tonconnect.NewProofVerifier(cfg.AppDomain, storage), nil
	})

	do.Provide(injector, func(i *do.Injector) (*sessionStore, error) {
		rdb, err := do.Invoke[redis.UniversalClient](i)
		if err != nil {
			return newMemorySessionStore(), nil
		}
		return newRedisSessionStore(rdb), nil
	})

	return injector, nil
}
