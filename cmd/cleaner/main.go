package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

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
	RedisURL string `env:"REDIS_URL,required"`
	// Schedule is a cron expression; the default sweeps every ten
	// minutes.
	Schedule string `env:"CLEANER_SCHEDULE" envDefault:"*/10 * * * *"`
	// MaxAge is how long a handshake may stay pending before its
	// session record is dropped.
	MaxAge time.Duration `env:"CLEANER_MAX_AGE" envDefault:"1h"`
}

func main() {
	app := &cli.App{
		Name:  "cleaner",
		Usage: "sweep abandoned TonConnect handshakes out of Redis",
		Commands: []*cli.Command{
			commandCron(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandCron() *cli.Command {
	return &cli.Command{
		Name: "cron",
		Action: func(c *cli.Context) error {
			cfg, err := env.ParseAs[config]()
			if err != nil {
				return err
			}
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return err
			}
			rdb := redis.NewClient(opts)

			job := newSweepJob(rdb, cfg.MaxAge)

			cronRunner := cron.New()
			if _, err := cronRunner.AddFunc(cfg.Schedule, job.run); err != nil {
				return err
			}
			log.Println("Start cleaner, schedule:", cfg.Schedule)
			cronRunner.Run()
			return nil
		},
	}
}

type sweepJob struct {
	storage *tonconnect.RedisStorage
	mutex   *redsync.Mutex
	maxAge  time.Duration
}

func newSweepJob(rdb redis.UniversalClient, maxAge time.Duration) *sweepJob {
	rs := redsync.New(goredis.NewPool(rdb))
	return &sweepJob{
		storage: tonconnect.NewRedisStorage(rdb, 24*time.Hour),
		mutex:   rs.NewMutex("tonkit:cleaner", redsync.WithExpiry(5*time.Minute)),
		maxAge:  maxAge,
	}
}

// run sweeps under a distributed lock so concurrent cleaner instances
// do not scan the same keys.
func (j *sweepJob) run() {
	ctx := context.Background()
	if err := j.mutex.LockContext(ctx); err != nil {
		log.Println("another cleaner holds the lock:", err)
		return
	}
	defer func() {
		//nolint:errcheck
		j.mutex.UnlockContext(ctx)
	}()

	removed, err := j.storage.SweepPending(ctx, j.maxAge)
	if err != nil {
		log.Println("sweep failed:", err)
		return
	}
	log.Println("swept pending sessions:", removed)
}
