package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"tixledger/db"
	"tixledger/db/registry"
	"tixledger/gateway"
	"tixledger/pubsub"
	"tixledger/service"
	"tixledger/tracing"
)

type options struct {
	HTTPAddr       string        `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"HTTP listen address"`
	PostgresURL    string        `long:"postgres-url" env:"POSTGRES_URL" required:"true" description:"Postgres connection string"`
	RedisAddr      string        `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
	JaegerEndpoint string        `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"Jaeger collector endpoint"`
	KycAddr        string        `long:"kyc-addr" env:"KYC_ADDR" description:"Verification provider address; auto-approve stub when empty"`
	Authority      string        `long:"authority" env:"LEDGER_AUTHORITY" required:"true" description:"Registry and ticket manager authority"`
	SweepInterval  time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"1m" description:"Event status sweep interval"`
	MaxOrgs        int           `long:"max-organizations" env:"MAX_ORGANIZATIONS" default:"1024" description:"Organization directory capacity"`
	MaxPerCategory int           `long:"max-events-per-category" env:"MAX_EVENTS_PER_CATEGORY" default:"1024" description:"Events per status bucket"`
}

func main() {
	log.Init(logrus.InfoLevel)

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.JaegerEndpoint != "" {
		tp := tracing.ConfigureTraceProvider(opts.JaegerEndpoint)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.FromContext(ctx).WithError(err).Error("failed to shutdown trace provider")
			}
		}()
	}

	dbConn, err := db.Connect(opts.PostgresURL)
	if err != nil {
		panic(err)
	}
	defer dbConn.Close()

	redisClient := pubsub.NewRedisClient(opts.RedisAddr)
	defer redisClient.Close()

	var kycService registry.KycService
	if opts.KycAddr != "" {
		kycService = gateway.NewKycClient(opts.KycAddr)
	} else {
		kycService = &gateway.KycMock{}
	}

	svc := service.New(
		opts.HTTPAddr,
		dbConn,
		redisClient,
		kycService,
		registry.Limits{
			MaxOrganizations:     opts.MaxOrgs,
			MaxEventsPerCategory: opts.MaxPerCategory,
		},
		opts.Authority,
		opts.SweepInterval,
	)

	if err := svc.Run(ctx); err != nil {
		panic(err)
	}
}
