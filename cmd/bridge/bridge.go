package bridge

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"eabridge/src/app"
	"eabridge/src/connectors"
	"eabridge/src/controller"
	"eabridge/src/database"
	"eabridge/src/dispatch"
	"eabridge/src/executors"
	"eabridge/src/notify"
	"eabridge/src/repository"
	"eabridge/src/risk"
	"eabridge/src/security"
	"eabridge/src/server"
	"eabridge/src/symbols"

	"github.com/sirupsen/logrus"
)

type Bridge struct{}

var errLicenseAPIUnset = errors.New("LICENSE_API_URL is not configured")

// offlineLicenses stands in when no license API is configured (mock source).
type offlineLicenses struct{}

func (offlineLicenses) Authenticate(ctx context.Context, licence, phoneSecret string) (*connectors.LicenseResponse, error) {
	return nil, errLicenseAPIUnset
}

func (b *Bridge) Start() error {
	config := GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	securityConfig := security.GetConfig()
	sealer, err := security.NewSealerFromConfig(securityConfig)
	if err != nil {
		return err
	}
	sessionTokens, err := security.NewSessionIssuer(securityConfig)
	if err != nil {
		return err
	}
	apiTokens, err := security.NewAPIIssuer(securityConfig)
	if err != nil {
		return err
	}

	connectorsConfig := connectors.GetConfig()
	source, err := newSignalSource(connectorsConfig)
	if err != nil {
		return err
	}
	var licenses app.LicenseAuthenticator = offlineLicenses{}
	if connectorsConfig.LicenseAPIURL != "" {
		if licenses, err = connectors.NewLicenseAPI(connectorsConfig); err != nil {
			return err
		}
	}
	terminal, err := connectors.NewTerminalConnector(connectorsConfig, sessionTokens)
	if err != nil {
		return err
	}

	sink, err := newSink(ctx)
	if err != nil {
		return err
	}

	store := symbols.NewStore(repository.NewSymbolConfigRepository(), risk.LimitsFromConfig(risk.GetConfig()))
	accounts := repository.NewAccountRepository()
	executions := repository.NewExecutionLogRepository()
	signalLog := repository.NewSignalLogRepository()

	coordinator := dispatch.New(dispatch.GetConfig(), dispatch.Deps{
		Target:      terminal,
		Symbols:     store,
		Accounts:    accounts,
		Credentials: sealer,
		Outcomes:    executions,
		Sink:        sink,
	})
	go coordinator.Run(ctx)

	signals := controller.NewSignalController(controller.GetConfig(), store, coordinator, signalLog, repository.NewExceptionRepository())
	poller := executors.NewPoller(executors.GetConfig(), source, signals.HandleSignals)
	poller.OnError(signals.ReportPollError)

	state := app.New(app.Deps{
		Symbols:    store,
		Accounts:   accounts,
		EAs:        repository.NewExpertAdvisorRepository(),
		KV:         repository.NewKVRepository(),
		Signals:    signalLog,
		Executions: executions,
		Licenses:   licenses,
		Sealer:     sealer,
		Poller:     poller,
		Dispatcher: coordinator,
	})
	if err := state.Restore(ctx); err != nil {
		logrus.WithError(err).Error("Failed to restore bridge state")
		return err
	}
	logrus.WithField("botActive", state.BotActive()).Info("Bridge started")

	if config.ServeAPI {
		err = server.StartServer(ctx, server.GetConfig(), server.NewRouter(state, apiTokens))
	} else {
		<-ctx.Done()
	}

	poller.Stop()
	stop()
	<-coordinator.Done()
	return err
}

func newSignalSource(cfg connectors.Config) (executors.SignalSource, error) {
	if cfg.SignalSource == "mock" {
		logrus.WithField("asset", cfg.MockSignalAsset).Warn("Using the mock signal source")
		return connectors.NewMockSignalSource(cfg), nil
	}
	return connectors.NewSignalAPI(cfg)
}

// newSink fans coordinator events out to the log and whichever remote sinks are configured.
func newSink(ctx context.Context) (notify.Sink, error) {
	cfg := notify.GetConfig()
	sinks := notify.Multi{notify.LogSink{}}

	push, err := notify.NewPushSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if push != nil {
		go push.Start(ctx)
		sinks = append(sinks, push)
	}

	if kafkaSink := notify.NewKafkaSink(cfg); kafkaSink != nil {
		go kafkaSink.Start(ctx)
		sinks = append(sinks, kafkaSink)
	}
	return sinks, nil
}
