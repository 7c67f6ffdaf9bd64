package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"eabridge/cmd/bridge"
	"eabridge/src/app"
	"eabridge/src/connectors"
	"eabridge/src/database"
	"eabridge/src/repository"
	"eabridge/src/risk"
	"eabridge/src/security"
	"eabridge/src/symbols"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.DebugLevel
	}

	logrus.SetLevel(level)
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// loadEnv reads ENV_FILE (default .env) when present.
func loadEnv() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).WithField("file", path).Warn("Could not load env file")
	}
}

func main() {
	loadEnv()
	SetupLogger()

	app := cli.NewApp()
	app.Name = "eabridge"
	app.Usage = "Bridge EA trading signals to a broker web terminal"
	app.Version = Version

	app.Commands = []cli.Command{
		bridgeCMD,
		licenseCMD,
		symbolsCMD,
		tokenCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	bridgeCMD = cli.Command{
		Name:        "bridge",
		Usage:       "run the signal bridge",
		Action:      bridgeAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Poll signals, dispatch them to the execution terminal and serve the control API`,
	}
	licenseCMD = cli.Command{
		Name:        "license",
		Usage:       "bind a license key to this device",
		Action:      licenseAction,
		ArgsUsage:   "<license key>",
		Description: `Authenticate a license and add its expert advisor to the list`,
	}
	symbolsCMD = cli.Command{
		Name:  "symbols",
		Usage: "manage symbol configuration",
		Subcommands: []cli.Command{
			{
				Name:        "import",
				Usage:       "activate symbols from a YAML preset file",
				Action:      symbolsImportAction,
				ArgsUsage:   "<file.yaml>",
				Description: `Each entry is activated as if set through the control API`,
			},
		},
	}
	tokenCMD = cli.Command{
		Name:      "token",
		Usage:     "issue a control API token",
		Action:    tokenAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "operator",
				Value: "operator",
				Usage: "name recorded in the token subject",
			},
		},
	}
)

func bridgeAction(_ *cli.Context) error {

	logrus.Info("Starting bridge CMD")

	b := &bridge.Bridge{}
	err := b.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func licenseAction(c *cli.Context) error {
	licenseKey := strings.TrimSpace(c.Args().First())
	if licenseKey == "" {
		return cli.NewExitError("license key is required", 2)
	}

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}
	sealer, err := security.NewSealerFromConfig(security.GetConfig())
	if err != nil {
		return err
	}
	licenses, err := connectors.NewLicenseAPI(connectors.GetConfig())
	if err != nil {
		return err
	}

	state := app.New(app.Deps{
		EAs:      repository.NewExpertAdvisorRepository(),
		Licenses: licenses,
		Sealer:   sealer,
	})
	ea, err := state.AddLicense(context.Background(), licenseKey)
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\t%s\n", ea.ID, ea.Name, ea.Expires)
	return nil
}

func symbolsImportAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("preset file is required", 2)
	}

	presets, err := symbols.LoadPresets(path)
	if err != nil {
		return err
	}

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}

	ctx := context.Background()
	store := symbols.NewStore(repository.NewSymbolConfigRepository(), risk.LimitsFromConfig(risk.GetConfig()))
	if err := store.Load(ctx); err != nil {
		return err
	}
	applied, err := store.ApplyPresets(ctx, presets)
	logrus.WithFields(map[string]interface{}{
		"file":    path,
		"applied": applied,
		"total":   len(presets),
	}).Info("Symbol presets imported")
	return err
}

func tokenAction(c *cli.Context) error {
	issuer, err := security.NewAPIIssuer(security.GetConfig())
	if err != nil {
		return err
	}
	token, err := issuer.IssueOperator(c.String("operator"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
