package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"errorledger/cmd/inspect"
	"errorledger/src/app"
	"errorledger/src/capture"
	"errorledger/src/client"
	"errorledger/src/server"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "errorledger"
	cliApp.Usage = "Inspect and feed the error ledger"
	cliApp.Version = Version
	cliApp.Before = func(*cli.Context) error {
		app.LoadEnvFile()
		return nil
	}

	cliApp.Commands = []cli.Command{
		topCMD,
		showCMD,
		recordCMD,
		serveCMD,
	}

	if err := cliApp.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serverFlag = cli.StringFlag{
	Name:   "server",
	Usage:  "base URL of a running ledger server; the local store is used when empty",
	EnvVar: "LEDGER_SERVER_URL",
}

var (
	topCMD = cli.Command{
		Name:      "top",
		Usage:     "list the most frequent errors",
		Action:    topAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			serverFlag,
			cli.IntFlag{Name: "limit", Value: 50, Usage: "number of errors to list"},
		},
		Description: `Print the top errors ordered by occurrence count`,
	}
	showCMD = cli.Command{
		Name:        "show",
		Usage:       "show one error",
		Action:      showAction,
		ArgsUsage:   "<signature>",
		Flags:       []cli.Flag{serverFlag},
		Description: `Print an error with its three most recent context snapshots`,
	}
	recordCMD = cli.Command{
		Name:        "record",
		Usage:       "capture an error report read from stdin",
		Action:      recordAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{serverFlag},
		Description: `Read one JSON report {code,message,file,line,type,trace,context} from stdin and capture it`,
	}
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the read API",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the read API and the capture endpoint`,
	}
)

func newInspect(c *cli.Context) (*inspect.Inspect, func(), error) {
	config, err := inspect.GetConfig()
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("limit") {
		config.Limit = c.Int("limit")
	}
	if url := c.String("server"); url != "" {
		config.ServerURL = url
	}

	ins := &inspect.Inspect{
		Log:    logrus.WithField("cmd", c.Command.Name),
		Out:    os.Stdout,
		Config: config,
	}

	if config.ServerURL != "" {
		ins.Reader = client.NewClient(config.ServerURL)
		return ins, func() {}, nil
	}

	ledgerApp := app.FromEnv(context.Background())
	if !ledgerApp.Enabled() {
		return nil, nil, errors.New("error ledger storage is not available")
	}
	ins.Reader = ledgerApp.Ledger
	return ins, ledgerApp.Close, nil
}

func topAction(c *cli.Context) error {
	ins, done, err := newInspect(c)
	if err != nil {
		return err
	}
	defer done()

	return ins.Top(context.Background())
}

func showAction(c *cli.Context) error {
	signature := c.Args().First()
	if signature == "" {
		return cli.NewExitError("missing <signature>", 2)
	}

	ins, done, err := newInspect(c)
	if err != nil {
		return err
	}
	defer done()

	return ins.Show(context.Background(), signature)
}

func recordAction(c *cli.Context) error {
	var report capture.Report
	decoder := json.NewDecoder(os.Stdin)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&report); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}

	if url := c.String("server"); url != "" {
		resp, err := client.NewClient(url).Capture(context.Background(), report)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", resp.Outcome, resp.Signature)
		return nil
	}

	ledgerApp := app.FromEnv(context.Background())
	defer ledgerApp.Close()

	result := ledgerApp.Pipeline.Capture(context.Background(), report)
	fmt.Printf("%s %s\n", result.Outcome, result.Signature)
	if result.Outcome == capture.Discarded {
		return cli.NewExitError("capture discarded", 1)
	}
	return nil
}

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting ledger server CMD")

	ledgerApp := app.FromEnv(context.Background())
	defer ledgerApp.Close()
	ledgerApp.InstallLogHook(logrus.StandardLogger())

	config := server.GetConfig()
	server.StartServer(config.Port, server.NewRouter(ledgerApp.Ledger, ledgerApp.Pipeline))
	return nil
}
