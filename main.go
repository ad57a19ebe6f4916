package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"errorledger/src/app"
	"errorledger/src/capture"
	"errorledger/src/server"

	logger "github.com/sirupsen/logrus"
)

var APP_NAME = os.Getenv("APP_NAME")

func main() {
	app.LoadEnvFile()
	ledgerApp := app.FromEnv(context.Background())
	defer ledgerApp.Close()
	defer handlePanic(ledgerApp)

	if !ledgerApp.Enabled() {
		logger.Warn("Error ledger disabled, serving without storage")
	}
	ledgerApp.InstallLogHook(logger.StandardLogger())

	config := server.GetConfig()
	server.StartServer(config.Port, server.NewRouter(ledgerApp.Ledger, ledgerApp.Pipeline))
}

func handlePanic(a *app.App) {
	if r := recover(); r != nil {
		a.Pipeline.CapturePanic(context.Background(), r, nil)
		logger.WithError(fmt.Errorf("%+v", r)).
			WithField(capture.CapturedKey, true).
			Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
