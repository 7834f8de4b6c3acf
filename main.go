package main

import (
	"context"
	"fmt"
	"os"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/connectors"
	"tradeanalyst/src/database"
	"tradeanalyst/src/logging"
	"tradeanalyst/src/orchestrator"
	"tradeanalyst/src/repository"
	"tradeanalyst/src/risk"
	"tradeanalyst/src/server"
)

var APP_NAME = os.Getenv("APP_NAME")

func main() {
	logging.Setup()
	defer handlePanic()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	repo := repository.NewTradeRecordRepository()
	gate := risk.NewGate(risk.GetGateConfig(), repo, connectors.NewNewsClient(nil))
	checker := connectors.NewDefaultAnalysisClient()

	o := orchestrator.New(orchestrator.GetConfig(), repo, gate, checker)

	if err := o.Recover(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to recover lifecycle state")
	}

	server.StartServer(o)
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
