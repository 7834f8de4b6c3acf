package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	agentcmd "tradeanalyst/cmd/agent"
	"tradeanalyst/src/connectors"
	"tradeanalyst/src/database"
	"tradeanalyst/src/logging"
	"tradeanalyst/src/orchestrator"
	"tradeanalyst/src/repository"
	"tradeanalyst/src/risk"
	"tradeanalyst/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "TradeAnalyst CMD"
	app.Usage = "The TradeAnalyst command line interface"

	app.Commands = []cli.Command{
		serverCMD,
		agentCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the lifecycle authority server",
		Action:      serverAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the lifecycle authority server`,
	}
	agentCMD = cli.Command{
		Name:        "agent",
		Usage:       "run the execution agent",
		Action:      agentAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the execution agent`,
	}
)

func serverAction(_ *cli.Context) error {
	logging.Setup()
	logrus.Info("Starting authority server CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	repo := repository.NewTradeRecordRepository()
	gate := risk.NewGate(risk.GetGateConfig(), repo, connectors.NewNewsClient(nil))
	checker := connectors.NewDefaultAnalysisClient()

	o := orchestrator.New(orchestrator.GetConfig(), repo, gate, checker)
	if err := o.Recover(context.Background()); err != nil {
		logrus.WithError(err).Error("Failed to recover lifecycle state")
		return err
	}

	server.StartServer(o)
	return nil
}

func agentAction(_ *cli.Context) error {
	logging.Setup()
	logrus.Info("Starting execution agent CMD")

	runner := &agentcmd.Runner{}
	if err := runner.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}
