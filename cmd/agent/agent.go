package agentcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/agent"
	"tradeanalyst/src/broker"
	"tradeanalyst/src/connectors"
	"tradeanalyst/src/feed"
)

// Runner wires and runs the execution agent: quote stream, broker and
// authority client.
type Runner struct{}

func (r *Runner) Start() error {
	config := agent.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("Shutting down agent...")
		cancel()
	}()

	quotes := feed.NewClient(config.QuoteStreamURL, config.Symbols)
	go quotes.Run(ctx)

	b, err := broker.ForName(config.Broker)
	if err != nil {
		return err
	}
	logger.WithField("broker", b.Name()).Info("Broker selected")

	authority := connectors.NewDefaultAuthorityClient()

	a := agent.New(config, authority, b, quotes.Ticks())
	return a.Run(ctx)
}
