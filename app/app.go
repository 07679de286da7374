package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/ingest"
	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/metrics"
	"github.com/traceloom/traceloom/route"
)

// App is the top of the collector's object graph. It holds the HTTP router
// and the ingestion pipeline so that startstop brings them up before the app
// and tears them down after it.
type App struct {
	Config  config.Config   `inject:""`
	Logger  logger.Logger   `inject:""`
	Metrics metrics.Metrics `inject:""`
	Router  *route.Router   `inject:""`
	Ingest  *ingest.Router  `inject:""`
	Version string          `inject:"version"`

	done chan struct{}
}

func (a *App) Start() error {
	a.Logger.Debugf("Starting up App...")
	a.done = make(chan struct{})

	// reload configs on USR1
	sigsToReload := make(chan os.Signal, 1)
	signal.Notify(sigsToReload, syscall.SIGUSR1)
	go a.listenForReload(sigsToReload)

	return nil
}

func (a *App) listenForReload(sigs chan os.Signal) {
	for {
		select {
		case sig := <-sigs:
			a.Logger.Debugf("Caught signal \"%s\"; reloading configs", sig)
			a.Config.Reload()
		case <-a.done:
			return
		}
	}
}

func (a *App) Stop() error {
	a.Logger.Debugf("Shutting down App...")
	close(a.done)
	return nil
}
