package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookgo/inject"
	"github.com/facebookgo/startstop"
	flag "github.com/jessevdk/go-flags"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/traceloom/traceloom/app"
	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/dict"
	"github.com/traceloom/traceloom/ingest"
	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/metrics"
	"github.com/traceloom/traceloom/route"
	"github.com/traceloom/traceloom/service/debug"
	"github.com/traceloom/traceloom/storage"
)

// set by the build.
var BuildID string
var version string

type Options struct {
	ConfigFile string `short:"c" long:"config" description:"Path to config file" default:"/etc/traceloom/traceloom.toml"`
	Version    bool   `short:"v" long:"version" description:"Print version number and exit"`
	Debug      bool   `short:"d" long:"debug" description:"Runs debug service (on the first open port between localhost:6060 and :6069 by default)"`
}

func main() {
	var opts Options
	flagParser := flag.NewParser(&opts, flag.Default)
	if extraArgs, err := flagParser.Parse(); err != nil || len(extraArgs) != 0 {
		fmt.Println("command line parsing error - call with --help for usage")
		os.Exit(1)
	}

	if BuildID == "" {
		version = "dev"
	} else {
		version = "0." + BuildID
	}

	if opts.Version {
		fmt.Println("Version: " + version)
		os.Exit(0)
	}

	c := &config.FileConfig{Path: opts.ConfigFile}
	if err := c.Start(); err != nil {
		fmt.Printf("unable to load config: %+v\n", err)
		os.Exit(1)
	}

	a := app.App{}

	// get desired implementation for each dependency to inject
	lgr := logger.GetLoggerImplementation(c)
	metricsr := metrics.GetMetricsImplementation(c)

	// set log level
	logLevel, err := c.GetLoggingLevel()
	if err != nil {
		fmt.Printf("unable to get logging level from config: %v\n", err)
		os.Exit(1)
	}
	if err := lgr.SetLevel(logLevel); err != nil {
		fmt.Printf("unable to set logging level: %v\n", err)
		os.Exit(1)
	}

	objects := []*inject.Object{
		{Value: c},
		{Value: lgr},
		{Value: metricsr},
		{Value: clockwork.NewRealClock()},
		{Value: dict.NewRegistry()},
		{Value: storage.NewMemStore()},
		{Value: &ingest.Router{}},
		{Value: &route.Router{}},
		{Value: version, Name: "version"},
		{Value: &a},
	}
	if opts.Debug {
		objects = append(objects, &inject.Object{Value: &debug.DebugService{}})
	}

	var g inject.Graph
	err = g.Provide(objects...)
	if err != nil {
		fmt.Printf("failed to provide injection graph. error: %+v\n", err)
		os.Exit(1)
	}
	if err := g.Populate(); err != nil {
		fmt.Printf("failed to populate injection graph. error: %+v\n", err)
		os.Exit(1)
	}

	// the logger provided to startstop must be valid before any service is
	// started, meaning it can't rely on injected configs. make a custom logger
	// just for this step
	ststLogger := logrus.New()
	level, _ := logrus.ParseLevel(logLevel)
	ststLogger.SetLevel(level)

	defer startstop.Stop(g.Objects(), ststLogger)
	if err := startstop.Start(g.Objects(), ststLogger); err != nil {
		fmt.Printf("failed to start injected dependencies. error: %+v\n", err)
		os.Exit(1)
	}

	// block until we're asked to exit
	sigsToExit := make(chan os.Signal, 1)
	signal.Notify(sigsToExit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigsToExit
	lgr.Errorf("Caught signal \"%s\"", sig)
}
