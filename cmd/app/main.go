// entry point to app :)
package main

import (
	"os"

	"github.com/ds124wfegd/railbook/config"
	"github.com/ds124wfegd/railbook/internal/appServer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	fs := pflag.NewFlagSet("railbook", pflag.ExitOnError)
	config.BindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logrus.Fatalf("Cannot parse flags. Error: {%s}", err.Error())
	}

	viperInstance, err := config.LoadConfig(fs)
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	logrus.WithFields(logrus.Fields{
		"environment": cfg.Server.Env,
		"events":      cfg.Events.Driver,
		"assistant":   cfg.Assistant.Enabled(),
	}).Info("Config loaded")
	appServer.NewServer(cfg)
}
