package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/volrecon/internal/cobra"
	"github.com/Anthya1104/volrecon/internal/config"
	"github.com/Anthya1104/volrecon/internal/logger"
)

func main() {
	if err := logger.Init(config.LogLevelInfo); err != nil {
		logrus.Fatalf("initializing logger: %v", err)
	}

	if err := cobra.ExecuteCmd(); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}
