// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/elastic/edge-credentials/cmd/issue"
	"github.com/elastic/edge-credentials/pkg/about"
	"github.com/elastic/edge-credentials/pkg/dev"
)

func main() {
	buildInfo := about.GetBuildInfo()

	rootCmd := &cobra.Command{
		Use:          "nuvlaedge-credentials",
		Short:        "Client credential lifecycle for NuvlaEdge components",
		Version:      buildInfo.VersionString(),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(issue.Command())

	// development mode is only available as a command line flag to avoid accidentally enabling it
	rootCmd.PersistentFlags().BoolVar(&dev.Enabled, "development", false, "turns on development mode")
	_ = rootCmd.PersistentFlags().MarkHidden("development")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
