// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/querymesh/loomquery/internal/version"
	meshconfig "github.com/querymesh/loomquery/pkg/config"
)

var (
	cfgFile string
	config  *meshconfig.Config
)

var rootCmd = &cobra.Command{
	Use:     "loomquery",
	Short:   "Natural-language to SQL query pipeline",
	Long:    `loomquery turns a natural-language question into SQL, runs it against one or more registered databases, and returns a chart-ready result.`,
	Version: version.Get(),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $MESH_DATA_DIR/loomquery.yaml)")

	// Flag defaults mirror config.setDefaults(): viper ranks a bound flag
	// above its own SetDefault even when the flag was never set on the
	// command line, so an empty flag default would silently blank out a
	// config-file or environment value.
	rootCmd.PersistentFlags().String("addr", ":8080", "HTTP listen address")
	rootCmd.PersistentFlags().String("llm-provider", "openai", "default LLM provider (anthropic, openai, bedrock)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("server.addr", rootCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("llm.default_provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	var err error
	config, err = meshconfig.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
}
