// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package main provides the tracebox HTTP server binary
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tracebox/tracebox/config"
	tblog "github.com/tracebox/tracebox/log"
	"github.com/tracebox/tracebox/server"
)

var (
	configPath string
	addr       string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "tracebox-server",
	Short: "Tracebox HTTP server",
	Long:  `HTTP server that runs tracebox middlebox detection via REST API endpoints`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Listen = addr
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		level, err := tblog.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		tblog.SetLevel(level)

		srv := server.NewServer()

		log.Printf("Starting tracebox HTTP server on %s", cfg.Listen)
		log.Printf("Log level set to: %s", level)
		log.Printf("Example usage: curl 'http://%s/tracebox?target=example.com&protocol=tcp&port=443'", cfg.Listen)

		return srv.Start(cmd.Context(), cfg.Listen)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:3765", "HTTP server address to listen on")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (error, warn, info, debug, trace)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
