// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracebox/tracebox/common"
	"github.com/tracebox/tracebox/config"
	"github.com/tracebox/tracebox/log"
	"github.com/tracebox/tracebox/result"
	"github.com/tracebox/tracebox/reversedns"
	"github.com/tracebox/tracebox/runner"
	"github.com/tracebox/tracebox/tracebox"
)

type args struct {
	configPath string
	protocol   string
	port       int
	wantV6     bool
	iface      string
	minTTL     int
	maxTTL     int
	timeout    int
	retries    int
	noResolve  bool
	json       bool
	pcapFile   string
	uploadURL  string
	netns      string
	logLevel   string
	verbose    bool
}

// runTracebox is declared for testing purpose (to be replaced by mock impl during tests)
var runTracebox = runner.New().RunTracebox

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	a := &args{}
	cmd := &cobra.Command{
		Use:   "tracebox [flags] host",
		Short: "Detect middleboxes that modify packets along a path",
		Long: `tracebox sends probes with increasing TTL and compares each probe with
the copy quoted back by the routers, to locate where headers are rewritten.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			level, err := log.ParseLogLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)

			params := paramsFromConfig(cfg, args[0])
			if !cfg.JSON {
				text := result.NewTextReporter(cmd.OutOrStdout())
				text.Verbose = a.verbose
				if !cfg.NoResolve {
					text.Names = reversedns.Names
				}
				params.Reporter = text
			}

			results, err := runTracebox(cmd.Context(), params)
			if err != nil {
				return err
			}
			if cfg.JSON {
				return printJSON(cmd.OutOrStdout(), results)
			}
			return nil
		},
	}
	a.bindFlags(cmd)
	cmd.AddCommand(newVersionCmd())
	if desc, err := config.Describe(); err == nil {
		cmd.Long += "\n\n" + desc
	}
	return cmd
}

// loadConfig reads the config file and environment, then applies the flags
// that were set on the command line.
func (a *args) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("proto") {
		cfg.Protocol = a.protocol
	}
	if flags.Changed("port") {
		cfg.Port = a.port
	}
	if flags.Changed("ipv6") {
		cfg.IPv6 = a.wantV6
	}
	if flags.Changed("interface") {
		cfg.Interface = a.iface
	}
	if flags.Changed("min-ttl") {
		cfg.MinTTL = a.minTTL
	}
	if flags.Changed("max-ttl") {
		cfg.MaxTTL = a.maxTTL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = msToDuration(a.timeout)
	}
	if flags.Changed("retries") {
		cfg.Retries = a.retries
	}
	if flags.Changed("no-resolve") {
		cfg.NoResolve = a.noResolve
	}
	if flags.Changed("json") {
		cfg.JSON = a.json
	}
	if flags.Changed("pcap") {
		cfg.PcapFile = a.pcapFile
	}
	if flags.Changed("upload-url") {
		cfg.UploadURL = a.uploadURL
	}
	if flags.Changed("netns") {
		cfg.Netns = a.netns
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, &tracebox.SetupError{Code: tracebox.ErrCodeInvalidRequest, Message: "invalid configuration", Err: err}
	}
	return cfg, nil
}

func paramsFromConfig(cfg *config.Config, target string) runner.TraceboxParams {
	return runner.TraceboxParams{
		Hostname:   target,
		Protocol:   cfg.Protocol,
		Port:       cfg.Port,
		WantV6:     cfg.IPv6,
		Interface:  cfg.Interface,
		MinTTL:     cfg.MinTTL,
		MaxTTL:     cfg.MaxTTL,
		Timeout:    cfg.Timeout,
		Retries:    cfg.Retries,
		ProbeRate:  cfg.ProbeRate,
		ReverseDns: !cfg.NoResolve,
		// the public address only shows up in the JSON document
		CollectSourcePublicIP: cfg.JSON,
		PcapFile:              cfg.PcapFile,
		UploadURL:             cfg.UploadURL,
		Netns:                 cfg.Netns,
	}
}

func printJSON(w io.Writer, results *result.Results) error {
	jsonStr, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON marshalling failed: %v", err)
	}
	fmt.Fprintln(w, string(jsonStr))
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		classified := tracebox.ClassifyError(err)
		fmt.Fprintf(os.Stderr, "tracebox: %s (%s)\n", err, classified.Code)
		os.Exit(1)
	}
}

func (a *args) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&a.configPath, "config", "c", "", "YAML config file (TRACEBOX_* environment variables also apply)")
	cmd.Flags().StringVarP(&a.protocol, "proto", "P", common.DefaultProtocol, "Protocol to use (tcp, udp, icmp)")
	cmd.Flags().IntVarP(&a.port, "port", "p", common.DefaultPort, "Destination port")
	cmd.Flags().BoolVarP(&a.wantV6, "ipv6", "6", common.DefaultWantV6, "IPv6")
	cmd.Flags().StringVarP(&a.iface, "interface", "i", "", "Interface to probe from (default: route to the destination)")
	cmd.Flags().IntVarP(&a.minTTL, "min-ttl", "", common.DefaultMinTTL, "Minimum TTL")
	cmd.Flags().IntVarP(&a.maxTTL, "max-ttl", "m", common.DefaultMaxTTL, "Maximum TTL")
	cmd.Flags().IntVarP(&a.timeout, "timeout", "", int(common.DefaultTimeout/time.Millisecond), "Timeout per probe (ms)")
	cmd.Flags().IntVarP(&a.retries, "retries", "", common.DefaultRetries, "Extra attempts per TTL")
	cmd.Flags().BoolVarP(&a.noResolve, "no-resolve", "n", false, "Do not resolve hop names")
	cmd.Flags().BoolVarP(&a.json, "json", "", false, "Print the results as JSON")
	cmd.Flags().StringVarP(&a.pcapFile, "pcap", "w", "", "Write probes and quotations to a pcap file")
	cmd.Flags().StringVarP(&a.uploadURL, "upload-url", "", "", "POST the pcap file to this URL after the run")
	cmd.Flags().StringVarP(&a.netns, "netns", "", "", "Named network namespace to probe from")
	cmd.Flags().StringVarP(&a.logLevel, "log-level", "l", common.DefaultLogLevel, "Log level (error, warn, info, debug, trace)")
	cmd.Flags().BoolVarP(&a.verbose, "verbose", "v", false, "Print field values and ICMP extensions")
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
