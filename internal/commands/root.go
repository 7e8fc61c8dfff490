/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package commands implements the cdpmux command-line interface.
package commands

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/microsoft/cdpmux/internal/cdp"
	"github.com/microsoft/cdpmux/internal/debugger"
	"github.com/microsoft/cdpmux/pkg/logger"
)

const (
	defaultBrowserHost = "127.0.0.1"
	defaultBrowserPort = 9222
)

var (
	browserHost    = defaultBrowserHost
	browserPort    = defaultBrowserPort
	commandTimeout time.Duration
	connectTimeout time.Duration

	rootCmdLogger *logger.Logger
)

func NewRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "cdpmux",
		Short: "Inspects and monitors a running browser over its remote debugging protocol",
		Long: `cdpmux talks to a browser started with remote debugging enabled
(e.g. chrome --remote-debugging-port=9222). It multiplexes commands, tab
sessions, and event capture over a single debugger connection.

All results are printed as JSON on stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			rootCmdLogger.Flush()
		},
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&browserHost, "browser-host", defaultBrowserHost, "Host the browser remote debugging endpoint is listening on")
	rootCmd.PersistentFlags().IntVar(&browserPort, "browser-port", defaultBrowserPort, "Port the browser remote debugging endpoint is listening on")
	rootCmd.PersistentFlags().DurationVar(&commandTimeout, "command-timeout", 0, "Time to wait for each debugger command response (default 30s)")
	rootCmd.PersistentFlags().DurationVar(&connectTimeout, "connect-timeout", 0, "Time to wait for the initial browser connection (default 10s)")

	var err error
	var cmd *cobra.Command

	if cmd, err = NewTargetsCommand(); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("Could not set up 'targets' command: %w", err)
	}

	if cmd, err = NewContentCommand(); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("Could not set up 'content' command: %w", err)
	}

	if cmd, err = NewInspectCommand(); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("Could not set up 'inspect' command: %w", err)
	}

	if cmd, err = NewWatchCommand(); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("Could not set up 'watch' command: %w", err)
	}

	if cmd, err = NewVersionCommand(); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("Could not set up 'version' command: %w", err)
	}

	rootCmdLogger = logger.New("cdpmux")
	rootCmdLogger.AddLevelFlag(rootCmd.PersistentFlags())

	return rootCmd, nil
}

// endpointURL builds the browser WebSocket endpoint from the connection flags.
func endpointURL() string {
	return fmt.Sprintf("ws://%s/devtools/browser", net.JoinHostPort(browserHost, strconv.Itoa(browserPort)))
}

// connectService dials the browser and wraps the connection in the debugging
// service. The returned closer tears the connection down.
func connectService(ctx context.Context) (*debugger.Service, func(), error) {
	var opts []cdp.Option
	if commandTimeout > 0 {
		opts = append(opts, cdp.WithCommandTimeout(commandTimeout))
	}
	if connectTimeout > 0 {
		opts = append(opts, cdp.WithConnectTimeout(connectTimeout))
	}

	client := cdp.NewClient(endpointURL(), rootCmdLogger.Logger, opts...)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("could not connect to the browser at %s: %w", endpointURL(), err)
	}

	service := debugger.NewService(client, rootCmdLogger.Logger)
	return service, func() { _ = client.Close() }, nil
}
