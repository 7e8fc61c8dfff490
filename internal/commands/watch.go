/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/microsoft/cdpmux/internal/cdp"
	"github.com/microsoft/cdpmux/internal/debugger"
)

var (
	watchConsole  = true
	watchNetwork  = true
	watchDuration time.Duration
)

func NewWatchCommand() (*cobra.Command, error) {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Captures console messages and network activity from all tabs.",
		Long: `Enables console and network event capture on every open tab, collects
events until interrupted (or until --duration elapses), then prints everything
captured as JSON.`,
		Args: cobra.NoArgs,
		RunE: watch,
	}

	watchCmd.Flags().BoolVar(&watchConsole, "console", true, "Capture console messages")
	watchCmd.Flags().BoolVar(&watchNetwork, "network", true, "Capture network requests")
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop capturing after this long (default: run until interrupted)")

	return watchCmd, nil
}

type watchOutput struct {
	ConsoleTabs []debugger.CaptureStatus  `json:"consoleTabs,omitempty"`
	NetworkTabs []debugger.CaptureStatus  `json:"networkTabs,omitempty"`
	ConsoleLogs []debugger.ConsoleMessage `json:"consoleLogs,omitempty"`
	Requests    []cdp.NetworkRequest      `json:"networkRequests,omitempty"`
}

func watch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	service, closeClient, err := connectService(ctx)
	if err != nil {
		return writeError(cmd.OutOrStdout(), err)
	}
	defer closeClient()

	var output watchOutput

	if watchConsole {
		statuses, enableErr := service.EnableConsoleCapture(ctx)
		if enableErr != nil {
			return writeError(cmd.OutOrStdout(), enableErr)
		}
		output.ConsoleTabs = statuses
	}
	if watchNetwork {
		statuses, enableErr := service.EnableNetworkCapture(ctx)
		if enableErr != nil {
			return writeError(cmd.OutOrStdout(), enableErr)
		}
		output.NetworkTabs = statuses
	}

	rootCmdLogger.Info("capturing events; press Ctrl+C to stop")
	if watchDuration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(watchDuration):
		}
	} else {
		<-ctx.Done()
	}

	if watchConsole {
		output.ConsoleLogs = service.ConsoleMessages()
	}
	if watchNetwork {
		output.Requests = service.NetworkRequests()
	}

	return writeResult(cmd.OutOrStdout(), output)
}
