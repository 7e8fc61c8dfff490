/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"github.com/spf13/cobra"

	"github.com/microsoft/cdpmux/internal/debugger"
)

func NewTargetsCommand() (*cobra.Command, error) {
	targetsCmd := &cobra.Command{
		Use:   "targets",
		Short: "Lists the open browser tabs.",
		Long:  `Lists the debuggable page targets (tabs) of the connected browser as JSON.`,
		Args:  cobra.NoArgs,
		RunE:  listTargets,
	}

	return targetsCmd, nil
}

type targetsOutput struct {
	Targets []debugger.Target `json:"targets"`
}

func listTargets(cmd *cobra.Command, _ []string) error {
	service, closeClient, err := connectService(cmd.Context())
	if err != nil {
		return writeError(cmd.OutOrStdout(), err)
	}
	defer closeClient()

	targets, err := service.ListTargets(cmd.Context())
	if err != nil {
		return writeError(cmd.OutOrStdout(), err)
	}

	return writeResult(cmd.OutOrStdout(), targetsOutput{Targets: targets})
}
