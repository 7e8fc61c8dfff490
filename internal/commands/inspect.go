/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"github.com/spf13/cobra"
)

func NewInspectCommand() (*cobra.Command, error) {
	inspectCmd := &cobra.Command{
		Use:   "inspect <target-id> <selector>",
		Short: "Inspects an element in a tab by CSS selector.",
		Long: `Locates an element with the given CSS selector and prints its DOM node
description, computed styles, and outer HTML.`,
		Args: cobra.ExactArgs(2),
		RunE: inspectElement,
	}

	return inspectCmd, nil
}

func inspectElement(cmd *cobra.Command, args []string) error {
	targetID, selector := args[0], args[1]

	service, closeClient, err := connectService(cmd.Context())
	if err != nil {
		return writeError(cmd.OutOrStdout(), err)
	}
	defer closeClient()

	info, err := service.InspectElement(cmd.Context(), targetID, selector)
	if err != nil {
		return writeError(cmd.OutOrStdout(), err)
	}

	return writeResult(cmd.OutOrStdout(), info)
}
