/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"github.com/spf13/cobra"
)

func NewContentCommand() (*cobra.Command, error) {
	contentCmd := &cobra.Command{
		Use:   "content <target-id>",
		Short: "Prints the HTML content of a tab.",
		Long:  `Retrieves the outer HTML of the document in the given page target.`,
		Args:  cobra.ExactArgs(1),
		RunE:  getContent,
	}

	return contentCmd, nil
}

type contentOutput struct {
	TargetID  string `json:"targetId"`
	OuterHTML string `json:"outerHTML"`
}

func getContent(cmd *cobra.Command, args []string) error {
	targetID := args[0]

	service, closeClient, err := connectService(cmd.Context())
	if err != nil {
		return writeError(cmd.OutOrStdout(), err)
	}
	defer closeClient()

	html, err := service.TargetContent(cmd.Context(), targetID)
	if err != nil {
		return writeError(cmd.OutOrStdout(), err)
	}

	return writeResult(cmd.OutOrStdout(), contentOutput{TargetID: targetID, OuterHTML: html})
}
