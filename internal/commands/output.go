/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"encoding/json"
	"io"
)

// writeResult prints v as indented JSON on the command's stdout.
func writeResult(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeError prints the failure as a JSON error envelope so stdout stays
// machine-readable even when an operation fails. The error itself still
// propagates for the process exit code.
func writeError(w io.Writer, err error) error {
	_ = writeResult(w, map[string]string{"error": err.Error()})
	return err
}
