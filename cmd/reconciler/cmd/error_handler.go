package cmd

import (
	"fmt"
	"os"

	pkgerrors "gst-reconciliation-service/pkg/errors"

	"github.com/spf13/viper"
)

// HandleError prints a user-facing error message and returns the exit
// code the process should terminate with.
func HandleError(err error) int {
	if err == nil {
		return 0
	}

	if rerr, ok := pkgerrors.AsReconcilerError(err); ok {
		fmt.Fprintf(os.Stderr, "Error: %s\n", rerr.Message)
		if rerr.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "Suggestion: %s\n", rerr.Suggestion)
		}
		if viper.GetBool("verbose") && rerr.Cause != nil {
			fmt.Fprintf(os.Stderr, "Cause: %v\n", rerr.Cause)
		}
		return rerr.GetExitCode()
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
