package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Gate passed (or no gate configured)
	ExitGateFailed = 1 // Evaluation ran but the gate did not pass
	ExitError      = 2 // Configuration or runtime error
)

// GateFailureError indicates the evaluation completed normally but the
// suite's gate did not pass.
type GateFailureError struct {
	Message string
}

func (e *GateFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var gateErr *GateFailureError
		if errors.As(err, &gateErr) {
			os.Exit(ExitGateFailed)
		}

		os.Exit(ExitError)
	}
}
