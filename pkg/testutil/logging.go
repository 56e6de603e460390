package testutil

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Package tests log at trace level, but output is only kept for verbose runs.
func init() {
	logrus.SetLevel(logrus.TraceLevel)
	if !verboseRun(os.Args) {
		logrus.SetOutput(io.Discard)
	}
}

func verboseRun(args []string) bool {
	for _, arg := range args {
		if arg == "-test.v" || arg == "-test.v=true" || strings.HasPrefix(arg, "-test.v=test2json") {
			return true
		}
	}
	return false
}

// DisableLogging silences the standard logger until reset is called.
func DisableLogging() (reset func()) {
	logger := logrus.StandardLogger()
	original := logger.Out
	logger.SetOutput(io.Discard)
	return func() {
		logger.SetOutput(original)
	}
}
