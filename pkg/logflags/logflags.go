// Package logflags provides logging configuration for the various
// subsystems of the coverage collector.
package logflags

import (
	"errors"
	"io/ioutil"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
)

var debugger = false
var filter = false
var udiff = false
var minidump = false

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Debugger returns true if the debug loop should log.
func Debugger() bool {
	return debugger
}

// DebuggerLogger returns a configured logger for the debug loop.
func DebuggerLogger() *logrus.Entry {
	return makeLogger(debugger, logrus.Fields{"layer": "debugloop"})
}

// Filter returns true if the coverage filter manager should log.
func Filter() bool {
	return filter
}

// FilterLogger returns a configured logger for the coverage filter manager.
func FilterLogger() *logrus.Entry {
	return makeLogger(filter, logrus.Fields{"layer": "covfilter"})
}

// UnifiedDiff returns true if the unified-diff ingestion package should log.
func UnifiedDiff() bool {
	return udiff
}

// UnifiedDiffLogger returns a configured logger for unified-diff ingestion.
func UnifiedDiffLogger() *logrus.Entry {
	return makeLogger(udiff, logrus.Fields{"layer": "udiff"})
}

// Minidump returns true if minidump writing should log.
func Minidump() bool {
	return minidump
}

// MinidumpLogger returns a configured logger for minidump writing.
func MinidumpLogger() *logrus.Entry {
	return makeLogger(minidump, logrus.Fields{"layer": "debugloop", "kind": "minidump"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets subsystem log flags based on the contents of logstr, a comma
// separated list of component names.
func Setup(logFlag bool, logstr string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "debugger"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "debugger":
			debugger = true
		case "filter":
			filter = true
		case "udiff":
			udiff = true
		case "minidump":
			minidump = true
		}
	}
	return nil
}
