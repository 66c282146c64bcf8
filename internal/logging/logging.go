// Package logging configures the module's single logrus logger, matching
// the --debug flag convention used across the example CLI's main
// commands (plain level switch, no custom formatter).
package logging

import "github.com/sirupsen/logrus"

// Configure sets the standard logger's level, enabling debug output when
// debug is true. It mirrors the root command's --debug/-d flag handling.
func Configure(debug bool) *logrus.Entry {
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
