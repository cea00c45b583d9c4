// Package logging builds the slog loggers used across scribe.
//
// It provides a console handler that renders "TIME LEVEL component: msg
// key=value" lines for interactive use, a JSON handler for machine
// consumption, attribute helpers, and NewComponentLogger for tagging records
// with the emitting subsystem. Construct loggers through NewFromConfig so
// format, level, and file outputs follow the configuration.
package logging
