// Package logger builds the gateway's slog logger: JSON output in prod,
// human-readable text everywhere else, tagged with the deployment environment.
package logger
