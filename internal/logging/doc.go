// Package logging configures structured slog logging for algoliasync.
//
// Logs are JSON lines written to a size-rotated file under ~/.algoliasync/logs/
// and, for interactive commands, mirrored to stderr. The MCP server logs to the
// file only because stdout carries its protocol stream.
//
// Viewer reads those files back for the logs command.
package logging
