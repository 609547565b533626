// Package xerr defines the sentinel errors for the error taxonomy: callers
// branch on these with errors.Is rather than matching message strings.
package xerr

import "errors"

var (
	// ErrNoIndex is returned by a query when no index has been built yet.
	ErrNoIndex = errors.New("no index")

	// ErrSchemaMismatch names a manifest whose schema version does not
	// match the current one. Nothing in this repo returns it: Pipeline.Run
	// checks Manifest.SchemaCompatible and runs a full rebuild instead.
	ErrSchemaMismatch = errors.New("manifest schema mismatch")

	// ErrUnknownTool is returned by the tool server for an unregistered
	// tool name.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrUnknownQueryType names an unrecognized query type. Nothing in
	// this repo returns it: the CLI `query` subcommand dispatches through
	// tools.Server.CallTool, so an unknown type surfaces as ErrUnknownTool.
	ErrUnknownQueryType = errors.New("unknown query type")

	// ErrInvalidMFA is returned when an MFA string fails to parse where
	// the caller requires a hard error instead of an empty result.
	ErrInvalidMFA = errors.New("invalid mfa string")
)
