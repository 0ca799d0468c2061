// Package workflow parses the engine's API-format workflow graph and exposes
// it as an immutable Template. Per-request values are never written into the
// Template itself: Bind decodes a fresh Graph from the template source and
// applies field writes to that copy, so one request can never observe values
// bound by another.
//
// The packaged template is embedded in the binary and returned by Default.
package workflow
