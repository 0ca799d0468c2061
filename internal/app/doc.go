// Package app contains the core application logic. It wires the settings,
// workflow template and engine session into a predictor and runs a single
// request, decoupled from any specific entrypoint like a CLI or server.
package app
