// Package engine talks to the ComfyUI inference engine that executes bound
// workflow graphs.
//
// The engine is an external collaborator. This package owns the connection
// lifecycle (Connect), model weight resolution (ResolveWeights, once at
// startup), graph execution (Execute, blocking until the engine reports the
// prompt finished or failed) and scratch directory enumeration
// (ListScratchFiles). Execute enforces no timeout of its own; the caller's
// context is the only way to abandon a hung execution.
//
// Comfy implements Session over the engine's HTTP API and its /ws event
// stream. Launcher optionally starts the engine process itself.
package engine
