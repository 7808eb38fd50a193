// Package requirement defines the core types of the kapsel requirement engine.
//
// A kapsel project declares the preconditions it needs before any of its
// commands can run: environment variables, downloaded files, reachable
// services and a materialized Conda environment. Each precondition is a
// Requirement. Evaluating a Requirement against the current state yields a
// Status, and a Provider knows how to both check and fix one kind of
// Requirement.
//
// # Requirement Kinds
//
// The set of kinds is closed:
//
//   - KindEnvVar: a plain environment variable must be set
//   - KindDownload: a file must be downloaded and referenced by a variable
//   - KindService: a service (redis, postgresql, mysql) must be reachable
//   - KindCondaEnv: the active env spec must be materialized on disk
//
// New kinds are added by extending the Kind constants and the provider
// registry's lookup tables; there is no open hierarchy to subclass.
//
// # Checking and Fixing
//
// Provider.Check is a pure read of the current state and can be called any
// number of times. Provider.Fix attempts remediation. It either applies
// defaults without interaction or, when FixContext.Interactive is set, asks
// the user through the injected Prompter.
//
// Expected failures (a missing value, an unreachable server, a checksum
// mismatch, a failing package manager) are always reported inside a Status or
// FixResult. The only error a Provider returns from Fix is a cancellation
// (errors.ErrCanceled), which aborts the whole resolution pass.
//
// # Empty Values
//
// An environment variable bound to the empty string is treated exactly like
// an unset variable by every kind. Use Environ.Lookup rather than indexing
// the map directly.
package requirement
