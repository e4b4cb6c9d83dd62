// Package timeouts defines shared timeout constants used across the harness.
package timeouts

import "time"

// EngineCall caps a single request to either engine, including the time the
// engine spends applying a round.
const EngineCall = 30 * time.Second

// ProcessShutdown limits how long a child process may take to exit after it
// is asked to stop, before it is killed.
const ProcessShutdown = 5 * time.Second

// TelemetryShutdown limits how long pending spans may take to flush on exit.
const TelemetryShutdown = 5 * time.Second
