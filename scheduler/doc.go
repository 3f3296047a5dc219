// Package scheduler drives the fixed-step tick loop.
//
// Every tick moves through AwaitingTick, Dispatching and Committing. While
// dispatching, each live module first receives the events committed for it since
// its last tick, then its update entrypoint runs exactly once. Everything a module
// produces is staged; nothing reaches the bus or the log sink until the tick is
// committed, host events first and then each module's output in dispatch order.
// Dispatch may run on several goroutines; commit order never depends on it.
package scheduler
