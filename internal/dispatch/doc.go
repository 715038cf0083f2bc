// Package dispatch marshals work onto dedicated execution contexts.
//
// A [Dispatcher] only exposes TryEnqueue. [Queue] runs work items in
// order on its own goroutine, like a UI thread; [Immediate] runs them on
// the caller. [Local] keeps one lazily created value per dispatcher so
// view state never has to be shared between dispatchers.
package dispatch
