// Package message provides the versioned state model of feeds.
//
// A [Message] is an immutable snapshot ([Entry]) of a feed's state plus the
// set of [Axis] that changed relative to the previous snapshot. Messages
// form a chain: the Previous entry of a message is the Current entry of the
// message published before it.
//
// # Axes
//
// State is split into orthogonal axes:
//
//   - Data: the value, as an option (undefined / none / some)
//   - Error: the error raised while loading
//   - Progress: set while the message is transient (loading)
//   - Pagination: more-items state of list feeds
//   - Selection: selected ranges
//   - Refresh: tokens of refresh requests satisfied by the message
//
// Each axis has its own equality and merge logic, used to compute
// [Changes] and to combine parent entries into dependent feeds.
//
// # Building messages
//
//	next := msg.With().
//	    Data(option.Some(42)).
//	    Error(nil).
//	    Build()
//
// # Manager
//
// A [Manager] serializes concurrent updates of one producer. Transactions
// let an execution publish transient messages while its final result is
// pending:
//
//	tx := mgr.BeginUpdate(ctx, false)
//	defer tx.Dispose()
//
//	tx.TransientUpdate(func(b *message.Builder[int]) { b.IsTransient(true) })
//	tx.Commit(func(b *message.Builder[int]) { b.Data(option.Some(v)).Error(nil) })
package message
