// Package feed implements push-based, versioned data sources.
//
// A [Feed] publishes a chain of [message.Message] values describing its
// state on several axes (data, error, progress, pagination, refresh).
// Feeds are consumed within a [SourceContext], which owns one [Session]
// per feed. Disposing the context stops every session it owns.
//
// # Executions
//
// A session loads its value by running executions of the feed's
// producer. Requests for a new execution (initial load, refresh, parent
// data change, page request) never block: if an execution is running it
// is cancelled, and all requests received meanwhile are coalesced into
// exactly one follow-up execution, started once the running one
// completed.
//
// A producer that completes within a few scheduler turns publishes its
// result directly. A slower one first causes a transient message
// (progress set, plus the hints of the requests such as a loading flag
// on the pagination axis).
//
//	users := feed.Async(func(ctx context.Context) (option.Option[[]User], error) {
//	    return repo.List(ctx)
//	})
//
//	sc := feed.NewSourceContext(ctx, feed.WithLogger(log))
//	defer sc.Dispose()
//
//	msgs, err := users.Messages(sc)
//
// # Dependencies
//
// Producers receive their [Execution] and declare what they depend on
// through it. [Get] reads another feed of the same context and
// re-executes the session when that feed's data changes:
//
//	details := feed.Dynamic(func(exec *feed.Execution) (option.Option[Details], error) {
//	    id, err := feed.Get(exec, selectedID)
//	    if err != nil {
//	        return option.Undefined[Details](), err
//	    }
//	    ...
//	})
//
// Any [Dependency] can be attached to a session with
// Handle.GetOrAddDependency; it is notified before and after each
// execution and may enqueue axis updates on it.
//
// # Lists
//
// [List] and [PaginatedByIndex] publish slices along with the
// [tracking.ChangeSet] from the previous value, see [ListChanges].
package feed
