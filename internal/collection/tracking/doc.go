// Package tracking computes granular changes between ordered collection
// snapshots.
//
// An [Analyzer] diffs two snapshots with the Myers algorithm on item
// identity, pairs removed and re-inserted entities into moves and reports
// content changes of kept entities as replacements. The resulting
// [ChangeSet] replays in order against the previous snapshot:
//
//	a := tracking.NewAnalyzer(tracking.Equality[string]())
//	cs := a.GetChanges(prev, next)
//	got, _ := cs.Apply(prev) // equal to next
//
// Large change sets collapse into a single Reset (see
// [WithResetThreshold]), which is cheaper to apply for list views than
// many fine-grained operations.
//
// [GroupedAnalyzer] and [FlattenGroupChanges] translate changes of one
// group to the flattened view of a grouped collection.
package tracking
