package featureflag

type Flag string

const (
	// Worlds update their index sequentially instead of processing the top
	// level subtrees concurrently.
	FlagDisableParallelUpdate Flag = "DISABLE_PARALLEL_UPDATE"

	// Removing an entity leaves the index unmerged until the next frame.
	FlagDisableMergeOnRemove Flag = "DISABLE_MERGE_ON_REMOVE"
)

var knownFlags = []Flag{
	FlagDisableParallelUpdate,
	FlagDisableMergeOnRemove,
}
