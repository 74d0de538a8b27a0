package traverse

import (
	"sync/atomic"

	"axquery/internal/axnode"
	"axquery/internal/logging"
)

// sampleEvery controls how often a visit is written to the traversal log.
const sampleEvery = 500

var totalVisits atomic.Uint64

// TotalVisits returns the process-wide number of node visits. Diagnostic only.
func TotalVisits() uint64 {
	return totalVisits.Load()
}

func countVisit(n axnode.Node, depth int) {
	v := totalVisits.Add(1)
	if v%sampleEvery == 0 {
		logging.TraversalDebug("visit #%d at depth %d: %s", v, depth, n.Describe())
	}
}
