/*
Package workers sizes concurrency from GOMAXPROCS, which the Go runtime derives
from the container CPU quota, rather than from runtime.NumCPU.

	vipsThreads := workers.ForCPU(4)
	dbConns := workers.ForIO(16)

Set IMAGE_WORKERS to pin the value.
*/
package workers
