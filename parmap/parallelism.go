package parmap

// AvailableParallelism reports how many items the platform can truly
// execute at once. It sizes the default pool; explicit WithWorkerCount
// always overrides it. The figure is advisory only: virtualized and
// containerized hosts routinely misreport it, and requesting more
// workers than it suggests is allowed, just slower.
func AvailableParallelism() int {
	return availableParallelism()
}
