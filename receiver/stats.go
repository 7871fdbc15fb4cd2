package receiver

// Stats is a point-in-time snapshot of a Receiver's aggregate
// counters across all its capture workers, mirroring the teacher's
// Logger.Stats() snapshot pattern (lethe.go): a plain value type the
// caller can read and diff without touching any internal atomics.
type Stats struct {
	ProcessedFrames uint64
	ProcessedBytes  uint64
	LostPackets     uint64
	NofWorkers      int
	NofConsumers    int
}
