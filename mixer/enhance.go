package mixer

//Stateful components survive restarts. In snapshot mode the runtime restores
//them from status-dir after Open and saves them after Close, spooldir keeps
//its file offsets this way.
type Stateful interface {
	//Snapshot will snapshot component state after close
	Snapshot() ([]byte, error)

	//Restore will restore component state after open
	Restore(snapshot []byte) error
}
