package storage

// ArchiveInterface defines the contract for archiving raw mention payloads
// after ingestion.
type ArchiveInterface interface {
	Store(name string, data []byte) error
	Retrieve(name string) ([]byte, error)
	List(prefix string) ([]string, error)
}
