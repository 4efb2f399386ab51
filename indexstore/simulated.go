package indexstore

// SimulatedIndexStorage is an in-memory IndexStorage for tests.
type SimulatedIndexStorage struct {
	next uint32
}

func NewSimulatedIndexStorage() *SimulatedIndexStorage {
	return &SimulatedIndexStorage{}
}

func (s *SimulatedIndexStorage) LoadNext() (uint32, error) {
	return s.next, nil
}

func (s *SimulatedIndexStorage) StoreNext(next uint32) error {
	s.next = next
	return nil
}
