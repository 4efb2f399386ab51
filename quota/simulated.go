package quota

// SimulatedQuotaStorage is an in-memory QuotaStorage for tests.
// Setting Err makes every operation fail with it.
type SimulatedQuotaStorage struct {
	Err     error
	records map[string]Record
}

func NewSimulatedQuotaStorage() *SimulatedQuotaStorage {
	return &SimulatedQuotaStorage{records: make(map[string]Record)}
}

func (s *SimulatedQuotaStorage) LoadRecord(source string) (*Record, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	record, ok := s.records[source]
	if !ok {
		return nil, nil
	}
	copied := record
	return &copied, nil
}

func (s *SimulatedQuotaStorage) StoreRecord(record *Record) error {
	if s.Err != nil {
		return s.Err
	}
	s.records[record.Source] = *record
	return nil
}
