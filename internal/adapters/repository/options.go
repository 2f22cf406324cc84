package repository

const defaultBatchSize = 50

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithBatchSize sets how many snapshot rows go into one INSERT.
func WithBatchSize(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.batchSize = n
		}
	}
}
