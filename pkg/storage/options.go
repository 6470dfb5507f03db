package storage

import "time"

type StorageOption func(*StorageEngine)

// WithDataDir enables persistence under dir. Each collection is written to
// dir/collections/<name>.godb.
func WithDataDir(dir string) StorageOption {
	return func(engine *StorageEngine) {
		engine.dataDir = dir
		engine.persist = true
	}
}

func WithBackgroundSave(interval time.Duration) StorageOption {
	return func(engine *StorageEngine) {
		engine.backgroundSave = true
		engine.saveInterval = interval
		engine.transactionSave = false // Disable transaction saves when background saves are enabled
	}
}

// WithTransactionSave enables saving after every write transaction (default: true)
func WithTransactionSave(enabled bool) StorageOption {
	return func(engine *StorageEngine) {
		engine.transactionSave = enabled
	}
}
