package storage

import (
	"runtime"
	"sort"
	"time"
)

// GetMemoryStats returns current memory usage statistics
func (se *StorageEngine) GetMemoryStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"alloc_mb":       m.Alloc / 1024 / 1024,
		"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
		"sys_mb":         m.Sys / 1024 / 1024,
		"num_goroutines": runtime.NumGoroutine(),
		"collections":    se.Collections(),
	}
}

// Collections returns the info of every collection, sorted by name
func (se *StorageEngine) Collections() []CollectionInfo {
	names := se.collectionNames()
	sort.Strings(names)
	infos := make([]CollectionInfo, 0, len(names))
	for _, name := range names {
		coll := se.getCollection(name)
		coll.mu.RLock()
		infos = append(infos, coll.info)
		coll.mu.RUnlock()
	}
	return infos
}

// StartBackgroundWorkers starts background save workers
func (se *StorageEngine) StartBackgroundWorkers() {
	if !se.persist || !se.backgroundSave {
		return
	}

	se.backgroundWg.Add(1)
	go func() {
		defer se.backgroundWg.Done()
		ticker := time.NewTicker(se.saveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				se.saveDirtyCollections()
			case <-se.stopChan:
				return
			}
		}
	}()
}

// StopBackgroundWorkers stops background workers and flushes dirty collections
func (se *StorageEngine) StopBackgroundWorkers() {
	se.stopOnce.Do(func() { close(se.stopChan) })
	se.backgroundWg.Wait()
	if se.persist {
		se.saveDirtyCollections()
	}
}
