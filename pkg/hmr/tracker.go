package hmr

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
)

// ChangeTracker remembers the content hash of every file it has seen so
// editor saves that do not change a file do not trigger recompilation.
type ChangeTracker struct {
	cache map[string]string
	mu    sync.RWMutex
}

func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		cache: make(map[string]string),
	}
}

// DetectChange reports whether filePath differs from the last time it was
// seen. The first sighting counts as a change.
func (t *ChangeTracker) DetectChange(filePath string) (bool, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return false, err
	}
	hash := hashContent(content)

	t.mu.Lock()
	defer t.mu.Unlock()

	old, exists := t.cache[filePath]
	t.cache[filePath] = hash
	return !exists || old != hash, nil
}

func (t *ChangeTracker) Forget(filePath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cache, filePath)
}

func (t *ChangeTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache = make(map[string]string)
}

func hashContent(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))[:16]
}
