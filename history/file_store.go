package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// FileStore keeps each history as one JSON file under
// <dir>/<confUID>/<uid>.json. A single mutex serializes writers; histories
// are small and appends rewrite the whole file.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// newUID builds a sortable history identifier from the creation time plus a
// random suffix.
func newUID() string {
	return time.Now().Format("2006-01-02_15-04-05") + "_" + uuid.New().String()[:8]
}

func (f *FileStore) path(confUID, uid string) string {
	return filepath.Join(f.dir, confUID, uid+".json")
}

func (f *FileStore) Create(confUID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uid := newUID()
	dir := filepath.Join(f.dir, confUID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create history dir: %w", err)
	}
	if err := f.write(confUID, uid, []Message{}); err != nil {
		return "", err
	}
	return uid, nil
}

func (f *FileStore) List(confUID string) ([]Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(f.dir, confUID))
	if os.IsNotExist(err) {
		return []Meta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list histories: %w", err)
	}

	metas := make([]Meta, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		uid := strings.TrimSuffix(name, ".json")
		msgs, err := f.read(confUID, uid)
		if err != nil {
			// Skip unreadable files rather than failing the whole listing.
			continue
		}
		meta := Meta{UID: uid}
		if info, err := entry.Info(); err == nil {
			meta.Timestamp = info.ModTime()
		}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			meta.LatestMessage = &last
			meta.Timestamp = last.Timestamp
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Timestamp.After(metas[j].Timestamp)
	})
	return metas, nil
}

func (f *FileStore) Get(confUID, uid string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(confUID, uid)
}

func (f *FileStore) Append(confUID, uid string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs, err := f.read(confUID, uid)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(filepath.Join(f.dir, confUID), 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
		msgs = []Message{}
	}
	msgs = append(msgs, msg)
	return f.write(confUID, uid, msgs)
}

func (f *FileStore) Delete(confUID, uid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(confUID, uid))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete history: %w", err)
	}
	return true, nil
}

func (f *FileStore) read(confUID, uid string) ([]Message, error) {
	data, err := os.ReadFile(f.path(confUID, uid))
	if err != nil {
		return nil, err
	}
	var msgs []Message
	if err := sonic.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", uid, err)
	}
	return msgs, nil
}

func (f *FileStore) write(confUID, uid string, msgs []Message) error {
	data, err := sonic.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode history %s: %w", uid, err)
	}
	if err := os.WriteFile(f.path(confUID, uid), data, 0o644); err != nil {
		return fmt.Errorf("write history %s: %w", uid, err)
	}
	return nil
}
