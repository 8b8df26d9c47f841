package history

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store, used in tests and as a fallback when no
// history directory is configured.
type MemoryStore struct {
	mu       sync.Mutex
	byConf   map[string]map[string][]Message
	sequence int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byConf: make(map[string]map[string][]Message)}
}

func (m *MemoryStore) Create(confUID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence++
	uid := fmt.Sprintf("%s_%06d", newUID(), m.sequence)
	if m.byConf[confUID] == nil {
		m.byConf[confUID] = make(map[string][]Message)
	}
	m.byConf[confUID][uid] = []Message{}
	return uid, nil
}

func (m *MemoryStore) List(confUID string) ([]Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	metas := make([]Meta, 0, len(m.byConf[confUID]))
	for uid, msgs := range m.byConf[confUID] {
		meta := Meta{UID: uid}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			meta.LatestMessage = &last
			meta.Timestamp = last.Timestamp
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Timestamp.Equal(metas[j].Timestamp) {
			return metas[i].UID > metas[j].UID
		}
		return metas[i].Timestamp.After(metas[j].Timestamp)
	})
	return metas, nil
}

func (m *MemoryStore) Get(confUID, uid string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.byConf[confUID][uid]
	if !ok {
		return nil, fmt.Errorf("history %s not found", uid)
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) Append(confUID, uid string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byConf[confUID] == nil {
		m.byConf[confUID] = make(map[string][]Message)
	}
	m.byConf[confUID][uid] = append(m.byConf[confUID][uid], msg)
	return nil
}

func (m *MemoryStore) Delete(confUID, uid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byConf[confUID][uid]; !ok {
		return false, nil
	}
	delete(m.byConf[confUID], uid)
	return true, nil
}
