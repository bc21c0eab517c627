package chat

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/havenchat/companion/internal/model/chat"
)

// CacheFile is the transcript snapshot written under the cache directory.
const CacheFile = "chat_history.json"

// HistoryCache keeps the latest transcript on disk so that other local views
// can read it. It is wiped on logout together with the rest of the cache dir.
// The session never reads it back; history always comes from the server.
type HistoryCache struct {
	path string

	mu   sync.Mutex
	last string
}

func NewHistoryCache(dir string) *HistoryCache {
	return &HistoryCache{path: filepath.Join(dir, CacheFile)}
}

// Publish writes the transcript when it changed since the last write.
func (c *HistoryCache) Publish(state State) {
	key := transcriptKey(state.Messages)

	c.mu.Lock()
	defer c.mu.Unlock()

	if key == c.last {
		return
	}
	if err := c.write(state.Messages); err != nil {
		log.Printf("[chat] failed to cache transcript: %v", err)
		return
	}
	c.last = key
}

// transcriptKey identifies a transcript by size and its newest record. Records
// are immutable, so this changes whenever the transcript does.
func transcriptKey(msgs []chat.Message) string {
	if len(msgs) == 0 {
		return "0"
	}
	return fmt.Sprintf("%d/%s/%s", len(msgs), msgs[0].ID, msgs[len(msgs)-1].ID)
}

func (c *HistoryCache) write(msgs []chat.Message) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Load reads the cached transcript. A missing file yields no records.
func (c *HistoryCache) Load() ([]chat.Message, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []chat.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.path, err)
	}
	return msgs, nil
}

// Reset forgets what was last written, e.g. after the directory was wiped.
// An empty transcript counts as written so a wiped directory stays empty.
func (c *HistoryCache) Reset() {
	c.mu.Lock()
	c.last = transcriptKey(nil)
	c.mu.Unlock()
}

// Sinks fans a state out to several sinks in order.
type Sinks []StateSink

func (s Sinks) Publish(state State) {
	for _, sink := range s {
		if sink != nil {
			sink.Publish(state)
		}
	}
}
