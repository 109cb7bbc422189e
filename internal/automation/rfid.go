package automation

import (
	"sync"

	"github.com/nerrad567/hard/internal/infrastructure/config"
)

// RFIDTag is a known tag and what it unlocks.
type RFIDTag struct {
	ID     uint32
	Name   string
	Tags   []string
	Relays []int
}

// TagTable is the read-mostly table of known tags.
type TagTable struct {
	mu   sync.RWMutex
	tags map[uint32]RFIDTag
}

// NewTagTable builds a table from configuration.
func NewTagTable(cfg []config.RFIDTagConfig) *TagTable {
	t := &TagTable{tags: make(map[uint32]RFIDTag, len(cfg))}
	for _, c := range cfg {
		t.tags[c.ID] = RFIDTag{ID: c.ID, Name: c.Name, Tags: c.Tags, Relays: c.Relays}
	}
	return t
}

// Lookup returns the tag with the given id.
func (t *TagTable) Lookup(id uint32) (RFIDTag, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tag, ok := t.tags[id]
	return tag, ok
}

// Put adds or replaces a tag.
func (t *TagTable) Put(tag RFIDTag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tags[tag.ID] = tag
}

// Len returns the number of known tags.
func (t *TagTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tags)
}

// PendingTags is the queue of tag ids seen by the scanner and not yet
// processed by the control loop.
type PendingTags struct {
	mu  sync.Mutex
	ids []uint32
}

// Push appends a seen tag id.
func (p *PendingTags) Push(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
}

// Drain removes and returns every pending id.
func (p *PendingTags) Drain() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.ids
	p.ids = nil
	return ids
}
