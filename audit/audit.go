package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// Record is one append-only audit entry. Hash covers the record's own fields
// plus the previous record's hash, so the log forms a verifiable chain.
type Record struct {
	Cursor    int64  `json:"cursor"`
	TraceId   string `json:"trace_id"`
	Entity    string `json:"entity"`
	EntityId  string `json:"entity_id"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
	PrevHash  string `json:"prev_hash"`
	Hash      string `json:"hash"`
}

// Sink accepts state-transition records. Implementations must never block
// the caller on failure; auditing is forensic, not control flow.
type Sink interface {
	Append(ctx context.Context, traceId, entity, entityId, action, detail string)
}

// ChainedLog keeps records in memory with a monotonic cursor and a rolling
// hash linking each record to its predecessor.
type ChainedLog struct {
	mu      sync.Mutex
	cursor  int64
	last    string
	records []Record
}

func NewChainedLog() *ChainedLog {
	return &ChainedLog{}
}

func (l *ChainedLog) Append(ctx context.Context, traceId, entity, entityId, action, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cursor++
	record := Record{
		Cursor:    l.cursor,
		TraceId:   traceId,
		Entity:    entity,
		EntityId:  entityId,
		Action:    action,
		Detail:    detail,
		Timestamp: time.Now().UTC().UnixMilli(),
		PrevHash:  l.last,
	}
	record.Hash = hashRecord(record)

	l.last = record.Hash
	l.records = append(l.records, record)
}

// Records returns a copy of the log in append order.
func (l *ChainedLog) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Verify walks the chain and reports whether every record's hash links
// correctly to its predecessor.
func (l *ChainedLog) Verify() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := ""
	for _, record := range l.records {
		if record.PrevHash != prev {
			return false
		}
		if hashRecord(record) != record.Hash {
			return false
		}
		prev = record.Hash
	}
	return true
}

func hashRecord(record Record) string {
	record.Hash = ""
	payload, _ := json.Marshal(record)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// NopSink discards every record.
type NopSink struct{}

func (NopSink) Append(ctx context.Context, traceId, entity, entityId, action, detail string) {}
