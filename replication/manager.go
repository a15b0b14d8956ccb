// Package replication implements the master/replica protocol: the
// master-side replica list and write propagation, the replica-side
// outbound handshake and inbound apply loop, and WAIT.
package replication

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arbourd/redis-core/protocol"
)

// Role is the server's current replication role.
type Role string

const (
	RoleMaster  Role = "master"
	RoleReplica Role = "slave"
)

// Replica is one connected follower, as seen from the master.
type Replica struct {
	ID     string
	Sink   io.Writer
	mu     sync.Mutex
	offset int64
}

// Offset returns the last offset this replica has acknowledged.
func (r *Replica) Offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}

// SetOffset updates the acknowledged offset, never moving it backward
// (REPLCONF ACK n means "offset = max(offset, n)").
func (r *Replica) SetOffset(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.offset {
		r.offset = n
	}
}

func (r *Replica) write(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.Sink.Write(b)
	return err
}

// Manager is the process-wide replication state: master-side replica
// list and byte offset, or replica-side bookkeeping about the master it
// follows.
type Manager struct {
	role   Role
	replID string

	mu       sync.Mutex
	offset   int64
	replicas map[string]*Replica

	masterHost string
	masterPort int
}

// NewManager returns a Manager in RoleMaster with no replicas yet.
func NewManager() *Manager {
	return &Manager{
		role:     RoleMaster,
		replID:   generateReplID(),
		replicas: make(map[string]*Replica),
	}
}

// SetReplicaOf switches the manager into RoleReplica, recording the
// master it follows (the handshake itself lives in handshake.go).
func (m *Manager) SetReplicaOf(host string, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = RoleReplica
	m.masterHost = host
	m.masterPort = port
}

// Role reports the current replication role.
func (m *Manager) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// ReplID returns this server's 40-character replication ID.
func (m *Manager) ReplID() string {
	return m.replID
}

// Offset returns the current master_replication_offset (or, in replica
// role, this server's own applied-byte offset).
func (m *Manager) Offset() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

// AddOffset advances the tracked offset by n bytes.
func (m *Manager) AddOffset(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset += int64(n)
}

func generateReplID() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%040d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", b)
}

// AddReplica registers a newly promoted connection as a replica sink,
// using a fresh opaque ID for log correlation and WAIT bookkeeping.
func (m *Manager) AddReplica(sink io.Writer) *Replica {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &Replica{ID: uuid.NewString(), Sink: sink}
	m.replicas[r.ID] = r
	return r
}

// RemoveReplica drops a replica record, e.g. after a propagation write
// fails.
func (m *Manager) RemoveReplica(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.replicas, id)
}

// ReplicaCount returns how many replicas are currently connected.
func (m *Manager) ReplicaCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replicas)
}

func (m *Manager) snapshotReplicas() []*Replica {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Replica, 0, len(m.replicas))
	for _, r := range m.replicas {
		out = append(out, r)
	}
	return out
}

// Propagate re-serializes args as a RESP command array, fans it out
// concurrently to every connected replica, and advances
// master_replication_offset by the serialized length exactly once,
// regardless of replica count. I/O errors on one replica drop that
// replica but never fail the caller.
//
// A no-op in RoleReplica: a replica applies commands it reads off the
// master's stream through the same CommandRegistry.Execute path a master
// client uses, which would otherwise call Propagate for every write verb
// and double-count the follower's self-offset on top of
// replication.RunApplyLoop's own per-frame accounting. Only a master has
// replicas to fan out to or an offset of its own to advance here.
func (m *Manager) Propagate(args []string) {
	if m.Role() != RoleMaster {
		return
	}

	payload := protocol.EncodeCommandArray(args)

	replicas := m.snapshotReplicas()
	if len(replicas) > 0 {
		var g errgroup.Group
		for _, r := range replicas {
			r := r
			g.Go(func() error {
				if err := r.write(payload); err != nil {
					m.RemoveReplica(r.ID)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	m.AddOffset(int64(len(payload)))
}

// sendGetAck writes "REPLCONF GETACK *" to every replica and accounts its
// bytes against the live offset, mirroring Propagate but for the
// WAIT-driven GETACK probe rather than a client write.
func (m *Manager) sendGetAck() {
	m.Propagate([]string{"REPLCONF", "GETACK", "*"})
}

func (m *Manager) countAcked(target int64) int {
	count := 0
	for _, r := range m.snapshotReplicas() {
		if r.Offset() >= target {
			count++
		}
	}
	return count
}

// Wait implements WAIT numreplicas timeout_ms: snapshots the current
// offset as a frozen target, then polls (sending GETACK probes, which
// advance the live offset but never the frozen target) until numreplicas
// replicas have acknowledged at least target, or timeout_ms elapses.
func (m *Manager) Wait(ctx context.Context, numReplicas int, timeout time.Duration) int {
	target := m.Offset()

	if numReplicas == 0 || target == 0 {
		return m.ReplicaCount()
	}

	if count := m.countAcked(target); count >= numReplicas {
		return count
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return m.countAcked(target)
		case <-ticker.C:
			if time.Now().After(deadline) {
				return m.countAcked(target)
			}
			m.sendGetAck()
			if count := m.countAcked(target); count >= numReplicas {
				return count
			}
		}
	}
}
