package audit

// Package audit records the human-readable history of mirror operations. Events are
// the primary operator-facing signal next to the mirror row status fields.

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/go-pkgz/lgr"
)

// event kinds of the repo mirror lifecycle
const (
	RepoMirrorSyncStarted    = "repo_mirror_sync_started"
	RepoMirrorSyncSuccess    = "repo_mirror_sync_success"
	RepoMirrorSyncFailed     = "repo_mirror_sync_failed"
	RepoMirrorSyncTagSuccess = "repo_mirror_sync_tag_success"
	RepoMirrorSyncTagFailed  = "repo_mirror_sync_tag_failed"
)

// event kinds of the org mirror lifecycle
const (
	OrgMirrorEnabled          = "org_mirror_enabled"
	OrgMirrorConfigChanged    = "org_mirror_config_changed"
	OrgMirrorDisabled         = "org_mirror_disabled"
	OrgMirrorSyncNowRequested = "org_mirror_sync_now_requested"
	OrgMirrorSyncCancelled    = "org_mirror_sync_cancelled"
	OrgMirrorSyncStarted      = "org_mirror_sync_started"
	OrgMirrorSyncSuccess      = "org_mirror_sync_success"
	OrgMirrorSyncFailed       = "org_mirror_sync_failed"
	OrgMirrorRepoDiscovered   = "org_mirror_repo_discovered"
	OrgMirrorRepoCreated      = "org_mirror_repo_created"
	OrgMirrorRepoFailed       = "org_mirror_repo_failed"
)

// Event is one audit record. Subject names the mirror or repository the event is about.
type Event struct {
	Kind     string
	Subject  string
	Message  string
	Metadata map[string]interface{}
}

// Emitter records audit events. Implementations must be safe for concurrent use.
type Emitter interface {
	Emit(e Event)
}

// Logger is the default emitter, it writes events to the shared structured log
type Logger struct{}

// Emit writes the event with metadata keys in stable order
func (l *Logger) Emit(e Event) {
	if len(e.Metadata) == 0 {
		log.Printf("[INFO] audit %s subject:%s %s", e.Kind, e.Subject, e.Message)
		return
	}

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := strings.Builder{}
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(stringify(e.Metadata[k]))
	}
	log.Printf("[INFO] audit %s subject:%s %s {%s}", e.Kind, e.Subject, e.Message, b.String())
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprintf("%v", v)
}

// Recorder collects events in memory, used in tests and by the status API
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends the event
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded event kinds in emission order
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}
