package state

import (
	"os"
	"path/filepath"
	"time"

	"github.com/agentforge/fixloop/pkg/fixerr"
)

// Txn stages every write for one executor step and publishes all of them
// only on Commit; Rollback discards the staged writes and leaves the
// previously-committed files untouched. Guarded by the exclusive file
// lock acquired in Store.Begin for its whole lifetime.
type Txn struct {
	dir  string
	lock *fileLock

	state       TaskState
	facts       FactStoreFile
	actions     ActionsFile
	precomputed PrecomputedFile

	pendingOutputs []StepOutput
	done           bool
}

func (t *Txn) loadCommitted() error {
	if ok, err := readYAML(filepath.Join(t.dir, "state.yaml"), &t.state); err != nil {
		return fixerr.New(fixerr.KindStateCorrupt, "state.loadCommitted", err)
	} else if !ok {
		return fixerr.New(fixerr.KindStateCorrupt, "state.loadCommitted", os.ErrNotExist)
	}
	if t.state.SchemaVersion != SchemaVersion {
		return fixerr.New(fixerr.KindStateCorrupt, "state.loadCommitted",
			errSchemaMismatch(t.state.SchemaVersion))
	}

	if ok, err := readYAML(filepath.Join(t.dir, "understanding.yaml"), &t.facts); err != nil {
		return fixerr.New(fixerr.KindStateCorrupt, "state.loadCommitted", err)
	} else if ok && t.facts.SchemaVersion != SchemaVersion {
		return fixerr.New(fixerr.KindStateCorrupt, "state.loadCommitted",
			errSchemaMismatch(t.facts.SchemaVersion))
	}
	if t.facts.Superseded == nil {
		t.facts.Superseded = map[string]bool{}
	}

	if ok, err := readYAML(filepath.Join(t.dir, "actions.yaml"), &t.actions); err != nil {
		return fixerr.New(fixerr.KindStateCorrupt, "state.loadCommitted", err)
	} else if ok && t.actions.SchemaVersion != SchemaVersion {
		return fixerr.New(fixerr.KindStateCorrupt, "state.loadCommitted",
			errSchemaMismatch(t.actions.SchemaVersion))
	}

	if ok, err := readYAML(filepath.Join(t.dir, "precomputed.yaml"), &t.precomputed); err != nil {
		return fixerr.New(fixerr.KindStateCorrupt, "state.loadCommitted", err)
	} else if ok && t.precomputed.SchemaVersion != SchemaVersion {
		return fixerr.New(fixerr.KindStateCorrupt, "state.loadCommitted",
			errSchemaMismatch(t.precomputed.SchemaVersion))
	}

	return nil
}

func errSchemaMismatch(got int) error {
	return &schemaMismatchError{got: got, want: SchemaVersion}
}

type schemaMismatchError struct{ got, want int }

func (e *schemaMismatchError) Error() string {
	return "schema version mismatch: got " + itoa(e.got) + " want " + itoa(e.want)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Load returns the current in-transaction TaskState, facts, and actions.
// It never hits disk again; it reflects loadCommitted plus any staged
// mutations from earlier in this transaction.
func (t *Txn) Load() (TaskState, []Fact, []ActionRecord, PrecomputedContext) {
	return t.state, append([]Fact(nil), t.facts.Facts...), append([]ActionRecord(nil), t.actions.Actions...), t.precomputed.Precomputed
}

// Superseded reports the current superseded-fact-id set.
func (t *Txn) Superseded() map[string]bool {
	out := make(map[string]bool, len(t.facts.Superseded))
	for k, v := range t.facts.Superseded {
		out[k] = v
	}
	return out
}

// Save stages a new TaskState, replacing the prior one in this transaction.
func (t *Txn) Save(ts TaskState) {
	ts.SchemaVersion = SchemaVersion
	t.state = ts
}

// AppendAction stages a new ActionRecord.
func (t *Txn) AppendAction(a ActionRecord) {
	t.actions.Actions = append(t.actions.Actions, a)
}

// AppendFacts stages new facts and applies any supersession they declare.
func (t *Txn) AppendFacts(facts []Fact) {
	for _, f := range facts {
		t.facts.Facts = append(t.facts.Facts, f)
		if f.Supersedes != "" {
			t.facts.Superseded[f.Supersedes] = true
		}
	}
}

// SetFacts replaces the full staged fact list, used by the Fact Store's
// compaction pass which may drop low-score facts entirely.
func (t *Txn) SetFacts(facts []Fact, superseded map[string]bool) {
	t.facts.Facts = facts
	t.facts.Superseded = superseded
}

// WriteOutput stages a per-step audit record.
func (t *Txn) WriteOutput(out StepOutput) {
	t.pendingOutputs = append(t.pendingOutputs, out)
}

// Commit atomically publishes every staged write and releases the lock.
func (t *Txn) Commit() error {
	if t.done {
		return fixerr.New(fixerr.KindFatal, "state.Commit", errAlreadyDone)
	}
	t.facts.SchemaVersion = SchemaVersion
	t.actions.SchemaVersion = SchemaVersion
	t.precomputed.SchemaVersion = SchemaVersion

	if err := atomicWriteYAML(filepath.Join(t.dir, "state.yaml"), t.state); err != nil {
		return fixerr.New(fixerr.KindFatal, "state.Commit", err)
	}
	if err := atomicWriteYAML(filepath.Join(t.dir, "understanding.yaml"), t.facts); err != nil {
		return fixerr.New(fixerr.KindFatal, "state.Commit", err)
	}
	if err := atomicWriteYAML(filepath.Join(t.dir, "actions.yaml"), t.actions); err != nil {
		return fixerr.New(fixerr.KindFatal, "state.Commit", err)
	}
	for _, out := range t.pendingOutputs {
		p := filepath.Join(t.dir, "outputs", "step_"+itoa(out.Step)+".yaml")
		if err := atomicWriteYAML(p, out); err != nil {
			return fixerr.New(fixerr.KindFatal, "state.Commit", err)
		}
	}

	t.done = true
	return t.lock.release()
}

// Rollback discards every staged write in memory and releases the lock
// without touching the previously-committed files.
func (t *Txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.lock.release()
}

var errAlreadyDone = &txnDoneError{}

type txnDoneError struct{}

func (*txnDoneError) Error() string { return "transaction already committed or rolled back" }

// lockAge reports how long this transaction has held its lock, useful for
// status reporting.
func (t *Txn) lockAge() time.Duration {
	info, err := os.Stat(filepath.Join(t.dir, "state.lock"))
	if err != nil {
		return 0
	}
	return time.Since(info.ModTime())
}
