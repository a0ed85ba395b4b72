package inbox

import "github.com/colonyops/inbox/internal/core/notify"

type mutationState int

const (
	mutationPending mutationState = iota
	mutationCommitted
	mutationRolledBack
)

func (s mutationState) String() string {
	switch s {
	case mutationPending:
		return "pending"
	case mutationCommitted:
		return "committed"
	case mutationRolledBack:
		return "rolled-back"
	}
	return "unknown"
}

// entry is a notification plus the sequence number of its last local change.
type entry struct {
	n   notify.Notification
	seq uint64
}

// snapshot is the state of one id before a mutation touched it.
type snapshot struct {
	entry      entry
	present    bool
	tomb       uint64
	tombstoned bool
}

// mutation is one optimistic change moving pending -> committed | rolled-back.
// Every id it changes is stamped with seq, so a rollback can tell whether a
// newer change has happened since.
type mutation struct {
	op     string
	seq    uint64
	state  mutationState
	before map[string]snapshot
}

// prefsMutation is the same machine for the preferences document.
type prefsMutation struct {
	seq    uint64
	state  mutationState
	before notify.Preferences
}
