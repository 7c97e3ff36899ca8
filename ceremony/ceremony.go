// Package ceremony implements the machinery shared by the keygen and
// signing managers: per-stage message buffers, delayed-message parking for
// ceremonies not yet locally authorized, deadline arming, and blame
// accumulation (spec §4.3). It knows nothing about VSS, Schnorr, or wire
// formats — those stay in crypto/wire and the two managers.
package ceremony

import (
	"fmt"
	"time"

	"github.com/rubinvalidator/tss-core/crypto"
)

// BlameKind classifies why a participant was blamed for a ceremony failure
// (spec §4.4, §4.5, §7).
type BlameKind int

const (
	BlameUnauthorized BlameKind = iota + 1
	BlameMalformed
	BlameInvalidShare
	BlameTimeout
)

func (k BlameKind) String() string {
	switch k {
	case BlameUnauthorized:
		return "unauthorized"
	case BlameMalformed:
		return "malformed"
	case BlameInvalidShare:
		return "invalid_share"
	case BlameTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ErrorKind is the boundary error-kind taxonomy of spec §6.
type ErrorKind int

const (
	ErrorUnauthorised ErrorKind = iota + 1
	ErrorTimeout
	ErrorInvalid
)

// ErrorKind maps a blame kind onto the three boundary error kinds the host
// observer understands (spec §6).
func (k BlameKind) ErrorKind() ErrorKind {
	switch k {
	case BlameUnauthorized:
		return ErrorUnauthorised
	case BlameTimeout:
		return ErrorTimeout
	default:
		return ErrorInvalid
	}
}

// BlameError is the ceremony-fatal-with-blame error every failure outcome
// carries (spec §7): never a panic, always attributed to specific peers.
type BlameError struct {
	Kind   BlameKind
	Blamed []crypto.Account
}

func (e *BlameError) Error() string {
	return fmt.Sprintf("ceremony: %s, blaming %d participant(s)", e.Kind, len(e.Blamed))
}

// Mode distinguishes a ceremony the local party has authorized (instruction
// received, or the first message from an authorized participant triggered
// creation) from a placeholder created only to park early peer traffic
// (spec §4.3).
type Mode int

const (
	ModeUnauthorized Mode = iota
	ModeActive
)

// Message is one stage contribution from one sender. Payload is
// manager-owned (a KeygenBroadcast, SigningResponse, ...); State
// never inspects it (spec §6: the envelope only carries a stage
// discriminator and opaque payload bytes, decoded by the owning manager).
type Message struct {
	Sender  crypto.Account
	Stage   int
	Payload any
}

// AdmitOutcome reports the result of a single Admit call.
type AdmitOutcome struct {
	Message  Message
	Accepted bool
	Blame    BlameKind // meaningful only when !Accepted
}

// State is one in-progress keygen or signing ceremony (spec §3). Stage
// numbering and the final stage are owned by the calling manager; State
// enforces only the structural invariants common to both protocols: one
// message per sender per stage, bounded delayed-message parking, and
// deadline arming per stage.
type State struct {
	Participants []crypto.Account // sorted ascending: the source of truth for party indexing (spec §4.4)
	OwnAccount   crypto.Account
	Mode         Mode
	Stage        int
	FinalStage   int
	Deadline     time.Time

	buffers    map[int]map[crypto.Account]Message
	delayed    map[int]map[crypto.Account]Message
	maxDelayed int
	blamed     map[crypto.Account]BlameKind
}

// New creates a ceremony state starting at stage 1. participants need not be
// pre-sorted; New sorts them (spec §4.4: participant indices are assigned
// by sorting account ids lexicographically).
func New(participants []crypto.Account, own crypto.Account, finalStage int, mode Mode) *State {
	sorted := crypto.SortAccounts(participants)
	return &State{
		Participants: sorted,
		OwnAccount:   own,
		Mode:         mode,
		Stage:        1,
		FinalStage:   finalStage,
		buffers:      map[int]map[crypto.Account]Message{1: {}},
		delayed:      map[int]map[crypto.Account]Message{},
		maxDelayed:   delayedBufferLimit(len(sorted)),
		blamed:       map[crypto.Account]BlameKind{},
	}
}

// delayedBufferLimit bounds the per-stage delayed buffer proportional to
// participant count, so a peer can't exhaust memory by sending endless
// future-stage traffic (spec §9, Design Notes).
func delayedBufferLimit(participants int) int {
	limit := participants * 4
	if limit < 16 {
		limit = 16
	}
	return limit
}

// OwnIndex returns this party's 1-based index in the sorted participant
// list, the index VSS evaluation and Lagrange interpolation use.
func (s *State) OwnIndex() int {
	return crypto.IndexOf(s.Participants, s.OwnAccount) + 1
}

// Authorize flips an unauthorized placeholder to active once the local
// instruction naming the real participant set arrives, then re-admits
// whatever is parked for the current stage through the full Admit pipeline
// — a placeholder has no trustworthy participant set of its own, so
// membership can only be judged once one is supplied here (spec §4.3).
func (s *State) Authorize(participants []crypto.Account) []AdmitOutcome {
	s.Mode = ModeActive
	s.Participants = crypto.SortAccounts(participants)

	parked := s.delayed[s.Stage]
	if len(parked) == 0 {
		return nil
	}
	delete(s.delayed, s.Stage)
	out := make([]AdmitOutcome, 0, len(parked))
	for _, msg := range parked {
		out = append(out, s.Admit(msg))
	}
	return out
}

// Admit applies one inbound message to the ceremony state (spec §4.3):
//   - ceremony not yet authorized: parked in the delayed buffer for any
//     stage from 1 to the final stage (dropped with no blame if the stage
//     is out of that range or the buffer is full — flow control, not a
//     fault). Membership can't be judged yet: a placeholder has no
//     participant set until Authorize supplies one.
//   - sender not a participant: unauthorized, not stored.
//   - sender already contributed at this stage: malformed, not stored.
//   - message for a stage ahead of the current one: parked in the delayed
//     buffer.
//   - message for a stage already passed: dropped silently, no blame (a
//     stale retransmit, not a fault).
//   - otherwise: stored in the active buffer for the current stage.
//
// Admit never validates cryptographic content — that happens once a full
// stage batch is collected (spec §4.3, stage advancement).
func (s *State) Admit(msg Message) AdmitOutcome {
	if s.Mode == ModeUnauthorized {
		// Stages past the protocol's final stage can never become valid, so
		// they are not worth a map entry even before authorization.
		if msg.Stage >= 1 && msg.Stage <= s.FinalStage {
			s.parkDelayed(msg)
		}
		return AdmitOutcome{Message: msg, Accepted: true}
	}

	if !crypto.Contains(s.Participants, msg.Sender) {
		return AdmitOutcome{Message: msg, Blame: BlameUnauthorized}
	}

	if msg.Stage < 1 || msg.Stage > s.FinalStage {
		return AdmitOutcome{Message: msg, Blame: BlameMalformed}
	}

	switch {
	case msg.Stage == s.Stage:
		return s.admitActive(msg)
	case msg.Stage > s.Stage:
		s.parkDelayed(msg)
		return AdmitOutcome{Message: msg, Accepted: true}
	default:
		return AdmitOutcome{Message: msg} // stale retransmit, not a fault
	}
}

func (s *State) admitActive(msg Message) AdmitOutcome {
	buf := s.buffers[msg.Stage]
	if buf == nil {
		buf = map[crypto.Account]Message{}
		s.buffers[msg.Stage] = buf
	}
	if _, dup := buf[msg.Sender]; dup {
		return AdmitOutcome{Message: msg, Blame: BlameMalformed}
	}
	buf[msg.Sender] = msg
	return AdmitOutcome{Message: msg, Accepted: true}
}

func (s *State) parkDelayed(msg Message) {
	buf := s.delayed[msg.Stage]
	if buf == nil {
		buf = map[crypto.Account]Message{}
		s.delayed[msg.Stage] = buf
	}
	if _, dup := buf[msg.Sender]; dup {
		return
	}
	if len(buf) >= s.maxDelayed {
		return
	}
	buf[msg.Sender] = msg
}

// drainDelayedInto re-admits parked messages through the full Admit
// pipeline, so the membership and duplicate checks run again against the
// now-current stage (spec §4.3, stage advancement).
func (s *State) drainDelayedInto(stage int) []AdmitOutcome {
	parked := s.delayed[stage]
	if len(parked) == 0 {
		return nil
	}
	delete(s.delayed, stage)
	out := make([]AdmitOutcome, 0, len(parked))
	for _, msg := range parked {
		out = append(out, s.Admit(msg))
	}
	return out
}

// Arm (re)arms the stage deadline. Callers invoke this the first time a
// message for the current stage is admitted (spec §4.3).
func (s *State) Arm(now time.Time, timeout time.Duration) {
	if s.Deadline.IsZero() {
		s.Deadline = now.Add(timeout)
	}
}

// StageComplete reports whether the active buffer for the current stage
// holds exactly one message from every participant.
func (s *State) StageComplete() bool {
	return len(s.buffers[s.Stage]) == len(s.Participants)
}

// StageMessages returns the current stage's buffered messages, ordered by
// sorted participant order.
func (s *State) StageMessages() []Message {
	return s.MessagesAt(s.Stage)
}

// MessagesAt returns the buffered messages for an already-completed stage,
// ordered by sorted participant order. Signing's response-stage validation
// re-reads the commitment stage's buffer through this.
func (s *State) MessagesAt(stage int) []Message {
	buf := s.buffers[stage]
	out := make([]Message, 0, len(buf))
	for _, acct := range s.Participants {
		if m, ok := buf[acct]; ok {
			out = append(out, m)
		}
	}
	return out
}

// NonResponders returns participants who have not contributed to the
// current stage — the blame list for a timeout tripping at this stage
// (spec §4.3).
func (s *State) NonResponders() []crypto.Account {
	buf := s.buffers[s.Stage]
	var out []crypto.Account
	for _, acct := range s.Participants {
		if _, ok := buf[acct]; !ok {
			out = append(out, acct)
		}
	}
	return out
}

// Advance moves to the next stage and drains whatever was parked for it
// (spec §4.3, stage advancement).
func (s *State) Advance() []AdmitOutcome {
	s.Stage++
	if s.buffers[s.Stage] == nil {
		s.buffers[s.Stage] = map[crypto.Account]Message{}
	}
	s.Deadline = time.Time{}
	return s.drainDelayedInto(s.Stage)
}

// Done reports whether the ceremony has advanced past its final stage.
func (s *State) Done() bool {
	return s.Stage > s.FinalStage
}

// Expired reports whether now is past the armed deadline.
func (s *State) Expired(now time.Time) bool {
	return !s.Deadline.IsZero() && now.After(s.Deadline)
}

// Blame records kind against every account in accounts, keeping the first
// kind recorded per account.
func (s *State) Blame(kind BlameKind, accounts ...crypto.Account) {
	for _, a := range accounts {
		if _, already := s.blamed[a]; !already {
			s.blamed[a] = kind
		}
	}
}

// BlameList returns the accumulated blame list, sorted for determinism.
// Protocol-fault blame (duplicates, invalid shares, timeouts) only ever
// names participants; unauthorized-sender blame may name an outsider, which
// is deliberate — the failure outcome reports who sent the traffic (spec
// §4.4; see DESIGN.md on the §8 subset invariant).
func (s *State) BlameList() []crypto.Account {
	out := make([]crypto.Account, 0, len(s.blamed))
	for a := range s.blamed {
		out = append(out, a)
	}
	return crypto.SortAccounts(out)
}

// PrimaryBlameKind returns the blame kind to report for the ceremony's
// failure outcome: the most specific kind recorded, preferring invalid
// share / malformed evidence over a bare timeout or unauthorized-sender
// notice when both are present.
func (s *State) PrimaryBlameKind() BlameKind {
	rank := func(k BlameKind) int {
		switch k {
		case BlameInvalidShare:
			return 4
		case BlameMalformed:
			return 3
		case BlameTimeout:
			return 2
		case BlameUnauthorized:
			return 1
		default:
			return 0
		}
	}
	best := BlameKind(0)
	for _, k := range s.blamed {
		if rank(k) > rank(best) {
			best = k
		}
	}
	return best
}
