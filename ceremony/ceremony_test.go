package ceremony

import (
	"testing"
	"time"

	"github.com/rubinvalidator/tss-core/crypto"
)

func acct(b byte) crypto.Account {
	var a crypto.Account
	a[0] = b
	return a
}

func TestAdmitRejectsNonParticipant(t *testing.T) {
	parts := []crypto.Account{acct(1), acct(2)}
	s := New(parts, acct(1), 2, ModeActive)

	out := s.Admit(Message{Sender: acct(9), Stage: 1})
	if out.Accepted {
		t.Fatalf("expected non-participant message to be rejected")
	}
	if out.Blame != BlameUnauthorized {
		t.Fatalf("expected BlameUnauthorized, got %v", out.Blame)
	}
}

func TestAdmitBlamesDuplicateStageMessage(t *testing.T) {
	parts := []crypto.Account{acct(1), acct(2)}
	s := New(parts, acct(1), 2, ModeActive)

	first := s.Admit(Message{Sender: acct(2), Stage: 1, Payload: "a"})
	if !first.Accepted {
		t.Fatalf("expected first message to be accepted")
	}
	second := s.Admit(Message{Sender: acct(2), Stage: 1, Payload: "b"})
	if second.Accepted {
		t.Fatalf("expected duplicate stage message to be rejected")
	}
	if second.Blame != BlameMalformed {
		t.Fatalf("expected BlameMalformed for duplicate, got %v", second.Blame)
	}
}

func TestStageCompletionAndAdvance(t *testing.T) {
	parts := []crypto.Account{acct(1), acct(2), acct(3)}
	s := New(parts, acct(1), 2, ModeActive)

	if s.StageComplete() {
		t.Fatalf("stage should not be complete before any messages")
	}
	for _, p := range parts {
		if out := s.Admit(Message{Sender: p, Stage: 1}); !out.Accepted {
			t.Fatalf("admit for %v: %+v", p, out)
		}
	}
	if !s.StageComplete() {
		t.Fatalf("expected stage 1 to be complete")
	}
	if len(s.NonResponders()) != 0 {
		t.Fatalf("expected no non-responders once stage complete")
	}

	s.Advance()
	if s.Stage != 2 {
		t.Fatalf("expected stage 2 after advance, got %d", s.Stage)
	}
	if s.StageComplete() {
		t.Fatalf("new stage should start empty")
	}
	if s.Done() {
		t.Fatalf("ceremony should not be done mid-stage-2")
	}
}

func TestDelayedMessagesDrainOnAdvance(t *testing.T) {
	parts := []crypto.Account{acct(1), acct(2)}
	s := New(parts, acct(1), 2, ModeActive)

	// A stage-2 message arrives early, while we're still in stage 1.
	out := s.Admit(Message{Sender: acct(2), Stage: 2, Payload: "early"})
	if !out.Accepted {
		t.Fatalf("expected early stage-2 message to be parked, not rejected: %+v", out)
	}
	if s.StageComplete() {
		t.Fatalf("parking a future message must not complete the current stage")
	}

	s.Admit(Message{Sender: acct(1), Stage: 1})
	s.Admit(Message{Sender: acct(2), Stage: 1})
	drained := s.Advance()
	if len(drained) != 1 || !drained[0].Accepted {
		t.Fatalf("expected the parked stage-2 message to drain in on advance: %+v", drained)
	}
	if len(s.StageMessages()) != 1 {
		t.Fatalf("expected the drained message to land in the active stage-2 buffer")
	}
}

func TestUnauthorizedCeremonyOnlyParks(t *testing.T) {
	parts := []crypto.Account{acct(1), acct(2)}
	s := New(parts, acct(1), 2, ModeUnauthorized)

	out := s.Admit(Message{Sender: acct(2), Stage: 1, Payload: "x"})
	if !out.Accepted {
		t.Fatalf("expected message to be parked while unauthorized")
	}
	if s.StageComplete() {
		t.Fatalf("an unauthorized ceremony must never admit into the active buffer")
	}

	drained := s.Authorize(parts)
	if len(drained) != 1 || !drained[0].Accepted {
		t.Fatalf("expected parked message to drain on authorization: %+v", drained)
	}
	if !s.Admit(Message{Sender: acct(1), Stage: 1}).Accepted {
		t.Fatalf("own stage-1 message should be accepted once authorized")
	}
	if !s.StageComplete() {
		t.Fatalf("expected stage 1 complete after authorization drain + own message")
	}
}

func TestDelayedBufferIsBounded(t *testing.T) {
	// Pre-authorization is the flooding window: any sender may park
	// future-stage traffic, so the per-stage bound must hold there.
	s := New(nil, acct(1), 2, ModeUnauthorized)
	limit := s.maxDelayed

	for i := 0; i < limit+50; i++ {
		var sender crypto.Account
		sender[0] = byte(i)
		sender[1] = byte(i >> 8)
		s.Admit(Message{Sender: sender, Stage: 2})
	}
	if len(s.delayed[2]) > limit {
		t.Fatalf("delayed buffer exceeded its bound: %d > %d", len(s.delayed[2]), limit)
	}
}

func TestAdmitRejectsStagePastFinal(t *testing.T) {
	parts := []crypto.Account{acct(1), acct(2)}
	s := New(parts, acct(1), 2, ModeActive)

	out := s.Admit(Message{Sender: acct(2), Stage: 7})
	if out.Accepted {
		t.Fatalf("a stage past the final stage can never become valid")
	}
	if out.Blame != BlameMalformed {
		t.Fatalf("expected BlameMalformed, got %v", out.Blame)
	}

	// Pre-authorization such traffic is dropped without a map entry.
	u := New(nil, acct(1), 2, ModeUnauthorized)
	u.Admit(Message{Sender: acct(2), Stage: 7})
	if len(u.delayed) != 0 {
		t.Fatalf("out-of-range stage must not be parked")
	}
}

func TestExpiryAndBlame(t *testing.T) {
	parts := []crypto.Account{acct(1), acct(2)}
	s := New(parts, acct(1), 2, ModeActive)

	s.Admit(Message{Sender: acct(1), Stage: 1})
	s.Arm(time.Now(), 10*time.Millisecond)
	if s.Expired(time.Now()) {
		t.Fatalf("should not be expired immediately")
	}
	future := time.Now().Add(time.Second)
	if !s.Expired(future) {
		t.Fatalf("expected expiry after deadline")
	}

	s.Blame(BlameTimeout, s.NonResponders()...)
	blamed := s.BlameList()
	if len(blamed) != 1 || blamed[0] != acct(2) {
		t.Fatalf("expected only the non-responder blamed, got %v", blamed)
	}
}
