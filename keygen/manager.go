// Package keygen drives threshold keygen ceremonies: stage-1 broadcast of a
// hiding hash commitment (plus the public constant term y_i), stage-2 reveal
// of the Feldman commitments and privately directed shares, group public key
// assembly, and outcome emission (spec §4.4).
package keygen

import (
	"fmt"
	"time"

	"github.com/rubinvalidator/tss-core/ceremony"
	"github.com/rubinvalidator/tss-core/crypto"
	"github.com/rubinvalidator/tss-core/internal/logx"
	"github.com/rubinvalidator/tss-core/wire"
)

const (
	stageBroadcast = int(wire.StageKeygenBroadcast)
	stageReveal    = int(wire.StageKeygenReveal)
	finalStage     = stageReveal
)

// StartInstruction is the "start keygen" instruction from the chain
// observer (spec §6). Threshold is carried explicitly: the distilled
// instruction surface names only (ceremony id, participant set), but a
// threshold strictly below full participation (spec §8's "three parties,
// threshold 1" scenario) cannot be derived from the participant set alone,
// so this supplements the instruction with it (see DESIGN.md).
type StartInstruction struct {
	CeremonyID   wire.CeremonyID
	Participants []crypto.Account
	Threshold    int
}

// Success is the payload of a successful keygen outcome (spec §6).
type Success struct {
	GroupPublicKey []byte
	Record         wire.KeyShareRecord
}

// Outcome is emitted at most once per ceremony id (spec §5): either Ok or
// Err, never both.
type Outcome struct {
	CeremonyID wire.CeremonyID
	Ok         *Success
	Err        *ceremony.BlameError
}

// OutboundMessage is a message this party must send. A zero To means
// broadcast to every other participant; a non-zero To is a point-to-point
// message (stage 2's privately addressed reveals).
type OutboundMessage struct {
	To      crypto.Account
	Message wire.PeerMessage
}

type ceremonyData struct {
	id        wire.CeremonyID
	state     *ceremony.State
	threshold int
	poly      *crypto.Polynomial

	ownCommitments      [][]byte
	hashBySender        map[crypto.Account][32]byte
	constantBySender    map[crypto.Account][]byte
	commitmentsBySender map[crypto.Account][][]byte
}

// Manager drives keygen ceremonies for one scheme/chain tag (spec §4.4).
// One Manager instance exists per supported chain — the ceremony runtime is
// polymorphic over the scheme capability set (spec §4.2, Design Notes).
type Manager struct {
	scheme  crypto.Scheme
	own     crypto.Account
	timeout time.Duration

	ceremonies map[wire.CeremonyID]*ceremonyData
}

// NewManager constructs a keygen manager bound to one chain's Scheme.
func NewManager(scheme crypto.Scheme, own crypto.Account, timeout time.Duration) *Manager {
	return &Manager{
		scheme:     scheme,
		own:        own,
		timeout:    timeout,
		ceremonies: map[wire.CeremonyID]*ceremonyData{},
	}
}

// Start begins a keygen ceremony this party has been instructed to run,
// authorizing any placeholder created earlier by out-of-order peer traffic
// (spec §4.3, §4.4).
func (m *Manager) Start(instr StartInstruction) ([]OutboundMessage, *Outcome, error) {
	cd, exists := m.ceremonies[instr.CeremonyID]
	if exists && cd.state.Mode == ceremony.ModeActive {
		return nil, nil, fmt.Errorf("keygen: ceremony %x already active", instr.CeremonyID)
	}

	var drained []ceremony.AdmitOutcome
	if exists {
		drained = cd.state.Authorize(instr.Participants)
		cd.threshold = instr.Threshold
	} else {
		st := ceremony.New(instr.Participants, m.own, finalStage, ceremony.ModeActive)
		cd = &ceremonyData{
			id:                  instr.CeremonyID,
			state:               st,
			threshold:           instr.Threshold,
			hashBySender:        map[crypto.Account][32]byte{},
			constantBySender:    map[crypto.Account][]byte{},
			commitmentsBySender: map[crypto.Account][][]byte{},
		}
		m.ceremonies[instr.CeremonyID] = cd
	}

	secret, err := m.scheme.RandomScalar()
	if err != nil {
		return nil, nil, fmt.Errorf("keygen: sampling secret: %w", err)
	}
	poly, err := crypto.GeneratePolynomial(m.scheme, secret, cd.threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("keygen: generating polynomial: %w", err)
	}
	cd.poly = poly
	commitments, err := poly.Commitments(m.scheme)
	if err != nil {
		return nil, nil, fmt.Errorf("keygen: committing polynomial: %w", err)
	}
	cd.ownCommitments = commitments

	payload := wire.KeygenBroadcast{
		CommitmentHash: crypto.CommitmentDigest(commitments),
		ConstantPoint:  commitments[0],
	}
	out := []OutboundMessage{{Message: wire.PeerMessage{
		Kind:       wire.KindKeygen,
		ChainTag:   m.scheme.ChainTag(),
		CeremonyID: instr.CeremonyID,
		Stage:      wire.StageKeygenBroadcast,
		Payload:    payload.Encode(),
	}}}

	m.selfAdmit(cd, stageBroadcast, payload)
	m.applyAdmitOutcomes(cd, drained)

	moreOut, outcome, err := m.checkStageCompletion(cd)
	if err != nil {
		return nil, nil, err
	}
	out = append(out, moreOut...)
	return out, outcome, nil
}

// HandlePeerMessage admits one inbound wire message into the named
// ceremony, creating an unauthorized placeholder if this is the first
// traffic seen for an id the host hasn't instructed yet (spec §4.3).
func (m *Manager) HandlePeerMessage(sender crypto.Account, msg wire.PeerMessage) ([]OutboundMessage, *Outcome, error) {
	cd, exists := m.ceremonies[msg.CeremonyID]
	if !exists {
		// Unauthorized placeholder: participants are unknown until Start
		// arrives, so admission of unknowns is deferred to Admit's
		// membership check once authorized.
		cd = &ceremonyData{
			id:                  msg.CeremonyID,
			state:               ceremony.New(nil, m.own, finalStage, ceremony.ModeUnauthorized),
			hashBySender:        map[crypto.Account][32]byte{},
			constantBySender:    map[crypto.Account][]byte{},
			commitmentsBySender: map[crypto.Account][][]byte{},
		}
		m.ceremonies[msg.CeremonyID] = cd
	}

	var payload any
	var err error
	switch msg.Stage {
	case wire.StageKeygenBroadcast:
		payload, err = wire.DecodeKeygenBroadcast(msg.Payload)
	case wire.StageKeygenReveal:
		payload, err = wire.DecodeKeygenReveal(msg.Payload)
	default:
		err = fmt.Errorf("keygen: unknown stage %d", msg.Stage)
	}
	if err != nil {
		cd.state.Blame(ceremony.BlameMalformed, sender)
		logx.Printf("keygen: malformed stage %d payload from %x: %v", msg.Stage, sender, err)
		return nil, nil, nil
	}

	if cd.state.Mode == ceremony.ModeUnauthorized {
		cd.state.Admit(ceremony.Message{Sender: sender, Stage: int(msg.Stage), Payload: payload})
		return nil, nil, nil
	}

	out := cd.state.Admit(ceremony.Message{Sender: sender, Stage: int(msg.Stage), Payload: payload})
	m.applyAdmitOutcome(cd, out)

	moreOut, outcome, err := m.checkStageCompletion(cd)
	if err != nil {
		return nil, nil, err
	}
	return moreOut, outcome, nil
}

func (m *Manager) selfAdmit(cd *ceremonyData, stage int, payload any) {
	out := cd.state.Admit(ceremony.Message{Sender: m.own, Stage: stage, Payload: payload})
	m.applyAdmitOutcome(cd, out)
}

func (m *Manager) applyAdmitOutcomes(cd *ceremonyData, outs []ceremony.AdmitOutcome) {
	for _, o := range outs {
		m.applyAdmitOutcome(cd, o)
	}
}

func (m *Manager) applyAdmitOutcome(cd *ceremonyData, out ceremony.AdmitOutcome) {
	if out.Accepted {
		cd.state.Arm(time.Now(), m.timeout)
		return
	}
	if out.Blame != 0 {
		cd.state.Blame(out.Blame, out.Message.Sender)
		logx.Printf("keygen: blaming %x (%s)", out.Message.Sender, out.Blame)
	}
}

// checkStageCompletion validates and advances the ceremony once every
// participant has contributed to the current stage (spec §4.3, stage
// advancement), returning any outbound messages the advance produces and,
// on the final stage, the ceremony's terminal outcome.
func (m *Manager) checkStageCompletion(cd *ceremonyData) ([]OutboundMessage, *Outcome, error) {
	if !cd.state.StageComplete() {
		return nil, nil, nil
	}

	switch cd.state.Stage {
	case stageBroadcast:
		return m.completeStage1(cd)
	case stageReveal:
		return m.completeStage2(cd)
	default:
		return nil, nil, fmt.Errorf("keygen: stage complete at unexpected stage %d", cd.state.Stage)
	}
}

func (m *Manager) completeStage1(cd *ceremonyData) ([]OutboundMessage, *Outcome, error) {
	for _, msg := range cd.state.StageMessages() {
		bc := msg.Payload.(wire.KeygenBroadcast)
		cd.hashBySender[msg.Sender] = bc.CommitmentHash
		cd.constantBySender[msg.Sender] = bc.ConstantPoint
	}

	drained := cd.state.Advance()

	var out []OutboundMessage
	for _, p := range cd.state.Participants {
		if p == m.own {
			continue
		}
		idx := crypto.IndexOf(cd.state.Participants, p) + 1
		share, err := cd.poly.Evaluate(m.scheme, idx)
		if err != nil {
			return nil, nil, fmt.Errorf("keygen: evaluating share for %x: %w", p, err)
		}
		payload := wire.KeygenReveal{Commitments: cd.ownCommitments, Share: share}
		out = append(out, OutboundMessage{To: p, Message: wire.PeerMessage{
			Kind:       wire.KindKeygen,
			ChainTag:   m.scheme.ChainTag(),
			CeremonyID: cd.id,
			Stage:      wire.StageKeygenReveal,
			Payload:    payload.Encode(),
		}})
	}

	ownIdx := cd.state.OwnIndex()
	ownShare, err := cd.poly.Evaluate(m.scheme, ownIdx)
	if err != nil {
		return nil, nil, fmt.Errorf("keygen: evaluating own share: %w", err)
	}
	m.selfAdmit(cd, stageReveal, wire.KeygenReveal{Commitments: cd.ownCommitments, Share: ownShare})

	m.applyAdmitOutcomes(cd, drained)

	moreOut, stageOutcome, err := m.checkStageCompletion(cd)
	if err != nil {
		return nil, nil, err
	}
	out = append(out, moreOut...)
	return out, stageOutcome, nil
}

// completeStage2 verifies every reveal against its stage-1 hash commitment
// and constant point, then the directed share against the revealed
// commitments at our own index. Specific culprits are identified by algebra;
// those are the only ones blamed (spec §4.4, failures).
func (m *Manager) completeStage2(cd *ceremonyData) ([]OutboundMessage, *Outcome, error) {
	ownIdx := cd.state.OwnIndex()
	var shares [][]byte
	var invalid []crypto.Account

	for _, msg := range cd.state.StageMessages() {
		rv := msg.Payload.(wire.KeygenReveal)
		switch {
		case len(rv.Commitments) != cd.threshold+1:
			invalid = append(invalid, msg.Sender)
		case crypto.CommitmentDigest(rv.Commitments) != cd.hashBySender[msg.Sender]:
			invalid = append(invalid, msg.Sender)
		case !m.scheme.PointEqual(rv.Commitments[0], cd.constantBySender[msg.Sender]):
			invalid = append(invalid, msg.Sender)
		default:
			valid, err := crypto.VerifyShare(m.scheme, rv.Commitments, ownIdx, rv.Share)
			if err != nil || !valid {
				invalid = append(invalid, msg.Sender)
				continue
			}
			cd.commitmentsBySender[msg.Sender] = rv.Commitments
			shares = append(shares, rv.Share)
		}
	}

	if len(invalid) > 0 {
		cd.state.Blame(ceremony.BlameInvalidShare, invalid...)
		return nil, m.finish(cd, m.failureOutcome(cd)), nil
	}

	secretShare, err := crypto.AggregateShare(m.scheme, shares)
	if err != nil {
		return nil, nil, fmt.Errorf("keygen: aggregating share: %w", err)
	}

	vectors := make([][][]byte, 0, len(cd.state.Participants))
	for _, p := range cd.state.Participants {
		vectors = append(vectors, cd.commitmentsBySender[p])
	}
	aggregated, err := crypto.AggregateCommitmentVectors(m.scheme, vectors)
	if err != nil {
		return nil, nil, fmt.Errorf("keygen: aggregating commitments: %w", err)
	}
	groupKey := aggregated[0]

	record := wire.KeyShareRecord{
		KeyID:          crypto.KeyID{Epoch: 0, PublicKey: groupKey},
		ChainTag:       m.scheme.ChainTag(),
		Threshold:      uint16(cd.threshold),
		Participants:   cd.state.Participants,
		OwnIndex:       uint16(ownIdx),
		Commitments:    aggregated,
		SecretShare:    secretShare,
		GroupPublicKey: groupKey,
		CreatedAtUnix:  time.Now().Unix(),
	}

	return nil, m.finish(cd, &Outcome{
		CeremonyID: cd.id,
		Ok: &Success{
			GroupPublicKey: groupKey,
			Record:         record,
		},
	}), nil
}

// finish destroys the ceremony state once its terminal outcome exists
// (spec §3, lifecycles): the polynomial's secret coefficients are zeroized
// and the id is freed.
func (m *Manager) finish(cd *ceremonyData, o *Outcome) *Outcome {
	if cd.poly != nil {
		cd.poly.Zeroize()
	}
	delete(m.ceremonies, cd.id)
	return o
}

func (m *Manager) failureOutcome(cd *ceremonyData) *Outcome {
	kind := cd.state.PrimaryBlameKind()
	return &Outcome{
		CeremonyID: cd.id,
		Err: &ceremony.BlameError{
			Kind:   kind,
			Blamed: cd.state.BlameList(),
		},
	}
}

// Cleanup expires ceremonies whose stage deadline has passed, blaming
// non-responders for the unfinished stage (spec §4.3).
func (m *Manager) Cleanup(now time.Time) []Outcome {
	var outcomes []Outcome
	for _, cd := range m.ceremonies {
		if cd.state.Mode != ceremony.ModeActive || !cd.state.Expired(now) {
			continue
		}
		cd.state.Blame(ceremony.BlameTimeout, cd.state.NonResponders()...)
		outcomes = append(outcomes, *m.finish(cd, m.failureOutcome(cd)))
	}
	return outcomes
}
