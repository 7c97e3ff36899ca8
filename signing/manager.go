// Package signing drives threshold Schnorr signing ceremonies: commitment
// stage, response stage, aggregation, signer-subset enforcement, and the
// pending-sign queue for requests whose key is not yet locally known
// (spec §4.5).
package signing

import (
	"fmt"
	"time"

	"github.com/rubinvalidator/tss-core/ceremony"
	"github.com/rubinvalidator/tss-core/crypto"
	"github.com/rubinvalidator/tss-core/internal/logx"
	"github.com/rubinvalidator/tss-core/wire"
)

const (
	stageCommitment = int(wire.StageSigningCommitment)
	stageResponse   = int(wire.StageSigningResponse)
	finalStage      = stageResponse
)

// Request is a request-to-sign from the chain observer: the message hash and
// the signing info naming the key and the exact signer subset (spec §4.5,
// §6). The same (message hash, key id) may be requested repeatedly; each
// request is an independent ceremony with its own id — there is no implicit
// dedup (spec §4.5, policies).
type Request struct {
	CeremonyID  wire.CeremonyID
	MessageHash [32]byte
	KeyID       crypto.KeyID
	Signers     []crypto.Account
}

// Success is the payload of a successful signing outcome.
type Success struct {
	Signature crypto.Signature
}

// Outcome is emitted at most once per ceremony id (spec §5), keyed outward
// by (message hash, key id) per spec §6.
type Outcome struct {
	CeremonyID  wire.CeremonyID
	MessageHash [32]byte
	KeyID       crypto.KeyID
	Ok          *Success
	Err         *ceremony.BlameError
}

// OutboundMessage is a message this party must send. Signing messages are
// all broadcast to the other subset members, so To is always zero; the field
// mirrors keygen's OutboundMessage so the coordinator routes both uniformly.
type OutboundMessage struct {
	To      crypto.Account
	Message wire.PeerMessage
}

type ceremonyData struct {
	id    wire.CeremonyID
	state *ceremony.State
	req   Request

	record    wire.KeyShareRecord
	nonce     []byte // zeroized the moment the response share is produced
	challenge []byte
	groupR    []byte
}

type pendingRequest struct {
	req      Request
	deadline time.Time
}

// Manager drives signing ceremonies for one scheme/chain tag (spec §4.5).
type Manager struct {
	scheme  crypto.Scheme
	own     crypto.Account
	timeout time.Duration

	ceremonies map[wire.CeremonyID]*ceremonyData
	shares     map[string]wire.KeyShareRecord // keyed by KeyID.Encode()
	pending    map[string][]pendingRequest    // arrival order preserved per key id
}

// NewManager constructs a signing manager bound to one chain's Scheme.
func NewManager(scheme crypto.Scheme, own crypto.Account, timeout time.Duration) *Manager {
	return &Manager{
		scheme:     scheme,
		own:        own,
		timeout:    timeout,
		ceremonies: map[wire.CeremonyID]*ceremonyData{},
		shares:     map[string]wire.KeyShareRecord{},
		pending:    map[string][]pendingRequest{},
	}
}

// RegisterKeyShare makes a key share available for signing without draining
// any pending requests. The coordinator calls this for every record loaded
// from the store at startup (spec §4.6).
func (m *Manager) RegisterKeyShare(record wire.KeyShareRecord) {
	m.shares[string(record.KeyID.Encode())] = record
}

// Start begins a signing ceremony, or parks the request in the pending-sign
// queue if its key is not yet locally known (spec §4.5). Precondition
// violations on a known key — subset too small, subset not within the key's
// participants, self not in the subset, duplicate subset entries — reject
// the request at ingress with an error, not a blame outcome: they are host
// mistakes, not peer faults.
func (m *Manager) Start(req Request) ([]OutboundMessage, *Outcome, error) {
	record, known := m.shares[string(req.KeyID.Encode())]
	if !known {
		key := string(req.KeyID.Encode())
		m.pending[key] = append(m.pending[key], pendingRequest{
			req:      req,
			deadline: time.Now().Add(m.timeout),
		})
		logx.Printf("signing: parking request %x until key %x materializes", req.CeremonyID, req.KeyID.Encode())
		return nil, nil, nil
	}
	return m.startWithRecord(req, record)
}

func (m *Manager) startWithRecord(req Request, record wire.KeyShareRecord) ([]OutboundMessage, *Outcome, error) {
	if err := validateSubset(req, record, m.own); err != nil {
		return nil, nil, err
	}

	cd, exists := m.ceremonies[req.CeremonyID]
	if exists && cd.state.Mode == ceremony.ModeActive {
		return nil, nil, fmt.Errorf("signing: ceremony %x already active", req.CeremonyID)
	}

	var drained []ceremony.AdmitOutcome
	if exists {
		drained = cd.state.Authorize(req.Signers)
		cd.req = req
		cd.record = record
	} else {
		st := ceremony.New(req.Signers, m.own, finalStage, ceremony.ModeActive)
		cd = &ceremonyData{id: req.CeremonyID, state: st, req: req, record: record}
		m.ceremonies[req.CeremonyID] = cd
	}

	commit, err := crypto.GenerateCommitmentShare(m.scheme)
	if err != nil {
		return nil, nil, fmt.Errorf("signing: sampling nonce: %w", err)
	}
	cd.nonce = commit.Nonce

	payload := wire.SigningCommitment{Commitment: commit.Commitment}
	out := []OutboundMessage{{Message: wire.PeerMessage{
		Kind:       wire.KindSigning,
		ChainTag:   m.scheme.ChainTag(),
		CeremonyID: req.CeremonyID,
		Stage:      wire.StageSigningCommitment,
		Payload:    payload.Encode(),
	}}}

	m.selfAdmit(cd, stageCommitment, payload)
	m.applyAdmitOutcomes(cd, drained)

	moreOut, outcome, err := m.checkStageCompletion(cd)
	if err != nil {
		return nil, nil, err
	}
	out = append(out, moreOut...)
	return out, outcome, nil
}

// validateSubset enforces the request preconditions of spec §4.5: size at
// least t+1, subset within the key's participant set, self included, and no
// duplicate entries (the subset arrives as a sequence, so uniqueness must be
// enforced here — spec §9, open questions).
func validateSubset(req Request, record wire.KeyShareRecord, own crypto.Account) error {
	seen := map[crypto.Account]struct{}{}
	for _, s := range req.Signers {
		if _, dup := seen[s]; dup {
			return fmt.Errorf("signing: duplicate signer %x in subset", s)
		}
		seen[s] = struct{}{}
		if !crypto.Contains(record.Participants, s) {
			return fmt.Errorf("signing: signer %x is not a participant of key %x", s, record.KeyID.Encode())
		}
	}
	if len(req.Signers) < int(record.Threshold)+1 {
		return fmt.Errorf("signing: subset size %d below threshold+1 = %d", len(req.Signers), record.Threshold+1)
	}
	if _, ok := seen[own]; !ok {
		return fmt.Errorf("signing: this party is not in the signer subset")
	}
	return nil
}

// OnKeyGenerated registers a freshly persisted key share and releases every
// pending request parked against its key id, in arrival order (spec §4.5).
func (m *Manager) OnKeyGenerated(record wire.KeyShareRecord) ([]OutboundMessage, []Outcome, error) {
	m.RegisterKeyShare(record)

	key := string(record.KeyID.Encode())
	parked := m.pending[key]
	if len(parked) == 0 {
		return nil, nil, nil
	}
	delete(m.pending, key)

	var out []OutboundMessage
	var outcomes []Outcome
	for _, p := range parked {
		moreOut, outcome, err := m.startWithRecord(p.req, record)
		if err != nil {
			// A parked request that fails its preconditions against the
			// materialized key is dropped with a log line; it was never a
			// live ceremony and has no peers to blame.
			logx.Printf("signing: dropping parked request %x: %v", p.req.CeremonyID, err)
			continue
		}
		out = append(out, moreOut...)
		if outcome != nil {
			outcomes = append(outcomes, *outcome)
		}
	}
	return out, outcomes, nil
}

// HandlePeerMessage admits one inbound wire message into the named
// ceremony, creating an unauthorized placeholder if this is the first
// traffic seen for an id the host hasn't requested yet (spec §4.3).
func (m *Manager) HandlePeerMessage(sender crypto.Account, msg wire.PeerMessage) ([]OutboundMessage, *Outcome, error) {
	cd, exists := m.ceremonies[msg.CeremonyID]
	if !exists {
		cd = &ceremonyData{
			id:    msg.CeremonyID,
			state: ceremony.New(nil, m.own, finalStage, ceremony.ModeUnauthorized),
		}
		m.ceremonies[msg.CeremonyID] = cd
	}

	var payload any
	var err error
	switch msg.Stage {
	case wire.StageSigningCommitment:
		payload, err = wire.DecodeSigningCommitment(msg.Payload)
	case wire.StageSigningResponse:
		payload, err = wire.DecodeSigningResponse(msg.Payload)
	default:
		err = fmt.Errorf("signing: unknown stage %d", msg.Stage)
	}
	if err != nil {
		cd.state.Blame(ceremony.BlameMalformed, sender)
		logx.Printf("signing: malformed stage %d payload from %x: %v", msg.Stage, sender, err)
		return nil, nil, nil
	}

	if cd.state.Mode == ceremony.ModeUnauthorized {
		cd.state.Admit(ceremony.Message{Sender: sender, Stage: int(msg.Stage), Payload: payload})
		return nil, nil, nil
	}

	out := cd.state.Admit(ceremony.Message{Sender: sender, Stage: int(msg.Stage), Payload: payload})
	m.applyAdmitOutcome(cd, out)

	return m.checkStageCompletion(cd)
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
		logx.Printf("signing: blaming %x (%s)", out.Message.Sender, out.Blame)
	}
}

func (m *Manager) checkStageCompletion(cd *ceremonyData) ([]OutboundMessage, *Outcome, error) {
	if !cd.state.StageComplete() {
		return nil, nil, nil
	}

	switch cd.state.Stage {
	case stageCommitment:
		return m.completeCommitmentStage(cd)
	case stageResponse:
		return m.completeResponseStage(cd)
	default:
		return nil, nil, fmt.Errorf("signing: stage complete at unexpected stage %d", cd.state.Stage)
	}
}

// completeCommitmentStage aggregates the joint commitment R, derives the
// challenge c = H(R, Y, m), computes this signer's response share
// s_i = k_i + c*lambda_i*x_i, and destroys the nonce immediately after
// (spec §4.5: nonces are destroyed as soon as s_i is produced).
func (m *Manager) completeCommitmentStage(cd *ceremonyData) ([]OutboundMessage, *Outcome, error) {
	commitments := make([][]byte, 0, len(cd.state.Participants))
	for _, msg := range cd.state.StageMessages() {
		commitments = append(commitments, msg.Payload.(wire.SigningCommitment).Commitment)
	}

	groupR, err := crypto.AggregateCommitments(m.scheme, commitments)
	if err != nil {
		return nil, nil, fmt.Errorf("signing: aggregating commitments: %w", err)
	}
	cd.groupR = groupR

	challenge, err := m.scheme.Challenge(groupR, cd.record.GroupPublicKey, cd.req.MessageHash[:])
	if err != nil {
		return nil, nil, fmt.Errorf("signing: computing challenge: %w", err)
	}
	cd.challenge = challenge

	lambda, err := m.scheme.Lagrange(m.keyIndexOf(cd, m.own), m.subsetKeyIndices(cd))
	if err != nil {
		return nil, nil, fmt.Errorf("signing: own lagrange coefficient: %w", err)
	}
	response, err := crypto.ComputeResponseShare(m.scheme, cd.nonce, challenge, lambda, cd.record.SecretShare)
	if err != nil {
		return nil, nil, fmt.Errorf("signing: computing response share: %w", err)
	}
	crypto.Zeroize(cd.nonce)
	cd.nonce = nil

	drained := cd.state.Advance()

	payload := wire.SigningResponse{Response: response}
	out := []OutboundMessage{{Message: wire.PeerMessage{
		Kind:       wire.KindSigning,
		ChainTag:   m.scheme.ChainTag(),
		CeremonyID: cd.id,
		Stage:      wire.StageSigningResponse,
		Payload:    payload.Encode(),
	}}}

	m.selfAdmit(cd, stageResponse, payload)
	m.applyAdmitOutcomes(cd, drained)

	moreOut, outcome, err := m.checkStageCompletion(cd)
	if err != nil {
		return nil, nil, err
	}
	out = append(out, moreOut...)
	return out, outcome, nil
}

// completeResponseStage verifies every signer's response share against its
// own commitment and public key share — g^{s_j} == R_j + (c*lambda_j)*Y_j,
// with Y_j recovered from the stored aggregated commitments — then sums the
// shares into the aggregate signature (spec §4.5). Failing signers are
// blamed by algebra; no one else.
func (m *Manager) completeResponseStage(cd *ceremonyData) ([]OutboundMessage, *Outcome, error) {
	subsetIndices := m.subsetKeyIndices(cd)

	commitmentBySender := map[crypto.Account][]byte{}
	for _, msg := range cd.state.MessagesAt(stageCommitment) {
		commitmentBySender[msg.Sender] = msg.Payload.(wire.SigningCommitment).Commitment
	}

	var responses [][]byte
	var invalid []crypto.Account
	for _, msg := range cd.state.StageMessages() {
		resp := msg.Payload.(wire.SigningResponse).Response
		idx := m.keyIndexOf(cd, msg.Sender)
		lambda, err := m.scheme.Lagrange(idx, subsetIndices)
		if err != nil {
			return nil, nil, fmt.Errorf("signing: lagrange for %x: %w", msg.Sender, err)
		}
		pubShare, err := crypto.EvaluateCommitments(m.scheme, cd.record.Commitments, idx)
		if err != nil {
			return nil, nil, fmt.Errorf("signing: public share for %x: %w", msg.Sender, err)
		}
		valid, err := crypto.VerifyResponseShare(m.scheme, commitmentBySender[msg.Sender], resp, cd.challenge, lambda, pubShare)
		if err != nil || !valid {
			invalid = append(invalid, msg.Sender)
			continue
		}
		responses = append(responses, resp)
	}

	if len(invalid) > 0 {
		cd.state.Blame(ceremony.BlameInvalidShare, invalid...)
		return nil, m.finish(cd, m.failureOutcome(cd)), nil
	}

	s, err := crypto.AggregateResponses(m.scheme, responses)
	if err != nil {
		return nil, nil, fmt.Errorf("signing: aggregating responses: %w", err)
	}
	sig := crypto.Signature{R: cd.groupR, S: s}

	return nil, m.finish(cd, &Outcome{
		CeremonyID:  cd.id,
		MessageHash: cd.req.MessageHash,
		KeyID:       cd.req.KeyID,
		Ok:          &Success{Signature: sig},
	}), nil
}

// keyIndexOf returns a signer's 1-based party index in the key's full
// participant ordering — the index its share was dealt at during keygen,
// which Lagrange coefficients and public-share recovery must use (spec §4.4:
// the sorted participant list is the single source of truth for party
// indexing).
func (m *Manager) keyIndexOf(cd *ceremonyData, account crypto.Account) int {
	return crypto.IndexOf(cd.record.Participants, account) + 1
}

func (m *Manager) subsetKeyIndices(cd *ceremonyData) []int {
	out := make([]int, 0, len(cd.state.Participants))
	for _, s := range cd.state.Participants {
		out = append(out, m.keyIndexOf(cd, s))
	}
	return out
}

// finish destroys the ceremony state once its terminal outcome exists
// (spec §3, lifecycles), zeroizing any nonce still held.
func (m *Manager) finish(cd *ceremonyData, o *Outcome) *Outcome {
	if cd.nonce != nil {
		crypto.Zeroize(cd.nonce)
		cd.nonce = nil
	}
	delete(m.ceremonies, cd.id)
	return o
}

func (m *Manager) failureOutcome(cd *ceremonyData) *Outcome {
	return &Outcome{
		CeremonyID:  cd.id,
		MessageHash: cd.req.MessageHash,
		KeyID:       cd.req.KeyID,
		Err: &ceremony.BlameError{
			Kind:   cd.state.PrimaryBlameKind(),
			Blamed: cd.state.BlameList(),
		},
	}
}

// Cleanup expires ceremonies whose stage deadline has passed, blaming
// non-responders (spec §4.3), and expires pending requests whose key never
// materialized — those fail with a timeout outcome and an empty blame list,
// since no peer is at fault for a key that doesn't exist (spec §7,
// pending-request expiry).
func (m *Manager) Cleanup(now time.Time) []Outcome {
	var outcomes []Outcome
	for _, cd := range m.ceremonies {
		if cd.state.Mode != ceremony.ModeActive || !cd.state.Expired(now) {
			continue
		}
		cd.state.Blame(ceremony.BlameTimeout, cd.state.NonResponders()...)
		outcomes = append(outcomes, *m.finish(cd, m.failureOutcome(cd)))
	}

	for key, parked := range m.pending {
		var kept []pendingRequest
		for _, p := range parked {
			if now.After(p.deadline) {
				outcomes = append(outcomes, Outcome{
					CeremonyID:  p.req.CeremonyID,
					MessageHash: p.req.MessageHash,
					KeyID:       p.req.KeyID,
					Err:         &ceremony.BlameError{Kind: ceremony.BlameTimeout},
				})
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == 0 {
			delete(m.pending, key)
		} else {
			m.pending[key] = kept
		}
	}
	return outcomes
}

// PendingCount reports how many requests are parked awaiting key
// materialization, across all key ids.
func (m *Manager) PendingCount() int {
	n := 0
	for _, parked := range m.pending {
		n += len(parked)
	}
	return n
}
