// Package coordinator is the multisig subsystem's single external surface
// (spec §4.6): it owns the key store handle and one keygen/signing manager
// pair per supported chain, routes instructions and inbound peer messages,
// persists completed keys before announcing them, and runs the periodic
// cleanup pass.
package coordinator

import (
	"fmt"
	"time"

	"github.com/rubinvalidator/tss-core/crypto"
	"github.com/rubinvalidator/tss-core/internal/logx"
	"github.com/rubinvalidator/tss-core/keygen"
	"github.com/rubinvalidator/tss-core/signing"
	"github.com/rubinvalidator/tss-core/store"
	"github.com/rubinvalidator/tss-core/wire"
)

// Event is a ceremony outcome surfaced to the host (the chain observer).
// Exactly one of Keygen/Signing is set.
type Event struct {
	ChainTag crypto.ChainTag
	Keygen   *keygen.Outcome
	Signing  *signing.Outcome
}

// Outbound is a peer message this validator must transmit. A zero To means
// broadcast to the ceremony's other participants.
type Outbound struct {
	To      crypto.Account
	Message wire.PeerMessage
}

type chainRuntime struct {
	scheme  crypto.Scheme
	keygen  *keygen.Manager
	signing *signing.Manager
}

// Coordinator routes the multisig core's traffic. It is single-threaded by
// contract (spec §5): all methods must be called from one goroutine —
// normally the Run loop — and the coordinator owns no locks.
type Coordinator struct {
	db     *store.DB
	own    crypto.Account
	chains map[crypto.ChainTag]*chainRuntime

	events   []Event
	outbound []Outbound
}

// New constructs a coordinator over an open key store, registering one
// manager pair per scheme and loading every stored key share into the
// signing managers' in-memory index (spec §4.6, startup).
func New(db *store.DB, own crypto.Account, schemes []crypto.Scheme, phaseTimeout time.Duration) (*Coordinator, error) {
	c := &Coordinator{
		db:     db,
		own:    own,
		chains: map[crypto.ChainTag]*chainRuntime{},
	}
	for _, s := range schemes {
		tag := s.ChainTag()
		if _, dup := c.chains[tag]; dup {
			return nil, fmt.Errorf("coordinator: duplicate chain tag %s", tag)
		}
		rt := &chainRuntime{
			scheme:  s,
			keygen:  keygen.NewManager(s, own, phaseTimeout),
			signing: signing.NewManager(s, own, phaseTimeout),
		}
		records, err := db.LoadKeySharesForChainTag(tag)
		if err != nil {
			return nil, fmt.Errorf("coordinator: loading key shares for %s: %w", tag, err)
		}
		for _, r := range records {
			rt.signing.RegisterKeyShare(r)
		}
		c.chains[tag] = rt
	}
	return c, nil
}

func (c *Coordinator) runtime(tag crypto.ChainTag) (*chainRuntime, error) {
	rt, ok := c.chains[tag]
	if !ok {
		return nil, fmt.Errorf("coordinator: no scheme registered for chain tag %s", tag)
	}
	return rt, nil
}

// StartKeygen handles a "start keygen" instruction from the chain observer
// (spec §6).
func (c *Coordinator) StartKeygen(tag crypto.ChainTag, instr keygen.StartInstruction) error {
	rt, err := c.runtime(tag)
	if err != nil {
		return err
	}
	out, outcome, err := rt.keygen.Start(instr)
	if err != nil {
		return err
	}
	c.queueOutbound(out, nil)
	if outcome != nil {
		if err := c.handleKeygenOutcome(rt, *outcome); err != nil {
			return err
		}
	}
	return nil
}

// StartSigning handles a "start signing" instruction from the chain
// observer (spec §6).
func (c *Coordinator) StartSigning(tag crypto.ChainTag, req signing.Request) error {
	rt, err := c.runtime(tag)
	if err != nil {
		return err
	}
	out, outcome, err := rt.signing.Start(req)
	if err != nil {
		return err
	}
	c.queueOutbound(nil, out)
	if outcome != nil {
		c.events = append(c.events, Event{ChainTag: tag, Signing: outcome})
	}
	return nil
}

// HandlePeerMessage routes one inbound wire message to the keygen or
// signing manager of its chain by message-variant discrimination (spec
// §4.6). Messages for an unregistered chain tag are dropped with a log
// line: a peer speaking a chain we don't run is noise, not a routable
// fault.
func (c *Coordinator) HandlePeerMessage(sender crypto.Account, msg wire.PeerMessage) error {
	rt, ok := c.chains[msg.ChainTag]
	if !ok {
		logx.Printf("coordinator: dropping message from %x for unregistered chain tag %s", sender, msg.ChainTag)
		return nil
	}

	switch msg.Kind {
	case wire.KindKeygen:
		out, outcome, err := rt.keygen.HandlePeerMessage(sender, msg)
		if err != nil {
			return err
		}
		c.queueOutbound(out, nil)
		if outcome != nil {
			return c.handleKeygenOutcome(rt, *outcome)
		}
		return nil
	case wire.KindSigning:
		out, outcome, err := rt.signing.HandlePeerMessage(sender, msg)
		if err != nil {
			return err
		}
		c.queueOutbound(nil, out)
		if outcome != nil {
			c.events = append(c.events, Event{ChainTag: msg.ChainTag, Signing: outcome})
		}
		return nil
	default:
		logx.Printf("coordinator: dropping message from %x with unknown kind %d", sender, msg.Kind)
		return nil
	}
}

// handleKeygenOutcome persists a successful keygen's record and releases
// any pending sign requests for the new key, all before the success event
// is surfaced (spec §5: persistence happens-before emission; spec §7: a
// failed persist is fatal).
func (c *Coordinator) handleKeygenOutcome(rt *chainRuntime, outcome keygen.Outcome) error {
	tag := rt.scheme.ChainTag()
	if outcome.Ok == nil {
		c.events = append(c.events, Event{ChainTag: tag, Keygen: &outcome})
		return nil
	}

	if err := c.db.PutKeyShare(outcome.Ok.Record); err != nil {
		return fmt.Errorf("coordinator: persisting keygen result: %w", err)
	}

	released, signOutcomes, err := rt.signing.OnKeyGenerated(outcome.Ok.Record)
	if err != nil {
		return err
	}

	c.events = append(c.events, Event{ChainTag: tag, Keygen: &outcome})
	c.queueOutbound(nil, released)
	for i := range signOutcomes {
		c.events = append(c.events, Event{ChainTag: tag, Signing: &signOutcomes[i]})
	}
	return nil
}

// Cleanup runs the periodic expiry pass on every chain's managers (spec
// §4.6), queuing a failure event per expired ceremony or pending request.
func (c *Coordinator) Cleanup(now time.Time) {
	for tag, rt := range c.chains {
		for _, o := range rt.keygen.Cleanup(now) {
			outcome := o
			c.events = append(c.events, Event{ChainTag: tag, Keygen: &outcome})
		}
		for _, o := range rt.signing.Cleanup(now) {
			outcome := o
			c.events = append(c.events, Event{ChainTag: tag, Signing: &outcome})
		}
	}
}

// DrainEvents returns the ceremony outcomes queued since the last drain,
// in emission order. Each outcome appears exactly once across all drains
// (spec §5, ordering guarantees).
func (c *Coordinator) DrainEvents() []Event {
	out := c.events
	c.events = nil
	return out
}

// DrainOutbound returns the peer messages queued for transmission since the
// last drain.
func (c *Coordinator) DrainOutbound() []Outbound {
	out := c.outbound
	c.outbound = nil
	return out
}

func (c *Coordinator) queueOutbound(kg []keygen.OutboundMessage, sg []signing.OutboundMessage) {
	for _, o := range kg {
		c.outbound = append(c.outbound, Outbound{To: o.To, Message: o.Message})
	}
	for _, o := range sg {
		c.outbound = append(c.outbound, Outbound{To: o.To, Message: o.Message})
	}
}

// ActiveParticipants returns the sorted union of participants across every
// key share loaded for tag: a read-only query the host can use to judge
// whether the current validator set still overlaps the keys it holds.
func (c *Coordinator) ActiveParticipants(tag crypto.ChainTag) ([]crypto.Account, error) {
	records, err := c.db.LoadKeySharesForChainTag(tag)
	if err != nil {
		return nil, err
	}
	seen := map[crypto.Account]struct{}{}
	var out []crypto.Account
	for _, r := range records {
		for _, p := range r.Participants {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return crypto.SortAccounts(out), nil
}

// RecordCheckpoint upserts the witnesser checkpoint for tag, enforcing
// monotonicity: a write that would move the (block, event index) pair
// backwards is rejected (spec §3, §8).
func (c *Coordinator) RecordCheckpoint(tag crypto.ChainTag, rec wire.CheckpointRecord) error {
	existing, found, err := c.db.GetCheckpoint(tag)
	if err != nil {
		return err
	}
	if found && rec.Less(existing) {
		return fmt.Errorf("coordinator: checkpoint regression for %s: (%d,%d) behind stored (%d,%d)",
			tag, rec.Block, rec.EventIndex, existing.Block, existing.EventIndex)
	}
	return c.db.PutCheckpoint(tag, rec)
}

// Checkpoint returns the stored checkpoint for tag, used by a witnesser to
// resume replay after restart (spec §1).
func (c *Coordinator) Checkpoint(tag crypto.ChainTag) (wire.CheckpointRecord, bool, error) {
	return c.db.GetCheckpoint(tag)
}
