package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rubinvalidator/tss-core/crypto"
	"github.com/rubinvalidator/tss-core/internal/logx"
	"github.com/rubinvalidator/tss-core/keygen"
	"github.com/rubinvalidator/tss-core/signing"
	"github.com/rubinvalidator/tss-core/store"
	"github.com/rubinvalidator/tss-core/wire"
)

// Input is one item on the coordinator's input channel. Exactly one field
// is set; the zero Input is invalid.
type Input struct {
	StartKeygen  *StartKeygenInput
	StartSigning *StartSigningInput
	Peer         *PeerInput
}

// StartKeygenInput carries a "start keygen" instruction (spec §6).
type StartKeygenInput struct {
	ChainTag    crypto.ChainTag
	Instruction keygen.StartInstruction
}

// StartSigningInput carries a "start signing" instruction (spec §6).
type StartSigningInput struct {
	ChainTag crypto.ChainTag
	Request  signing.Request
}

// PeerInput carries one inbound peer message with its transport-attributed
// sender.
type PeerInput struct {
	Sender  crypto.Account
	Message wire.PeerMessage
}

// Run executes the coordinator's single-threaded cooperative loop (spec §5):
// exactly one of {process an instruction, process a peer message, run
// cleanup, deliver an outcome} happens at a time. Run returns on context
// cancellation, a closed input channel, or a fatal error (a store write
// failure — the node must not keep running, spec §7).
//
// Ingress-rejected instructions (bad signer subset, unknown chain tag) are
// not fatal: the error they return is logged by Run, the input is dropped,
// and Run keeps going.
func (c *Coordinator) Run(ctx context.Context, inputs <-chan Input, events chan<- Event, outbound chan<- Outbound, cleanupInterval time.Duration) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	flush := func() error {
		for _, o := range c.DrainOutbound() {
			select {
			case outbound <- o:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, e := range c.DrainEvents() {
			select {
			case events <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Cleanup(time.Now())
			if err := flush(); err != nil {
				return err
			}
		case in, ok := <-inputs:
			if !ok {
				return nil
			}
			if err := c.dispatch(in); err != nil {
				var fatal *store.FatalError
				if errors.As(err, &fatal) {
					return err
				}
				logx.Printf("coordinator: rejected input: %v", err)
			}
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

func (c *Coordinator) dispatch(in Input) error {
	switch {
	case in.StartKeygen != nil:
		return c.StartKeygen(in.StartKeygen.ChainTag, in.StartKeygen.Instruction)
	case in.StartSigning != nil:
		return c.StartSigning(in.StartSigning.ChainTag, in.StartSigning.Request)
	case in.Peer != nil:
		return c.HandlePeerMessage(in.Peer.Sender, in.Peer.Message)
	default:
		return fmt.Errorf("coordinator: empty input")
	}
}
