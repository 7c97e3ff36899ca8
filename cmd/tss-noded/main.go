// tss-noded is the multisig core's entrypoint and operator tooling: the
// coordinator loop, read-only store inspection, and cold-backup export and
// import of key shares wrapped under an operator-supplied KEK.
package main

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rubinvalidator/tss-core/config"
	"github.com/rubinvalidator/tss-core/coordinator"
	"github.com/rubinvalidator/tss-core/crypto"
	"github.com/rubinvalidator/tss-core/store"
	"github.com/rubinvalidator/tss-core/wire"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "run":
		return runNode(args[1:], stdout, stderr)
	case "inspect-store":
		return inspectStore(args[1:], stdout, stderr)
	case "export-share":
		return exportShare(args[1:], stdout, stderr)
	case "import-share":
		return importShare(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown subcommand %q\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tss-noded <run|inspect-store|export-share|import-share> [flags]")
}

func defaultSchemes() []crypto.Scheme {
	return []crypto.Scheme{
		crypto.Adapt(crypto.NewSecp256k1Suite(crypto.ChainTagSecp256k1Devnet)),
		crypto.Adapt(crypto.NewBLS12381Suite(crypto.ChainTagBLS12381Devnet)),
	}
}

func runNode(args []string, stdout, stderr io.Writer) int {
	defaults := config.Default()
	cfg := defaults

	fs := flag.NewFlagSet("tss-noded run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.DBPath, "db", defaults.DBPath, "key store directory")
	genesisHex := fs.String("genesis-hash", "", "hex-encoded 32-byte genesis hash")
	fs.DurationVar(&cfg.PhaseTimeout, "phase-timeout", defaults.PhaseTimeout, "per-stage ceremony timeout")
	fs.DurationVar(&cfg.CleanupInterval, "cleanup-interval", defaults.CleanupInterval, "ceremony expiry pass interval")
	accountHex := fs.String("account", "", "hex-encoded 32-byte validator account id")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	genesis, err := config.ParseGenesisHash(*genesisHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	cfg.GenesisHash = genesis
	if err := config.Validate(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	own, err := parseAccount(*accountHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	db, err := store.Open(cfg.DBPath, cfg.GenesisHash)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "opening key store: %v\n", err)
		return 1
	}
	defer db.Close()

	coord, err := coordinator.New(db, own, defaultSchemes(), cfg.PhaseTimeout)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "starting coordinator: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The transport and chain observer attach to these channels in the full
	// node; standalone, the loop runs cleanup and waits for a signal.
	inputs := make(chan coordinator.Input)
	events := make(chan coordinator.Event, 64)
	outbound := make(chan coordinator.Outbound, 64)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				_, _ = fmt.Fprintf(stdout, "event: chain=%s keygen=%v signing=%v\n", ev.ChainTag, ev.Keygen != nil, ev.Signing != nil)
			case <-outbound:
			}
		}
	}()

	_, _ = fmt.Fprintln(stdout, "tss-noded: coordinator running")
	err = coord.Run(ctx, inputs, events, outbound, cfg.CleanupInterval)
	if err != nil && !errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintf(stderr, "coordinator stopped: %v\n", err)
		return 1
	}
	return 0
}

func inspectStore(args []string, stdout, stderr io.Writer) int {
	defaults := config.Default()
	fs := flag.NewFlagSet("tss-noded inspect-store", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", defaults.DBPath, "key store directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	db, err := store.Open(*dbPath, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "opening key store: %v\n", err)
		return 1
	}
	defer db.Close()

	version, err := db.SchemaVersion()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "reading schema version: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "schema version: %d\n", version)

	for _, scheme := range defaultSchemes() {
		tag := scheme.ChainTag()
		records, err := db.LoadKeySharesForChainTag(tag)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "loading shares for %s: %v\n", tag, err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "chain %s: %d key share(s)\n", tag, len(records))
		for _, r := range records {
			_, _ = fmt.Fprintf(stdout, "  key %x threshold=%d participants=%d\n", r.KeyID.Encode(), r.Threshold, len(r.Participants))
		}
		if cp, found, err := db.GetCheckpoint(tag); err == nil && found {
			_, _ = fmt.Fprintf(stdout, "chain %s: checkpoint block=%d event=%d\n", tag, cp.Block, cp.EventIndex)
		}
	}
	return 0
}

func exportShare(args []string, stdout, stderr io.Writer) int {
	defaults := config.Default()
	fs := flag.NewFlagSet("tss-noded export-share", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", defaults.DBPath, "key store directory")
	chainHex := fs.String("chain", "", "hex-encoded 2-byte chain tag")
	keyHex := fs.String("key", "", "hex-encoded key id (4-byte epoch || public key)")
	kekHex := fs.String("kek", "", "hex-encoded 32-byte key-encryption key")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	tag, err := parseChainTag(*chainHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	keyIDBytes, err := hex.DecodeString(strings.TrimPrefix(*keyHex, "0x"))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid key id hex: %v\n", err)
		return 2
	}
	kek, err := parseKEK(*kekHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	db, err := store.Open(*dbPath, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "opening key store: %v\n", err)
		return 1
	}
	defer db.Close()

	records, err := db.LoadKeySharesForChainTag(tag)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "loading shares: %v\n", err)
		return 1
	}
	for _, r := range records {
		if hex.EncodeToString(r.KeyID.Encode()) != hex.EncodeToString(keyIDBytes) {
			continue
		}
		wrapped, err := crypto.AESKeyWrapRFC3394(kek, padRecord(wire.EncodeKeyShareRecord(r)))
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "wrapping share: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(stdout, hex.EncodeToString(wrapped))
		return 0
	}
	_, _ = fmt.Fprintf(stderr, "no key share %x under chain %s\n", keyIDBytes, tag)
	return 1
}

func importShare(args []string, stdout, stderr io.Writer) int {
	defaults := config.Default()
	fs := flag.NewFlagSet("tss-noded import-share", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", defaults.DBPath, "key store directory")
	kekHex := fs.String("kek", "", "hex-encoded 32-byte key-encryption key")
	blobHex := fs.String("blob", "", "hex-encoded wrapped share from export-share")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	kek, err := parseKEK(*kekHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	wrapped, err := hex.DecodeString(strings.TrimSpace(*blobHex))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid blob hex: %v\n", err)
		return 2
	}

	padded, err := crypto.AESKeyUnwrapRFC3394(kek, wrapped)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "unwrapping share: %v\n", err)
		return 1
	}
	encoded, err := unpadRecord(padded)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "unwrapping share: %v\n", err)
		return 1
	}
	record, err := wire.DecodeKeyShareRecord(encoded)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "decoding share: %v\n", err)
		return 1
	}

	db, err := store.Open(*dbPath, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "opening key store: %v\n", err)
		return 1
	}
	defer db.Close()

	if err := db.PutKeyShare(record); err != nil {
		_, _ = fmt.Fprintf(stderr, "storing share: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "imported key %x for chain %s\n", record.KeyID.Encode(), record.ChainTag)
	return 0
}

// padRecord length-frames and zero-pads an encoded record to the 8-byte
// multiple AES-KW requires.
func padRecord(b []byte) []byte {
	out := make([]byte, 4, 4+len(b)+8)
	binary.BigEndian.PutUint32(out, uint32(len(b)))
	out = append(out, b...)
	for len(out) < 16 || len(out)%8 != 0 {
		out = append(out, 0x00)
	}
	return out
}

func unpadRecord(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("wrapped payload too short")
	}
	n := binary.BigEndian.Uint32(b[:4])
	if uint64(len(b)-4) < uint64(n) {
		return nil, fmt.Errorf("wrapped payload truncated")
	}
	return b[4 : 4+n], nil
}

func parseAccount(raw string) (crypto.Account, error) {
	var a crypto.Account
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return a, fmt.Errorf("account id is not valid hex: %w", err)
	}
	if len(b) != 32 {
		return a, fmt.Errorf("account id must be 32 bytes, got %d", len(b))
	}
	copy(a[:], b)
	return a, nil
}

func parseChainTag(raw string) (crypto.ChainTag, error) {
	var t crypto.ChainTag
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil || len(b) != 2 {
		return t, fmt.Errorf("chain tag must be 2 hex bytes")
	}
	t[0], t[1] = b[0], b[1]
	return t, nil
}

func parseKEK(raw string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("kek is not valid hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("kek must be 32 bytes (AES-256), got %d", len(b))
	}
	return b, nil
}
