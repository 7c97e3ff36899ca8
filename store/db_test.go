package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenFreshStoreHasCurrentSchemaVersionAndNoGenesis(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "store")
	db, err := Open(root, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != CurrentSchemaVersion {
		t.Fatalf("schema version = %d, want %d", v, CurrentSchemaVersion)
	}
	hash, err := db.GenesisHash()
	if err != nil {
		t.Fatalf("GenesisHash: %v", err)
	}
	if hash != nil {
		t.Fatalf("expected no genesis hash, got %x", hash)
	}
}

func TestOpenPinsGenesisHashOnFirstUse(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "store")
	genesis := make([]byte, 32)
	genesis[0] = 0xAA

	db, err := Open(root, genesis)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	db2, err := Open(root, genesis)
	if err != nil {
		t.Fatalf("reopen with same genesis: %v", err)
	}
	defer db2.Close()
	stored, _ := db2.GenesisHash()
	if string(stored) != string(genesis) {
		t.Fatalf("genesis hash not preserved across reopen")
	}
}

func TestOpenRejectsGenesisHashMismatch(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "store")
	a := make([]byte, 32)
	a[0] = 0xAA
	b := make([]byte, 32)
	b[0] = 0xBB

	db, err := Open(root, a)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	_, err = Open(root, b)
	if err == nil {
		t.Fatalf("expected genesis mismatch error")
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected *FatalError, got %T: %v", err, err)
	}
}
