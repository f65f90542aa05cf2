package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"credchain/crypto"
)

func TestRunKeygenPrintsUsableKeyPair(t *testing.T) {
	var out bytes.Buffer
	if err := runKeygen(&out); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two output lines, got %d", len(lines))
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(lines[0], "private key: "))
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	key, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		t.Fatalf("parse private key: %v", err)
	}

	addrStr := strings.TrimPrefix(lines[1], "address: ")
	decoded, err := crypto.DecodeAddress(addrStr)
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if decoded.Prefix() != crypto.CredPrefix {
		t.Fatalf("unexpected address prefix %q", decoded.Prefix())
	}
	if got := key.PubKey().Address().String(); got != addrStr {
		t.Fatalf("printed address %s does not match key address %s", addrStr, got)
	}
}
