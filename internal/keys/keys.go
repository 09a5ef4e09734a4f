// Package keys holds the console's signing identity. Hand-authored
// EVENT drafts can be signed into valid NIP-01 events before sending;
// the connection core itself still transmits payloads unvalidated.
package keys

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Identity is a secp256k1 keypair used to sign drafted events.
type Identity struct {
	priv   *btcec.PrivateKey
	pubHex string
}

// Event is a signed NIP-01 event, ready to be wrapped in an
// ["EVENT", ...] message.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Generate creates a fresh random identity.
func Generate() (*Identity, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return newIdentity(priv), nil
}

// Parse accepts a secret key as 64 hex characters or as an nsec string.
func Parse(secret string) (*Identity, error) {
	secret = strings.TrimSpace(secret)
	if strings.HasPrefix(secret, "nsec1") {
		hrp, data, err := bech32Decode(secret)
		if err != nil {
			return nil, fmt.Errorf("invalid nsec: %w", err)
		}
		if hrp != "nsec" || len(data) != 32 {
			return nil, errors.New("invalid nsec payload")
		}
		priv, _ := btcec.PrivKeyFromBytes(data)
		return newIdentity(priv), nil
	}

	raw, err := hex.DecodeString(secret)
	if err != nil || len(raw) != 32 {
		return nil, errors.New("secret key must be 64 hex characters or nsec")
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return newIdentity(priv), nil
}

func newIdentity(priv *btcec.PrivateKey) *Identity {
	// x-only pubkey: compressed form without the parity prefix byte
	pub := priv.PubKey().SerializeCompressed()[1:]
	return &Identity{priv: priv, pubHex: hex.EncodeToString(pub)}
}

// PublicKeyHex returns the 32-byte x-only public key as hex.
func (id *Identity) PublicKeyHex() string {
	return id.pubHex
}

// Npub returns the NIP-19 encoding of the public key.
func (id *Identity) Npub() (string, error) {
	raw, _ := hex.DecodeString(id.pubHex)
	return bech32Encode("npub", raw)
}

// Nsec returns the NIP-19 encoding of the secret key.
func (id *Identity) Nsec() (string, error) {
	return bech32Encode("nsec", id.priv.Serialize())
}

// Sign builds a complete event from a draft: computes the NIP-01 id over
// the canonical serialization and attaches a Schnorr signature.
func (id *Identity) Sign(kind int, tags [][]string, content string, createdAt time.Time) (Event, error) {
	if tags == nil {
		tags = [][]string{}
	}
	ev := Event{
		PubKey:    id.pubHex,
		CreatedAt: createdAt.Unix(),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}

	serialized, err := serializeEvent(ev)
	if err != nil {
		return Event{}, err
	}
	hash := sha256.Sum256(serialized)
	ev.ID = hex.EncodeToString(hash[:])

	sig, err := schnorr.Sign(id.priv, hash[:])
	if err != nil {
		return Event{}, fmt.Errorf("signing event: %w", err)
	}
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return ev, nil
}

// Verify checks an event's Schnorr signature against its id and pubkey.
func Verify(ev Event) bool {
	idBytes, err := hex.DecodeString(ev.ID)
	if err != nil || len(idBytes) != 32 {
		return false
	}
	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	pubBytes, err := hex.DecodeString(ev.PubKey)
	if err != nil {
		return false
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	return sig.Verify(idBytes, pub)
}

// serializeEvent produces the canonical [0, pubkey, created_at, kind,
// tags, content] array. Relays hash the unescaped JSON, so HTML escaping
// must stay off.
func serializeEvent(ev Event) ([]byte, error) {
	arr := []any{0, ev.PubKey, ev.CreatedAt, ev.Kind, ev.Tags, ev.Content}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(arr); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
