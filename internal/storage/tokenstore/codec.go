package tokenstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yndnr/tokpool/internal/core/domain"
)

var errNoObject = errors.New("no JSON object delimiters found")

// decodeDocument parses a store document.
// Records with an empty token are dropped and duplicates keep their first
// occurrence, so a hand-edited document still satisfies uniqueness.
func decodeDocument(raw []byte) (*domain.TokenStoreSnapshot, error) {
	var snap domain.TokenStoreSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}

	seen := make(map[domain.Token]struct{}, len(snap.Records))
	kept := snap.Records[:0]
	for _, r := range snap.Records {
		if r.Token == "" {
			continue
		}
		if _, dup := seen[r.Token]; dup {
			continue
		}
		seen[r.Token] = struct{}{}
		kept = append(kept, r)
	}
	snap.Records = kept
	snap.Normalize()
	return &snap, nil
}

// recoverDocument retries decoding on the text between the first '{' and
// the last '}' of raw.
func recoverDocument(raw []byte) (*domain.TokenStoreSnapshot, error) {
	start := bytes.IndexByte(raw, '{')
	end := bytes.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, errNoObject
	}
	snap, err := decodeDocument(raw[start : end+1])
	if err != nil {
		return nil, fmt.Errorf("recover: %w", err)
	}
	return snap, nil
}

func encodeDocument(snap *domain.TokenStoreSnapshot) ([]byte, error) {
	snap.Normalize()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
