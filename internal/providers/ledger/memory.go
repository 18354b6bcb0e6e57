package ledger

import (
	"context"
	"encoding/hex"
	"strconv"
	"sync"

	"golang.org/x/crypto/sha3"

	"verihire/internal/providers"
)

// MemoryLedger mints sequential token ids and refuses a second token for the
// same candidate, like the relayer contract.
type MemoryLedger struct {
	mu     sync.Mutex
	next   int
	minted map[string]Receipt
}

func NewMemory() *MemoryLedger {
	return &MemoryLedger{next: 1, minted: make(map[string]Receipt)}
}

func (l *MemoryLedger) Mint(_ context.Context, req MintRequest) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.minted[req.CandidateID]; ok {
		return Receipt{}, providers.NewError(providers.CategoryRejected, providerName, "candidate already has a token", nil)
	}
	// Keccak-256 keeps tx hashes shaped like the chain's.
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(req.CandidateID + ":" + req.Hash + ":" + strconv.Itoa(l.next)))
	receipt := Receipt{
		TokenID: strconv.Itoa(l.next),
		TxHash:  "0x" + hex.EncodeToString(h.Sum(nil)),
	}
	l.next++
	l.minted[req.CandidateID] = receipt
	return receipt, nil
}

// Count returns how many tokens were minted.
func (l *MemoryLedger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.minted)
}
