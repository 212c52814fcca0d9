package codegen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

// Gift codes are 3 blocks of 4 characters over a 36-symbol alphabet,
// e.g. "7GQK-0MXZ-HB2A". ~4.7e18 possible codes, so collisions are
// vanishingly rare; the retry cap is a hard termination guarantee, not
// something expected to trigger.
const (
	alphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	blockLength = 4
	blockCount  = 3

	DefaultMaxAttempts = 64
)

var ErrCodeSpaceExhausted = errors.New("gift code space exhausted")

// CodeStore answers whether a candidate code is already taken.
type CodeStore interface {
	CardCodeExists(ctx context.Context, code string) (bool, error)
}

// Allocator mints unique gift card codes against a store.
//
// The existence check only narrows the race window; the database unique index
// on the code column is what actually closes it. A lost race surfaces as a
// duplicate-key error on insert, which the caller treats like any other
// transaction failure.
type Allocator struct {
	store       CodeStore
	maxAttempts int
}

func NewAllocator(store CodeStore, maxAttempts int) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{
		store:       store,
		maxAttempts: maxAttempts,
	}
}

// Allocate returns a code not currently present in the store, retrying on
// collision up to the attempt cap.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for i := 0; i < a.maxAttempts; i++ {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}

		exists, err := a.store.CardCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// GenerateCode produces one random candidate in XXXX-XXXX-XXXX form.
func GenerateCode() (string, error) {
	buf := make([]byte, blockLength*blockCount)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	var b strings.Builder
	for i, c := range buf {
		if i > 0 && i%blockLength == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(alphabet[int(c)%len(alphabet)])
	}
	return b.String(), nil
}
