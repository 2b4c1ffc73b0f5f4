package transfer

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// Transfer keys are 6-digit integers. The span is only 900,000 values, so
// the collision-retry loop has a hard ceiling instead of looping until a
// free key turns up.
const (
	KeyMin = 100000
	KeyMax = 999999

	maxKeyAttempts = 10
)

var keySpan = big.NewInt(KeyMax - KeyMin + 1)

// ExistsFunc reports whether a candidate key is already taken. Supplied by
// the caller; typically backed by the record store.
type ExistsFunc func(ctx context.Context, key int) (bool, error)

// GenerateKey mints a uniformly distributed 6-digit key that the predicate
// reports free. Returns ErrKeyExhausted after maxKeyAttempts collisions.
func GenerateKey(ctx context.Context, exists ExistsFunc) (int, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, keySpan)
		if err != nil {
			return 0, fmt.Errorf("sample transfer key: %w", err)
		}
		key := KeyMin + int(n.Int64())

		taken, err := exists(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("check transfer key %d: %w", key, err)
		}
		if !taken {
			return key, nil
		}
	}
	return 0, ErrKeyExhausted
}
