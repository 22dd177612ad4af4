package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/atlas-quant/tradecore/pkg/types"
)

// PlayHash content-hashes a loaded Play's logical definition (spec.md
// §3/§6.3's run_manifest field), so two runs of the identical Play always
// agree on the same hash regardless of process or wall-clock time.
// encoding/json sorts map keys on its own, and every decimal.Decimal
// marshals to its canonical string form (shopspring/decimal's
// MarshalJSON), so this is stable across runs without any bespoke
// canonicalization step.
func PlayHash(play types.Play) (string, error) {
	body, err := json.Marshal(play)
	if err != nil {
		return "", fmt.Errorf("artifacts: marshal play for hashing: %w", err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// RunID derives spec.md §3's `short_hash(play_hash || window || symbol)`:
// identical inputs always produce the identical run_id, across processes
// and across reruns, per the determinism contract (spec.md §4.11).
func RunID(playHash, symbol string, windowStartMs, windowEndMs int64) string {
	body := fmt.Sprintf("%s|%d|%d|%s", playHash, windowStartMs, windowEndMs, symbol)
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])[:16]
}
