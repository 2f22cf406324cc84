package finalization

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/okian/seasonboard/internal/domain/model"
)

// Hash returns the canonical snapshot hash: the hex SHA-256 of
// "itemId:rank:votes" for every row, in the given order, joined by "|".
// Rows must be ordered by rank.
func Hash(rows []model.FinalizedSnapshotRow) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		votes := "0"
		if r.TotalVotes != nil {
			votes = r.TotalVotes.String()
		}
		parts[i] = r.ItemID + ":" + strconv.Itoa(r.FinalRank) + ":" + votes
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
