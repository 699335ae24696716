package dicegame

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
)

// PreviewPayout calcula o pagamento de uma vitória:
// stake × (10000 − edge) × 100 / (threshold × 10000), divisão inteira.
// Rejeita stakes cujo numerador não cabe em int64.
func PreviewPayout(stakeCents int64, winThreshold int, houseEdgeBps int64) (int64, error) {
	if stakeCents <= 0 {
		return 0, fmt.Errorf("%w: stake=%d must be positive", apperr.ErrInvalidInput, stakeCents)
	}
	if winThreshold < 1 || winThreshold > 99 {
		return 0, fmt.Errorf("%w: win threshold=%d outside [1,99]", apperr.ErrInvalidInput, winThreshold)
	}
	if houseEdgeBps < 0 || houseEdgeBps >= 10000 {
		return 0, fmt.Errorf("%w: house edge bps=%d outside [0,10000)", apperr.ErrInvalidInput, houseEdgeBps)
	}

	factor := (10000 - houseEdgeBps) * 100
	if stakeCents > math.MaxInt64/factor {
		return 0, fmt.Errorf("%w: stake=%d overflows payout width", apperr.ErrInvalidInput, stakeCents)
	}
	return stakeCents * factor / (int64(winThreshold) * 10000), nil
}

// Commitment é o hash que amarra os parâmetros da aposta ao segredo do
// jogador antes do resultado existir.
func Commitment(player, asset string, stakeCents int64, winThreshold int, salt string) string {
	payload := strings.Join([]string{
		player,
		asset,
		strconv.FormatInt(stakeCents, 10),
		strconv.Itoa(winThreshold),
		salt,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// FinalRandom combina a palavra do oráculo com contexto amarrado ao chamador
// (jogador, segredo, identidade da instância, id da aposta) para resistir a
// pré-computação do resultado.
func FinalRandom(word uint64, player, salt, instanceID, betID string) uint64 {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], word)
	h.Write(buf[:])
	h.Write([]byte(player))
	h.Write([]byte(salt))
	h.Write([]byte(instanceID))
	h.Write([]byte(betID))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// Roll projeta o random final em 1..100.
func Roll(finalRandom uint64) int {
	return int(finalRandom%100) + 1
}
