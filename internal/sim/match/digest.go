package match

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"metaleague.ai/internal/sim/match/model"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// roundDigest hashes the round number and every rostered character's vitals, status and stats,
// team A then team B, active then bench, in roster order.
func roundDigest(round int, a, b *model.Team) string {
	h := sha256.New()
	var tmp [8]byte
	writeU64(h, &tmp, uint64(round))
	for _, t := range []*model.Team{a, b} {
		h.Write([]byte(t.ID))
		for _, c := range t.All() {
			digestCharacter(h, &tmp, c)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestCharacter(h hashWriter, tmp *[8]byte, c *model.Character) {
	h.Write([]byte(c.ID))
	h.Write([]byte(c.Role))
	for _, v := range []float64{c.HP, c.MaxHP, c.Stamina, c.MaxStamina, c.Life, c.Morale, c.MomentumValue} {
		writeU64(h, tmp, math.Float64bits(v))
	}
	h.Write([]byte{boolByte(c.IsKO), boolByte(c.IsDead), boolByte(c.IsActive)})
	for _, k := range model.AllAttrs {
		writeU64(h, tmp, uint64(int64(c.Attrs.Get(k))))
	}
	keys := make([]string, 0, len(c.Stats))
	for k, v := range c.Stats {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		writeU64(h, tmp, uint64(int64(c.Stats[k])))
	}
}

func writeU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
