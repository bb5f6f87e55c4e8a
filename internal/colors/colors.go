// Package colors derives a deterministic background/border color pair from
// a concept code, so a concept always renders with the same colors on both
// sides of the wire.
package colors

import "fmt"

// Pair is the HSL color pair returned for a concept code.
type Pair struct {
	Background string
	Border     string
}

// Derive hashes code with a rolling multiplier-31 accumulator, then applies
// a fixed avalanche (two xor-shifts, two multiplications) so nearby inputs
// land on unrelated hues. All arithmetic is done in uint32 so the result is
// identical across platforms and language reimplementations.
func Derive(code string) Pair {
	var hash uint32
	for _, r := range code {
		hash = hash*31 + uint32(r)
	}

	mixed := avalanche(hash)

	hue := mixed % 360
	bgSat := 65 + (mixed/360)%20
	bgLight := 80 + (mixed/7)%10
	borderSat := 50 + (mixed/11)%20
	borderLight := 40 + (mixed/13)%15

	return Pair{
		Background: hsl(hue, bgSat, bgLight),
		Border:     hsl(hue, borderSat, borderLight),
	}
}

// avalanche spreads the bits of h using fixed constants so that inputs
// differing by one character produce unrelated hashes. Intermediate
// multiplications wrap at 32 bits, matching the front-end's reimplementation.
func avalanche(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

func hsl(hue, sat, light uint32) string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", hue, sat, light)
}
