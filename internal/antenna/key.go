// Package antenna groups raw Wi-Fi readings by the physical antenna that
// most likely emitted them.
//
// Access points commonly expose several virtual networks from one radio,
// each with a BSSID that differs from its siblings only in the first or the
// last octet. Two readings are assumed to come from the same antenna when
// they share a frequency and either their first five or their last five
// BSSID octets.
package antenna

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/roman-kulish/signal-monitor/internal/signal"
)

// Key is the grouping key of a Wi-Fi reading.
//
// Equal is reflexive and symmetric but not transitive: A may share a prefix
// with B and B a suffix with C while A and C share neither.
type Key struct {
	Frequency int

	known bool
	hw    [6]byte
}

// KeyOf returns the grouping key of a Wi-Fi reading. A missing or
// unparsable BSSID yields an unknown key.
func KeyOf(r *signal.Reading) Key {
	k := Key{}
	if r.WiFi == nil {
		return k
	}

	k.Frequency = r.WiFi.Frequency
	if hw, err := signal.ParseMAC(r.WiFi.BSSID); err == nil {
		copy(k.hw[:], hw)
		k.known = true
	}
	return k
}

// Known reports whether the key carries a BSSID
func (k Key) Known() bool {
	return k.known
}

// Prefix returns the first five octets of the BSSID, e.g. "aa:bb:cc:dd:ee"
func (k Key) Prefix() string {
	if !k.Known() {
		return ""
	}
	return formatOctets(k.hw[0:5])
}

// Suffix returns the last five octets of the BSSID, e.g. "bb:cc:dd:ee:01"
func (k Key) Suffix() string {
	if !k.Known() {
		return ""
	}
	return formatOctets(k.hw[1:6])
}

// Equal reports whether both keys denote the same antenna. Two unknown keys
// on the same frequency are equal.
func (k Key) Equal(o Key) bool {
	if k.Frequency != o.Frequency {
		return false
	}
	if !k.Known() || !o.Known() {
		return k.Known() == o.Known()
	}
	return [5]byte(k.hw[0:5]) == [5]byte(o.hw[0:5]) || [5]byte(k.hw[1:6]) == [5]byte(o.hw[1:6])
}

// Hash is consistent with Equal. It only covers the four middle octets,
// which every pair of equal keys share whichever end they differ at.
func (k Key) Hash() uint64 {
	var buf [13]byte
	copy(buf[0:4], k.hw[1:5])
	binary.BigEndian.PutUint64(buf[4:12], uint64(int64(k.Frequency)))
	if k.Known() {
		buf[12] = 1
	}

	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// starred returns the partially redacted BSSID of o relative to the first
// member of its group k: the shared prefix followed by ":*", or "*:"
// followed by the shared suffix.
func (k Key) starred(o Key) string {
	if !k.Known() || !o.Known() {
		return ""
	}
	if [5]byte(k.hw[0:5]) == [5]byte(o.hw[0:5]) {
		return o.Prefix() + ":*"
	}
	if [5]byte(k.hw[1:6]) == [5]byte(o.hw[1:6]) {
		return "*:" + o.Suffix()
	}
	return ""
}

func formatOctets(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ":")
}
