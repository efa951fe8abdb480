package antenna

import (
	"github.com/roman-kulish/signal-monitor/internal/signal"
)

// Member is a reading assigned to a group
type Member struct {
	Reading signal.Reading

	// StarredBSSID is the BSSID with the octet that differs from the first
	// member replaced by "*". It is empty for the first member.
	StarredBSSID string
}

// ID identifies a group across snapshots
type ID struct {
	StarredBSSID string
	Frequency    int
}

// Group is one physical antenna and the readings attributed to it
type Group struct {
	// Reading is a synthetic reading standing for the whole antenna: the
	// first member carrying the strongest member signal and the chosen SSID.
	Reading signal.Reading

	// StarredBSSID is the second member's starred BSSID, or the BSSID of
	// the sole member of a single member group.
	StarredBSSID string

	Members []Member // In input order
}

func (g *Group) ID() ID {
	var freq int
	if g.Reading.WiFi != nil {
		freq = g.Reading.WiFi.Frequency
	}
	return ID{StarredBSSID: g.StarredBSSID, Frequency: freq}
}

// Name returns the display name of the group
func (g *Group) Name() string {
	return g.Reading.DisplayName()
}

type bucket struct {
	key     Key
	members []Member
}

// Cluster partitions Wi-Fi readings into antenna groups. Each reading joins
// the earliest created group whose first member's key it equals, or starts
// a new one. Groups are returned in creation order and the result only
// depends on the input order. Readings are copied, the input is left
// untouched.
func Cluster(readings []signal.Reading) []Group {
	if len(readings) == 0 {
		return nil
	}

	var buckets []*bucket
	index := make(map[uint64][]int)

	for i := range readings {
		r := &readings[i]
		key := KeyOf(r)
		h := key.Hash()

		var b *bucket
		for _, pos := range index[h] {
			if buckets[pos].key.Equal(key) {
				b = buckets[pos]
				break
			}
		}

		if b == nil {
			index[h] = append(index[h], len(buckets))
			buckets = append(buckets, &bucket{
				key:     key,
				members: []Member{{Reading: r.Clone()}},
			})
			continue
		}

		b.members = append(b.members, Member{
			Reading:      r.Clone(),
			StarredBSSID: b.key.starred(key),
		})
	}

	groups := make([]Group, 0, len(buckets))
	for _, b := range buckets {
		groups = append(groups, b.group())
	}
	return groups
}

func (b *bucket) group() Group {
	first := &b.members[0].Reading

	g := Group{
		Reading: first.Clone(),
		Members: b.members,
	}
	if g.Reading.WiFi == nil {
		g.Reading.WiFi = &signal.WiFi{}
	}

	if len(b.members) > 1 {
		g.StarredBSSID = b.members[1].StarredBSSID
	} else {
		g.StarredBSSID = g.Reading.WiFi.BSSID
	}

	strongest := first
	for i := 1; i < len(b.members); i++ {
		if m := &b.members[i].Reading; signal.Compare(m, strongest) > 0 {
			strongest = m
		}
	}
	g.Reading.Dbm = strongest.Dbm

	g.Reading.WiFi.SSID = b.displaySSID()
	return g
}

// displaySSID prefers named networks over hidden ones. A group of hidden
// networks keeps the last member's empty SSID.
func (b *bucket) displaySSID() string {
	var ssid string
	for _, m := range b.members {
		if m.Reading.WiFi == nil {
			ssid = ""
			continue
		}
		ssid = m.Reading.WiFi.SSID
		if ssid != "" {
			break
		}
	}
	return ssid
}
