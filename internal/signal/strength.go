package signal

import "cmp"

// Signal strength bounds in dBm per radio
const (
	WiFiMinDbm      = -150
	WiFiMaxDbm      = -1
	BluetoothMinDbm = -150
	BluetoothMaxDbm = -1
	GSMMinDbm       = -113
	GSMMaxDbm       = -51
	WCDMAMinDbm     = -120
	WCDMAMaxDbm     = -24
	LTEMinRSRP      = -140
	LTEMaxRSRP      = -43
	LTEMinRSSIASU   = 0
	LTEMaxRSSIASU   = 31
	NRMinCSIRSRP    = -140
	NRMaxCSIRSRP    = -44
	CDMAMinDbm      = -120
	CDMAMaxDbm      = 0
)

// LTERSSIToDbm converts an LTE RSSI expressed in ASU to dBm. It returns
// Unavailable for values outside [0, 31].
func LTERSSIToDbm(asu int) int {
	if asu < LTEMinRSSIASU || asu > LTEMaxRSSIASU {
		return Unavailable
	}
	return -113 + 2*asu
}

// LTEDbm picks the best estimate of the received power of an LTE cell: the
// RSSI when the radio reported one, the RSRP otherwise.
func LTEDbm(rssiASU, rsrp int) int {
	if dbm := LTERSSIToDbm(rssiASU); dbm != Unavailable {
		return dbm
	}
	return rsrp
}

// DbmBounds returns the inclusive range of valid dBm values for the reading
func (r *Reading) DbmBounds() (lo, hi int) {
	switch r.Category {
	case CategoryWiFi:
		return WiFiMinDbm, WiFiMaxDbm

	case CategoryBluetooth:
		return BluetoothMinDbm, BluetoothMaxDbm

	case CategoryCellular:
		if r.Cellular == nil {
			return GSMMinDbm, GSMMaxDbm
		}

		switch r.Cellular.Technology {
		case TechnologyWCDMA:
			return WCDMAMinDbm, WCDMAMaxDbm

		case TechnologyLTE:
			if r.Cellular.LTE != nil && LTERSSIToDbm(r.Cellular.LTE.RSSI) != Unavailable {
				return LTERSSIToDbm(LTEMinRSSIASU), LTERSSIToDbm(LTEMaxRSSIASU)
			}
			return LTEMinRSRP, LTEMaxRSRP

		case TechnologyNR:
			return NRMinCSIRSRP, NRMaxCSIRSRP

		case TechnologyCDMA, TechnologyEVDO:
			return CDMAMinDbm, CDMAMaxDbm

		default:
			return GSMMinDbm, GSMMaxDbm
		}
	}

	return WiFiMinDbm, WiFiMaxDbm
}

// InRange reports whether Dbm lies within the bounds of the reading's radio
func (r *Reading) InRange() bool {
	lo, hi := r.DbmBounds()
	return lo <= r.Dbm && r.Dbm <= hi
}

// Normalize rewrites an out of range Dbm to the radio minimum minus one, so
// that the reading sorts after every valid one and stays out of range.
func (r *Reading) Normalize() {
	if !r.InRange() {
		lo, _ := r.DbmBounds()
		r.Dbm = lo - 1
	}
}

// Compare orders readings by signal strength. Readings with an out of range
// Dbm compare lower than any in range reading and equal to each other.
func Compare(a, b *Reading) int {
	ai, bi := a.InRange(), b.InRange()

	switch {
	case ai && bi:
		return cmp.Compare(a.Dbm, b.Dbm)
	case ai:
		return 1
	case bi:
		return -1
	default:
		return 0
	}
}
