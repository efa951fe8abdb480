package signal

import (
	"fmt"
	"net"
)

// Identity names the physical transmitter behind a reading. Two readings
// with the same Identity are successive measurements of the same source.
type Identity string

// ParseMAC parses a 48-bit MAC address such as a BSSID or a Bluetooth address
func ParseMAC(s string) (net.HardwareAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return nil, err
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("address %s: expected 6 octets, got %d", s, len(hw))
	}
	return hw, nil
}

// Identity derives the cache identity of the reading. It returns a
// *MalformedError when the fields identifying the transmitter are missing.
func (r *Reading) Identity() (Identity, error) {
	if r.Placeholder {
		return "", NewMalformedError(r.Category, "", "placeholder readings have no identity")
	}

	switch r.Category {
	case CategoryWiFi:
		return r.wifiIdentity()
	case CategoryBluetooth:
		return r.bluetoothIdentity()
	case CategoryCellular:
		return r.cellularIdentity()
	}

	return "", NewMalformedError(r.Category, "category", "unknown category")
}

// Validate checks that the reading can be identified
func (r *Reading) Validate() error {
	_, err := r.Identity()
	return err
}

func (r *Reading) wifiIdentity() (Identity, error) {
	if r.WiFi == nil {
		return "", NewMalformedError(r.Category, "wifi", "payload is missing")
	}
	if r.WiFi.Frequency <= 0 {
		return "", NewMalformedError(r.Category, "frequency", fmt.Sprintf("must be positive: %d", r.WiFi.Frequency))
	}

	hw, err := ParseMAC(r.WiFi.BSSID)
	if err != nil {
		return "", NewMalformedError(r.Category, "bssid", err.Error())
	}

	return Identity(fmt.Sprintf("wifi|%s|%d", hw, r.WiFi.Frequency)), nil
}

func (r *Reading) bluetoothIdentity() (Identity, error) {
	if r.Bluetooth == nil {
		return "", NewMalformedError(r.Category, "bluetooth", "payload is missing")
	}

	hw, err := ParseMAC(r.Bluetooth.Address)
	if err != nil {
		return "", NewMalformedError(r.Category, "address", err.Error())
	}

	return Identity(fmt.Sprintf("bluetooth|%s", hw)), nil
}

// cellularIdentity leaves out signal fields and the timing advance, which
// depend on the distance to the cell rather than on the cell itself.
func (r *Reading) cellularIdentity() (Identity, error) {
	c := r.Cellular
	if c == nil {
		return "", NewMalformedError(r.Category, "cellular", "payload is missing")
	}

	missing := func(field string) (Identity, error) {
		return "", NewMalformedError(r.Category, field, fmt.Sprintf("required for %s cells", c.Technology))
	}

	switch c.Technology {
	case TechnologyGSM:
		if c.GSM == nil {
			return missing("gsm")
		}
		return Identity(fmt.Sprintf("gsm|%d|%d|%d|%d|%d|%d", c.MCC, c.MNC, c.GSM.CID, c.GSM.LAC, c.GSM.ARFCN, c.GSM.BSIC)), nil

	case TechnologyWCDMA:
		if c.WCDMA == nil {
			return missing("wcdma")
		}
		return Identity(fmt.Sprintf("wcdma|%d|%d|%d|%d|%d|%d", c.MCC, c.MNC, c.WCDMA.UCID, c.WCDMA.LAC, c.WCDMA.PSC, c.WCDMA.UARFCN)), nil

	case TechnologyLTE:
		if c.LTE == nil {
			return missing("lte")
		}
		return Identity(fmt.Sprintf("lte|%d|%d|%d|%d|%d|%d|%d", c.MCC, c.MNC, c.LTE.ECI, c.LTE.PCI, c.LTE.TAC, c.LTE.EARFCN, c.LTE.Bandwidth)), nil

	case TechnologyNR:
		if c.NR == nil {
			return missing("nr")
		}
		return Identity(fmt.Sprintf("nr|%d|%d|%d|%d|%d|%d", c.MCC, c.MNC, c.NR.NCI, c.NR.NRARFCN, c.NR.PCI, c.NR.TAC)), nil

	case TechnologyCDMA, TechnologyEVDO:
		if c.CDMA == nil {
			return missing("cdma")
		}
		return Identity(fmt.Sprintf("%s|%d|%d|%d|%d|%d", c.Technology, c.CDMA.NetworkID, c.CDMA.SystemID, c.CDMA.BaseStationID, c.CDMA.StationLatitude, c.CDMA.StationLongitude)), nil
	}

	return "", NewMalformedError(r.Category, "technology", fmt.Sprintf("unknown technology '%s'", c.Technology))
}
