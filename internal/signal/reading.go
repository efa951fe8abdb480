package signal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Unavailable is the sentinel radios report for a value they could not measure
const Unavailable = math.MaxInt32

// Reading is a single measurement of one transmitter. Exactly one of the
// payloads matching Category is set.
type Reading struct {
	Category    Category  `json:"category"`
	MeasuredAt  time.Time `json:"measuredAt"`
	Dbm         int       `json:"dbm"`                   // Signal strength in dBm, Unavailable if not measured
	Connected   bool      `json:"connected,omitempty"`   // Device is associated with this transmitter
	Placeholder bool      `json:"placeholder,omitempty"` // Forged "absent" reading, not a measurement
	Latitude    *float64  `json:"latitude,omitempty"`    // Where the reading was taken
	Longitude   *float64  `json:"longitude,omitempty"`

	WiFi      *WiFi      `json:"wifi,omitempty"`
	Bluetooth *Bluetooth `json:"bluetooth,omitempty"`
	Cellular  *Cellular  `json:"cellular,omitempty"`
}

// WiFi is the payload of a Wi-Fi access point reading
type WiFi struct {
	SSID         string `json:"ssid"`
	BSSID        string `json:"bssid"`
	Frequency    int    `json:"frequency"` // Primary channel frequency in MHz
	CenterFreq0  int    `json:"centerFreq0,omitempty"`
	CenterFreq1  int    `json:"centerFreq1,omitempty"`
	ChannelWidth int    `json:"channelWidth,omitempty"`
	Capabilities string `json:"capabilities,omitempty"`
	Standard     int    `json:"standard,omitempty"`
}

// Bluetooth is the payload of a Bluetooth device reading
type Bluetooth struct {
	Name        string `json:"name"`
	Alias       string `json:"alias,omitempty"`
	Address     string `json:"address"`
	DeviceClass int    `json:"deviceClass,omitempty"`
	DeviceType  int    `json:"deviceType,omitempty"` // classic, LE or dual
	BondState   int    `json:"bondState,omitempty"`
}

// Cellular is the payload of a cellular cell reading. The technology
// specific block matching Technology carries the cell identity.
type Cellular struct {
	Technology Technology `json:"technology"`
	MCC        int        `json:"mcc"`
	MNC        int        `json:"mnc"`

	GSM   *GSMCell   `json:"gsm,omitempty"`
	WCDMA *WCDMACell `json:"wcdma,omitempty"`
	LTE   *LTECell   `json:"lte,omitempty"`
	NR    *NRCell    `json:"nr,omitempty"`
	CDMA  *CDMACell  `json:"cdma,omitempty"`
}

type GSMCell struct {
	CID           int `json:"cid"`
	LAC           int `json:"lac"`
	ARFCN         int `json:"arfcn"`
	BSIC          int `json:"bsic"`
	TimingAdvance int `json:"timingAdvance,omitempty"`
	BER           int `json:"ber,omitempty"`
}

type WCDMACell struct {
	UCID   int `json:"ucid"`
	LAC    int `json:"lac"`
	PSC    int `json:"psc"`
	UARFCN int `json:"uarfcn"`
	EcNo   int `json:"ecno,omitempty"`
}

type LTECell struct {
	ECI           int `json:"eci"`
	PCI           int `json:"pci"`
	TAC           int `json:"tac"`
	EARFCN        int `json:"earfcn"`
	Bandwidth     int `json:"bandwidth"`
	RSSI          int `json:"rssi"` // ASU in [0, 31], anything else means unavailable
	RSRP          int `json:"rsrp"`
	RSRQ          int `json:"rsrq,omitempty"`
	RSSNR         int `json:"rssnr,omitempty"`
	CQI           int `json:"cqi,omitempty"`
	TimingAdvance int `json:"timingAdvance,omitempty"`
}

type NRCell struct {
	NCI     int64 `json:"nci"`
	NRARFCN int   `json:"nrarfcn"`
	PCI     int   `json:"pci"`
	TAC     int   `json:"tac"`
	CSIRSRP int   `json:"csiRsrp"`
	CSIRSRQ int   `json:"csiRsrq,omitempty"`
	CSISINR int   `json:"csiSinr,omitempty"`
	SSRSRP  int   `json:"ssRsrp,omitempty"`
	SSRSRQ  int   `json:"ssRsrq,omitempty"`
	SSSINR  int   `json:"ssSinr,omitempty"`
}

// CDMACell covers both CDMA and EVDO cells, which share the identity fields
type CDMACell struct {
	NetworkID        int `json:"networkId"`
	SystemID         int `json:"systemId"`
	BaseStationID    int `json:"baseStationId"`
	StationLatitude  int `json:"stationLatitude"`
	StationLongitude int `json:"stationLongitude"`
	EcIo             int `json:"ecio,omitempty"`
	SNR              int `json:"snr,omitempty"`
}

// Batch is the set of readings delivered by one producer call
type Batch struct {
	ID       uuid.UUID
	Category Category
	Readings []Reading
}

// Clone returns a deep copy of r that shares no memory with it
func (r *Reading) Clone() Reading {
	c := *r
	c.Latitude = clonePtr(r.Latitude)
	c.Longitude = clonePtr(r.Longitude)
	c.WiFi = clonePtr(r.WiFi)
	c.Bluetooth = clonePtr(r.Bluetooth)

	if r.Cellular != nil {
		cell := *r.Cellular
		cell.GSM = clonePtr(r.Cellular.GSM)
		cell.WCDMA = clonePtr(r.Cellular.WCDMA)
		cell.LTE = clonePtr(r.Cellular.LTE)
		cell.NR = clonePtr(r.Cellular.NR)
		cell.CDMA = clonePtr(r.Cellular.CDMA)
		c.Cellular = &cell
	}

	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Age returns how old the reading is at now
func (r *Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.MeasuredAt)
}

// DisplayName returns a human readable name of the transmitter
func (r *Reading) DisplayName() string {
	switch r.Category {
	case CategoryWiFi:
		if r.WiFi == nil || r.WiFi.SSID == "" {
			return "<hidden>"
		}
		return r.WiFi.SSID

	case CategoryBluetooth:
		if r.Bluetooth == nil || r.Bluetooth.Name == "" {
			return "<n/a>"
		}
		return r.Bluetooth.Name

	case CategoryCellular:
		if r.Cellular == nil {
			return "<n/a>"
		}
		return fmt.Sprintf("%s %03d-%02d", strings.ToUpper(r.Cellular.Technology.String()), r.Cellular.MCC, r.Cellular.MNC)
	}

	return "<unknown>"
}

func (r *Reading) String() string {
	var sb strings.Builder

	sb.WriteString(r.Category.String())
	if r.Placeholder {
		sb.WriteString(" placeholder")
	}

	switch {
	case r.WiFi != nil:
		fract, suffix := humanize.ComputeSI(float64(r.WiFi.Frequency) * 1e6)
		fmt.Fprintf(&sb, " ssid=%q bssid=%s freq=%0.3f%sHz", r.WiFi.SSID, r.WiFi.BSSID, fract, suffix)

	case r.Bluetooth != nil:
		fmt.Fprintf(&sb, " name=%q address=%s", r.Bluetooth.Name, r.Bluetooth.Address)

	case r.Cellular != nil:
		fmt.Fprintf(&sb, " tech=%s mcc=%d mnc=%d", r.Cellular.Technology, r.Cellular.MCC, r.Cellular.MNC)
	}

	if r.InRange() {
		fmt.Fprintf(&sb, " dbm=%d", r.Dbm)
	} else {
		fmt.Fprintf(&sb, " dbm=invalid(%d)", r.Dbm)
	}

	if !r.MeasuredAt.IsZero() {
		sb.WriteString(" measured=")
		sb.WriteString(r.MeasuredAt.UTC().Format(time.RFC3339))
	}

	return sb.String()
}
