package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/roman-kulish/signal-monitor/internal/signal"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && cErr != sql.ErrTxDone && *err == nil {
		*err = cErr
	}
}

// macToInt64 packs a 48-bit MAC address into the low bits of an int64
func macToInt64(s string) (int64, error) {
	hw, err := signal.ParseMAC(s)
	if err != nil {
		return 0, err
	}

	var v int64
	for _, b := range hw {
		v = v<<8 | int64(b)
	}
	return v, nil
}

func int64ToMAC(v int64) string {
	hw := make(net.HardwareAddr, 6)
	for i := 5; i >= 0; i-- {
		hw[i] = byte(v)
		v >>= 8
	}
	return hw.String()
}

func toSQLNullType[T float64 | int64, Y float64 | int | int64](f *Y) T {
	if f == nil {
		return 0
	}
	return T(*f)
}

func fromNullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func toReadingData(sessionID int64, batchID string, r *signal.Reading) readingData {
	var dbm sql.NullInt64
	if r.InRange() {
		dbm.Int64 = int64(r.Dbm)
		dbm.Valid = true
	}

	return readingData{
		SessionID:  sessionID,
		BatchID:    batchID,
		MeasuredAt: r.MeasuredAt.UnixMilli(),
		Dbm:        dbm,
		Connected:  r.Connected,
		Latitude: sql.NullFloat64{
			Float64: toSQLNullType[float64](r.Latitude),
			Valid:   r.Latitude != nil,
		},
		Longitude: sql.NullFloat64{
			Float64: toSQLNullType[float64](r.Longitude),
			Valid:   r.Longitude != nil,
		},
	}
}

func (d *readingData) toReading(category signal.Category) signal.Reading {
	r := signal.Reading{
		Category:   category,
		MeasuredAt: time.UnixMilli(d.MeasuredAt).UTC(),
		Dbm:        signal.Unavailable,
		Connected:  d.Connected,
		Latitude:   fromNullFloat(d.Latitude),
		Longitude:  fromNullFloat(d.Longitude),
	}
	if d.Dbm.Valid {
		r.Dbm = int(d.Dbm.Int64)
	}
	return r
}

func toWiFiData(sessionID int64, batchID string, r *signal.Reading) (*wifiData, error) {
	if r.WiFi == nil {
		return nil, fmt.Errorf("wifi payload is missing")
	}

	bssid, err := macToInt64(r.WiFi.BSSID)
	if err != nil {
		return nil, fmt.Errorf("converting bssid: %w", err)
	}

	return &wifiData{
		readingData:  toReadingData(sessionID, batchID, r),
		SSID:         r.WiFi.SSID,
		BSSID:        bssid,
		Frequency:    int64(r.WiFi.Frequency),
		CenterFreq0:  int64(r.WiFi.CenterFreq0),
		CenterFreq1:  int64(r.WiFi.CenterFreq1),
		ChannelWidth: int64(r.WiFi.ChannelWidth),
		Capabilities: r.WiFi.Capabilities,
		Standard:     int64(r.WiFi.Standard),
	}, nil
}

func (d *wifiData) toReading() signal.Reading {
	r := d.readingData.toReading(signal.CategoryWiFi)
	r.WiFi = &signal.WiFi{
		SSID:         d.SSID,
		BSSID:        int64ToMAC(d.BSSID),
		Frequency:    int(d.Frequency),
		CenterFreq0:  int(d.CenterFreq0),
		CenterFreq1:  int(d.CenterFreq1),
		ChannelWidth: int(d.ChannelWidth),
		Capabilities: d.Capabilities,
		Standard:     int(d.Standard),
	}
	return r
}

func toBluetoothData(sessionID int64, batchID string, r *signal.Reading) (*bluetoothData, error) {
	if r.Bluetooth == nil {
		return nil, fmt.Errorf("bluetooth payload is missing")
	}

	addr, err := macToInt64(r.Bluetooth.Address)
	if err != nil {
		return nil, fmt.Errorf("converting address: %w", err)
	}

	return &bluetoothData{
		readingData: toReadingData(sessionID, batchID, r),
		Name:        r.Bluetooth.Name,
		Alias:       r.Bluetooth.Alias,
		Address:     addr,
		DeviceClass: int64(r.Bluetooth.DeviceClass),
		DeviceType:  int64(r.Bluetooth.DeviceType),
		BondState:   int64(r.Bluetooth.BondState),
	}, nil
}

func (d *bluetoothData) toReading() signal.Reading {
	r := d.readingData.toReading(signal.CategoryBluetooth)
	r.Bluetooth = &signal.Bluetooth{
		Name:        d.Name,
		Alias:       d.Alias,
		Address:     int64ToMAC(d.Address),
		DeviceClass: int(d.DeviceClass),
		DeviceType:  int(d.DeviceType),
		BondState:   int(d.BondState),
	}
	return r
}

func toCellularData(sessionID int64, batchID string, r *signal.Reading) (*cellularData, error) {
	c := r.Cellular
	if c == nil {
		return nil, fmt.Errorf("cellular payload is missing")
	}

	var cell any
	switch c.Technology {
	case signal.TechnologyGSM:
		cell = c.GSM
	case signal.TechnologyWCDMA:
		cell = c.WCDMA
	case signal.TechnologyLTE:
		cell = c.LTE
	case signal.TechnologyNR:
		cell = c.NR
	case signal.TechnologyCDMA, signal.TechnologyEVDO:
		cell = c.CDMA
	default:
		return nil, fmt.Errorf("unknown technology '%s'", c.Technology)
	}

	p, err := json.Marshal(cell)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s cell: %w", c.Technology, err)
	}

	return &cellularData{
		readingData: toReadingData(sessionID, batchID, r),
		Technology:  c.Technology.String(),
		MCC:         int64(c.MCC),
		MNC:         int64(c.MNC),
		Cell:        string(p),
	}, nil
}

func (d *cellularData) toReading() (signal.Reading, error) {
	r := d.readingData.toReading(signal.CategoryCellular)
	c := signal.Cellular{
		Technology: signal.Technology(d.Technology),
		MCC:        int(d.MCC),
		MNC:        int(d.MNC),
	}

	var target any
	switch c.Technology {
	case signal.TechnologyGSM:
		c.GSM = &signal.GSMCell{}
		target = c.GSM
	case signal.TechnologyWCDMA:
		c.WCDMA = &signal.WCDMACell{}
		target = c.WCDMA
	case signal.TechnologyLTE:
		c.LTE = &signal.LTECell{}
		target = c.LTE
	case signal.TechnologyNR:
		c.NR = &signal.NRCell{}
		target = c.NR
	case signal.TechnologyCDMA, signal.TechnologyEVDO:
		c.CDMA = &signal.CDMACell{}
		target = c.CDMA
	default:
		return r, fmt.Errorf("unknown technology '%s'", d.Technology)
	}

	if err := json.Unmarshal([]byte(d.Cell), target); err != nil {
		return r, fmt.Errorf("unmarshaling %s cell: %w", d.Technology, err)
	}

	r.Cellular = &c
	return r, nil
}
