package storage

import (
	"database/sql"
)

// readingData holds the columns shared by every reading table
type readingData struct {
	SessionID  int64
	BatchID    string
	MeasuredAt int64 // Unix milliseconds
	Dbm        sql.NullInt64
	Connected  bool
	Latitude   sql.NullFloat64
	Longitude  sql.NullFloat64
}

type wifiData struct {
	readingData
	SSID         string
	BSSID        int64
	Frequency    int64
	CenterFreq0  int64
	CenterFreq1  int64
	ChannelWidth int64
	Capabilities string
	Standard     int64
}

type bluetoothData struct {
	readingData
	Name        string
	Alias       string
	Address     int64
	DeviceClass int64
	DeviceType  int64
	BondState   int64
}

type cellularData struct {
	readingData
	Technology string
	MCC        int64
	MNC        int64
	Cell       string // JSON
}

func (d *wifiData) values() []any {
	return []any{
		d.SessionID,
		d.BatchID,
		d.MeasuredAt,
		d.Dbm,
		d.Connected,
		d.Latitude,
		d.Longitude,
		d.SSID,
		d.BSSID,
		d.Frequency,
		d.CenterFreq0,
		d.CenterFreq1,
		d.ChannelWidth,
		d.Capabilities,
		d.Standard,
	}
}

func (d *bluetoothData) values() []any {
	return []any{
		d.SessionID,
		d.BatchID,
		d.MeasuredAt,
		d.Dbm,
		d.Connected,
		d.Latitude,
		d.Longitude,
		d.Name,
		d.Alias,
		d.Address,
		d.DeviceClass,
		d.DeviceType,
		d.BondState,
	}
}

func (d *cellularData) values() []any {
	return []any{
		d.SessionID,
		d.BatchID,
		d.MeasuredAt,
		d.Dbm,
		d.Connected,
		d.Latitude,
		d.Longitude,
		d.Technology,
		d.MCC,
		d.MNC,
		d.Cell,
	}
}
