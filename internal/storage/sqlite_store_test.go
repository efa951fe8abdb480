package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/signal-monitor/internal/signal"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "signals.db"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createSession(t *testing.T, s *SqliteStore) int64 {
	t.Helper()

	id, err := s.CreateSession(context.Background(), "test-host", map[string]any{"wardrive": false})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return id
}

func readAll(t *testing.T, s *SqliteStore, sessionID int64, category signal.Category, opts ...ReaderOption) []signal.Reading {
	t.Helper()

	ctx := context.Background()
	rr, err := s.Readings(ctx, sessionID, category, opts...)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer rr.Close()

	var out []signal.Reading
	for rr.Next(ctx) {
		out = append(out, rr.Current().Clone())
	}
	if err = rr.Error(); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	return out
}

var measuredAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMACConversion(t *testing.T) {
	tests := []string{
		"00:00:00:00:00:00",
		"aa:bb:cc:dd:ee:ff",
		"ff:ff:ff:ff:ff:ff",
		"01:23:45:67:89:ab",
	}

	for _, mac := range tests {
		t.Run(mac, func(t *testing.T) {
			v, err := macToInt64(mac)
			if err != nil {
				t.Fatalf("Failed to convert %s: %v", mac, err)
			}
			if got := int64ToMAC(v); got != mac {
				t.Errorf("Expected %s, got %s", mac, got)
			}
		})
	}

	if v, _ := macToInt64("00:00:00:00:01:00"); v != 256 {
		t.Errorf("Expected 256, got %d", v)
	}
	if _, err := macToInt64("zz:00:00:00:00:00"); err == nil {
		t.Error("Expected error for invalid MAC")
	}
}

func TestSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := createSession(t, s)
	second, err := s.CreateSession(ctx, "other-host", "raw config")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	sess, err := s.Session(ctx, first)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if sess.Source != "test-host" {
		t.Errorf("Expected source test-host, got %s", sess.Source)
	}
	if sess.Config == nil || *sess.Config != `{"wardrive":false}` {
		t.Errorf("Expected JSON config, got %v", sess.Config)
	}
	if sess.StartTime.IsZero() {
		t.Error("Expected start time to be set")
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != first || sessions[1].ID != second {
		t.Fatalf("Expected sessions [%d %d], got %v", first, second, sessions)
	}
	if sessions[1].Config == nil || *sessions[1].Config != "raw config" {
		t.Errorf("Expected raw config, got %v", sessions[1].Config)
	}

	if _, err = s.Session(ctx, 999); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestStoreBatch_WiFi(t *testing.T) {
	s := newTestStore(t)
	sessionID := createSession(t, s)

	lat, lon := 48.85, 2.35
	batch := signal.Batch{
		ID:       uuid.New(),
		Category: signal.CategoryWiFi,
		Readings: []signal.Reading{
			{
				Category:   signal.CategoryWiFi,
				MeasuredAt: measuredAt,
				Dbm:        -61,
				Connected:  true,
				Latitude:   &lat,
				Longitude:  &lon,
				WiFi: &signal.WiFi{
					SSID:         "Home",
					BSSID:        "AA:BB:CC:DD:EE:01",
					Frequency:    5180,
					CenterFreq0:  5210,
					ChannelWidth: 2,
					Capabilities: "[WPA2-PSK-CCMP][ESS]",
					Standard:     6,
				},
			},
			{
				Category:   signal.CategoryWiFi,
				MeasuredAt: measuredAt.Add(time.Second),
				Dbm:        signal.Unavailable,
				WiFi:       &signal.WiFi{BSSID: "aa:bb:cc:dd:ee:02", Frequency: 5180},
			},
		},
	}

	if err := s.StoreBatch(context.Background(), sessionID, batch); err != nil {
		t.Fatalf("Failed to store batch: %v", err)
	}

	got := readAll(t, s, sessionID, signal.CategoryWiFi)
	if len(got) != 2 {
		t.Fatalf("Expected 2 readings, got %d", len(got))
	}

	r := got[0]
	if !r.MeasuredAt.Equal(measuredAt) {
		t.Errorf("Expected measured at %s, got %s", measuredAt, r.MeasuredAt)
	}
	if r.Dbm != -61 || !r.Connected {
		t.Errorf("Expected connected reading at -61, got %s", r.String())
	}
	if r.Latitude == nil || *r.Latitude != lat || r.Longitude == nil || *r.Longitude != lon {
		t.Errorf("Expected location %v,%v, got %v,%v", lat, lon, r.Latitude, r.Longitude)
	}
	if r.WiFi.BSSID != "aa:bb:cc:dd:ee:01" {
		t.Errorf("Expected canonical BSSID, got %s", r.WiFi.BSSID)
	}
	if r.WiFi.SSID != "Home" || r.WiFi.Frequency != 5180 || r.WiFi.CenterFreq0 != 5210 || r.WiFi.Capabilities != "[WPA2-PSK-CCMP][ESS]" {
		t.Errorf("Unexpected Wi-Fi payload %+v", r.WiFi)
	}

	if got[1].Dbm != signal.Unavailable {
		t.Errorf("Expected unavailable dbm, got %d", got[1].Dbm)
	}
	if got[1].Latitude != nil {
		t.Error("Expected no location")
	}
}

func TestStoreBatch_Cellular(t *testing.T) {
	s := newTestStore(t)
	sessionID := createSession(t, s)

	batch := signal.Batch{
		ID:       uuid.New(),
		Category: signal.CategoryCellular,
		Readings: []signal.Reading{
			{
				Category:   signal.CategoryCellular,
				MeasuredAt: measuredAt,
				Dbm:        -95,
				Cellular: &signal.Cellular{
					Technology: signal.TechnologyLTE,
					MCC:        208,
					MNC:        1,
					LTE:        &signal.LTECell{ECI: 123456, PCI: 42, TAC: 7, EARFCN: 6300, Bandwidth: 20000, RSSI: signal.Unavailable, RSRP: -95},
				},
			},
			{
				Category:   signal.CategoryCellular,
				MeasuredAt: measuredAt,
				Dbm:        -80,
				Cellular: &signal.Cellular{
					Technology: signal.TechnologyNR,
					MCC:        208,
					MNC:        1,
					NR:         &signal.NRCell{NCI: 68719476735, NRARFCN: 632628, PCI: 1, TAC: 2, CSIRSRP: -80},
				},
			},
		},
	}

	if err := s.StoreBatch(context.Background(), sessionID, batch); err != nil {
		t.Fatalf("Failed to store batch: %v", err)
	}

	got := readAll(t, s, sessionID, signal.CategoryCellular)
	if len(got) != 2 {
		t.Fatalf("Expected 2 readings, got %d", len(got))
	}

	lte := got[0].Cellular
	if lte.Technology != signal.TechnologyLTE || lte.MCC != 208 || lte.MNC != 1 || lte.LTE == nil {
		t.Fatalf("Unexpected cellular payload %+v", lte)
	}
	if *lte.LTE != *batch.Readings[0].Cellular.LTE {
		t.Errorf("Expected LTE cell %+v, got %+v", *batch.Readings[0].Cellular.LTE, *lte.LTE)
	}

	nr := got[1].Cellular
	if nr.NR == nil || nr.NR.NCI != 68719476735 {
		t.Errorf("Expected NR cell, got %+v", nr)
	}

	// Identities survive the round trip
	for i := range got {
		want, _ := batch.Readings[i].Identity()
		if id, err := got[i].Identity(); err != nil || id != want {
			t.Errorf("Reading %d: expected identity %q, got %q (%v)", i, want, id, err)
		}
	}
}

func TestReadings_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	bt := func(addr string, at time.Time) signal.Reading {
		return signal.Reading{
			Category:   signal.CategoryBluetooth,
			MeasuredAt: at,
			Dbm:        -70,
			Bluetooth:  &signal.Bluetooth{Name: "Speaker", Address: addr, DeviceType: 2},
		}
	}

	first := signal.Batch{ID: uuid.New(), Category: signal.CategoryBluetooth, Readings: []signal.Reading{
		bt("00:11:22:33:44:55", measuredAt),
		bt("00:11:22:33:44:56", measuredAt),
	}}
	second := signal.Batch{ID: uuid.New(), Category: signal.CategoryBluetooth, Readings: []signal.Reading{
		bt("00:11:22:33:44:55", measuredAt.Add(time.Minute)),
	}}

	for _, b := range []signal.Batch{first, second} {
		if err := s.StoreBatch(ctx, sessionID, b); err != nil {
			t.Fatalf("Failed to store batch: %v", err)
		}
	}

	if got := readAll(t, s, sessionID, signal.CategoryBluetooth); len(got) != 3 {
		t.Errorf("Expected 3 readings, got %d", len(got))
	}
	if got := readAll(t, s, sessionID, signal.CategoryBluetooth, WithBatch(first.ID)); len(got) != 2 {
		t.Errorf("Expected 2 readings in first batch, got %d", len(got))
	}

	got := readAll(t, s, sessionID, signal.CategoryBluetooth, WithStartTime(measuredAt.Add(time.Second)))
	if len(got) != 1 || !got[0].MeasuredAt.Equal(measuredAt.Add(time.Minute)) {
		t.Errorf("Expected the later reading only, got %v", got)
	}
	if got[0].Bluetooth.Name != "Speaker" || got[0].Bluetooth.DeviceType != 2 {
		t.Errorf("Unexpected Bluetooth payload %+v", got[0].Bluetooth)
	}

	if got := readAll(t, s, sessionID, signal.CategoryBluetooth, WithTimeRange(measuredAt, measuredAt)); len(got) != 2 {
		t.Errorf("Expected 2 readings at the first instant, got %d", len(got))
	}
	if got := readAll(t, s, sessionID, signal.CategoryWiFi); len(got) != 0 {
		t.Errorf("Expected no Wi-Fi readings, got %d", len(got))
	}

	if _, err := s.Readings(ctx, sessionID, signal.CategoryBluetooth, WithTimeRange(measuredAt, measuredAt.Add(-time.Second))); err == nil {
		t.Error("Expected error for inverted time range")
	}
	if _, err := s.Readings(ctx, 999, signal.CategoryBluetooth); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestStoreBatch_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	mixed := signal.Batch{ID: uuid.New(), Category: signal.CategoryWiFi, Readings: []signal.Reading{
		{Category: signal.CategoryBluetooth, Bluetooth: &signal.Bluetooth{Address: "00:11:22:33:44:55"}},
	}}
	if err := s.StoreBatch(ctx, sessionID, mixed); err == nil {
		t.Error("Expected error for mixed categories")
	}

	badMAC := signal.Batch{ID: uuid.New(), Category: signal.CategoryWiFi, Readings: []signal.Reading{
		{Category: signal.CategoryWiFi, WiFi: &signal.WiFi{BSSID: "nope", Frequency: 2412}},
	}}
	if err := s.StoreBatch(ctx, sessionID, badMAC); err == nil {
		t.Error("Expected error for invalid BSSID")
	}

	if err := s.StoreBatch(ctx, sessionID, signal.Batch{Category: signal.CategoryWiFi}); err != nil {
		t.Errorf("Expected empty batch to be a no-op, got %v", err)
	}
}

func TestStoreBatch_LargeBatch(t *testing.T) {
	s := newTestStore(t)
	sessionID := createSession(t, s)

	batch := signal.Batch{ID: uuid.New(), Category: signal.CategoryWiFi}
	for i := 0; i < maxRowsPerInsert*2+7; i++ {
		batch.Readings = append(batch.Readings, signal.Reading{
			Category:   signal.CategoryWiFi,
			MeasuredAt: measuredAt,
			Dbm:        -70,
			WiFi:       &signal.WiFi{BSSID: int64ToMAC(int64(i)), Frequency: 2412},
		})
	}

	if err := s.StoreBatch(context.Background(), sessionID, batch); err != nil {
		t.Fatalf("Failed to store batch: %v", err)
	}
	if got := readAll(t, s, sessionID, signal.CategoryWiFi, WithBatch(batch.ID)); len(got) != len(batch.Readings) {
		t.Errorf("Expected %d readings, got %d", len(batch.Readings), len(got))
	}
}

func TestSessionSink(t *testing.T) {
	s := newTestStore(t)
	sessionID := createSession(t, s)
	sink := NewSessionSink(s, sessionID)

	batch := signal.Batch{ID: uuid.New(), Category: signal.CategoryCellular, Readings: []signal.Reading{
		{
			Category:   signal.CategoryCellular,
			MeasuredAt: measuredAt,
			Dbm:        -90,
			Cellular:   &signal.Cellular{Technology: signal.TechnologyGSM, MCC: 234, MNC: 10, GSM: &signal.GSMCell{CID: 1, LAC: 2}},
		},
	}}

	if err := sink.Persist(context.Background(), batch); err != nil {
		t.Fatalf("Failed to persist: %v", err)
	}
	if sink.SessionID() != sessionID {
		t.Errorf("Expected session %d, got %d", sessionID, sink.SessionID())
	}
	if got := readAll(t, s, sessionID, signal.CategoryCellular); len(got) != 1 || got[0].Cellular.GSM.CID != 1 {
		t.Errorf("Expected persisted GSM reading, got %v", got)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Failed to close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Expected second close to succeed, got %v", err)
	}
}
