package signal

import (
	"errors"
	"testing"
	"time"
)

func wifiReading(bssid string, freq, dbm int) Reading {
	return Reading{
		Category:   CategoryWiFi,
		MeasuredAt: time.Unix(1_700_000_000, 0),
		Dbm:        dbm,
		WiFi:       &WiFi{SSID: "Home", BSSID: bssid, Frequency: freq},
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"wifi", CategoryWiFi, false},
		{"Wi-Fi", CategoryWiFi, false},
		{" bluetooth ", CategoryBluetooth, false},
		{"bt", CategoryBluetooth, false},
		{"CELLULAR", CategoryCellular, false},
		{"cell", CategoryCellular, false},
		{"nfc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to parse %q: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCategory_TextRoundTrip(t *testing.T) {
	for _, c := range Categories {
		text, err := c.MarshalText()
		if err != nil {
			t.Fatalf("Failed to marshal %v: %v", c, err)
		}

		var got Category
		if err = got.UnmarshalText(text); err != nil {
			t.Fatalf("Failed to unmarshal %q: %v", text, err)
		}
		if got != c {
			t.Errorf("Expected %v, got %v", c, got)
		}
	}

	if _, err := Category(0).MarshalText(); err == nil {
		t.Error("Expected error marshaling zero category")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		reading Reading
		want    int
	}{
		{
			name:    "wifi in range",
			reading: wifiReading("aa:bb:cc:dd:ee:01", 2412, -60),
			want:    -60,
		},
		{
			name:    "wifi unavailable",
			reading: wifiReading("aa:bb:cc:dd:ee:01", 2412, Unavailable),
			want:    WiFiMinDbm - 1,
		},
		{
			name:    "wifi zero",
			reading: wifiReading("aa:bb:cc:dd:ee:01", 2412, 0),
			want:    WiFiMinDbm - 1,
		},
		{
			name: "gsm below range",
			reading: Reading{
				Category: CategoryCellular,
				Dbm:      -120,
				Cellular: &Cellular{Technology: TechnologyGSM, GSM: &GSMCell{}},
			},
			want: GSMMinDbm - 1,
		},
		{
			name: "lte rsrp range without rssi",
			reading: Reading{
				Category: CategoryCellular,
				Dbm:      -130,
				Cellular: &Cellular{Technology: TechnologyLTE, LTE: &LTECell{RSSI: Unavailable, RSRP: -130}},
			},
			want: -130,
		},
		{
			name: "lte rssi range",
			reading: Reading{
				Category: CategoryCellular,
				Dbm:      -130,
				Cellular: &Cellular{Technology: TechnologyLTE, LTE: &LTECell{RSSI: 10, RSRP: -130}},
			},
			want: -114,
		},
		{
			name: "cdma zero is valid",
			reading: Reading{
				Category: CategoryCellular,
				Dbm:      0,
				Cellular: &Cellular{Technology: TechnologyCDMA, CDMA: &CDMACell{}},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.reading
			r.Normalize()
			if r.Dbm != tt.want {
				t.Errorf("Expected dbm %d, got %d", tt.want, r.Dbm)
			}

			// Normalizing twice changes nothing
			r.Normalize()
			if r.Dbm != tt.want {
				t.Errorf("Expected dbm %d after second normalize, got %d", tt.want, r.Dbm)
			}
		})
	}
}

func TestLTEDbm(t *testing.T) {
	if got := LTEDbm(31, -100); got != -51 {
		t.Errorf("Expected -51, got %d", got)
	}
	if got := LTEDbm(Unavailable, -100); got != -100 {
		t.Errorf("Expected rsrp fallback -100, got %d", got)
	}
	if got := LTEDbm(99, -90); got != -90 {
		t.Errorf("Expected rsrp fallback -90, got %d", got)
	}
}

func TestCompare(t *testing.T) {
	strong := wifiReading("aa:bb:cc:dd:ee:01", 2412, -40)
	weak := wifiReading("aa:bb:cc:dd:ee:02", 2412, -80)
	invalidA := wifiReading("aa:bb:cc:dd:ee:03", 2412, Unavailable)
	invalidB := wifiReading("aa:bb:cc:dd:ee:04", 2412, 5)
	invalidA.Normalize()

	if Compare(&strong, &weak) <= 0 {
		t.Error("Expected strong reading to compare greater than weak")
	}
	if Compare(&weak, &strong) >= 0 {
		t.Error("Expected weak reading to compare less than strong")
	}
	if Compare(&weak, &invalidA) <= 0 {
		t.Error("Expected valid reading to compare greater than invalid")
	}
	if Compare(&invalidA, &weak) >= 0 {
		t.Error("Expected invalid reading to compare less than valid")
	}
	if Compare(&invalidA, &invalidB) != 0 {
		t.Error("Expected invalid readings to compare equal")
	}
}

func TestClone_Independent(t *testing.T) {
	lat, lon := 51.5, -0.12
	orig := Reading{
		Category:  CategoryCellular,
		Dbm:       -90,
		Latitude:  &lat,
		Longitude: &lon,
		Cellular: &Cellular{
			Technology: TechnologyLTE,
			MCC:        234,
			MNC:        15,
			LTE:        &LTECell{ECI: 1, PCI: 2, TAC: 3, EARFCN: 6300, RSSI: Unavailable, RSRP: -90},
		},
	}

	c := orig.Clone()
	*c.Latitude = 0
	c.Cellular.MCC = 1
	c.Cellular.LTE.ECI = 42

	if *orig.Latitude != 51.5 {
		t.Errorf("Expected original latitude untouched, got %v", *orig.Latitude)
	}
	if orig.Cellular.MCC != 234 {
		t.Errorf("Expected original MCC untouched, got %d", orig.Cellular.MCC)
	}
	if orig.Cellular.LTE.ECI != 1 {
		t.Errorf("Expected original ECI untouched, got %d", orig.Cellular.LTE.ECI)
	}

	w := wifiReading("aa:bb:cc:dd:ee:01", 2412, -50)
	wc := w.Clone()
	wc.WiFi.SSID = "Other"
	if w.WiFi.SSID != "Home" {
		t.Errorf("Expected original SSID untouched, got %q", w.WiFi.SSID)
	}
}

func TestIdentity(t *testing.T) {
	a := wifiReading("AA:BB:CC:DD:EE:01", 2412, -50)
	b := wifiReading("aa-bb-cc-dd-ee-01", 2412, -70)
	b.WiFi.SSID = "Renamed"
	c := wifiReading("aa:bb:cc:dd:ee:01", 5180, -50)

	ida, err := a.Identity()
	if err != nil {
		t.Fatalf("Failed to get identity: %v", err)
	}
	idb, err := b.Identity()
	if err != nil {
		t.Fatalf("Failed to get identity: %v", err)
	}
	idc, err := c.Identity()
	if err != nil {
		t.Fatalf("Failed to get identity: %v", err)
	}

	if ida != idb {
		t.Errorf("Expected same identity for same BSSID, got %q and %q", ida, idb)
	}
	if ida == idc {
		t.Errorf("Expected different identity for different frequency, got %q", ida)
	}

	// Timing advance is not part of the identity
	g1 := Reading{Category: CategoryCellular, Cellular: &Cellular{Technology: TechnologyGSM, MCC: 234, MNC: 10, GSM: &GSMCell{CID: 7, LAC: 8, TimingAdvance: 1}}}
	g2 := Reading{Category: CategoryCellular, Cellular: &Cellular{Technology: TechnologyGSM, MCC: 234, MNC: 10, GSM: &GSMCell{CID: 7, LAC: 8, TimingAdvance: 9}}}
	id1, _ := g1.Identity()
	id2, _ := g2.Identity()
	if id1 == "" || id1 != id2 {
		t.Errorf("Expected equal GSM identities, got %q and %q", id1, id2)
	}
}

func TestIdentity_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		reading Reading
		field   string
	}{
		{"wifi without payload", Reading{Category: CategoryWiFi}, "wifi"},
		{"wifi bad bssid", wifiReading("not-a-mac", 2412, -50), "bssid"},
		{"wifi long bssid", wifiReading("00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01", 2412, -50), "bssid"},
		{"wifi zero frequency", wifiReading("aa:bb:cc:dd:ee:01", 0, -50), "frequency"},
		{"bluetooth empty address", Reading{Category: CategoryBluetooth, Bluetooth: &Bluetooth{Name: "x"}}, "address"},
		{"lte without cell", Reading{Category: CategoryCellular, Cellular: &Cellular{Technology: TechnologyLTE}}, "lte"},
		{"unknown technology", Reading{Category: CategoryCellular, Cellular: &Cellular{Technology: "tdscdma"}}, "technology"},
		{"unknown category", Reading{}, "category"},
		{"placeholder", Absent(CategoryWiFi), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reading.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}

			var merr *MalformedError
			if !errors.As(err, &merr) {
				t.Fatalf("Expected *MalformedError, got %T", err)
			}
			if merr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, merr.Field)
			}
		})
	}
}

func TestAbsent(t *testing.T) {
	for _, c := range Categories {
		t.Run(c.String(), func(t *testing.T) {
			r := Absent(c)
			if !r.Placeholder {
				t.Error("Expected placeholder flag")
			}
			if r.Category != c {
				t.Errorf("Expected category %v, got %v", c, r.Category)
			}
			if r.InRange() {
				t.Errorf("Expected out of range dbm, got %d", r.Dbm)
			}
		})
	}

	cell := Absent(CategoryCellular)
	if cell.Cellular == nil || cell.Cellular.Technology != TechnologyGSM {
		t.Error("Expected GSM cellular placeholder")
	}
	if cell.Dbm != GSMMinDbm-1 {
		t.Errorf("Expected dbm %d, got %d", GSMMinDbm-1, cell.Dbm)
	}
}

func TestDisplayName(t *testing.T) {
	hidden := wifiReading("aa:bb:cc:dd:ee:01", 2412, -50)
	hidden.WiFi.SSID = ""

	tests := []struct {
		name    string
		reading Reading
		want    string
	}{
		{"ssid", wifiReading("aa:bb:cc:dd:ee:01", 2412, -50), "Home"},
		{"hidden ssid", hidden, "<hidden>"},
		{"unnamed device", Reading{Category: CategoryBluetooth, Bluetooth: &Bluetooth{}}, "<n/a>"},
		{"cell", Reading{Category: CategoryCellular, Cellular: &Cellular{Technology: TechnologyLTE, MCC: 208, MNC: 1}}, "LTE 208-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reading.DisplayName(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
