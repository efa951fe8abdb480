package signal

// Absent forges the placeholder reading handed to consumers for a category
// with no live readings. Cellular placeholders are GSM cells.
func Absent(category Category) Reading {
	r := Reading{
		Category:    category,
		Dbm:         Unavailable,
		Placeholder: true,
	}

	switch category {
	case CategoryWiFi:
		r.WiFi = &WiFi{}
	case CategoryBluetooth:
		r.Bluetooth = &Bluetooth{}
	case CategoryCellular:
		r.Cellular = &Cellular{Technology: TechnologyGSM, GSM: &GSMCell{}}
	}

	r.Normalize()
	return r
}
