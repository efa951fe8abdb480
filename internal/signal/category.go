package signal

import (
	"fmt"
	"strings"
)

const (
	CategoryWiFi Category = iota + 1
	CategoryBluetooth
	CategoryCellular
)

// Categories lists every category in the order caches walk them.
var Categories = []Category{CategoryWiFi, CategoryBluetooth, CategoryCellular}

// Category is the kind of radio a reading was scanned from
type Category uint8

func (c Category) String() string {
	switch c {
	case CategoryWiFi:
		return "wifi"
	case CategoryBluetooth:
		return "bluetooth"
	case CategoryCellular:
		return "cellular"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	return c >= CategoryWiFi && c <= CategoryCellular
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("signal.Category: unknown category %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	cat, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = cat
	return nil
}

// ParseCategory parses a category name such as "wifi", "bluetooth" or "cellular"
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wifi", "wi-fi":
		return CategoryWiFi, nil
	case "bluetooth", "bt":
		return CategoryBluetooth, nil
	case "cellular", "cell":
		return CategoryCellular, nil
	default:
		return 0, fmt.Errorf("signal.Category: unknown category '%s'", s)
	}
}

const (
	TechnologyGSM   Technology = "gsm"
	TechnologyWCDMA Technology = "wcdma"
	TechnologyLTE   Technology = "lte"
	TechnologyNR    Technology = "nr"
	TechnologyCDMA  Technology = "cdma"
	TechnologyEVDO  Technology = "evdo"
)

// Technology is the radio access technology of a cellular reading
type Technology string

func (t Technology) String() string {
	return string(t)
}
