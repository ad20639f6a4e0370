// Package mkfstables embeds the mkfs SecPerClus selection table, the only
// part of mkfs's sizing logic that is naturally tabular data rather than
// algorithm; loading it through gocsv rather than a hand-written Go literal
// matches the way this codebase already ships its other threshold/geometry
// tables.
package mkfstables

import (
	_ "embed"

	"github.com/gocarina/gocsv"
)

//go:embed secperclus.csv
var secPerClusCSV []byte

// Threshold is one (fat_type, max_sectors, sec_per_clus) row. A SecPerClus
// of 0 means the size is invalid for that FAT type ("ERROR" in the
// standard reference table).
type Threshold struct {
	FATType    string `csv:"fat_type"`
	MaxSectors uint64 `csv:"max_sectors"`
	SecPerClus uint32 `csv:"sec_per_clus"`
}

var thresholds []*Threshold

func init() {
	if err := gocsv.UnmarshalBytes(secPerClusCSV, &thresholds); err != nil {
		panic("mkfstables: embedded secperclus.csv failed to parse: " + err.Error())
	}
}

// SecPerClus returns the first matching SecPerClus for fatType and a given
// total sector count, first match wins. ok is false if fatType
// has no rows at all (an unrecognized type); a matched row with SecPerClus
// == 0 means "invalid size for this FAT type", which the caller must
// still handle explicitly.
func SecPerClus(fatType string, totalSectors uint64) (spc uint32, ok bool) {
	for _, t := range thresholds {
		if t.FATType != fatType {
			continue
		}
		ok = true
		if totalSectors <= t.MaxSectors {
			return t.SecPerClus, true
		}
	}
	return 0, ok
}
