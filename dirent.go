package fatvol

import (
	"time"

	ferrors "github.com/mxvoid/fatvol/errors"
)

const direntSize = 32

// Directory-entry attribute bits.
const (
	AttrReadOnly  uint8 = 0x01
	AttrHidden    uint8 = 0x02
	AttrSystem    uint8 = 0x04
	AttrVolumeID  uint8 = 0x08
	AttrDirectory uint8 = 0x10
	AttrArchive   uint8 = 0x20
	AttrLongName  uint8 = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

const (
	direntFreeMarker byte = 0xE5
	direntLastMarker byte = 0x00
	direntEscapedE5  byte = 0x05 // first byte encodes a literal 0xE5 filename char
)

// fatEpoch is the earliest instant FAT timestamps can represent
// (1980-01-01, local to the volume). Accessors below reject instants
// before it.
var fatEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.Local)

// EightDotThree is the raw 11-byte short-name field of a directory entry.
// Name/extension codec rules (case bits, OEM codepage) are an external
// collaborator's concern; this type only exposes the bytes and the two
// sentinel markers every scanner must recognize.
type EightDotThree [11]byte

func (e EightDotThree) IsFree() bool       { return e[0] == direntFreeMarker }
func (e EightDotThree) IsLastEntry() bool  { return e[0] == direntLastMarker }
func (e EightDotThree) IsDot() bool        { return e == dotEntryName }
func (e EightDotThree) IsDotDot() bool     { return e == dotDotEntryName }

// String renders "BASE.EXT" with trailing spaces trimmed; it performs no
// OEM-codepage decoding, since that is out of scope.
func (e EightDotThree) String() string {
	base := trimTrailingSpaces(e[0:8])
	ext := trimTrailingSpaces(e[8:11])
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func trimTrailingSpaces(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

var dotEntryName = EightDotThree{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
var dotDotEntryName = EightDotThree{'.', '.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

// rawDirent is the 32-byte on-disk short-name directory entry.
type rawDirent struct {
	Name             EightDotThree
	Attr             uint8
	NTReserved       uint8
	CreateTimeTenths uint8
	CreateTime       uint16
	CreateDate       uint16
	LastAccessDate   uint16
	FirstClusterHigh uint16
	WriteTime        uint16
	WriteDate        uint16
	FirstClusterLow  uint16
	FileSize         uint32
}

// rawLongDirent is one 32-byte LFN record.
type rawLongDirent struct {
	Ord              uint8
	Name1            [10]byte // 5 UTF-16 code units
	Attr             uint8    // always AttrLongName
	Type             uint8
	Checksum         uint8
	Name2            [12]byte // 6 UTF-16 code units
	FirstClusterLow  uint16   // always 0
	Name3            [4]byte // 2 UTF-16 code units
}

const lfnLastFlag = 0x40
const lfnOrdMask = 0x1F
const lfnUnitsPerEntry = 13

// DirectoryEntry is the friendly, consumed-abstractly value type the
// Directory Scanner produces: a short-name record optionally preceded by a
// folded long name.
type DirectoryEntry struct {
	ShortName    EightDotThree
	LongName     string
	Attr         uint8
	Size         uint32
	FirstCluster uint32
	CreateTime   time.Time
	WriteTime    time.Time
	AccessDate   time.Time
}

func (d *DirectoryEntry) IsDirectory() bool { return d.Attr&AttrDirectory != 0 }
func (d *DirectoryEntry) IsVolumeLabel() bool { return d.Attr&AttrVolumeID != 0 }
func (d *DirectoryEntry) IsSpecial() bool {
	return d.ShortName.IsDot() || d.ShortName.IsDotDot()
}

// Name returns the long name if one was folded in, else the short name's
// "BASE.EXT" rendering.
func (d *DirectoryEntry) Name() string {
	if d.LongName != "" {
		return d.LongName
	}
	return d.ShortName.String()
}

func fromRawDirent(raw rawDirent, longName string) *DirectoryEntry {
	return &DirectoryEntry{
		ShortName:    raw.Name,
		LongName:     longName,
		Attr:         raw.Attr,
		Size:         raw.FileSize,
		FirstCluster: uint32(raw.FirstClusterHigh)<<16 | uint32(raw.FirstClusterLow),
		CreateTime:   fatTimestamp(raw.CreateDate, raw.CreateTime, raw.CreateTimeTenths),
		WriteTime:    fatTimestamp(raw.WriteDate, raw.WriteTime, 0),
		AccessDate:   fatTimestamp(raw.LastAccessDate, 0, 0),
	}
}

func (d *DirectoryEntry) toRawDirent() rawDirent {
	createDate, createTime, tenths := packFatTimestamp(d.CreateTime)
	writeDate, writeTime, _ := packFatTimestamp(d.WriteTime)
	accessDate, _, _ := packFatTimestamp(d.AccessDate)
	return rawDirent{
		Name:             d.ShortName,
		Attr:             d.Attr,
		CreateTimeTenths: tenths,
		CreateTime:       createTime,
		CreateDate:       createDate,
		LastAccessDate:   accessDate,
		FirstClusterHigh: uint16(d.FirstCluster >> 16),
		WriteTime:        writeTime,
		WriteDate:        writeDate,
		FirstClusterLow:  uint16(d.FirstCluster & 0xFFFF),
		FileSize:         d.Size,
	}
}

// fatTimestamp unpacks a FAT date/time/tenths triple into a time.Time. A
// zero date (never written) yields the zero time.Time, not fatEpoch.
func fatTimestamp(date, timePart uint16, tenths uint8) time.Time {
	if date == 0 {
		return time.Time{}
	}
	day := int(date & 0x1F)
	month := time.Month((date >> 5) & 0x0F)
	year := 1980 + int((date>>9)&0x7F)

	second := int(timePart&0x1F) * 2
	minute := int((timePart >> 5) & 0x3F)
	hour := int((timePart >> 11) & 0x1F)

	nanos := int(tenths%100) * 10 * int(time.Millisecond)
	if tenths >= 100 {
		second++
	}
	return time.Date(year, month, day, hour, minute, second, nanos, time.Local)
}

// packFatTimestamp is the inverse of fatTimestamp. It does no validation
// (SetCreatedAt etc. reject pre-epoch instants); a zero time.Time packs to
// all-zero fields, which fatTimestamp decodes back to the zero time.
func packFatTimestamp(t time.Time) (date, timePart uint16, tenths uint8) {
	if t.IsZero() {
		return 0, 0, 0
	}
	date = uint16((t.Year()-1980)<<9) | uint16(int(t.Month())<<5) | uint16(t.Day())
	timePart = uint16(t.Hour()<<11) | uint16(t.Minute()<<5) | uint16(t.Second()/2)
	tenths = uint8((t.Second()%2)*100) + uint8(t.Nanosecond()/10/int(time.Millisecond))
	return date, timePart, tenths
}

// validateTimestamp rejects an instant earlier than the FAT epoch.
func validateTimestamp(t time.Time) error {
	if t.Before(fatEpoch) {
		return ferrors.New(ferrors.ErrBadSignature, "timestamp predates the FAT epoch (1980-01-01)")
	}
	return nil
}

// SetCreatedAt validates and assigns the creation timestamp.
func (d *DirectoryEntry) SetCreatedAt(t time.Time) error {
	if err := validateTimestamp(t); err != nil {
		return err
	}
	d.CreateTime = t
	return nil
}

// SetModifiedAt validates and assigns the last-write timestamp.
func (d *DirectoryEntry) SetModifiedAt(t time.Time) error {
	if err := validateTimestamp(t); err != nil {
		return err
	}
	d.WriteTime = t
	return nil
}

// isLFNEntry reports whether a raw 32-byte record is an LFN record: its
// attribute byte is exactly AttrLongName and its first byte isn't the
// free-slot marker.
func isLFNEntry(firstByte, attr byte) bool {
	return attr == AttrLongName && firstByte != direntFreeMarker
}

// foldLFNRun reconstructs the long name from a run of LFN records already
// in on-disk order (last-logical-entry first, per the FAT convention of
// storing LFN records in reverse). It returns "" if the run is empty,
// incomplete, or checksum-mismatched against sfnChecksum.
func foldLFNRun(run []rawLongDirent, sfnChecksum uint8) string {
	if len(run) == 0 {
		return ""
	}
	for _, r := range run {
		if r.Checksum != sfnChecksum {
			return ""
		}
	}
	// run[0] is the first one encountered while scanning forward, i.e. the
	// highest sequence number (it carries the "last logical entry" flag).
	if run[0].Ord&lfnLastFlag == 0 {
		return ""
	}
	expectedCount := int(run[0].Ord & lfnOrdMask)
	if expectedCount != len(run) {
		return ""
	}

	units := make([]uint16, 0, lfnUnitsPerEntry*len(run))
	// Records must be assembled in ascending sequence-number order, which is
	// the reverse of scan order.
	for i := len(run) - 1; i >= 0; i-- {
		units = append(units, lfnNameUnits(run[i])...)
	}

	return utf16ToString(units)
}

func lfnNameUnits(r rawLongDirent) []uint16 {
	units := make([]uint16, 0, lfnUnitsPerEntry)
	for i := 0; i < 10; i += 2 {
		u := uint16(r.Name1[i]) | uint16(r.Name1[i+1])<<8
		if u == 0 {
			return units
		}
		units = append(units, u)
	}
	for i := 0; i < 12; i += 2 {
		u := uint16(r.Name2[i]) | uint16(r.Name2[i+1])<<8
		if u == 0 {
			return units
		}
		units = append(units, u)
	}
	for i := 0; i < 4; i += 2 {
		u := uint16(r.Name3[i]) | uint16(r.Name3[i+1])<<8
		if u == 0 {
			return units
		}
		units = append(units, u)
	}
	return units
}

// utf16ToString decodes UTF-16LE code units with a minimal surrogate-pair
// aware pass, avoiding a dependency on golang.org/x/text/encoding just for
// this one conversion.
func utf16ToString(units []uint16) string {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) {
			lo := units[i+1]
			if lo >= 0xDC00 && lo <= 0xDFFF {
				r := rune(0x10000 + (int32(u)-0xD800)<<10 + (int32(lo) - 0xDC00))
				runes = append(runes, r)
				i++
				continue
			}
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}
