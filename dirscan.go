package fatvol

import (
	"bytes"
	"encoding/binary"
)

// shortNameChecksum is the standard FAT LFN checksum over the 11-byte
// short-name field, used to validate that a pending LFN run actually
// belongs to the short-name entry that follows it.
func shortNameChecksum(name EightDotThree) uint8 {
	var sum uint8
	for _, b := range name {
		lowBit := sum & 1
		sum = (sum >> 1) + b
		if lowBit != 0 {
			sum += 0x80
		}
	}
	return sum
}

func parseRawDirent(record []byte) rawDirent {
	var d rawDirent
	_ = binary.Read(bytes.NewReader(record), binary.LittleEndian, &d)
	return d
}

func parseRawLongDirent(record []byte) rawLongDirent {
	var d rawLongDirent
	_ = binary.Read(bytes.NewReader(record), binary.LittleEndian, &d)
	return d
}

// scanRange walks 32-byte directory records in data, folding any LFN runs
// into their short-name successor. carryIn is a pending LFN run left
// over from a previous call (used by scanChain to thread a run across a
// cluster boundary); carryOut is returned for the same purpose.
//
// This does not recurse into subdirectories: per the design note on eager
// vs. on-demand directory materialization, this module resolves that open
// question in favor of on-demand listing (see ListDirectory), so the
// scanner's job here ends at producing the flat entry list for one
// directory's own records.
func scanRange(data []byte, carryIn []rawLongDirent) (entries []*DirectoryEntry, carryOut []rawLongDirent) {
	pending := carryIn

	for off := 0; off+direntSize <= len(data); off += direntSize {
		record := data[off : off+direntSize]
		first := record[0]
		attr := record[11]

		if first == direntLastMarker {
			return entries, nil
		}
		if first == direntFreeMarker {
			pending = nil
			continue
		}
		if isLFNEntry(first, attr) {
			pending = append(pending, parseRawLongDirent(record))
			continue
		}

		raw := parseRawDirent(record)
		longName := ""
		if len(pending) > 0 {
			longName = foldLFNRun(pending, shortNameChecksum(raw.Name))
		}
		pending = nil

		entries = append(entries, fromRawDirent(raw, longName))
	}

	return entries, pending
}

// scanChain feeds scanRange cluster by cluster, threading the LFN carry
// across cluster boundaries.
func (v *Volume) scanChain(head uint32) ([]*DirectoryEntry, error) {
	clusters, err := v.GetClusterChain(head)
	if err != nil {
		return nil, err
	}

	var all []*DirectoryEntry
	var carry []rawLongDirent
	for _, c := range clusters {
		data, err := v.readCluster(c)
		if err != nil {
			return nil, err
		}
		var entries []*DirectoryEntry
		entries, carry = scanRange(data, carry)
		all = append(all, entries...)
	}
	return all, nil
}

// scanFixedRegion scans the FAT12/16 fixed-region root directory.
func (v *Volume) scanFixedRegion(addr int64, size int64) ([]*DirectoryEntry, error) {
	buf := make([]byte, size)
	if err := v.container.readAt(addr, buf); err != nil {
		return nil, err
	}
	entries, _ := scanRange(buf, nil)
	return entries, nil
}

// ListDirectory returns the entries of a subdirectory on demand (the
// on-demand alternative to eager recursive parsing, see scanRange's doc
// comment) by following the cluster chain at dir.FirstCluster. It does not
// read the FAT12/16 fixed root region; Volume.Root lists the root directory.
func (v *Volume) ListDirectory(dir *DirectoryEntry) ([]*DirectoryEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scanChain(dir.FirstCluster)
}
