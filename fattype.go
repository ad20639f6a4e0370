package fatvol

// FatType identifies which of the three on-disk FAT variants a volume uses.
type FatType int

const (
	FatUnknown FatType = iota
	FAT12
	FAT16
	FAT32
)

func (t FatType) String() string {
	switch t {
	case FAT12:
		return "FAT12"
	case FAT16:
		return "FAT16"
	case FAT32:
		return "FAT32"
	default:
		return "unknown"
	}
}

// CellBits is the width, in bits, of one FAT cell for this type. FAT32
// cells occupy 32 bits on disk but carry only 28 significant bits.
func (t FatType) CellBits() int {
	switch t {
	case FAT12:
		return 12
	case FAT16:
		return 16
	case FAT32:
		return 28
	default:
		return 0
	}
}

// classifyFatType derives the FAT type from total cluster count, per the
// "MS convention": <4085 is FAT12, <65525 is FAT16, else FAT32. It
// also evaluates the second convention (keyed on the presence of
// BPB_FATSz32 and on >= 4085 clusters) and returns a bool indicating
// whether the two conventions agree, since the caller must log a
// diagnostic and prefer the second convention's answer when they disagree.
func classifyFatType(totalClusters uint32, hasFATSz32 bool) (chosen FatType, agreed bool) {
	msConvention := func(n uint32) FatType {
		switch {
		case n < 4085:
			return FAT12
		case n < 65525:
			return FAT16
		default:
			return FAT32
		}
	}

	bySize := msConvention(totalClusters)

	byPresence := FAT16
	if hasFATSz32 && totalClusters >= 4085 {
		byPresence = FAT32
	} else if totalClusters < 4085 {
		byPresence = FAT12
	}

	if bySize == byPresence {
		return bySize, true
	}
	return byPresence, false
}

// dataSectorsAndClusters computes the data-region sector and cluster counts
// used both for FAT-type classification on open and for FATSz computation
// during mkfs.
func dataSectorsAndClusters(totalSectors, reservedSectors, numFATs, fatSzSectors, rootDirSectors, secPerClus uint32) (dataSectors, totalClusters uint32) {
	nonData := reservedSectors + numFATs*fatSzSectors + rootDirSectors
	if totalSectors < nonData {
		return 0, 0
	}
	dataSectors = totalSectors - nonData
	if secPerClus == 0 {
		return dataSectors, 0
	}
	totalClusters = dataSectors / secPerClus
	return dataSectors, totalClusters
}
