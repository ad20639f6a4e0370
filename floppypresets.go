package fatvol

import (
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

// FloppyGeometry is a named, standard floppy-disk geometry, adapted from the
// original disk-geometry catalog into the handful of fields mkfs actually
// needs: total size and sector size. (Common preset sizes
// for Mkfs callers that don't want to compute a total byte count by hand.)
type FloppyGeometry struct {
	Slug       string `csv:"slug"`
	Name       string `csv:"name"`
	SectorSize uint   `csv:"sector_size"`
	Sectors    uint   `csv:"sectors"`
}

// TotalSizeBytes is the minimum container size mkfs needs for this geometry.
func (g FloppyGeometry) TotalSizeBytes() int64 {
	return int64(g.SectorSize) * int64(g.Sectors)
}

const floppyGeometryCSV = `slug,name,sector_size,sectors
360k,"360 KB 5.25-inch DD",512,720
720k,"720 KB 3.5-inch DD",512,1440
1.2m,"1.2 MB 5.25-inch HD",512,2400
1.44m,"1.44 MB 3.5-inch HD",512,2880
2.88m,"2.88 MB 3.5-inch ED",512,5760
`

var floppyGeometries map[string]FloppyGeometry

func init() {
	var rows []FloppyGeometry
	if err := gocsv.UnmarshalString(strings.TrimSpace(floppyGeometryCSV)+"\n", &rows); err != nil {
		panic("fatvol: embedded floppy geometry table failed to parse: " + err.Error())
	}
	floppyGeometries = make(map[string]FloppyGeometry, len(rows))
	for _, row := range rows {
		floppyGeometries[row.Slug] = row
	}
}

// FloppyGeometryBySlug returns a predefined floppy geometry by its slug
// (e.g. "1.44m"), for callers that want to mkfs a standard-size image
// without computing the byte count themselves.
func FloppyGeometryBySlug(slug string) (FloppyGeometry, error) {
	g, ok := floppyGeometries[slug]
	if !ok {
		return FloppyGeometry{}, fmt.Errorf("no predefined floppy geometry with slug %q", slug)
	}
	return g, nil
}
