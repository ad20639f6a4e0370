package fatvol

import ferrors "github.com/mxvoid/fatvol/errors"

// clusterAddr returns the byte address of cluster c (c >= 2):
// ((c-2) * SecPerClus + first_data_sector) * BytsPerSec.
func (v *Volume) clusterAddr(c uint32) int64 {
	secPerClus := int64(v.bpb.Common.SectorsPerCluster)
	bytsPerSec := int64(v.bpb.Common.BytesPerSector)
	return (int64(c-2)*secPerClus + int64(v.firstDataSector)) * bytsPerSec
}

// readCluster returns exactly BytesPerCluster bytes from cluster c.
func (v *Volume) readCluster(c uint32) ([]byte, error) {
	buf := make([]byte, v.bytesPerCluster)
	if err := v.container.readAt(v.clusterAddr(c), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadClusterContents returns the raw BytesPerCluster-sized payload of a
// single cluster, the public counterpart to the chain-following reads
// scanChain and friends do internally.
func (v *Volume) ReadClusterContents(c uint32) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if c < 2 || c >= v.totalClusters+2 {
		return nil, ferrors.New(ferrors.ErrIOError, "cluster index out of range")
	}
	return v.readCluster(c)
}

// writeBytesAt writes data verbatim at the given volume-relative address,
// without re-validating bounds: every call site inside this package has
// already computed addr from a cluster index it trusts.
func (v *Volume) writeBytesAt(addr int64, data []byte) error {
	return v.container.writeAt(addr, data)
}

// writeCluster writes exactly one cluster's worth of data to cluster c,
// zero-padding a short payload to the cluster boundary.
func (v *Volume) writeCluster(c uint32, data []byte) error {
	if len(data) > int(v.bytesPerCluster) {
		return ferrors.New(ferrors.ErrIOError, "payload larger than one cluster")
	}
	if len(data) < int(v.bytesPerCluster) {
		padded := make([]byte, v.bytesPerCluster)
		copy(padded, data)
		data = padded
	}
	return v.writeBytesAt(v.clusterAddr(c), data)
}

// zeroCluster writes a cluster's worth of zero bytes, used by erase=true
// allocation.
func (v *Volume) zeroCluster(c uint32) error {
	return v.writeBytesAt(v.clusterAddr(c), make([]byte, v.bytesPerCluster))
}
