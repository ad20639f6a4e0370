// Package errors defines the sentinel error taxonomy surfaced by the fatvol
// volume engine. It intentionally shadows the name of the standard library
// "errors" package; callers that need both import this one under an alias,
// the same way the rest of this codebase does.
package errors

// FatError is a sentinel error constant. Compare against the package-level
// constants with errors.Is, not with ==, since a FatError returned to a
// caller is usually wrapped to carry additional context.
type FatError string

func (e FatError) Error() string {
	return string(e)
}

const (
	// Container capability problems.
	ErrNotReadable FatError = "container is not readable"
	ErrNotSeekable FatError = "container is not seekable"
	ErrNotWritable FatError = "container is not writable"

	// BPB validation.
	ErrBadSignature    FatError = "boot sector missing 0x55AA signature"
	ErrBadJmpBoot      FatError = "BS_jmpBoot has an unrecognized opcode"
	ErrBadBytsPerSec   FatError = "BPB_BytsPerSec is not a supported power of two"
	ErrBadSecPerClus   FatError = "BPB_SecPerClus is not a supported power of two"
	ErrBadMedia        FatError = "BPB_Media is not a recognized media descriptor"
	ErrBadRootEntAlign FatError = "BPB_RootEntCnt does not align to a sector boundary"
	ErrBadTotalSectors FatError = "BPB_TotSec16/BPB_TotSec32 are inconsistent"
	ErrBadFATSz        FatError = "FAT size in sectors is zero or otherwise invalid"

	// Chain and allocation.
	ErrCorruptChain FatError = "cluster chain is corrupt"
	ErrNoSpace      FatError = "not enough free clusters"

	// Write path / I/O.
	ErrReadOnly FatError = "volume is read-only"
	ErrIOError  FatError = "container I/O failed"

	ErrUnsupportedFatType FatError = "unsupported or undetermined FAT type"

	// Lifecycle misuse, not part of the distilled taxonomy but needed to
	// keep the Volume state machine honest.
	ErrNotOpen     FatError = "volume is not open"
	ErrAlreadyOpen FatError = "volume is already open"
)
