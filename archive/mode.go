package archive

import "strings"

// Mode is a Unix-style permission bit-set carried in an entry's mode field
// (spec.md §3/§6 names the field a plain u32; this restores the
// owner/group/other read/write/execute bits the original nuts-archive mode
// module carries, see original_source/nuts-archive/src/mode.rs). The entry
// type tag already lives in its own wire field (entryHeader.typ), so unlike
// the original, Mode here encodes permissions only, not filetype.
type Mode uint32

const (
	ModeOwnerRead  Mode = 1 << 8
	ModeOwnerWrite Mode = 1 << 7
	ModeOwnerExec  Mode = 1 << 6
	ModeGroupRead  Mode = 1 << 5
	ModeGroupWrite Mode = 1 << 4
	ModeGroupExec  Mode = 1 << 3
	ModeOtherRead  Mode = 1 << 2
	ModeOtherWrite Mode = 1 << 1
	ModeOtherExec  Mode = 1 << 0
)

// DefaultFileMode and DefaultDirMode mirror the original crate's
// DEFAULT_PERMISSIONS_FILE/DIRECTORY constants: owner read+write plus
// group and other read ("rw-r--r--"), plus all-execute for directories
// ("rwxr-xr-x").
const (
	DefaultFileMode = ModeOwnerRead | ModeOwnerWrite | ModeGroupRead | ModeOtherRead
	DefaultDirMode  = DefaultFileMode | ModeOwnerExec | ModeGroupExec | ModeOtherExec
)

// Has reports whether all bits in want are set in m.
func (m Mode) Has(want Mode) bool {
	return m&want == want
}

// String renders m the way `ls -l` renders a permission column, e.g.
// "rwxr-xr--".
func (m Mode) String() string {
	var b strings.Builder
	bits := []struct {
		flag Mode
		ch   byte
	}{
		{ModeOwnerRead, 'r'}, {ModeOwnerWrite, 'w'}, {ModeOwnerExec, 'x'},
		{ModeGroupRead, 'r'}, {ModeGroupWrite, 'w'}, {ModeGroupExec, 'x'},
		{ModeOtherRead, 'r'}, {ModeOtherWrite, 'w'}, {ModeOtherExec, 'x'},
	}
	for _, bit := range bits {
		if m.Has(bit.flag) {
			b.WriteByte(bit.ch)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ModeFromFtype returns the default permission bits for a freshly created
// entry of typ, matching the original crate's Mode::from_ftype.
func ModeFromFtype(typ EntryType) Mode {
	if typ == TypeDir {
		return DefaultDirMode
	}
	return DefaultFileMode
}
