package ftpq

import (
	"time"
)

// EntryType classifies a directory entry.
type EntryType int

const (
	// EntryTypeFile is a regular file.
	EntryTypeFile EntryType = iota
	// EntryTypeDirectory is a directory.
	EntryTypeDirectory
	// EntryTypeSymlink is a symbolic link.
	EntryTypeSymlink
	// EntryTypeUnknown is anything the listing did not classify.
	EntryTypeUnknown
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeFile:
		return "file"
	case EntryTypeDirectory:
		return "directory"
	case EntryTypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// TimeLayout is the layout entry timestamps render to and parse from. The
// zone abbreviation rides along so a formatted time survives a round trip
// through FormatEntryTime and ParseEntryTime.
const TimeLayout = "2006-01-02 15:04:05 MST"

// FormatEntryTime renders t in the canonical entry timestamp layout.
func FormatEntryTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// ParseEntryTime parses a timestamp produced by FormatEntryTime.
func ParseEntryTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, &ParseError{What: "entry timestamp", Sample: s}
	}
	return t, nil
}

// Entry is one line of a directory listing, normalized across LIST, MLSD
// and EPLF output.
type Entry struct {
	// Name is the entry name, without any path.
	Name string

	// Type classifies the entry.
	Type EntryType

	// Size in bytes. Directories usually report zero.
	Size int64

	// ModTime is the modification time as reported by the server, zero
	// when the listing carried none.
	ModTime time.Time

	// LinkTarget is the target path for symbolic links, empty otherwise.
	LinkTarget string

	// Raw is the listing line the entry was parsed from.
	Raw string
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Type == EntryTypeDirectory
}

// ModTimeString renders the entry's modification time in TimeLayout, or ""
// when the listing carried no time.
func (e *Entry) ModTimeString() string {
	if e.ModTime.IsZero() {
		return ""
	}
	return FormatEntryTime(e.ModTime)
}
