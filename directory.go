package ftpq

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// List returns the entries of a directory. An empty path lists the current
// directory.
//
// LIST output has no standard shape, so lines run through a parser chain
// covering the common formats:
//
//   - Unix-style (9-field): perms links owner group size month day time/year name
//   - Unix-style (8-field): perms links owner size month day time/year name
//   - Unix-style (numeric): 644 links owner group size month day time/year name
//   - DOS/Windows: MM-DD-YY HH:MMAM/PM size|<DIR> filename
//   - EPLF: +facts\tname or +facts name
//
// Lines no parser understands are skipped. When the server sent lines but
// none parsed, the result is a ParseError rather than a silently empty
// directory. Servers advertising MLST get machine-readable listings via
// MLList instead; Session prefers that automatically.
func (c *Client) List(ctx context.Context, path string) ([]*Entry, error) {
	var args []string
	if path != "" {
		args = append(args, path)
	}

	_, dataConn, err := c.cmdDataConnFrom(ctx, "LIST", args...)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { dataConn.Close() })
	defer stop()

	var (
		entries  []*Entry
		rawLines int
		firstBad string
	)

	scanner := bufio.NewScanner(dataConn)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isListingNoise(trimmed) {
			continue
		}

		rawLines++
		entry := parseListLine(trimmed, c.parsers)
		if entry == nil {
			c.logger.Debug("unparsed listing line", zap.String("raw", line))
			if firstBad == "" {
				firstBad = trimmed
			}
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		_ = c.finishDataConn(dataConn)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read directory listing: %w", err)
	}

	if err := c.finishDataConn(dataConn); err != nil {
		return nil, err
	}

	if rawLines > 0 && len(entries) == 0 {
		return nil, &ParseError{What: "directory listing", Sample: firstBad}
	}

	return entries, nil
}

// isListingNoise reports listing lines that are framing, not entries, such
// as the "total N" header of ls -l output.
func isListingNoise(line string) bool {
	rest, ok := strings.CutPrefix(strings.ToLower(line), "total")
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return true
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

// NameList returns just the names in a directory, one per NLST line.
func (c *Client) NameList(ctx context.Context, path string) ([]string, error) {
	var args []string
	if path != "" {
		args = append(args, path)
	}

	_, dataConn, err := c.cmdDataConnFrom(ctx, "NLST", args...)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { dataConn.Close() })
	defer stop()

	var names []string
	scanner := bufio.NewScanner(dataConn)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}

	if err := scanner.Err(); err != nil {
		_ = c.finishDataConn(dataConn)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read name list: %w", err)
	}

	if err := c.finishDataConn(dataConn); err != nil {
		return nil, err
	}

	return names, nil
}

// ListingParser is one recognizer in the listing parser chain.
type ListingParser interface {
	// Parse reports whether the line is in this parser's format, and the
	// entry it describes when it is.
	Parse(line string) (*Entry, bool)
}

// UnixParser parses ls -l style directory entries.
type UnixParser struct{}

func (p *UnixParser) Parse(line string) (*Entry, bool) {
	fields := strings.Fields(line)
	// Both 9-field and 8-field layouts occur, with symbolic or numeric
	// permissions.
	if len(fields) < 8 {
		return nil, false
	}
	entry := &Entry{Raw: line}
	if parseUnixEntry(entry, fields, time.Now()) {
		return entry, true
	}
	return nil, false
}

// DOSParser parses DOS/Windows-style directory entries.
type DOSParser struct{}

func (p *DOSParser) Parse(line string) (*Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, false
	}
	if !isDOSDate(fields[0]) {
		return nil, false
	}
	entry := &Entry{Raw: line}
	if parseDOSEntry(entry, fields) {
		return entry, true
	}
	return nil, false
}

// EPLFParser parses EPLF entries.
type EPLFParser struct{}

func (p *EPLFParser) Parse(line string) (*Entry, bool) {
	if !strings.HasPrefix(line, "+") {
		return nil, false
	}
	entry := &Entry{Raw: line}
	if parseEPLFEntry(entry, line) {
		return entry, true
	}
	return nil, false
}

// parseListLine runs a line through the parser chain, first match wins.
// Returns nil when no parser recognizes the line.
func parseListLine(line string, parsers []ListingParser) *Entry {
	if len(parsers) == 0 {
		parsers = defaultParsers()
	}
	for _, parser := range parsers {
		if entry, ok := parser.Parse(line); ok {
			return entry
		}
	}
	return nil
}

func defaultParsers() []ListingParser {
	return []ListingParser{
		&EPLFParser{},
		&DOSParser{},
		&UnixParser{},
	}
}

// parseUnixEntry parses a Unix-style directory entry into entry. Handles
// 9-field and 8-field layouts, symbolic and numeric permissions. The
// timestamp is best effort; a line with a valid size but an odd date still
// yields an entry with a zero ModTime.
func parseUnixEntry(entry *Entry, fields []string, now time.Time) bool {
	perms := fields[0]

	isSymbolic := len(perms) >= 1 && (perms[0] == '-' || perms[0] == 'd' ||
		perms[0] == 'l' || perms[0] == 'b' || perms[0] == 'c' ||
		perms[0] == 'p' || perms[0] == 's')

	isNumeric := len(perms) >= 3 && len(perms) <= 4
	for _, ch := range perms {
		if ch < '0' || ch > '7' {
			isNumeric = false
			break
		}
	}

	if !isSymbolic && !isNumeric {
		return false
	}

	if isSymbolic {
		switch perms[0] {
		case 'd':
			entry.Type = EntryTypeDirectory
		case 'l':
			entry.Type = EntryTypeSymlink
		default:
			entry.Type = EntryTypeFile
		}
	} else {
		// Numeric permissions carry no type bit.
		entry.Type = EntryTypeFile
	}

	// 9-field: perms links owner group size month day time/year name
	// 8-field: perms links owner size month day time/year name
	var sizeIdx int
	if len(fields) >= 9 {
		if _, err := parseSize(fields[4]); err == nil {
			sizeIdx = 4
		} else if _, err := parseSize(fields[3]); err == nil {
			sizeIdx = 3
		} else {
			return false
		}
	} else {
		if _, err := parseSize(fields[3]); err == nil {
			sizeIdx = 3
		} else {
			return false
		}
	}

	size, err := parseSize(fields[sizeIdx])
	if err != nil {
		return false
	}
	entry.Size = size

	if t, ok := parseUnixListTime(fields[sizeIdx+1], fields[sizeIdx+2], fields[sizeIdx+3], now); ok {
		entry.ModTime = t
	}

	nameStartIdx := sizeIdx + 4
	if nameStartIdx >= len(fields) {
		return false
	}
	fullName := strings.Join(fields[nameStartIdx:], " ")

	// Links list as "name -> target".
	if entry.Type == EntryTypeSymlink {
		if before, after, ok := strings.Cut(fullName, " -> "); ok {
			entry.Name = before
			entry.LinkTarget = after
		} else {
			entry.Name = fullName
		}
	} else {
		entry.Name = fullName
	}

	return entry.Name != ""
}

var unixListMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parseUnixListTime interprets the month/day/third triple of an ls -l
// line. The third field is either HH:MM, meaning within the last year, or
// an explicit year.
func parseUnixListTime(monthField, dayField, lastField string, now time.Time) (time.Time, bool) {
	month, ok := unixListMonths[strings.ToLower(monthField)]
	if !ok {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(dayField)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}

	if hourField, minField, ok := strings.Cut(lastField, ":"); ok {
		hour, err := strconv.Atoi(hourField)
		if err != nil || hour < 0 || hour > 23 {
			return time.Time{}, false
		}
		min, err := strconv.Atoi(minField)
		if err != nil || min < 0 || min > 59 {
			return time.Time{}, false
		}

		t := time.Date(now.Year(), month, day, hour, min, 0, 0, time.UTC)
		// No year in this form. A date ahead of the clock means it was
		// last year.
		if t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, true
	}

	year, err := strconv.Atoi(lastField)
	if err != nil || year < 1970 || year > 9999 {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

// parseEPLFEntry parses an EPLF (Easily Parsed LIST Format) entry.
// Format: +facts\tname or +facts name, facts comma-separated.
// Example: "+i8388621.48594,m825718503,r,s280,\tdjb.html"
func parseEPLFEntry(entry *Entry, line string) bool {
	line = line[1:]

	idx := strings.IndexAny(line, "\t ")
	if idx == -1 {
		return false
	}
	facts := line[:idx]
	name := strings.TrimSpace(line[idx+1:])
	if name == "" {
		return false
	}

	entry.Name = name
	entry.Type = EntryTypeFile

	for _, fact := range strings.Split(facts, ",") {
		if fact == "" {
			continue
		}

		switch fact[0] {
		case '/':
			entry.Type = EntryTypeDirectory
		case 's':
			if size, err := parseSize(fact[1:]); err == nil {
				entry.Size = size
			}
		case 'm':
			if epoch, err := strconv.ParseInt(fact[1:], 10, 64); err == nil && epoch >= 0 {
				entry.ModTime = time.Unix(epoch, 0).UTC()
			}
		}
	}

	return true
}

// isDOSDate checks whether a field looks like a DOS date, MM-DD-YY or
// MM-DD-YYYY with dash or slash separators.
func isDOSDate(s string) bool {
	var parts []string
	if strings.Contains(s, "-") {
		parts = strings.Split(s, "-")
	} else if strings.Contains(s, "/") {
		parts = strings.Split(s, "/")
	} else {
		return false
	}

	if len(parts) != 3 {
		return false
	}

	for i, part := range parts {
		if len(part) < 1 || len(part) > 4 {
			return false
		}
		if i == 2 && len(part) != 2 && len(part) != 4 {
			return false
		}
		if i < 2 && len(part) > 2 {
			return false
		}
		for _, ch := range part {
			if ch < '0' || ch > '9' {
				return false
			}
		}
	}
	return true
}

var dosListTimeLayouts = []string{
	"01-02-06 03:04PM",
	"01-02-2006 03:04PM",
	"01/02/06 03:04PM",
	"01/02/2006 03:04PM",
	"01-02-06 15:04",
	"01-02-2006 15:04",
	"01/02/06 15:04",
	"01/02/2006 15:04",
}

func parseDOSListTime(dateField, timeField string) (time.Time, bool) {
	s := dateField + " " + timeField
	for _, layout := range dosListTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDOSEntry parses a DOS/Windows-style directory entry.
// Example: "12-14-23  12:22PM           1037794 large-document.pdf"
// Example: "09-24-24  10:30AM       <DIR>          logger"
func parseDOSEntry(entry *Entry, fields []string) bool {
	if t, ok := parseDOSListTime(fields[0], fields[1]); ok {
		entry.ModTime = t
	}

	if fields[2] == "<DIR>" {
		entry.Type = EntryTypeDirectory
		entry.Size = 0
		entry.Name = strings.Join(fields[3:], " ")
		return entry.Name != ""
	}

	size, err := parseSize(fields[2])
	if err != nil {
		return false
	}

	entry.Type = EntryTypeFile
	entry.Size = size
	entry.Name = strings.Join(fields[3:], " ")
	return entry.Name != ""
}

// parseSize parses a size field from a directory listing.
func parseSize(sizeStr string) (int64, error) {
	return strconv.ParseInt(sizeStr, 10, 64)
}

// ChangeDir changes the current working directory.
func (c *Client) ChangeDir(path string) error {
	_, err := c.expect2xx("CWD", path)
	return err
}

// CurrentDir returns the current working directory from PWD.
func (c *Client) CurrentDir() (string, error) {
	resp, err := c.expect2xx("PWD")
	if err != nil {
		return "", err
	}

	// 257 "/home/user" is the current directory
	msg := resp.Message
	start := strings.Index(msg, "\"")
	if start == -1 {
		return "", &ProtocolError{Line: msg, Reason: "PWD reply missing quoted directory"}
	}
	end := strings.Index(msg[start+1:], "\"")
	if end == -1 {
		return "", &ProtocolError{Line: msg, Reason: "PWD reply missing closing quote"}
	}

	return msg[start+1 : start+1+end], nil
}

// MakeDir creates a directory.
func (c *Client) MakeDir(path string) error {
	_, err := c.expect2xx("MKD", path)
	return err
}

// RemoveDir removes a directory.
func (c *Client) RemoveDir(path string) error {
	_, err := c.expect2xx("RMD", path)
	return err
}

// Delete deletes a file.
func (c *Client) Delete(path string) error {
	_, err := c.expect2xx("DELE", path)
	return err
}

// Rename renames a file or directory via the RNFR/RNTO pair.
func (c *Client) Rename(from, to string) error {
	resp, err := c.sendCommand("RNFR", from)
	if err != nil {
		return err
	}

	if resp.Code != 350 {
		return &CommandError{Command: "RNFR", Code: resp.Code, Message: resp.Message}
	}

	_, err = c.expect2xx("RNTO", to)
	return err
}

// Size returns the size of a file in bytes.
func (c *Client) Size(path string) (int64, error) {
	resp, err := c.expect2xx("SIZE", path)
	if err != nil {
		return 0, err
	}

	size, parseErr := strconv.ParseInt(strings.TrimSpace(resp.Message), 10, 64)
	if parseErr != nil {
		return 0, &ProtocolError{Line: resp.Message, Reason: "SIZE reply is not a byte count"}
	}

	return size, nil
}

// ModTime returns the modification time of a file using MDTM (RFC 3659).
// The reply is always UTC.
func (c *Client) ModTime(path string) (time.Time, error) {
	resp, err := c.expect2xx("MDTM", path)
	if err != nil {
		return time.Time{}, err
	}

	timestamp := strings.TrimSpace(resp.Message)
	if len(timestamp) != 14 {
		return time.Time{}, &ProtocolError{Line: resp.Message, Reason: "MDTM timestamp must be 14 digits"}
	}

	modTime, parseErr := time.Parse("20060102150405", timestamp)
	if parseErr != nil {
		return time.Time{}, &ProtocolError{Line: resp.Message, Reason: "MDTM timestamp did not parse"}
	}

	return modTime.UTC(), nil
}

// SetModTime sets the modification time of a file using MFMT
// (draft-somers-ftp-mfxx). The time is sent in UTC.
func (c *Client) SetModTime(path string, t time.Time) error {
	timestamp := t.UTC().Format("20060102150405")
	_, err := c.expect2xx("MFMT", timestamp, path)
	return err
}

// Chmod changes the permissions of a file using SITE CHMOD.
func (c *Client) Chmod(path string, mode os.FileMode) error {
	octalMode := fmt.Sprintf("%04o", mode&os.ModePerm)
	_, err := c.expect2xx("SITE", "CHMOD", octalMode, path)
	return err
}
