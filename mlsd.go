package ftpq

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MLStat returns information about a single file or directory using MLST
// (RFC 3659). The entry travels on the control channel, no data connection
// is opened.
func (c *Client) MLStat(path string) (*Entry, error) {
	resp, err := c.sendCommand("MLST", path)
	if err != nil {
		return nil, err
	}

	if resp.Code != 250 {
		return nil, &CommandError{Command: "MLST", Code: resp.Code, Message: resp.Message}
	}

	// The entry rides between the opening and closing status lines,
	// indented by one space.
	var entryLine string
	for i := 1; i < len(resp.Lines)-1; i++ {
		if strings.HasPrefix(resp.Lines[i], " ") {
			entryLine = strings.TrimSpace(resp.Lines[i])
			break
		}
	}

	if entryLine == "" {
		return nil, &ProtocolError{Line: resp.Message, Reason: "MLST reply missing entry line"}
	}

	entry, _, ok := parseMLSDEntry(entryLine)
	if !ok {
		return nil, &ParseError{What: "MLST entry", Sample: entryLine}
	}

	return entry, nil
}

// MLList returns a machine-readable directory listing using MLSD
// (RFC 3659). The cdir and pdir bookkeeping entries are filtered out.
// Servers advertise support via the MLST feature; check with HasFeature.
func (c *Client) MLList(ctx context.Context, path string) ([]*Entry, error) {
	var args []string
	if path != "" {
		args = append(args, path)
	}

	_, dataConn, err := c.cmdDataConnFrom(ctx, "MLSD", args...)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { dataConn.Close() })
	defer stop()

	var (
		entries  []*Entry
		rawLines int
		parsed   int
		firstBad string
	)

	scanner := bufio.NewScanner(dataConn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rawLines++
		entry, typeFact, ok := parseMLSDEntry(line)
		if !ok {
			if firstBad == "" {
				firstBad = line
			}
			continue
		}

		parsed++
		if typeFact == "cdir" || typeFact == "pdir" {
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		_ = c.finishDataConn(dataConn)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read machine listing: %w", err)
	}

	if err := c.finishDataConn(dataConn); err != nil {
		return nil, err
	}

	if rawLines > 0 && parsed == 0 {
		return nil, &ParseError{What: "machine listing", Sample: firstBad}
	}

	return entries, nil
}

// parseMLSDEntry parses one MLST/MLSD line, "fact1=v1;fact2=v2; name".
// The second return is the lowercased type fact so callers can filter the
// cdir/pdir bookkeeping entries.
func parseMLSDEntry(line string) (*Entry, string, bool) {
	spaceIdx := strings.Index(line, " ")
	if spaceIdx <= 0 {
		return nil, "", false
	}

	factsStr := line[:spaceIdx]
	name := line[spaceIdx+1:]
	if name == "" {
		return nil, "", false
	}

	facts := make(map[string]string)
	for _, pair := range strings.Split(factsStr, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		factName, factValue, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		facts[strings.ToLower(factName)] = factValue
	}

	if len(facts) == 0 {
		return nil, "", false
	}

	entry := &Entry{Name: name, Raw: line}

	typeFact := strings.ToLower(facts["type"])
	switch {
	case typeFact == "" || typeFact == "file":
		// A missing type fact still names something retrievable.
		entry.Type = EntryTypeFile
	case typeFact == "dir" || typeFact == "cdir" || typeFact == "pdir":
		entry.Type = EntryTypeDirectory
	case strings.HasPrefix(typeFact, "os.unix=slink"):
		entry.Type = EntryTypeSymlink
		// Target case matters, recover it from the raw fact value.
		if _, target, ok := strings.Cut(facts["type"], ":"); ok {
			entry.LinkTarget = target
		}
	default:
		entry.Type = EntryTypeUnknown
	}

	if sizeVal, ok := facts["size"]; ok {
		if size, err := strconv.ParseInt(sizeVal, 10, 64); err == nil {
			entry.Size = size
		}
	}

	if modifyVal, ok := facts["modify"]; ok {
		// YYYYMMDDHHMMSS, possibly with fractional seconds.
		timestamp, _, _ := strings.Cut(modifyVal, ".")
		if len(timestamp) == 14 {
			if modTime, err := time.Parse("20060102150405", timestamp); err == nil {
				entry.ModTime = modTime.UTC()
			}
		}
	}

	return entry, typeFact, true
}
