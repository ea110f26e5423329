package ftpq

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// WalkFunc is the type of the function called for each file or directory
// visited by Walk. The path argument contains the argument to Walk as a
// prefix.
//
// If there was a problem listing a directory, the incoming error describes
// it, info is the entry of that directory, and the function decides
// whether the walk continues. Returning SkipDir from a directory callback
// skips its contents; from a file callback it skips the remaining files in
// the containing directory. Any other non-nil return stops the walk.
type WalkFunc func(path string, info *Entry, err error) error

// SkipDir is used as a return value from WalkFunc to indicate that the
// directory named in the call is to be skipped. It is not returned as an
// error by any function.
var SkipDir = filepath.SkipDir

// listDir lists a directory in the best format the server offers.
func (c *Client) listDir(ctx context.Context, dir string) ([]*Entry, error) {
	if c.supportsMLSD() {
		return c.MLList(ctx, dir)
	}
	return c.List(ctx, dir)
}

// Walk walks the file tree rooted at root, calling walkFn for each file or
// directory in the tree, including root. Entries are visited in the order
// the server lists them. Symbolic links are not followed.
func (c *Client) Walk(ctx context.Context, root string, walkFn WalkFunc) error {
	// Listing root gives its contents, not the root entry itself, so
	// the entry comes from listing the parent.
	var rootEntry *Entry
	cleanRoot := path.Clean(root)
	if cleanRoot == "." || cleanRoot == "/" {
		rootEntry = &Entry{Name: cleanRoot, Type: EntryTypeDirectory}
	} else {
		parent := path.Dir(cleanRoot)
		if parent == "." && !strings.Contains(cleanRoot, "/") {
			parent = ""
		}

		entries, err := c.listDir(ctx, parent)
		if err != nil {
			return walkFn(root, nil, err)
		}

		targetName := path.Base(cleanRoot)
		for _, e := range entries {
			if e.Name == targetName {
				rootEntry = e
				break
			}
		}
		if rootEntry == nil {
			return walkFn(root, nil, os.ErrNotExist)
		}
	}

	err := c.walk(ctx, cleanRoot, rootEntry, walkFn)
	if err == SkipDir {
		return nil
	}
	return err
}

func (c *Client) walk(ctx context.Context, pathStr string, info *Entry, walkFn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := walkFn(pathStr, info, nil)
	if err != nil {
		if info != nil && info.IsDir() && err == SkipDir {
			return nil
		}
		return err
	}

	if info == nil || !info.IsDir() {
		return nil
	}

	entries, err := c.listDir(ctx, pathStr)
	if err != nil {
		return walkFn(pathStr, info, err)
	}

	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}

		fullPath := path.Join(pathStr, entry.Name)
		if err := c.walk(ctx, fullPath, entry, walkFn); err != nil {
			// SkipDir from a file skips the rest of its directory, so it
			// propagates one level before being absorbed.
			if !entry.IsDir() || err != SkipDir {
				return err
			}
		}
	}

	return nil
}
