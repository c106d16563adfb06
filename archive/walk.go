package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AppendTree walks the host directory tree rooted at root and appends one
// entry per visited node — a restoration of the original nuts-archive
// Builder/DirectoryBuilder/PathBuilder trio (original_source/nuts-archive/
// src/builder.rs), which spec.md's distillation narrows to a single
// Append(name) call. It is sugar over the existing append path: every entry
// it writes still goes through Append/EntryBuilder.Write/Finish, so it adds
// no new wire format and no new invariant.
//
// Entry names are the node's path relative to root, using forward slashes
// regardless of host OS. Symlinks are stored with their target path as
// content, matching the original crate's PathBuilder::resolve.
func (a *Archive) AppendTree(root string) error {
	root = filepath.Clean(root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("archive: stat %s: %w", path, err)
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("archive: readlink %s: %w", path, err)
			}
			return a.appendPath(name, TypeSymlink, info, []byte(target))
		case d.IsDir():
			return a.appendPath(name, TypeDir, info, nil)
		default:
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("archive: read %s: %w", path, err)
			}
			return a.appendPath(name, TypeFile, info, content)
		}
	})
}

func (a *Archive) appendPath(name string, typ EntryType, info fs.FileInfo, content []byte) error {
	b, err := a.Append(name, typ, uint32(ModeFromFtype(typ)))
	if err != nil {
		return fmt.Errorf("archive: append %s: %w", name, err)
	}
	if len(content) > 0 {
		if _, err := b.Write(content); err != nil {
			return fmt.Errorf("archive: write %s: %w", name, err)
		}
	}
	mtime := info.ModTime().Unix()
	if _, err := b.FinishWithTimes(mtime, mtime, mtime); err != nil {
		return fmt.Errorf("archive: finish %s: %w", name, err)
	}
	return nil
}
