package tools

import (
	"bytes"
	"os"
	"path/filepath"
	"syscall"
)

// readDocument loads a Markdown file, enforcing the size limit and rejecting
// binary content.
func readDocument(path string, maxBytes int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewToolError(ErrFileNotFound, path)
		}
		return nil, NewToolErrorf(ErrExecutionFailed, "stat error: %v", err)
	}
	if info.IsDir() {
		return nil, NewToolErrorf(ErrInvalidParams, "%s is a directory", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, NewToolErrorf(ErrFileTooLarge, "%s is %d bytes, limit is %d", path, info.Size(), maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewToolErrorf(ErrExecutionFailed, "read error: %v", err)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, NewToolErrorf(ErrBinaryFile, "%s looks like a binary file", path)
	}
	return data, nil
}

// withFileLock runs fn while holding an exclusive advisory lock for path.
func withFileLock(path string, fn func() error) error {
	// The lock lives in a side file: rename() replaces the document's inode,
	// so a lock on the document itself would not serialize writers.
	lockPath := path + ".lock"
	lockFile, err := acquireLock(lockPath)
	if err != nil {
		return err
	}
	defer func() {
		// Unlink while still holding the lock so waiters on this inode retry.
		os.Remove(lockPath)
		syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
	}()

	return fn()
}

// acquireLock locks lockPath, retrying when the file was unlinked by the
// previous holder between open and flock.
func acquireLock(lockPath string) (*os.File, error) {
	for {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return nil, NewToolErrorf(ErrExecutionFailed, "failed to create lock file: %v", err)
		}
		if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
			lockFile.Close()
			return nil, NewToolErrorf(ErrExecutionFailed, "failed to lock: %v", err)
		}
		held, err1 := lockFile.Stat()
		onDisk, err2 := os.Stat(lockPath)
		if err1 == nil && err2 == nil && os.SameFile(held, onDisk) {
			return lockFile, nil
		}
		syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
	}
}

// writeAtomic replaces path with data through a temp file and rename,
// keeping the existing file mode.
func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tf, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return NewToolErrorf(ErrExecutionFailed, "failed to create temp file: %v", err)
	}
	tempPath := tf.Name()

	if _, err := tf.Write(data); err != nil {
		tf.Close()
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to write temp file: %v", err)
	}
	if err := tf.Sync(); err != nil {
		tf.Close()
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to sync temp file: %v", err)
	}
	if err := tf.Close(); err != nil {
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to close temp file: %v", err)
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to set file permissions: %v", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to rename temp file: %v", err)
	}
	return nil
}
