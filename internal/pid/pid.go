// Package pid guards a telemetry database against concurrent writers from
// separate simulator processes.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/sensorsim/internal/errors"
)

const suffix = ".pid"

// Path returns the PID file that belongs to a database file.
func Path(dbPath string) string {
	return dbPath + suffix
}

// Write records the current process in path. It fails with
// errors.ErrAlreadyRunning when another live process holds the file; a
// stale or unreadable file is replaced.
func Write(path string) error {
	return write(path, os.Getpid())
}

// write publishes a fully written temp file under path with a hard link,
// which fails if path exists, so two starting processes cannot both win.
func write(path string, self int) error {
	errFactory := errors.New()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.WriteString(strconv.Itoa(self))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := os.Link(tmp.Name(), path)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		owner, ok := readOwner(path)
		if ok && owner == self {
			return nil
		}
		if ok && alive(owner) {
			return errFactory.WithData(errors.ErrAlreadyRunning, owner)
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errFactory.Wrap(errors.ErrInternal, err)
		}
	}

	// Lost the race to another process replacing the same stale file.
	owner, _ := readOwner(path)
	return errFactory.WithData(errors.ErrAlreadyRunning, owner)
}

// Remove deletes path if this process owns it.
func Remove(path string) error {
	owner, ok := readOwner(path)
	if !ok || owner != os.Getpid() {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func readOwner(path string) (int, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	owner, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || owner <= 0 {
		return 0, false
	}
	return owner, true
}

func alive(p int) bool {
	process, err := os.FindProcess(p)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
