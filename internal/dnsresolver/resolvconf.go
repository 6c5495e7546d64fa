package dnsresolver

import (
	"os"

	apperrors "github.com/veylan/routerd/internal/errors"
	"github.com/veylan/routerd/internal/log"
)

const (
	resolvConfPath    = "/etc/resolv.conf"
	resolvConfBackup  = resolvConfPath + ".ld_back"
	resolvConfContent = "nameserver 127.0.0.1\n"
)

// takeoverResolvConfAt is the §6 filesystem side effect parameterized over
// path and its backup suffix, so the boundary logic can be exercised
// without touching the real /etc/resolv.conf.
//
//   - symlink            -> delete it.
//   - regular file,
//     no backup exists   -> rename it to the backup path.
//   - regular file,
//     backup exists      -> delete it (the backup already holds the
//     pre-takeover original).
//   - anything else      -> fatal: we refuse to guess.
func takeoverResolvConfAt(path, backupPath string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return writeResolvConfAt(path)
		}
		return apperrors.NewInternalError("failed to stat resolv.conf", err)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		if err := os.Remove(path); err != nil {
			return apperrors.NewInternalError("failed to remove resolv.conf symlink", err)
		}

	case info.Mode().IsRegular():
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			if err := os.Rename(path, backupPath); err != nil {
				return apperrors.NewInternalError("failed to back up resolv.conf", err)
			}
			log.Infof("resolv.conf backed up to %s", backupPath)
		} else {
			if err := os.Remove(path); err != nil {
				return apperrors.NewInternalError("failed to remove resolv.conf", err)
			}
		}

	default:
		return apperrors.NewInternalError("resolv.conf is neither a symlink nor a regular file, refusing to take it over", nil)
	}

	return writeResolvConfAt(path)
}

func writeResolvConfAt(path string) error {
	if err := os.WriteFile(path, []byte(resolvConfContent), 0644); err != nil {
		return apperrors.NewInternalError("failed to write resolv.conf", err)
	}
	return nil
}
