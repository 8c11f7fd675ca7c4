package server

import (
	"fmt"
	"os"
	"runtime"
)

// keyPermissionError reports a TLS key readable by group or others. It is
// fatal only in prod.
type keyPermissionError struct {
	path string
	perm os.FileMode
}

func (e *keyPermissionError) Error() string {
	return fmt.Sprintf("TLS key file %s has overly permissive permissions %o (recommended: 0600)", e.path, e.perm)
}

// validateTLSFiles checks that certFile and keyFile exist and are regular
// files, and that the key is not group/world accessible (Unix only).
func validateTLSFiles(certFile, keyFile string) error {
	if _, err := statFile("certificate", certFile); err != nil {
		return err
	}
	keyInfo, err := statFile("key", keyFile)
	if err != nil {
		return err
	}
	if runtime.GOOS != "windows" && keyInfo.Mode().Perm()&0o077 != 0 {
		return &keyPermissionError{path: keyFile, perm: keyInfo.Mode().Perm()}
	}
	return nil
}

func statFile(kind, path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS %s file does not exist: %s", kind, path)
		}
		return nil, fmt.Errorf("cannot access TLS %s file %s: %w", kind, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("TLS %s path is a directory, not a file: %s", kind, path)
	}
	return info, nil
}
