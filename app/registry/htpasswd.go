package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RobotAccount is a machine identity the local registry accepts for mirror pushes.
// PasswordHash must be a bcrypt hash, the only format the registry htpasswd backend supports.
type RobotAccount struct {
	Login        string
	PasswordHash string
}

// htpasswd rewrites the registry .htpasswd access file when the robot list changes,
// used when the local registry runs with basic auth instead of the token server
type htpasswd struct {
	// path to .htpasswd access file which define in settings
	path string

	lock sync.Mutex
}

// update will call every time when robot accounts change
func (ht *htpasswd) update(robots []RobotAccount) error {
	ht.lock.Lock()
	defer ht.lock.Unlock()

	// check file for exist
	err := createHtpasswdFileIfNoExist(ht.path)
	if err != nil {
		return err
	}

	if errTruncate := os.Truncate(ht.path, 0); errTruncate != nil {
		return fmt.Errorf("failed to truncate file %s: %v", ht.path, errTruncate)
	}

	f, err := os.OpenFile(ht.path, os.O_WRONLY|os.O_CREATE, 0o0600)
	if err != nil {
		return err
	}

	defer func() {
		_ = f.Close()
	}()

	for _, robot := range robots {
		if _, err := f.WriteString(fmt.Sprintf("%s:%s\n", robot.Login, robot.PasswordHash)); err != nil {
			return err
		}
	}

	return nil
}

// createHtpasswdFileIfNoExist creates an empty .htpasswd file in case the file is missing
func createHtpasswdFileIfNoExist(path string) error {
	if f, err := os.Open(filepath.Clean(path)); err == nil {
		_ = f.Close()
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o0700); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE, 0o0600)
	if err != nil {
		return fmt.Errorf("failed to open htpasswd path %s", err)
	}
	defer func() { _ = f.Close() }()
	return nil
}
