//
// Copyright (c) 2016-2026 Snowplow Analytics Ltd. All rights reserved.
//
// This program is licensed to you under the Apache License Version 2.0,
// and you may not use this file except in compliance with the Apache License Version 2.0.
// You may obtain a copy of the Apache License Version 2.0 at http://www.apache.org/licenses/LICENSE-2.0.
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the Apache License Version 2.0 is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the Apache License Version 2.0 for the specific language governing permissions and limitations there under.
//

package lock

import (
	"os"
	"path/filepath"
)

// FileLock is a lock materialized as a file holding its Owner
type FileLock struct {
	path string
}

// InitFileLock builds a FileLock at the path specified by name
func InitFileLock(name string) (Lock, error) {
	p, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}
	return &FileLock{path: p}, nil
}

// TryLock creates the lock file, failing with a LockHeldError when it exists.
// A crashed run leaves the file behind.
func (fl *FileLock) TryLock() error {
	fd, err := os.OpenFile(fl.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if os.IsExist(err) {
		record, _ := os.ReadFile(fl.path)
		return lockHeld(fl.path, record)
	}
	if err != nil {
		return err
	}

	if _, err := fd.Write(currentOwner()); err != nil {
		fd.Close()
		os.Remove(fl.path)
		return err
	}
	return fd.Close()
}

// Unlock removes the lock file
func (fl *FileLock) Unlock() error {
	return os.Remove(fl.path)
}
