//go:build !linux && !darwin && !freebsd && !netbsd && !windows

package mediainfo

import (
	"os"
	"time"
)

func birthTime(string, os.FileInfo) (time.Time, bool) { return time.Time{}, false }
