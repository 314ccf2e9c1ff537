package ingest

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// photoDate determines when a photo was taken: EXIF DateTimeOriginal
// first, file modification time second, current time as a last resort.
// Returns a YYYY-MM-DD string.
func photoDate(path string) string {
	if d, ok := exifDate(path); ok {
		return d
	}
	if info, err := os.Stat(path); err == nil {
		return info.ModTime().Format("2006-01-02")
	}
	return time.Now().Format("2006-01-02")
}

func exifDate(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return "", false
	}
	t, err := x.DateTime()
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
