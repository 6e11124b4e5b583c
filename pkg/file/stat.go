package file

import (
	"fmt"
	"os"
)

// StatRegular returns the file info of path when it names an existing regular file.
func StatRegular(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	return info, nil
}
