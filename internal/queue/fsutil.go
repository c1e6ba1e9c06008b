package queue

import (
	"os"
)

// readFileIfExists returns (nil, nil) when path does not exist, so callers
// can distinguish "nothing to restore" from a real I/O error.
func readFileIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
