package session

import (
	"os"

	"github.com/h2non/filetype"
)

func isLocalFile(ref string) bool {
	fi, err := os.Stat(ref)
	if err != nil {
		return false
	}
	return !fi.IsDir()
}

// sniffMediaType reports the MIME type detected from the first bytes of
// a local file, or "" when it cannot be determined.
func sniffMediaType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := f.Read(head)
	if err != nil || n == 0 {
		return ""
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
