package authn

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadHtpasswd reads a htpasswd-style file ("user:bcrypthash" per line,
// blank lines and "#"-prefixed comments ignored) into the table New and
// ReloadHtpasswd expect.
func LoadHtpasswd(path string) (map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("authn: opening htpasswd file: %w", err)
	}
	defer f.Close()

	table := make(map[string][]byte)
	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		user, hash, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("authn: htpasswd file %s: line %d: missing ':' separator", path, lineNum)
		}
		table[user] = []byte(hash)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("authn: reading htpasswd file: %w", err)
	}
	return table, nil
}
