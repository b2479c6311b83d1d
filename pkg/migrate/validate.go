package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var migrationFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks that every .sql file in dir is a well-formed goose migration with a
// unique version. Non-sql files are ignored.
func ValidateDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("migrations dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	versions := map[string]string{}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		m := migrationFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("%s: file name must look like YYYYMMDDHHMMSS_name.sql", name)
		}
		if other, dup := versions[m[1]]; dup {
			return fmt.Errorf("%s: version %s is already used by %s", name, m[1], other)
		}
		versions[m[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := checkAnnotations(body); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// checkAnnotations wants one Up before one Down and balanced statement blocks.
func checkAnnotations(body []byte) error {
	var up, down, open int
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "-- +goose Up":
			up++
		case "-- +goose Down":
			if up == 0 {
				return fmt.Errorf("goose Down section comes before Up")
			}
			down++
		case "-- +goose StatementBegin":
			open++
		case "-- +goose StatementEnd":
			open--
			if open < 0 {
				return fmt.Errorf("goose StatementEnd without StatementBegin")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case up != 1:
		return fmt.Errorf("expected one \"-- +goose Up\", found %d", up)
	case down != 1:
		return fmt.Errorf("expected one \"-- +goose Down\", found %d", down)
	case open != 0:
		return fmt.Errorf("goose StatementBegin/StatementEnd are unbalanced")
	}
	return nil
}
