// Package migrations embeds the SQL schema files so binaries can apply
// them at startup without shipping loose files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Files returns migration file names in lexical (application) order.
func Files() ([]string, error) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
