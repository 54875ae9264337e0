package catcher

import (
	"fmt"
	"regexp"
	"strings"
)

// CREATE TABLE `orders` (
//   ...
// ) ENGINE=InnoDB DEFAULT CHARSET=utf8;
var (
	tableStartPattern = MustRegexp(`^CREATE TABLE `)
	tableEndPattern   = MustRegexp(`\) ENGINE=`)
	tableNamePattern  = regexp.MustCompile("^CREATE TABLE (?:IF NOT EXISTS )?(?:`?([A-Za-z0-9_$]+)`?\\.)?`?([A-Za-z0-9_$]+)`?")
)

// NewTable builds a catcher for MySQL-style CREATE TABLE blocks, as found in
// mysqldump output. Without a Parse option the whole definition is emitted.
func NewTable(opts Options) (*Machine, error) {
	if opts.Name == "" {
		opts.Name = "table"
	}
	return New(tableStartPattern, tableEndPattern, opts)
}

// TableSummary is a ParseFunc that reduces a CREATE TABLE block to one line
// naming the table and counting its column and key definitions.
func TableSummary(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	name := "?"
	if match := tableNamePattern.FindStringSubmatch(lines[0]); match != nil {
		name = match[2]
		if match[1] != "" {
			name = match[1] + "." + name
		}
	}

	var body []string
	if len(lines) > 2 {
		body = lines[1 : len(lines)-1]
	}

	var columns, keys int
	for _, line := range body {
		def := strings.TrimSpace(line)
		switch {
		case def == "":
		case strings.HasPrefix(def, "`"):
			columns++
		case strings.Contains(def, "KEY "), strings.HasPrefix(def, "CONSTRAINT "):
			keys++
		default:
			columns++
		}
	}
	return fmt.Sprintf("table %s: %d columns, %d keys", name, columns, keys)
}
