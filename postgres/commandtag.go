package postgres

import (
	"regexp"
	"strconv"
)

// commandTagPattern matches CommandComplete's tag text (spec §4.4
// "COMMAND_COMPLETE"): a command verb followed by up to two optional
// counts (INSERT's oid then row count; everything else just a row count).
var commandTagPattern = regexp.MustCompile(`^(\w+)\s*(\d*)\s*(\d*)`)

// parseCommandTag splits a CommandComplete tag into its verb and row
// count. INSERT's tag carries an OID before the row count
// ("INSERT 0 5"); everything else carries only the row count
// ("UPDATE 3", "BEGIN"). Grounded on PgIoHandler's COMMAND_COMPLETE
// handling (original_source).
func parseCommandTag(tag string) (command string, rows int64) {
	m := commandTagPattern.FindStringSubmatch(tag)
	if m == nil {
		return tag, 0
	}
	command = m[1]
	rowsField := m[2]
	if command == "INSERT" {
		rowsField = m[3]
	}
	if rowsField == "" {
		return command, 0
	}
	n, err := strconv.ParseInt(rowsField, 10, 64)
	if err != nil {
		return command, 0
	}
	return command, n
}
