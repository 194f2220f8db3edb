package service

import "strings"

const filterInstructions = `You help a university student narrow down a list of generated weekly timetables.
Every timetable is one row of the SQLite table described below. Translate the student's request into
one read-only SQL query over that table, or answer in plain words when the request is not a filter.

Rules for the query:
- A single SELECT statement over the schedule table only. No joins with other tables, no subqueries
  over other tables, no comments and no semicolons.
- The select list must contain schedule_index and unique_id. Never use *.
- Use only the columns listed below. Times are minutes from midnight; use the conversions table.
- Boolean columns hold 0 or 1.
- Use ? placeholders for every literal value and list the values in PARAMETERS in the same order.

Reply with exactly three lines:
RESPONSE: <one or two friendly sentences describing what you did, in the student's language>
SQL: <the query, or NONE when no filtering is needed>
PARAMETERS: <comma separated values, or NONE>`

// BuildFilterPrompt returns the system prompt embedding live schema metadata.
func BuildFilterPrompt(metadata string) string {
	var b strings.Builder
	b.WriteString(filterInstructions)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(metadata))
	b.WriteString("\n\nExample:\n")
	b.WriteString("RESPONSE: Here are the timetables that start at 10:00 or later.\n")
	b.WriteString("SQL: SELECT schedule_index, unique_id FROM schedule WHERE earliest_start >= ? ORDER BY schedule_index\n")
	b.WriteString("PARAMETERS: 600\n")
	return b.String()
}
