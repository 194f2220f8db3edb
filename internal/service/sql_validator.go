package service

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/course-planner/internal/models"
)

// Rejection reasons reported by the validator and used as metric labels.
const (
	RejectEmpty             = "empty"
	RejectNotSelect         = "not_select"
	RejectForbiddenKeyword  = "forbidden_keyword"
	RejectMultipleStatement = "multiple_statements"
	RejectTable             = "table"
	RejectColumn            = "column"
	RejectWildcard          = "wildcard"
	RejectMissingIdentifier = "missing_identifier"
)

// MaxFilterParams is the parameter count above which a warning is logged.
const MaxFilterParams = 10

// ForbiddenKeywords may not appear anywhere in a filter query.
var ForbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE", "MERGE", "REPLACE", "UPSERT",
	"EXEC", "EXECUTE", "CALL", "PREPARE",
	"SHOW", "DESCRIBE", "EXPLAIN", "ANALYZE", "BACKUP", "RESTORE",
	"UNION", "INTERSECT", "EXCEPT", "INTO", "OUTFILE", "DUMPFILE", "LOAD", "LOAD_FILE",
	"ATTACH", "DETACH", "PRAGMA", "VACUUM", "REINDEX", "COPY",
	"USER", "PASSWORD", "FILE", "PG_READ_FILE", "SLEEP", "SQLITE_MASTER", "SQLITE_SCHEMA", "INFORMATION_SCHEMA",
}

var (
	blockComment   = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment    = regexp.MustCompile(`--[^\n]*`)
	selectPrefix   = regexp.MustCompile(`(?i)^SELECT\b`)
	forbiddenWords = regexp.MustCompile(`(?i)\b(` + strings.Join(ForbiddenKeywords, "|") + `)\b`)
	tableRefs      = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([^\s,()]+|\()`)
	stringLiteral  = regexp.MustCompile(`'(?:[^']|'')*'`)
	numberLiteral  = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	identifierTok  = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	fromKeyword    = regexp.MustCompile(`(?i)\bFROM\b`)
)

// sqlVocabulary are keywords and functions allowed next to column names.
var sqlVocabulary = map[string]struct{}{
	"select": {}, "distinct": {}, "from": {}, "where": {}, "and": {}, "or": {}, "not": {}, "in": {}, "between": {},
	"like": {}, "glob": {}, "escape": {}, "is": {}, "null": {}, "true": {}, "false": {}, "order": {}, "by": {}, "asc": {},
	"desc": {}, "limit": {}, "offset": {}, "as": {}, "case": {}, "when": {}, "then": {}, "else": {}, "end": {},
	"group": {}, "having": {}, "collate": {}, "nocase": {}, "cast": {}, "integer": {}, "real": {}, "text": {},
	"abs": {}, "min": {}, "max": {}, "avg": {}, "sum": {}, "count": {}, "round": {}, "coalesce": {}, "ifnull": {},
	"lower": {}, "upper": {}, "length": {}, "substr": {}, "instr": {},
	"schedule": {},
}

// ValidationError describes why a filter query was refused.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unsafe filter query (%s): %s", e.Reason, e.Detail)
}

func reject(reason, format string, args ...interface{}) error {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// SQLValidator gates model-written queries before they reach the store.
type SQLValidator struct {
	columns map[string]struct{}
	logger  *zap.Logger
}

// NewSQLValidator builds a validator over the schedule column catalogue.
func NewSQLValidator(logger *zap.Logger) *SQLValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	columns := make(map[string]struct{}, len(models.ScheduleColumns))
	for _, column := range models.ScheduleColumns {
		columns[column.Name] = struct{}{}
	}
	return &SQLValidator{columns: columns, logger: logger}
}

// Validate checks query and returns the comment-free statement that must be
// executed in its place. paramCount is only used for the size warning.
func (v *SQLValidator) Validate(query string, paramCount int) (string, error) {
	cleaned := blockComment.ReplaceAllString(query, " ")
	cleaned = lineComment.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, ";"))
	if cleaned == "" {
		return "", reject(RejectEmpty, "query is empty")
	}

	if !selectPrefix.MatchString(cleaned) {
		return "", reject(RejectNotSelect, "query must start with SELECT")
	}
	if match := forbiddenWords.FindString(cleaned); match != "" {
		return "", reject(RejectForbiddenKeyword, "keyword %s is not allowed", strings.ToUpper(match))
	}

	structural := stringLiteral.ReplaceAllString(cleaned, "''")
	if strings.Contains(structural, ";") {
		return "", reject(RejectMultipleStatement, "only one statement is allowed")
	}
	if strings.Contains(structural, "*") {
		return "", reject(RejectWildcard, "wildcard columns are not allowed")
	}

	refs := tableRefs.FindAllStringSubmatch(structural, -1)
	if len(refs) == 0 {
		return "", reject(RejectTable, "query must read from schedule")
	}
	for _, ref := range refs {
		table := strings.ToLower(strings.Trim(ref[1], "\"`[]"))
		if table != "schedule" {
			return "", reject(RejectTable, "table %s is not allowed", ref[1])
		}
	}

	unquoted := strings.NewReplacer(`"`, " ", "`", " ", "[", " ", "]", " ").Replace(structural)
	unquoted = numberLiteral.ReplaceAllString(unquoted, " ")
	for _, token := range identifierTok.FindAllString(unquoted, -1) {
		lower := strings.ToLower(token)
		if _, ok := v.columns[lower]; ok {
			continue
		}
		if _, ok := sqlVocabulary[lower]; ok {
			continue
		}
		return "", reject(RejectColumn, "identifier %s is not a schedule column", token)
	}

	if !v.selectsIdentifier(unquoted) {
		return "", reject(RejectMissingIdentifier, "the select list must include unique_id or schedule_index")
	}

	if paramCount > MaxFilterParams {
		v.logger.Warn("filter query has many parameters", zap.Int("params", paramCount), zap.Int("threshold", MaxFilterParams))
	}
	return cleaned, nil
}

func (v *SQLValidator) selectsIdentifier(query string) bool {
	loc := fromKeyword.FindStringIndex(query)
	if loc == nil {
		return false
	}
	list := strings.ToLower(query[len("SELECT"):loc[0]])
	for _, token := range identifierTok.FindAllString(list, -1) {
		if token == "unique_id" || token == "schedule_index" {
			return true
		}
	}
	return false
}
