package service

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	replyLabel = regexp.MustCompile(`(?im)^[ \t]*(RESPONSE|SQL|PARAMETERS|PARAMS)[ \t]*:`)
	codeFence  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// FilterReply is a parsed model answer.
type FilterReply struct {
	Response string   `json:"response"`
	SQL      string   `json:"sql"`
	Params   []string `json:"parameters"`
}

// IsFilter reports whether the reply carries a query to run.
func (r FilterReply) IsFilter() bool {
	return r.SQL != "" && !strings.EqualFold(r.SQL, "NONE")
}

type jsonReply struct {
	Response   string          `json:"response"`
	SQL        string          `json:"sql"`
	Parameters json.RawMessage `json:"parameters"`
}

// ParseFilterReply splits a three-label reply. A JSON object with the same
// fields is accepted too. Text without labels is treated as a plain answer.
func ParseFilterReply(text string) FilterReply {
	trimmed := strings.TrimSpace(stripFence(strings.TrimSpace(text)))
	if strings.HasPrefix(trimmed, "{") {
		if reply, ok := parseJSONReply(trimmed); ok {
			return reply
		}
	}

	matches := replyLabel.FindAllStringSubmatchIndex(trimmed, -1)
	if len(matches) == 0 {
		return FilterReply{Response: trimmed}
	}

	var reply FilterReply
	for i, m := range matches {
		label := strings.ToUpper(trimmed[m[2]:m[3]])
		end := len(trimmed)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		value := strings.TrimSpace(trimmed[m[1]:end])
		switch label {
		case "RESPONSE":
			reply.Response = value
		case "SQL":
			reply.SQL = strings.TrimSpace(stripFence(value))
		case "PARAMETERS", "PARAMS":
			reply.Params = splitParams(value)
		}
	}
	if strings.EqualFold(reply.SQL, "NONE") {
		reply.SQL = ""
		reply.Params = nil
	}
	if reply.Response == "" && matches[0][0] > 0 {
		reply.Response = strings.TrimSpace(trimmed[:matches[0][0]])
	}
	return reply
}

func parseJSONReply(text string) (FilterReply, bool) {
	var raw jsonReply
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return FilterReply{}, false
	}
	reply := FilterReply{Response: strings.TrimSpace(raw.Response), SQL: strings.TrimSpace(raw.SQL)}
	if strings.EqualFold(reply.SQL, "NONE") {
		reply.SQL = ""
	}
	if len(raw.Parameters) > 0 && reply.SQL != "" {
		var list []interface{}
		if err := json.Unmarshal(raw.Parameters, &list); err == nil {
			for _, item := range list {
				switch value := item.(type) {
				case string:
					reply.Params = append(reply.Params, value)
				default:
					encoded, _ := json.Marshal(value)
					reply.Params = append(reply.Params, string(encoded))
				}
			}
		} else {
			var joined string
			if err := json.Unmarshal(raw.Parameters, &joined); err == nil {
				reply.Params = splitParams(joined)
			}
		}
	}
	return reply, true
}

func stripFence(value string) string {
	if match := codeFence.FindStringSubmatch(value); match != nil {
		return match[1]
	}
	return value
}

func splitParams(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "NONE") {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, strings.Trim(trimmed, `"'`))
	}
	return out
}

// ConvertParams turns textual parameters into typed bind values: integers,
// floats, booleans as 0/1 and HH:MM clock values as minutes from midnight.
func ConvertParams(params []string) []interface{} {
	out := make([]interface{}, 0, len(params))
	for _, param := range params {
		out = append(out, convertParam(param))
	}
	return out
}

func convertParam(param string) interface{} {
	if i, err := strconv.ParseInt(param, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(param, 64); err == nil {
		return f
	}
	switch strings.ToLower(param) {
	case "true", "yes":
		return int64(1)
	case "false", "no":
		return int64(0)
	}
	if clock, err := time.Parse("15:04", param); err == nil {
		return int64(clock.Hour()*60 + clock.Minute())
	}
	return param
}
