package logminer

import "strings"

// lineFieldCount is the number of delimited fields in a raw log line.
const lineFieldCount = 6

// LogLine is a raw log line split into its columns, e.g.
//
//	2016-12-21 17:10:56,844 | INFO  | -message-handler | ApplicationManager| 76 - org.onosproject.onos-core-net - 1.8.1.SNAPSHOT | Application org.onosproject.ovsdbhostprovider has been installed
type LogLine struct {
	Timestamp string `json:"timestamp"`
	Level     Level  `json:"level"`
	Thread    string `json:"thread"`
	Class     string `json:"class"`
	Origin    string `json:"origin"`
	Message   string `json:"message"`
}

// TokenizeLine splits line on the field delimiter. It reports false unless
// the line has exactly six fields; such lines are meant to be skipped.
// Fields are trimmed and the level is lowercased.
func TokenizeLine(line string) (LogLine, bool) {
	line = strings.TrimRight(line, "\r")
	fields := splitFields(line)
	if len(fields) != lineFieldCount {
		return LogLine{}, false
	}
	return LogLine{
		Timestamp: strings.TrimSpace(fields[0]),
		Level:     Level(strings.ToLower(strings.TrimSpace(fields[1]))),
		Thread:    strings.TrimSpace(fields[2]),
		Class:     strings.TrimSpace(fields[3]),
		Origin:    strings.TrimSpace(fields[4]),
		Message:   strings.TrimSpace(fields[5]),
	}, true
}

// SplitRecord splits a delimited record into fields. Trailing empty fields
// are dropped, so "a|b|" has two fields.
func SplitRecord(s string) []string {
	return splitFields(s)
}

func splitFields(s string) []string {
	fields := strings.Split(s, FieldDelimiter)
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}
