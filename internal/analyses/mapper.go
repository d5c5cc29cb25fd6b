package analyses

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// WorkerResult is the parsed form of the worker's final output line: either a
// Success or a DomainFailure.
type WorkerResult interface {
	workerResult()
}

// Success carries the normalized fields of a completed analysis.
type Success struct {
	Analysis InsertAnalysis
}

// DomainFailure is a worker-reported refusal such as "no face detected".
type DomainFailure struct {
	Message string
	Details string
}

func (Success) workerResult()       {}
func (DomainFailure) workerResult() {}

// ParseResult decodes a worker result line. Only a JSON object is accepted.
// A truthy "error" member makes the result a DomainFailure.
func ParseResult(line string) (WorkerResult, error) {
	trimmed := bytes.TrimSpace([]byte(strings.TrimPrefix(line, "\ufeff")))
	if len(trimmed) == 0 {
		return nil, &ParseError{Line: line, Err: errors.New("empty result")}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, &ParseError{Line: line, Err: err}
	}
	if fields == nil {
		return nil, &ParseError{Line: line, Err: errors.New("result is not an object")}
	}

	if message, ok := errorIndicator(fields["error"]); ok {
		details := stringField(fields["details"])
		if details == "" {
			details = message
		}
		return DomainFailure{Message: message, Details: details}, nil
	}

	in := InsertAnalysis{
		FacialFeatures:  stringList(fields["facialFeatures"]),
		FacialThirds:    stringList(fields["facialThirds"]),
		SkinConditions:  stringList(fields["skinConditions"]),
		Recommendations: stringList(fields["recommendations"]),
		ColorPalette:    stringList(fields["colorPalette"]),
	}
	if p := stringField(fields["analyzedImagePath"]); p != "" {
		in.AnalyzedImagePath = &p
	}
	return Success{Analysis: in}, nil
}

// MapResult parses a worker result line into an InsertAnalysis. A DomainFailure
// becomes a DomainAnalysisError.
func MapResult(line string) (InsertAnalysis, error) {
	res, err := ParseResult(line)
	if err != nil {
		return InsertAnalysis{}, err
	}
	switch r := res.(type) {
	case Success:
		return r.Analysis, nil
	case DomainFailure:
		return InsertAnalysis{}, &DomainAnalysisError{Message: r.Message, Details: r.Details}
	default:
		return InsertAnalysis{}, &ParseError{Line: line, Err: fmt.Errorf("unexpected result %T", res)}
	}
}

// errorIndicator reports whether raw is a truthy error value and renders it as text.
func errorIndicator(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch e := v.(type) {
	case nil:
		return "", false
	case bool:
		if !e {
			return "", false
		}
		return "analysis error", true
	case float64:
		if e == 0 {
			return "", false
		}
		return string(raw), true
	case string:
		if e == "" {
			return "", false
		}
		return e, true
	default:
		return string(raw), true
	}
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// stringList returns raw as a list of strings, or an empty list when raw is absent,
// null, or anything other than an array made only of strings.
func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if bytes.Equal(item, []byte("null")) || json.Unmarshal(item, &s) != nil {
			return []string{}
		}
		out = append(out, s)
	}
	return out
}
