package main

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type dataType string

const (
	typeString  dataType = "string"
	typeNumber  dataType = "number"
	typeDate    dataType = "date"
	typeBoolean dataType = "boolean"
)

type caseMode string

const (
	caseUpper caseMode = "uppercase"
	caseLower caseMode = "lowercase"
	caseTitle caseMode = "titlecase"
)

// columnSelection tracks one detected column of the active sheet. SelectedType
// starts at the mapped default and survives selection toggles; it is rebuilt
// only when a different sheet is chosen.
type columnSelection struct {
	Name         string
	OriginalType string
	SelectedType dataType
	Selected     bool
}

// columnAction holds the optional per-column formatting rules. Nil pointers
// mean "not configured": an empty-string ReplaceEmpty is a valid substitution
// and RoundDecimals zero is a valid precision, so presence matters.
type columnAction struct {
	ColumnName    string
	ReplaceEmpty  *string
	ChangeCase    caseMode
	RoundDecimals *int
}

// mapToDataType folds the analyzer's raw dtype label into one of the four
// client-side types. First match wins.
func mapToDataType(raw string) dataType {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "int"), strings.Contains(lower, "float"), strings.Contains(lower, "number"):
		return typeNumber
	case strings.Contains(lower, "date"), strings.Contains(lower, "time"):
		return typeDate
	case strings.Contains(lower, "bool"):
		return typeBoolean
	default:
		return typeString
	}
}

// A title-case word is a run of non-whitespace starting with a word character.
var titleWordPattern = regexp.MustCompile(`\w\S*`)

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// transformRow projects row onto the selected columns, in selection order,
// applying each column's action. Unselected columns are dropped. The function
// never fails: values that cannot be transformed pass through untouched.
func transformRow(row map[string]any, selected []columnSelection, actions []columnAction) map[string]any {
	out := make(map[string]any, len(selected))
	for _, col := range selected {
		action := findAction(actions, col.Name)
		value := replaceEmptyValue(row[col.Name], action)
		if !isEmptyValue(value) {
			value = applyTypedTransform(value, col, action)
		}
		out[col.Name] = value
	}
	return out
}

func findAction(actions []columnAction, name string) *columnAction {
	for i := range actions {
		if actions[i].ColumnName == name {
			return &actions[i]
		}
	}
	return nil
}

// replaceEmptyValue substitutes a configured replacement for nil or empty
// string cells. Without a configured replacement the empty value passes
// through as-is; empties are never defaulted.
func replaceEmptyValue(value any, action *columnAction) any {
	if !isEmptyValue(value) {
		return value
	}
	if action != nil && action.ReplaceEmpty != nil {
		return *action.ReplaceEmpty
	}
	return value
}

func applyTypedTransform(value any, col columnSelection, action *columnAction) any {
	if action == nil {
		return value
	}
	switch {
	case col.SelectedType == typeString && action.ChangeCase != "":
		return changeCase(fmt.Sprint(value), action.ChangeCase)
	case col.SelectedType == typeNumber && action.RoundDecimals != nil:
		return roundValue(value, *action.RoundDecimals)
	}
	// date and boolean columns have no built-in transforms
	return value
}

func changeCase(s string, mode caseMode) string {
	switch mode {
	case caseUpper:
		return strings.ToUpper(s)
	case caseLower:
		return strings.ToLower(s)
	case caseTitle:
		return titleWordPattern.ReplaceAllStringFunc(s, func(word string) string {
			runes := []rune(word)
			return strings.ToUpper(string(runes[0])) + strings.ToLower(string(runes[1:]))
		})
	default:
		return s
	}
}

// roundValue rounds half away from zero to the requested number of decimal
// places and keeps the result numeric. Values that cannot be read as a number
// come back unchanged.
func roundValue(value any, decimals int) any {
	num, ok := toFloat(value)
	if !ok {
		return value
	}
	shift := math.Pow(10, float64(decimals))
	return math.Round(num*shift) / shift
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
