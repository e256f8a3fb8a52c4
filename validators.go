package protostream

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
)

var whitespace = [256]bool{
	' ':  true,
	'\r': true,
	'\n': true,
	'\t': true,
}

// ValidateNotEmpty validates that a line contains at least one non-whitespace byte
func ValidateNotEmpty() Validator {
	return func(line []byte) bool {
		for _, b := range line {
			if !whitespace[b] {
				return true
			}
		}
		return false
	}
}

// ValidatePrefix validates that a line starts with prefix
func ValidatePrefix(prefix []byte) Validator {
	return func(line []byte) bool {
		return bytes.HasPrefix(line, prefix)
	}
}

// ValidateIsJSONObject returns true if the first non-whitespace byte is '{'
func ValidateIsJSONObject() Validator {
	return func(line []byte) bool {
		for _, b := range line {
			if whitespace[b] {
				continue
			}
			return b == '{'
		}
		return false
	}
}

// ValidateJSON validates that a line is a single json value
func ValidateJSON() Validator {
	return func(line []byte) bool {
		return jsoniter.ConfigFastest.Valid(line)
	}
}

// JSONValueValidator validates a json value
type JSONValueValidator func(val interface{}) bool

// JSONFieldValidator validates the value of a top level field of a json object line
type JSONFieldValidator struct {
	Field     string
	Validator JSONValueValidator
}

// ValidateJSONFields validates fields of a json object line. Every field must be present and
// valid.
func ValidateJSONFields(validators []JSONFieldValidator) Validator {
	return func(line []byte) bool {
		iter := jsoniter.ConfigFastest.BorrowIterator(line)
		defer jsoniter.ConfigFastest.ReturnIterator(iter)
		done := make([]bool, len(validators))
		remaining := len(validators)
		valid := true
		iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
			var val interface{}
			read := false
			for i := range validators {
				if done[i] || validators[i].Field != field {
					continue
				}
				if !read {
					val = iter.Read()
					read = true
				}
				done[i] = true
				remaining--
				if !validators[i].Validator(val) {
					valid = false
					return false
				}
			}
			if !read {
				iter.Skip()
			}
			return remaining > 0
		})
		return valid && remaining == 0
	}
}

// StringValueValidator validates a string value
func StringValueValidator(validate func(val string) bool) JSONValueValidator {
	return func(val interface{}) bool {
		strVal, ok := val.(string)
		if !ok {
			return false
		}
		return validate(strVal)
	}
}
