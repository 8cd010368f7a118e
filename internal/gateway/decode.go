package gateway

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
)

// maxBodyExcerpt bounds the body copied into protocol errors.
const maxBodyExcerpt = 200

var integerBody = regexp.MustCompile(`^-?\d+$`)

// Decode turns a response body into a Result. The rules are applied in order:
//
//  1. a JSON object is the result; a JSON array becomes {"data": [...]};
//     any other JSON value that is not an integer yields an empty result
//  2. an empty body is {"ret": 0}
//  3. a bare integer is {"ret": N}
//  4. anything else fails with ErrProtocolFormat
//
// Surrounding whitespace is ignored.
func Decode(body []byte) (Result, error) {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) == 0 {
		return Result{"ret": json.Number("0")}, nil
	}

	if integerBody.Match(trimmed) {
		return Result{"ret": json.Number(trimmed)}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return nil, formatError(body)
	}

	switch value := v.(type) {
	case map[string]any:
		return Result(value), nil
	case []any:
		return Result{"data": value}, nil
	default:
		return Result{}, nil
	}
}

func formatError(body []byte) error {
	return &CallError{
		Err:  ErrProtocolFormat,
		Body: common.Truncate(string(body), maxBodyExcerpt),
	}
}
