package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/and161185/learnhub-client/internal/errs"
)

// Unwrap decodes a success body that is either {"data": T} or a bare T.
// An empty body, a non-JSON body and {"data": null} are rejected with errs.ErrEnvelope.
func Unwrap[T any](body []byte) (T, error) {
	var zero T
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return zero, fmt.Errorf("%w: empty body", errs.ErrEnvelope)
	}
	if !json.Valid(body) {
		return zero, fmt.Errorf("%w: not json", errs.ErrEnvelope)
	}

	var env map[string]json.RawMessage
	if json.Unmarshal(body, &env) == nil {
		if raw, ok := env["data"]; ok {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
				return zero, fmt.Errorf("%w: null data", errs.ErrEnvelope)
			}
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return zero, fmt.Errorf("%w: %v", errs.ErrEnvelope, err)
			}
			return v, nil
		}
	}

	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return zero, fmt.Errorf("%w: %v", errs.ErrEnvelope, err)
	}
	return v, nil
}
