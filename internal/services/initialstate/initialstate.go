// Package initialstate reads the page's window.__INITIAL_STATE__ tree.
//
// The tree is large and contains reference cycles, so it is never serialized
// whole on the hot path: callers name the subtree they need and only that
// subtree is serialized, with an identity guard that omits any object seen twice.
package initialstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ternarybob/redbook/internal/interfaces"
)

var (
	// ErrTimeout means the path did not become defined within the wait bound
	ErrTimeout = errors.New("initial state path not ready")
	// ErrNotFound means the path resolved to null
	ErrNotFound = errors.New("initial state path is null")
)

// Evaluator runs JavaScript in the page; interfaces.Page satisfies it
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, out interface{}) error
	Poll(ctx context.Context, expression string, timeout time.Duration) error
}

// Path is an ordered list of string keys and int indexes below the root
type Path []interface{}

func (p Path) String() string {
	parts := make([]string, 0, len(p))
	for _, key := range p {
		parts = append(parts, fmt.Sprint(key))
	}
	if len(parts) == 0 {
		return "__INITIAL_STATE__"
	}
	return "__INITIAL_STATE__." + strings.Join(parts, ".")
}

func (p Path) literal() (string, error) {
	for _, key := range p {
		switch key.(type) {
		case string, int:
		default:
			return "", fmt.Errorf("invalid path key %v (%T): want string or int", key, key)
		}
	}
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]interface{}(p))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// walk leaves the value at path in cur, or returns early with missing
const walk = `var cur = window.__INITIAL_STATE__;
	if (cur === undefined) return %[2]s;
	var path = %[1]s;
	for (var i = 0; i < path.length; i++) {
		if (cur === null || cur === undefined) return %[2]s;
		cur = cur[path[i]];
	}`

func definedExpr(path string) string {
	return fmt.Sprintf(`(function () {
	`+walk+`
	return cur !== undefined;
})()`, path, "false")
}

// serializeExpr always yields a string so the evaluation result is never undefined
func serializeExpr(path string) string {
	return fmt.Sprintf(`(function () {
	`+walk+`
	var seen = new WeakSet();
	var out = JSON.stringify(cur, function (key, value) {
		if (typeof value === "object" && value !== null) {
			if (seen.has(value)) return undefined;
			seen.add(value);
		}
		return value;
	});
	return out === undefined ? "null" : out;
})()`, path, `"null"`)
}

// AwaitPath waits until the value at path is defined (null counts as defined)
func AwaitPath(ctx context.Context, ev Evaluator, path Path, timeout time.Duration) error {
	lit, err := path.literal()
	if err != nil {
		return err
	}
	if err := ev.Poll(ctx, definedExpr(lit), timeout); err != nil {
		if errors.Is(err, interfaces.ErrWaitTimeout) {
			return fmt.Errorf("%w: %s after %s", ErrTimeout, path, timeout)
		}
		return fmt.Errorf("failed waiting for %s: %w", path, err)
	}
	return nil
}

// ReadPath waits for path and returns the cycle-safe JSON of that subtree
func ReadPath(ctx context.Context, ev Evaluator, path Path, timeout time.Duration) (json.RawMessage, error) {
	if err := AwaitPath(ctx, ev, path, timeout); err != nil {
		return nil, err
	}
	lit, err := path.literal()
	if err != nil {
		return nil, err
	}
	var out string
	if err := ev.Evaluate(ctx, serializeExpr(lit), &out); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("failed to read %s: page returned invalid JSON", path)
	}
	return json.RawMessage(out), nil
}

// ReadPathInto reads path and decodes it into out; a null value is ErrNotFound
func ReadPathInto(ctx context.Context, ev Evaluator, path Path, timeout time.Duration, out interface{}) error {
	raw, err := ReadPath(ctx, ev, path, timeout)
	if err != nil {
		return err
	}
	if IsNull(raw) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// ReadAll serializes the whole tree. Prefer ReadPath; the full tree can be very large.
func ReadAll(ctx context.Context, ev Evaluator, timeout time.Duration) (json.RawMessage, error) {
	return ReadPath(ctx, ev, nil, timeout)
}

// IsNull reports whether raw is empty or the JSON literal null
func IsNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// Unwrap peels one reactive ref wrapper ({value}, {_value} or {_rawValue}) off raw.
// Keys holding null are skipped; raw is returned unchanged when nothing matches.
func Unwrap(raw json.RawMessage) json.RawMessage {
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return raw
	}
	for _, key := range []string{"value", "_value", "_rawValue"} {
		if v := root.Get(key); v.Exists() && v.Type != gjson.Null {
			return json.RawMessage(v.Raw)
		}
	}
	return raw
}
