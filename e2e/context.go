//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// World is the per-scenario state shared by every step package: one HTTP
// client, the last exchange and the values saved along the way.
type World struct {
	baseURL string
	client  *http.Client

	status int
	body   []byte
	vars   map[string]string
}

func baseURL() string {
	if u := os.Getenv("BASE_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://localhost:8080"
}

func NewWorld() *World {
	return &World{
		baseURL: baseURL(),
		client:  &http.Client{Timeout: 30 * time.Second},
		vars:    make(map[string]string),
	}
}

func (w *World) reset() {
	w.status, w.body = 0, nil
	clear(w.vars)
}

var placeholder = regexp.MustCompile(`\{([a-zA-Z][\w-]*)\}`)

// Expand replaces {name} placeholders with saved values.
func (w *World) Expand(s string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := w.vars[name]
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("nothing saved as %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Do sends a request to path after placeholder expansion. A nil body sends
// no payload; anything else is encoded as JSON.
func (w *World) Do(ctx context.Context, method, path string, body any) error {
	path, err := w.Expand(path)
	if err != nil {
		return err
	}
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	w.status = resp.StatusCode
	if w.body, err = io.ReadAll(resp.Body); err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	return nil
}

func (w *World) Status() int { return w.status }

func (w *World) Body() []byte { return w.body }

func (w *World) Save(name, value string) { w.vars[name] = value }

// Field resolves a dotted path in the last JSON response. Numeric segments
// index into arrays, so "results.0.status" works.
func (w *World) Field(path string) (any, error) {
	var data any
	if err := json.Unmarshal(w.body, &data); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for part := range strings.SplitSeq(path, ".") {
		switch node := data.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %s not found in response", path)
			}
			data = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("field %s: no element %q in a list of %d", path, part, len(node))
			}
			data = node[i]
		default:
			return nil, fmt.Errorf("field %s not found in response", path)
		}
	}
	return data, nil
}
