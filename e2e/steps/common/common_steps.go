//go:build e2e

// Package common holds the HTTP and response assertions every feature uses.
package common

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// World is the slice of the scenario state these steps need.
type World interface {
	Do(ctx context.Context, method, path string, body any) error
	Status() int
	Body() []byte
	Field(path string) (any, error)
	Save(name, value string)
}

func RegisterSteps(sc *godog.ScenarioContext, w World) {
	s := &steps{w: w}

	sc.Step(`^the credential manager is running$`, s.ready)

	sc.Step(`^I (GET|DELETE) "([^"]*)"$`, s.send)
	sc.Step(`^I POST to "([^"]*)" with empty body$`, s.postEmpty)
	sc.Step(`^I POST to "([^"]*)" with:$`, s.postDoc)

	sc.Step(`^the response status should (not )?be (\d+)$`, s.status)
	sc.Step(`^the response should contain "([^"]*)"$`, s.contains)
	sc.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, s.fieldEquals)
	sc.Step(`^the response field "([^"]*)" should contain "([^"]*)"$`, s.fieldContains)
	sc.Step(`^the response field "([^"]*)" should have (\d+) items?$`, s.fieldLen)
	sc.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, s.save)
}

type steps struct {
	w World
}

func (s *steps) ready(ctx context.Context) error {
	if err := s.w.Do(ctx, http.MethodGet, "/health/ready", nil); err != nil {
		return err
	}
	return s.status(ctx, "", http.StatusOK)
}

func (s *steps) send(ctx context.Context, method, path string) error {
	return s.w.Do(ctx, method, path, nil)
}

func (s *steps) postEmpty(ctx context.Context, path string) error {
	return s.w.Do(ctx, http.MethodPost, path, map[string]any{})
}

func (s *steps) postDoc(ctx context.Context, path string, doc *godog.DocString) error {
	var body any
	if err := json.Unmarshal([]byte(doc.Content), &body); err != nil {
		return fmt.Errorf("step body is not JSON: %w", err)
	}
	return s.w.Do(ctx, http.MethodPost, path, body)
}

func (s *steps) status(_ context.Context, not string, want int) error {
	got := s.w.Status()
	if (got == want) == (not == "") {
		return nil
	}
	if not != "" {
		return fmt.Errorf("status was %d, which it should not be\n%s", got, s.w.Body())
	}
	return fmt.Errorf("status was %d, want %d\n%s", got, want, s.w.Body())
}

func (s *steps) contains(_ context.Context, text string) error {
	if !strings.Contains(string(s.w.Body()), text) {
		return fmt.Errorf("response lacks %q\n%s", text, s.w.Body())
	}
	return nil
}

func (s *steps) fieldEquals(_ context.Context, field, want string) error {
	v, err := s.w.Field(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("%s = %s, want %s", field, got, want)
	}
	return nil
}

func (s *steps) fieldContains(_ context.Context, field, want string) error {
	v, err := s.w.Field(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); !strings.Contains(got, want) {
		return fmt.Errorf("%s = %s, want it to contain %s", field, got, want)
	}
	return nil
}

func (s *steps) fieldLen(_ context.Context, field string, want int) error {
	v, err := s.w.Field(field)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%s is %T, not a list", field, v)
	}
	if len(items) != want {
		return fmt.Errorf("%s has %d items, want %d", field, len(items), want)
	}
	return nil
}

func (s *steps) save(_ context.Context, field, name string) error {
	v, err := s.w.Field(field)
	if err != nil {
		return err
	}
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("%s is %T, not a string", field, v)
	}
	s.w.Save(name, str)
	return nil
}
