//go:build e2e

package credential

import (
	"context"
	"net/http"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// World is the slice of the scenario state these steps need.
type World interface {
	Do(ctx context.Context, method, path string, body any) error
	Expand(s string) (string, error)
}

func RegisterSteps(sc *godog.ScenarioContext, w World) {
	steps := &credentialSteps{w: w}

	sc.Step(`^a fresh subject$`, steps.freshSubject)
	sc.Step(`^I request a repository credential with epsilon ([0-9.]+)$`, steps.requestRepository)
	sc.Step(`^I request a "([^"]*)" credential without inputs$`, steps.requestWithoutInputs)
	sc.Step(`^I request a batch of (\d+) repository credentials$`, steps.requestBatch)
	sc.Step(`^I verify the saved credential "([^"]*)"$`, steps.verifySaved)
	sc.Step(`^I revoke the saved credential "([^"]*)"$`, steps.revokeSaved)
	sc.Step(`^I export the saved credential "([^"]*)"$`, steps.exportSaved)
	sc.Step(`^I check the subject's privacy budget$`, steps.checkBudget)
	sc.Step(`^I list the subject's credentials$`, steps.listCredentials)
}

type credentialSteps struct {
	w       World
	subject string
}

func (s *credentialSteps) freshSubject(ctx context.Context) error {
	s.subject = "dev-" + uuid.NewString()
	return nil
}

func privacyParams(epsilon float64) map[string]any {
	return map[string]any{
		"epsilon":        epsilon,
		"delta":          1e-5,
		"sensitivity":    1.0,
		"mechanism":      "laplace",
		"clampingBounds": []float64{0, 100},
	}
}

func (s *credentialSteps) repositoryRequest(epsilon float64) map[string]any {
	return map[string]any{
		"type":    "repository",
		"subject": s.subject,
		"privacy": privacyParams(epsilon),
		"repository": map[string]any{
			"name":              "octo/widgets",
			"commitHashes":      []string{"a1b2c3d", "b2c3d4e", "c3d4e5f"},
			"linesAdded":        1200,
			"linesDeleted":      300,
			"activeDays":        40,
			"repositoryAgeDays": 365,
		},
	}
}

func (s *credentialSteps) requestRepository(ctx context.Context, epsilon float64) error {
	return s.w.Do(ctx, http.MethodPost, "/credentials", s.repositoryRequest(epsilon))
}

func (s *credentialSteps) requestWithoutInputs(ctx context.Context, credType string) error {
	return s.w.Do(ctx, http.MethodPost, "/credentials", map[string]any{
		"type":    credType,
		"subject": s.subject,
		"privacy": privacyParams(1.0),
	})
}

func (s *credentialSteps) requestBatch(ctx context.Context, n int) error {
	requests := make([]map[string]any, n)
	for i := range n {
		requests[i] = s.repositoryRequest(0.5)
	}
	return s.w.Do(ctx, http.MethodPost, "/credentials/batch", map[string]any{
		"requests": requests,
		"parallel": true,
	})
}

func (s *credentialSteps) verifySaved(ctx context.Context, name string) error {
	id, err := s.w.Expand("{" + name + "}")
	if err != nil {
		return err
	}
	return s.w.Do(ctx, http.MethodPost, "/credentials/verify", map[string]any{"credentialId": id})
}

func (s *credentialSteps) revokeSaved(ctx context.Context, name string) error {
	return s.w.Do(ctx, http.MethodPost, "/credentials/{"+name+"}/revoke", map[string]any{})
}

func (s *credentialSteps) exportSaved(ctx context.Context, name string) error {
	return s.w.Do(ctx, http.MethodGet, "/credentials/{"+name+"}/vc", nil)
}

func (s *credentialSteps) checkBudget(ctx context.Context) error {
	return s.w.Do(ctx, http.MethodGet, "/subjects/"+s.subject+"/budget", nil)
}

func (s *credentialSteps) listCredentials(ctx context.Context) error {
	return s.w.Do(ctx, http.MethodGet, "/subjects/"+s.subject+"/credentials", nil)
}
