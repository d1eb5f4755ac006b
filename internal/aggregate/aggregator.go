package aggregate

import (
	"context"
	"log/slog"
	"math"
	"time"

	"devcred/internal/privacy"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
)

// RepositoryActivity is the raw input for one repository.
type RepositoryActivity struct {
	Name              string             `json:"name" validate:"required,max=200"`
	Languages         []LanguageActivity `json:"languages" validate:"dive"`
	TotalCommits      int64              `json:"totalCommits" validate:"min=0"`
	RecentCommits     int64              `json:"recentCommits" validate:"min=0"`
	ContributionShare float64            `json:"contributionShare" validate:"min=0,max=100"`
	ReviewsGiven      int64              `json:"reviewsGiven" validate:"min=0"`
}

// RepositoryScore is the scored form of one repository.
type RepositoryScore struct {
	Name              string          `json:"name"`
	Languages         []LanguageScore `json:"languages"`
	Overall           float64         `json:"overall"`
	Growth            float64         `json:"growth"`
	Leadership        float64         `json:"leadership"`
	IndustryRelevance float64         `json:"industryRelevance"`
}

// Profile is the cross-repository result. Every numeric field has been
// released through the privacy engine.
type Profile struct {
	OverallScore      float64 `json:"overallScore"`
	ExpertiseDepth    float64 `json:"expertiseDepth"`
	Growth            float64 `json:"growth"`
	Leadership        float64 `json:"leadership"`
	IndustryRelevance float64 `json:"industryRelevance"`
	Level             Level   `json:"level"`
	RepositoryCount   int     `json:"repositoryCount"`
}

// Privatizer releases noisy values against a subject's budget.
type Privatizer interface {
	Privatize(ctx context.Context, subject domain.SubjectID, values []float64, params privacy.Parameters) ([]float64, *privacy.Reservation, error)
}

// Aggregator builds developer profiles.
type Aggregator struct {
	scoring Scoring
	engine  Privatizer
	logger  *slog.Logger
}

// New creates an aggregator. A nil logger falls back to slog.Default.
func New(scoring Scoring, engine Privatizer, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{scoring: scoring, engine: engine, logger: logger}
}

// Scoring returns the formula settings.
func (a *Aggregator) Scoring() Scoring {
	return a.scoring
}

// ScoreRepository scores each language and derives the repository sub-scores.
func (a *Aggregator) ScoreRepository(repo RepositoryActivity, now time.Time) RepositoryScore {
	out := RepositoryScore{Name: repo.Name}

	var weighted, relevance, totalLOC float64
	for _, lang := range repo.Languages {
		ls := a.scoring.Score(lang, now)
		out.Languages = append(out.Languages, ls)

		w := float64(max(lang.LinesOfCode, 0))
		totalLOC += w
		weighted += w * ls.Score
		r, ok := relevanceTable[ls.Language]
		if !ok {
			r = defaultRelevance
		}
		relevance += w * r
	}

	switch {
	case totalLOC > 0:
		out.Overall = weighted / totalLOC
		out.IndustryRelevance = relevance / totalLOC
	case len(out.Languages) > 0:
		var sum float64
		for _, ls := range out.Languages {
			sum += ls.Score
		}
		out.Overall = sum / float64(len(out.Languages))
		out.IndustryRelevance = defaultRelevance
	}

	if repo.TotalCommits > 0 {
		recent := min(max(repo.RecentCommits, 0), repo.TotalCommits)
		out.Growth = 100 * float64(recent) / float64(repo.TotalCommits)
	}
	share := math.Min(math.Max(repo.ContributionShare, 0), 100)
	out.Leadership = clampScore(0.7*share + math.Min(30, 1.5*float64(max(repo.ReviewsGiven, 0))))

	out.Overall = clampScore(out.Overall)
	out.IndustryRelevance = clampScore(out.IndustryRelevance)
	return out
}

// Aggregate scores every repository and releases the profile. Two separate
// spends are made against the subject's budget: one noising each
// repository's overall score and one noising the five published outputs.
// On any failure the debits already made are released.
func (a *Aggregator) Aggregate(ctx context.Context, subject domain.SubjectID, repos []RepositoryActivity, params privacy.Parameters, now time.Time) (Profile, privacy.Reservations, error) {
	if len(repos) == 0 {
		return Profile{}, nil, dErrors.New(dErrors.CodeInvalidRequest, "aggregate requires at least one repository")
	}

	scores := make([]RepositoryScore, len(repos))
	overall := make([]float64, len(repos))
	for i, repo := range repos {
		scores[i] = a.ScoreRepository(repo, now)
		overall[i] = scores[i].Overall
	}

	var reservations privacy.Reservations
	noisyOverall, res, err := a.engine.Privatize(ctx, subject, overall, params)
	if err != nil {
		return Profile{}, nil, err
	}
	reservations = append(reservations, res)

	best := make(map[string]float64)
	var growth, leadership, relevance float64
	for _, s := range scores {
		for _, ls := range s.Languages {
			if ls.Score > best[ls.Language] {
				best[ls.Language] = ls.Score
			}
		}
		growth += s.Growth
		leadership += s.Leadership
		relevance += s.IndustryRelevance
	}
	n := float64(len(scores))

	var experts, advanced int
	for _, score := range best {
		switch a.scoring.Thresholds.LevelFor(score) {
		case LevelExpert:
			experts++
		case LevelAdvanced:
			advanced++
		}
	}

	final := []float64{
		mean(noisyOverall),
		math.Min(100, float64(experts*25+advanced*15)),
		growth / n,
		leadership / n,
		relevance / n,
	}
	released, res, err := a.engine.Privatize(ctx, subject, final, params)
	if err != nil {
		if relErr := reservations.Release(context.WithoutCancel(ctx)); relErr != nil {
			a.logger.ErrorContext(ctx, "failed to release aggregate reservation",
				"subject_id", subject.String(),
				"error", relErr,
			)
		}
		return Profile{}, nil, err
	}
	reservations = append(reservations, res)

	profile := Profile{
		OverallScore:      released[0],
		ExpertiseDepth:    released[1],
		Growth:            released[2],
		Leadership:        released[3],
		IndustryRelevance: released[4],
		RepositoryCount:   len(repos),
	}
	profile.Level = a.scoring.Thresholds.LevelFor(profile.OverallScore)
	return profile, reservations, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
