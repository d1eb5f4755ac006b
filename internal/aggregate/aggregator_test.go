package aggregate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"devcred/internal/privacy"
	"devcred/pkg/domain"
	dErrors "devcred/pkg/domain-errors"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestScoreFormula(t *testing.T) {
	sc := Scoring{Thresholds: DefaultThresholds(), TemporalDecay: 0.1}

	t.Run("sums the capped components and decays by age", func(t *testing.T) {
		got := sc.Score(LanguageActivity{
			Language:     "Go",
			LinesOfCode:  999,
			Commits:      5,
			LastActivity: now.Add(-14 * 24 * time.Hour),
		}, now)

		ageYears := 14.0 / 365.25
		want := (30.0 + 10 + 14 + 8) * (1 - 0.1*ageYears)
		assert.InDelta(t, want, got.Score, 1e-9)
		assert.Equal(t, "go", got.Language)
		assert.Equal(t, LevelAdvanced, got.Level)
	})

	t.Run("components are capped", func(t *testing.T) {
		got := Scoring{Thresholds: DefaultThresholds()}.Score(LanguageActivity{
			Language:     "haskell",
			LinesOfCode:  1_000_000_000,
			Commits:      1000,
			LastActivity: now,
		}, now)
		assert.InDelta(t, 100.0, got.Score, 1e-9)
		assert.Equal(t, LevelExpert, got.Level)
	})

	t.Run("quality weighting is clamped to one hundred", func(t *testing.T) {
		weighted := Scoring{Thresholds: DefaultThresholds(), QualityWeighting: true}
		got := weighted.Score(LanguageActivity{Language: "rust", LinesOfCode: 9, Commits: 1, QualityIndicators: 50}, now)
		assert.InDelta(t, (10+2+18)*1.5, got.Score, 1e-9)

		got = weighted.Score(LanguageActivity{Language: "haskell", LinesOfCode: 1e6, Commits: 100, LastActivity: now, QualityIndicators: 80}, now)
		assert.InDelta(t, 100.0, got.Score, 1e-9)
	})

	t.Run("old activity decays to zero", func(t *testing.T) {
		got := sc.Score(LanguageActivity{Language: "go", LinesOfCode: 10000, Commits: 50, LastActivity: now.AddDate(-11, 0, 0)}, now)
		assert.Zero(t, got.Score)
		assert.Equal(t, LevelBeginner, got.Level)
	})

	t.Run("unknown languages use the default complexity", func(t *testing.T) {
		got := sc.Score(LanguageActivity{Language: "cobol"}, now)
		assert.InDelta(t, float64(defaultComplexity), got.Score, 1e-9)
	})
}

func TestThresholds(t *testing.T) {
	th := DefaultThresholds()
	require.NoError(t, th.Validate())
	assert.Equal(t, LevelBeginner, th.LevelFor(29.9))
	assert.Equal(t, LevelIntermediate, th.LevelFor(30))
	assert.Equal(t, LevelAdvanced, th.LevelFor(60))
	assert.Equal(t, LevelExpert, th.LevelFor(85))

	assert.Error(t, Thresholds{Intermediate: 50, Advanced: 40, Expert: 90}.Validate())
	assert.Error(t, Thresholds{Intermediate: 0, Advanced: 40, Expert: 90}.Validate())
}

type fakePrivatizer struct {
	calls [][]float64
}

func (f *fakePrivatizer) Privatize(_ context.Context, _ domain.SubjectID, values []float64, _ privacy.Parameters) ([]float64, *privacy.Reservation, error) {
	f.calls = append(f.calls, append([]float64(nil), values...))
	return values, nil, nil
}

type AggregatorSuite struct {
	suite.Suite
	ctx     context.Context
	subject domain.SubjectID
	repos   []RepositoryActivity
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func (s *AggregatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.subject = "did:example:alice"
	s.repos = []RepositoryActivity{
		{
			Name: "acme/api",
			Languages: []LanguageActivity{
				{Language: "go", LinesOfCode: 1_000_000, Commits: 400, LastActivity: now, QualityIndicators: 90},
				{Language: "shell", LinesOfCode: 100, Commits: 2, LastActivity: now},
			},
			TotalCommits:      400,
			RecentCommits:     100,
			ContributionShare: 40,
			ReviewsGiven:      10,
		},
		{
			Name: "acme/web",
			Languages: []LanguageActivity{
				{Language: "typescript", LinesOfCode: 500, Commits: 3, LastActivity: now.AddDate(0, 0, -7)},
			},
			TotalCommits:      20,
			RecentCommits:     40,
			ContributionShare: 10,
		},
	}
}

func (s *AggregatorSuite) TestScoreRepository() {
	agg := New(DefaultScoring(), &fakePrivatizer{}, nil)

	api := agg.ScoreRepository(s.repos[0], now)
	s.Len(api.Languages, 2)
	s.InDelta(25.0, api.Growth, 1e-9)
	s.InDelta(0.7*40+15, api.Leadership, 1e-9)
	// dominated by the Go lines
	s.Greater(api.IndustryRelevance, 89.0)

	web := agg.ScoreRepository(s.repos[1], now)
	s.InDelta(100.0, web.Growth, 1e-9, "recent commits are capped at the total")

	empty := agg.ScoreRepository(RepositoryActivity{Name: "empty"}, now)
	s.Zero(empty.Overall)
	s.Zero(empty.Growth)
}

func (s *AggregatorSuite) TestAggregateMakesTwoSpends() {
	fake := &fakePrivatizer{}
	agg := New(DefaultScoring(), fake, nil)

	profile, _, err := agg.Aggregate(s.ctx, s.subject, s.repos, privacy.DefaultParameters(), now)
	s.Require().NoError(err)

	s.Require().Len(fake.calls, 2)
	s.Len(fake.calls[0], 2)
	s.Len(fake.calls[1], 5)

	api := agg.ScoreRepository(s.repos[0], now)
	web := agg.ScoreRepository(s.repos[1], now)
	s.InDelta((api.Overall+web.Overall)/2, profile.OverallScore, 1e-9)
	s.InDelta((api.Growth+web.Growth)/2, profile.Growth, 1e-9)
	s.Equal(2, profile.RepositoryCount)
	s.Equal(DefaultThresholds().LevelFor(profile.OverallScore), profile.Level)

	// go is expert, typescript and shell are below advanced
	s.InDelta(25.0, profile.ExpertiseDepth, 1e-9)
}

// cancellingLedger cancels the caller's context after the first debit and
// refuses any work on a cancelled context.
type cancellingLedger struct {
	*privacy.MemoryLedger
	cancel  context.CancelFunc
	debited int
}

func (l *cancellingLedger) Debit(ctx context.Context, subject domain.SubjectID, epsilon float64) (privacy.Balance, error) {
	if err := ctx.Err(); err != nil {
		return privacy.Balance{}, err
	}
	bal, err := l.MemoryLedger.Debit(ctx, subject, epsilon)
	if err == nil {
		l.debited++
		if l.debited == 1 {
			l.cancel()
		}
	}
	return bal, err
}

func (l *cancellingLedger) Credit(ctx context.Context, subject domain.SubjectID, epsilon float64) (privacy.Balance, error) {
	if err := ctx.Err(); err != nil {
		return privacy.Balance{}, err
	}
	return l.MemoryLedger.Credit(ctx, subject, epsilon)
}

func (s *AggregatorSuite) TestAggregateReleasesFirstSpendWhenSecondFails() {
	params := privacy.DefaultParameters()
	params.Epsilon = 0.5

	s.Run("budget runs out on the second spend", func() {
		ledger := privacy.NewMemoryLedger(3.0)
		engine := privacy.NewEngine(ledger, privacy.WithSource(privacy.NewSeededSource(11)))
		agg := New(DefaultScoring(), engine, nil)

		_, _, err := agg.Aggregate(s.ctx, s.subject, s.repos, params, now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBudgetExceeded))

		bal, err := ledger.Balance(s.ctx, s.subject)
		s.Require().NoError(err)
		s.Zero(bal.Spent)
	})

	s.Run("context is cancelled between the spends", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		ledger := &cancellingLedger{MemoryLedger: privacy.NewMemoryLedger(10.0), cancel: cancel}
		engine := privacy.NewEngine(ledger, privacy.WithSource(privacy.NewSeededSource(13)))
		agg := New(DefaultScoring(), engine, nil)

		_, _, err := agg.Aggregate(ctx, s.subject, s.repos, params, now)
		s.Require().ErrorIs(err, context.Canceled)
		s.Equal(1, ledger.debited)

		bal, err := ledger.Balance(s.ctx, s.subject)
		s.Require().NoError(err)
		s.Zero(bal.Spent)
	})
}

func (s *AggregatorSuite) TestAggregateReleasesWithinConfiguredBounds() {
	ledger := privacy.NewMemoryLedger(100.0)
	engine := privacy.NewEngine(ledger, privacy.WithSource(privacy.NewSeededSource(14)))
	agg := New(DefaultScoring(), engine, nil)

	params := privacy.DefaultParameters()
	params.ClampingBounds = [2]float64{10, 20}

	profile, _, err := agg.Aggregate(s.ctx, s.subject, s.repos, params, now)
	s.Require().NoError(err)
	for _, v := range []float64{profile.OverallScore, profile.ExpertiseDepth, profile.Growth, profile.Leadership, profile.IndustryRelevance} {
		s.GreaterOrEqual(v, 10.0)
		s.LessOrEqual(v, 20.0)
	}
}

func (s *AggregatorSuite) TestAggregateDebitsBothSpends() {
	ledger := privacy.NewMemoryLedger(10.0)
	engine := privacy.NewEngine(ledger, privacy.WithSource(privacy.NewSeededSource(12)))
	agg := New(DefaultScoring(), engine, nil)

	params := privacy.DefaultParameters()
	params.Epsilon = 0.5

	profile, res, err := agg.Aggregate(s.ctx, s.subject, s.repos, params, now)
	s.Require().NoError(err)
	s.InDelta(3.5, res.Epsilon(), 1e-9)
	for _, v := range []float64{profile.OverallScore, profile.ExpertiseDepth, profile.Growth, profile.Leadership, profile.IndustryRelevance} {
		s.False(math.IsNaN(v))
		s.GreaterOrEqual(v, 0.0)
		s.LessOrEqual(v, 100.0)
	}

	bal, err := ledger.Balance(s.ctx, s.subject)
	s.Require().NoError(err)
	s.InDelta(3.5, bal.Spent, 1e-9)
}

func (s *AggregatorSuite) TestAggregateRequiresRepositories() {
	agg := New(DefaultScoring(), &fakePrivatizer{}, nil)
	_, _, err := agg.Aggregate(s.ctx, s.subject, nil, privacy.DefaultParameters(), now)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidRequest))
}
