package credential

import (
	"errors"
	"maps"
	"slices"

	"devcred/internal/claims"
	"devcred/internal/credential/models"
)

// ClaimSet is implemented by every credential variant's claims.
type ClaimSet interface {
	Type() models.CredentialType
	// WithoutHidden returns a copy with every range proof's true value dropped.
	WithoutHidden() ClaimSet
	// HasHidden reports whether any range proof still carries its true value.
	HasHidden() bool
	// ToMap converts the public claims to an untyped map for serialization.
	ToMap() map[string]any
	// WitnessMap is ToMap plus hidden values; it is only handed to the prover.
	WitnessMap() map[string]any
}

// Claim keys.
const (
	KeyRepositoryCommitment   = "repositoryCommitment"
	KeyCommitRange            = "commitRange"
	KeyLinesRange             = "linesRange"
	KeyActiveDays             = "activeDays"
	KeyMerkleRoot             = "merkleRoot"
	KeyLanguage               = "language"
	KeyLOCRange               = "locRange"
	KeyProficiencyScore       = "proficiencyScore"
	KeyProficiencyLevel       = "proficiencyLevel"
	KeyCollaboratorCommitment = "collaboratorSetCommitment"
	KeyGroupSizeRange         = "groupSizeRange"
	KeyKAnonymity             = "kAnonymity"
	KeyContributionShare      = "contributionShare"
	KeyActiveWeeksRatio       = "activeWeeksRatio"
	KeyActiveDaysRange        = "activeDaysRange"
	KeyStreakRange            = "streakRange"
	KeyOverallScore           = "overallScore"
	KeyExpertiseDepth         = "expertiseDepth"
	KeyGrowth                 = "growth"
	KeyLeadership             = "leadership"
	KeyIndustryRelevance      = "industryRelevance"
	KeyProfileLevel           = "profileLevel"
	KeyRepositoryCount        = "repositoryCount"
	KeySourceCredentials      = "sourceCredentials"
)

// RepositoryClaims attest activity in one repository.
type RepositoryClaims struct {
	repository  claims.Commitment
	commitRange claims.RangeProof
	linesRange  claims.RangeProof
	activeDays  float64
	merkleRoot  string
}

// NewRepositoryClaims creates repository claims. activeDays is the noisy release.
func NewRepositoryClaims(repository claims.Commitment, commitRange, linesRange claims.RangeProof, activeDays float64, merkleRoot string) RepositoryClaims {
	return RepositoryClaims{
		repository:  repository,
		commitRange: commitRange,
		linesRange:  linesRange,
		activeDays:  activeDays,
		merkleRoot:  merkleRoot,
	}
}

func (c RepositoryClaims) Type() models.CredentialType    { return models.CredentialTypeRepository }
func (c RepositoryClaims) Repository() claims.Commitment  { return c.repository }
func (c RepositoryClaims) CommitRange() claims.RangeProof { return c.commitRange }
func (c RepositoryClaims) LinesRange() claims.RangeProof  { return c.linesRange }
func (c RepositoryClaims) ActiveDays() float64            { return c.activeDays }

func (c RepositoryClaims) HasHidden() bool {
	return c.commitRange.HasHidden() || c.linesRange.HasHidden()
}

func (c RepositoryClaims) WithoutHidden() ClaimSet {
	c.commitRange = c.commitRange.Stripped()
	c.linesRange = c.linesRange.Stripped()
	return c
}

func (c RepositoryClaims) ToMap() map[string]any {
	m := map[string]any{
		KeyRepositoryCommitment: c.repository.String(),
		KeyCommitRange:          c.commitRange.ToMap(),
		KeyLinesRange:           c.linesRange.ToMap(),
		KeyActiveDays:           c.activeDays,
	}
	if c.merkleRoot != "" {
		m[KeyMerkleRoot] = c.merkleRoot
	}
	return m
}

func (c RepositoryClaims) WitnessMap() map[string]any {
	m := c.ToMap()
	m[KeyCommitRange] = c.commitRange.WitnessMap()
	m[KeyLinesRange] = c.linesRange.WitnessMap()
	return m
}

// RepositoryClaimsFromMap reconstructs repository claims from persistence.
func RepositoryClaimsFromMap(m map[string]any) (RepositoryClaims, error) {
	var c RepositoryClaims
	var err error
	if c.repository, err = readCommitment(m, KeyRepositoryCommitment); err != nil {
		return c, err
	}
	if c.commitRange, err = readRange(m, KeyCommitRange); err != nil {
		return c, err
	}
	if c.linesRange, err = readRange(m, KeyLinesRange); err != nil {
		return c, err
	}
	if c.activeDays, err = readFloat(m, KeyActiveDays); err != nil {
		return c, err
	}
	c.merkleRoot = readOptionalString(m, KeyMerkleRoot)
	return c, nil
}

// LanguageClaims attest proficiency in one language.
type LanguageClaims struct {
	language string
	locRange claims.RangeProof
	score    float64
	level    string
}

// NewLanguageClaims creates language claims. score is the noisy release and
// level is derived from it.
func NewLanguageClaims(language string, locRange claims.RangeProof, score float64, level string) LanguageClaims {
	return LanguageClaims{language: language, locRange: locRange, score: score, level: level}
}

func (c LanguageClaims) Type() models.CredentialType { return models.CredentialTypeLanguage }
func (c LanguageClaims) Language() string            { return c.language }
func (c LanguageClaims) Score() float64              { return c.score }
func (c LanguageClaims) Level() string               { return c.level }
func (c LanguageClaims) HasHidden() bool             { return c.locRange.HasHidden() }

func (c LanguageClaims) WithoutHidden() ClaimSet {
	c.locRange = c.locRange.Stripped()
	return c
}

func (c LanguageClaims) ToMap() map[string]any {
	return map[string]any{
		KeyLanguage:         c.language,
		KeyLOCRange:         c.locRange.ToMap(),
		KeyProficiencyScore: c.score,
		KeyProficiencyLevel: c.level,
	}
}

func (c LanguageClaims) WitnessMap() map[string]any {
	m := c.ToMap()
	m[KeyLOCRange] = c.locRange.WitnessMap()
	return m
}

func LanguageClaimsFromMap(m map[string]any) (LanguageClaims, error) {
	var c LanguageClaims
	var err error
	if c.language, err = readString(m, KeyLanguage); err != nil {
		return c, err
	}
	if c.locRange, err = readRange(m, KeyLOCRange); err != nil {
		return c, err
	}
	if c.score, err = readFloat(m, KeyProficiencyScore); err != nil {
		return c, err
	}
	if c.level, err = readString(m, KeyProficiencyLevel); err != nil {
		return c, err
	}
	return c, nil
}

// CollaborationClaims attest membership of a k-anonymous collaborator group.
type CollaborationClaims struct {
	repository        claims.Commitment
	collaborators     claims.Commitment
	groupSize         claims.RangeProof
	k                 int64
	contributionShare float64
}

func NewCollaborationClaims(repository, collaborators claims.Commitment, groupSize claims.RangeProof, k int64, contributionShare float64) CollaborationClaims {
	return CollaborationClaims{
		repository:        repository,
		collaborators:     collaborators,
		groupSize:         groupSize,
		k:                 k,
		contributionShare: contributionShare,
	}
}

func (c CollaborationClaims) Type() models.CredentialType  { return models.CredentialTypeCollaboration }
func (c CollaborationClaims) K() int64                     { return c.k }
func (c CollaborationClaims) GroupSize() claims.RangeProof { return c.groupSize }
func (c CollaborationClaims) HasHidden() bool              { return c.groupSize.HasHidden() }

func (c CollaborationClaims) WithoutHidden() ClaimSet {
	c.groupSize = c.groupSize.Stripped()
	return c
}

func (c CollaborationClaims) ToMap() map[string]any {
	return map[string]any{
		KeyRepositoryCommitment:   c.repository.String(),
		KeyCollaboratorCommitment: c.collaborators.String(),
		KeyGroupSizeRange:         c.groupSize.ToMap(),
		KeyKAnonymity:             c.k,
		KeyContributionShare:      c.contributionShare,
	}
}

func (c CollaborationClaims) WitnessMap() map[string]any {
	m := c.ToMap()
	m[KeyGroupSizeRange] = c.groupSize.WitnessMap()
	return m
}

func CollaborationClaimsFromMap(m map[string]any) (CollaborationClaims, error) {
	var c CollaborationClaims
	var err error
	if c.repository, err = readCommitment(m, KeyRepositoryCommitment); err != nil {
		return c, err
	}
	if c.collaborators, err = readCommitment(m, KeyCollaboratorCommitment); err != nil {
		return c, err
	}
	if c.groupSize, err = readRange(m, KeyGroupSizeRange); err != nil {
		return c, err
	}
	if c.k, err = readInt(m, KeyKAnonymity); err != nil {
		return c, err
	}
	if c.contributionShare, err = readFloat(m, KeyContributionShare); err != nil {
		return c, err
	}
	return c, nil
}

// ConsistencyClaims attest contribution regularity.
type ConsistencyClaims struct {
	activeWeeksRatio float64
	activeDays       claims.RangeProof
	streak           claims.RangeProof
}

func NewConsistencyClaims(activeWeeksRatio float64, activeDays, streak claims.RangeProof) ConsistencyClaims {
	return ConsistencyClaims{activeWeeksRatio: activeWeeksRatio, activeDays: activeDays, streak: streak}
}

func (c ConsistencyClaims) Type() models.CredentialType { return models.CredentialTypeConsistency }
func (c ConsistencyClaims) ActiveWeeksRatio() float64   { return c.activeWeeksRatio }

func (c ConsistencyClaims) HasHidden() bool {
	return c.activeDays.HasHidden() || c.streak.HasHidden()
}

func (c ConsistencyClaims) WithoutHidden() ClaimSet {
	c.activeDays = c.activeDays.Stripped()
	c.streak = c.streak.Stripped()
	return c
}

func (c ConsistencyClaims) ToMap() map[string]any {
	return map[string]any{
		KeyActiveWeeksRatio: c.activeWeeksRatio,
		KeyActiveDaysRange:  c.activeDays.ToMap(),
		KeyStreakRange:      c.streak.ToMap(),
	}
}

func (c ConsistencyClaims) WitnessMap() map[string]any {
	m := c.ToMap()
	m[KeyActiveDaysRange] = c.activeDays.WitnessMap()
	m[KeyStreakRange] = c.streak.WitnessMap()
	return m
}

func ConsistencyClaimsFromMap(m map[string]any) (ConsistencyClaims, error) {
	var c ConsistencyClaims
	var err error
	if c.activeWeeksRatio, err = readFloat(m, KeyActiveWeeksRatio); err != nil {
		return c, err
	}
	if c.activeDays, err = readRange(m, KeyActiveDaysRange); err != nil {
		return c, err
	}
	if c.streak, err = readRange(m, KeyStreakRange); err != nil {
		return c, err
	}
	return c, nil
}

// ProfileScores are the five published aggregate numbers.
type ProfileScores struct {
	Overall           float64
	ExpertiseDepth    float64
	Growth            float64
	Leadership        float64
	IndustryRelevance float64
}

// AggregateClaims attest a cross-repository developer profile. It holds no
// range proofs, so it never carries hidden values.
type AggregateClaims struct {
	scores          ProfileScores
	level           string
	repositoryCount int64
	sources         []string
}

func NewAggregateClaims(scores ProfileScores, level string, repositoryCount int64, sources []string) AggregateClaims {
	return AggregateClaims{scores: scores, level: level, repositoryCount: repositoryCount, sources: slices.Clone(sources)}
}

func (c AggregateClaims) Type() models.CredentialType { return models.CredentialTypeAggregate }
func (c AggregateClaims) Scores() ProfileScores       { return c.scores }
func (c AggregateClaims) HasHidden() bool             { return false }
func (c AggregateClaims) WithoutHidden() ClaimSet     { return c }

func (c AggregateClaims) ToMap() map[string]any {
	m := map[string]any{
		KeyOverallScore:      c.scores.Overall,
		KeyExpertiseDepth:    c.scores.ExpertiseDepth,
		KeyGrowth:            c.scores.Growth,
		KeyLeadership:        c.scores.Leadership,
		KeyIndustryRelevance: c.scores.IndustryRelevance,
		KeyProfileLevel:      c.level,
		KeyRepositoryCount:   c.repositoryCount,
	}
	if len(c.sources) > 0 {
		m[KeySourceCredentials] = slices.Clone(c.sources)
	}
	return m
}

func (c AggregateClaims) WitnessMap() map[string]any { return c.ToMap() }

func AggregateClaimsFromMap(m map[string]any) (AggregateClaims, error) {
	var c AggregateClaims
	fields := map[string]*float64{
		KeyOverallScore:      &c.scores.Overall,
		KeyExpertiseDepth:    &c.scores.ExpertiseDepth,
		KeyGrowth:            &c.scores.Growth,
		KeyLeadership:        &c.scores.Leadership,
		KeyIndustryRelevance: &c.scores.IndustryRelevance,
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		v, err := readFloat(m, key)
		if err != nil {
			return c, err
		}
		*fields[key] = v
	}
	var err error
	if c.level, err = readString(m, KeyProfileLevel); err != nil {
		return c, err
	}
	if c.repositoryCount, err = readInt(m, KeyRepositoryCount); err != nil {
		return c, err
	}
	if c.sources, err = readStrings(m, KeySourceCredentials); err != nil {
		return c, err
	}
	return c, nil
}

var errUnknownCredentialType = errors.New("unknown credential type")

// ClaimsFromMap reconstructs the typed claim set for credType.
func ClaimsFromMap(credType models.CredentialType, m map[string]any) (ClaimSet, error) {
	switch credType {
	case models.CredentialTypeRepository:
		return RepositoryClaimsFromMap(m)
	case models.CredentialTypeLanguage:
		return LanguageClaimsFromMap(m)
	case models.CredentialTypeCollaboration:
		return CollaborationClaimsFromMap(m)
	case models.CredentialTypeConsistency:
		return ConsistencyClaimsFromMap(m)
	case models.CredentialTypeAggregate:
		return AggregateClaimsFromMap(m)
	default:
		return nil, errUnknownCredentialType
	}
}
