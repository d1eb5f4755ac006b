package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/models"
	"devcred/pkg/domain"
	"devcred/pkg/platform/sentinel"
	"devcred/pkg/testutil"
)

// credentialStore is the contract every adapter satisfies.
type credentialStore interface {
	Store(ctx context.Context, c *credential.Credential) (domain.CredentialID, error)
	Retrieve(ctx context.Context, id domain.CredentialID) (*credential.Credential, error)
	List(ctx context.Context, subject domain.SubjectID) ([]domain.CredentialID, error)
	Delete(ctx context.Context, id domain.CredentialID) (bool, error)
	UpdateStatus(ctx context.Context, id domain.CredentialID, status models.Status) (bool, error)
}

// ContractSuite runs the storage contract against one adapter.
type ContractSuite struct {
	suite.Suite
	ctx      context.Context
	newStore func(t *testing.T) credentialStore
	store    credentialStore
}

func (s *ContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func TestInMemoryStoreContract(t *testing.T) {
	suite.Run(t, &ContractSuite{newStore: func(*testing.T) credentialStore {
		return NewInMemoryStore()
	}})
}

func TestSQLiteStoreContract(t *testing.T) {
	suite.Run(t, &ContractSuite{newStore: func(t *testing.T) credentialStore {
		db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "credentials.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return NewSQLiteStore(db)
	}})
}

func (s *ContractSuite) TestStoreAndRetrieve() {
	expires := testutil.TestIDs.IssuedAt.Add(30 * 24 * time.Hour)
	c := testutil.NewCredentialBuilder().
		WithID(testutil.TestIDs.Credential1).
		WithMetadata(map[string]string{"source": "github"}).
		ExpiresAt(expires).
		Build()

	id, err := s.store.Store(s.ctx, c)
	s.Require().NoError(err)
	s.Equal(testutil.TestIDs.Credential1, id)

	got, err := s.store.Retrieve(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(credential.ToModel(c).Claims, credential.ToModel(got).Claims)
	s.Equal(c.Type(), got.Type())
	s.Equal(c.Subject(), got.Subject())
	s.Equal(c.Issuer(), got.Issuer())
	s.Equal(c.Proof(), got.Proof())
	s.True(c.IssuedAt().Time().Equal(got.IssuedAt().Time()))
	s.True(expires.Equal(got.ExpiresAt().Time()))
	s.Equal(map[string]string{"source": "github"}, got.Metadata())
	s.Equal(c.PrivacyLevel(), got.PrivacyLevel())
	s.Equal(models.StatusReady, got.StoredStatus())
}

func (s *ContractSuite) TestStoreRejectsDuplicateID() {
	c := testutil.NewTestCredential(testutil.TestIDs.Credential1, testutil.TestIDs.Subject1)
	_, err := s.store.Store(s.ctx, c)
	s.Require().NoError(err)

	_, err = s.store.Store(s.ctx, c)
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *ContractSuite) TestRetrieveMissing() {
	_, err := s.store.Retrieve(s.ctx, testutil.TestIDs.UnknownCred)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *ContractSuite) TestListBySubject() {
	first := testutil.NewCredentialBuilder().WithID(testutil.TestIDs.Credential1).Build()
	second := testutil.NewCredentialBuilder().
		WithID(testutil.TestIDs.Credential2).
		IssuedAt(testutil.TestIDs.IssuedAt.Add(time.Hour)).
		Build()
	other := testutil.NewCredentialBuilder().WithSubject(testutil.TestIDs.Subject2).Build()

	for _, c := range []*credential.Credential{second, other, first} {
		_, err := s.store.Store(s.ctx, c)
		s.Require().NoError(err)
	}

	ids, err := s.store.List(s.ctx, testutil.TestIDs.Subject1)
	s.Require().NoError(err)
	s.ElementsMatch([]domain.CredentialID{testutil.TestIDs.Credential1, testutil.TestIDs.Credential2}, ids)

	ids, err = s.store.List(s.ctx, domain.SubjectID("did:example:nobody"))
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *ContractSuite) TestUpdateStatus() {
	c := testutil.NewTestCredential(testutil.TestIDs.Credential1, testutil.TestIDs.Subject1)
	_, err := s.store.Store(s.ctx, c)
	s.Require().NoError(err)

	s.Run("revokes an existing credential", func() {
		ok, err := s.store.UpdateStatus(s.ctx, c.ID(), models.StatusRevoked)
		s.Require().NoError(err)
		s.True(ok)

		got, err := s.store.Retrieve(s.ctx, c.ID())
		s.Require().NoError(err)
		s.True(got.IsRevoked())
	})

	s.Run("reports missing credentials", func() {
		ok, err := s.store.UpdateStatus(s.ctx, testutil.TestIDs.UnknownCred, models.StatusRevoked)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("never persists the derived expired status", func() {
		_, err := s.store.UpdateStatus(s.ctx, c.ID(), models.StatusExpired)
		s.True(errors.Is(err, sentinel.ErrInvalidState))
	})
}

func (s *ContractSuite) TestDelete() {
	c := testutil.NewTestCredential(testutil.TestIDs.Credential1, testutil.TestIDs.Subject1)
	_, err := s.store.Store(s.ctx, c)
	s.Require().NoError(err)

	ok, err := s.store.Delete(s.ctx, c.ID())
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Delete(s.ctx, c.ID())
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.store.Retrieve(s.ctx, c.ID())
	s.True(errors.Is(err, sentinel.ErrNotFound))
	ids, err := s.store.List(s.ctx, testutil.TestIDs.Subject1)
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *ContractSuite) TestRetrievedCopiesAreIndependent() {
	c := testutil.NewTestCredential(testutil.TestIDs.Credential1, testutil.TestIDs.Subject1)
	_, err := s.store.Store(s.ctx, c)
	s.Require().NoError(err)

	got, err := s.store.Retrieve(s.ctx, c.ID())
	s.Require().NoError(err)
	got.Revoke()

	again, err := s.store.Retrieve(s.ctx, c.ID())
	s.Require().NoError(err)
	s.False(again.IsRevoked())
}

func TestQueryRebinding(t *testing.T) {
	sqlite := &SQLStore{dialect: dialect{positional: true}}
	pg := &SQLStore{}
	q := `UPDATE credentials SET status = $1 WHERE id = $12`
	if got := sqlite.query(q); got != `UPDATE credentials SET status = ? WHERE id = ?` {
		t.Fatalf("unexpected rebinding: %s", got)
	}
	if got := pg.query(q); got != q {
		t.Fatalf("postgres query rewritten: %s", got)
	}
}
