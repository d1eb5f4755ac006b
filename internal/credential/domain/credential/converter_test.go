package credential_test

import (
	"time"

	"devcred/internal/credential/domain/credential"
	"devcred/internal/credential/domain/shared"
	"devcred/internal/credential/models"
)

func (s *CredentialSuite) TestConverterRoundTrip() {
	a := s.validAttributes()
	exp, err := shared.NewExpiresAtAfter(issuedTime.Add(24*time.Hour), s.issuedAt)
	s.Require().NoError(err)
	a.ExpiresAt = exp
	a.Metadata = map[string]string{"requestId": "req-1"}

	original, err := credential.New(a)
	s.Require().NoError(err)

	record := credential.ToModel(original)
	s.Equal(original.ID(), record.ID)
	s.Equal(models.CredentialTypeRepository, record.Type)
	s.Require().NotNil(record.ExpiresAt)
	s.Equal("high", record.PrivacyLevel)

	restored, err := credential.FromModel(record)
	s.Require().NoError(err)
	s.Equal(record, credential.ToModel(restored))
}

func (s *CredentialSuite) TestFromModelRejectsInvalidRecords() {
	valid, err := credential.New(s.validAttributes())
	s.Require().NoError(err)

	s.Run("expiry before issuance", func() {
		record := credential.ToModel(valid)
		before := issuedTime.Add(-time.Hour)
		record.ExpiresAt = &before
		_, err := credential.FromModel(record)
		s.ErrorIs(err, shared.ErrExpiresBeforeIssued)
	})

	s.Run("claims of another type", func() {
		record := credential.ToModel(valid)
		record.Type = models.CredentialTypeLanguage
		_, err := credential.FromModel(record)
		s.Error(err)
	})

	s.Run("zero issuance", func() {
		record := credential.ToModel(valid)
		record.IssuedAt = time.Time{}
		_, err := credential.FromModel(record)
		s.ErrorIs(err, shared.ErrInvalidIssuedAt)
	})
}

func (s *CredentialSuite) TestFromModelTreatsExpiredAsDerived() {
	valid, err := credential.New(s.validAttributes())
	s.Require().NoError(err)

	record := credential.ToModel(valid)
	record.Status = models.StatusExpired
	restored, err := credential.FromModel(record)
	s.Require().NoError(err)
	s.Equal(models.StatusReady, restored.StoredStatus())
}
