package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"attesto/internal/audit"
	auditmemory "attesto/internal/audit/store/memory"
	"attesto/internal/guard"
	"attesto/internal/policy/models"
	"attesto/internal/policy/store"
	"attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

const (
	ownerID    = domain.Identity("did:example:owner")
	strangerID = domain.Identity("did:example:mallory")
)

type ServiceSuite struct {
	suite.Suite
	svc        *Service
	auditStore *auditmemory.InMemoryStore
	ctx        context.Context
}

func (s *ServiceSuite) SetupTest() {
	g, err := guard.New(ownerID, "")
	s.Require().NoError(err)

	s.auditStore = auditmemory.NewInMemoryStore()
	s.svc = New(store.NewInMemory(), g,
		WithAuditPublisher(audit.NewPublisher(s.auditStore)),
	)
	s.ctx = context.Background()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) ownerCtx() context.Context {
	return requestcontext.WithIdentity(s.ctx, ownerID)
}

func (s *ServiceSuite) TestBindSource() {
	policyID := domain.PolicyID(7)

	s.Run("owner binds a source", func() {
		s.Require().NoError(s.svc.BindSource(s.ownerCtx(), policyID, "kyc-primary"))

		binding, err := s.svc.Binding(s.ctx, policyID)
		s.Require().NoError(err)
		s.Equal(domain.SourceRef("kyc-primary"), binding.Source)
	})

	s.Run("non-owner is rejected without side effects", func() {
		ctx := requestcontext.WithIdentity(s.ctx, strangerID)
		err := s.svc.BindSource(ctx, domain.PolicyID(8), "kyc-rogue")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		binding, err := s.svc.Binding(s.ctx, domain.PolicyID(8))
		s.Require().NoError(err)
		s.True(binding.Source.IsNil())
	})

	s.Run("anonymous caller is rejected", func() {
		err := s.svc.BindSource(s.ctx, policyID, "kyc-primary")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("emits a registry audit event", func() {
		s.Require().NoError(s.svc.BindSource(s.ownerCtx(), policyID, "kyc-primary"))

		events, err := s.auditStore.ListBySubject(s.ctx, domain.SubjectID(policyID.String()))
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		s.Equal(string(audit.ActionPolicySourceBound), events[0].Action)
		s.Equal(ownerID.String(), events[0].Actor)
	})
}

func (s *ServiceSuite) TestSetLatestVersion() {
	policyID := domain.PolicyID(7)

	s.Run("owner publishes a version", func() {
		s.Require().NoError(s.svc.SetLatestVersion(s.ownerCtx(), policyID, 3))

		binding, err := s.svc.Binding(s.ctx, policyID)
		s.Require().NoError(err)
		s.Equal(domain.Version(3), binding.LatestVersion)
	})

	s.Run("version write does not disturb source", func() {
		s.Require().NoError(s.svc.BindSource(s.ownerCtx(), policyID, "kyc-primary"))
		s.Require().NoError(s.svc.SetLatestVersion(s.ownerCtx(), policyID, 4))

		binding, err := s.svc.Binding(s.ctx, policyID)
		s.Require().NoError(err)
		s.Equal(domain.SourceRef("kyc-primary"), binding.Source)
		s.Equal(domain.Version(4), binding.LatestVersion)
	})

	s.Run("non-owner is rejected", func() {
		ctx := requestcontext.WithIdentity(s.ctx, strangerID)
		err := s.svc.SetLatestVersion(ctx, policyID, 9)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestBindVerifier() {
	desc := domain.VerifierDesc("age-over-18")

	s.Run("owner binds a verifier", func() {
		s.Require().NoError(s.svc.BindVerifier(s.ownerCtx(), desc, "groth16:age-v1"))

		binding, err := s.svc.VerifierBinding(s.ctx, desc)
		s.Require().NoError(err)
		s.Equal(domain.VerifierRef("groth16:age-v1"), binding.Ref)
	})

	s.Run("empty ref disables the description", func() {
		s.Require().NoError(s.svc.BindVerifier(s.ownerCtx(), desc, "groth16:age-v1"))
		s.Require().NoError(s.svc.BindVerifier(s.ownerCtx(), desc, ""))

		binding, err := s.svc.VerifierBinding(s.ctx, desc)
		s.Require().NoError(err)
		s.True(binding.Ref.IsDisabled())
	})

	s.Run("non-owner is rejected", func() {
		ctx := requestcontext.WithIdentity(s.ctx, strangerID)
		err := s.svc.BindVerifier(ctx, desc, "groth16:rogue")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestSetThreshold() {
	desc := domain.VerifierDesc("age-over-18")

	s.Run("owner sets a threshold", func() {
		s.Require().NoError(s.svc.SetThreshold(s.ownerCtx(), desc, 18))

		binding, err := s.svc.VerifierBinding(s.ctx, desc)
		s.Require().NoError(err)
		s.Equal(domain.Threshold(18), binding.Threshold)
	})

	s.Run("zero threshold is a legitimate bound", func() {
		s.Require().NoError(s.svc.SetThreshold(s.ownerCtx(), desc, 18))
		s.Require().NoError(s.svc.SetThreshold(s.ownerCtx(), desc, 0))

		binding, err := s.svc.VerifierBinding(s.ctx, desc)
		s.Require().NoError(err)
		s.Equal(domain.Threshold(0), binding.Threshold)
	})

	s.Run("threshold write does not disturb the ref", func() {
		s.Require().NoError(s.svc.BindVerifier(s.ownerCtx(), desc, "groth16:age-v1"))
		s.Require().NoError(s.svc.SetThreshold(s.ownerCtx(), desc, 21))

		binding, err := s.svc.VerifierBinding(s.ctx, desc)
		s.Require().NoError(err)
		s.Equal(domain.VerifierRef("groth16:age-v1"), binding.Ref)
		s.Equal(domain.Threshold(21), binding.Threshold)
	})

	s.Run("non-owner is rejected", func() {
		ctx := requestcontext.WithIdentity(s.ctx, strangerID)
		err := s.svc.SetThreshold(ctx, desc, 99)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestOpenReadsDefaultToZero() {
	s.Run("unconfigured policy reads as zero binding", func() {
		binding, err := s.svc.Binding(s.ctx, domain.PolicyID(404))
		s.Require().NoError(err)
		s.Equal(models.Binding{}, binding)
	})

	s.Run("unconfigured description reads as zero binding", func() {
		binding, err := s.svc.VerifierBinding(s.ctx, domain.VerifierDesc("unknown"))
		s.Require().NoError(err)
		s.Equal(models.VerifierBinding{}, binding)
	})
}

func (s *ServiceSuite) TestStoreFailureSurfacesAsInternal() {
	g, err := guard.New(ownerID, "")
	s.Require().NoError(err)
	svc := New(failingStore{}, g)

	err = svc.BindSource(s.ownerCtx(), domain.PolicyID(1), "kyc-primary")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = svc.Binding(s.ctx, domain.PolicyID(1))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

type failingStore struct{}

var errStore = errors.New("store unavailable")

func (failingStore) SetPolicySource(context.Context, domain.PolicyID, domain.SourceRef) error {
	return errStore
}

func (failingStore) SetPolicyVersion(context.Context, domain.PolicyID, domain.Version) error {
	return errStore
}

func (failingStore) GetPolicyBinding(context.Context, domain.PolicyID) (models.Binding, error) {
	return models.Binding{}, errStore
}

func (failingStore) SetVerifierRef(context.Context, domain.VerifierDesc, domain.VerifierRef) error {
	return errStore
}

func (failingStore) SetVerifierThreshold(context.Context, domain.VerifierDesc, domain.Threshold) error {
	return errStore
}

func (failingStore) GetVerifierBinding(context.Context, domain.VerifierDesc) (models.VerifierBinding, error) {
	return models.VerifierBinding{}, errStore
}
