package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"biovault/internal/biometric/matching"
	"biovault/internal/biometric/modality"
	"biovault/internal/biometric/models"
	"biovault/internal/biometric/service/mocks"
	id "biovault/pkg/domain"
	dErrors "biovault/pkg/domain-errors"
	audit "biovault/pkg/platform/audit"
	"biovault/pkg/platform/sentinel"
)

type faultFixture struct {
	store     *mocks.MockTemplateStore
	processor *mocks.MockModalityProcessor
	cipher    *mocks.MockTemplateCipher
	auditor   *mocks.MockAuditPublisher
	events    []audit.Event
	service   *Service
}

func newFaultFixture(t *testing.T, opts ...Option) *faultFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &faultFixture{
		store:     mocks.NewMockTemplateStore(ctrl),
		processor: mocks.NewMockModalityProcessor(ctrl),
		cipher:    mocks.NewMockTemplateCipher(ctrl),
		auditor:   mocks.NewMockAuditPublisher(ctrl),
	}
	f.service = New(f.store, f.processor, f.cipher, matching.NewCharacterMatcher(), f.auditor, opts...)
	return f
}

// recordAudits accepts every Emit, failing those whose action is in failing.
func (f *faultFixture) recordAudits(failing ...audit.Action) {
	f.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		f.events = append(f.events, e)
		for _, a := range failing {
			if e.Action == a {
				return errors.New("audit store down")
			}
		}
		return nil
	}).AnyTimes()
}

// noActiveTemplates lets enrollment pass its early duplicate check.
func (f *faultFixture) noActiveTemplates() {
	f.store.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
}

func storedTemplate(user id.UserID, blob string) *models.BiometricTemplate {
	return &models.BiometricTemplate{
		ID:       id.NewTemplateID(),
		UserID:   user,
		Type:     models.ModalityFace,
		Template: blob,
		Quality:  90,
		IsActive: true,
	}
}

func TestEnroll_StoreFailureIsInternal(t *testing.T) {
	f := newFaultFixture(t)
	f.noActiveTemplates()
	f.recordAudits()
	f.processor.EXPECT().Process(gomock.Any(), []byte("S"), models.ModalityFace).Return(modality.Result{Template: "abc", Quality: 80}, nil)
	f.cipher.EXPECT().Encrypt("abc").Return("00:11", nil)
	f.store.EXPECT().CreateIfNoActive(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	_, err := f.service.Enroll(context.Background(), models.EnrollRequest{UserID: "u1", Type: models.ModalityFace, BiometricData: []byte("S")})

	require.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Equal(t, enrollFailedMsg, err.(*dErrors.Error).Message)
	require.Len(t, f.events, 1)
	assert.Equal(t, outcomeError, f.events[0].Details[audit.DetailOutcome])
	assert.Nil(t, f.events[0].TemplateID)
}

func TestEnroll_ProcessorAndCipherFaults(t *testing.T) {
	t.Run("processor fault", func(t *testing.T) {
		f := newFaultFixture(t)
		f.noActiveTemplates()
		f.recordAudits()
		f.processor.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).Return(modality.Result{}, errors.New("extractor crashed"))

		_, err := f.service.Enroll(context.Background(), models.EnrollRequest{UserID: "u1", Type: models.ModalityFace, BiometricData: []byte("S")})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
		require.Len(t, f.events, 1)
	})

	t.Run("cipher fault", func(t *testing.T) {
		f := newFaultFixture(t)
		f.noActiveTemplates()
		f.recordAudits()
		f.processor.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).Return(modality.Result{Template: "abc", Quality: 80}, nil)
		f.cipher.EXPECT().Encrypt("abc").Return("", errors.New("entropy exhausted"))

		_, err := f.service.Enroll(context.Background(), models.EnrollRequest{UserID: "u1", Type: models.ModalityFace, BiometricData: []byte("S")})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
		require.Len(t, f.events, 1)
		assert.Equal(t, outcomeError, f.events[0].Details[audit.DetailOutcome])
	})
}

func TestEnroll_AuditFailureCompensates(t *testing.T) {
	f := newFaultFixture(t)
	f.noActiveTemplates()
	f.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down")).Times(2)
	f.processor.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).Return(modality.Result{Template: "abc", Quality: 80}, nil)
	f.cipher.EXPECT().Encrypt("abc").Return("00:11", nil)

	var created id.TemplateID
	gomock.InOrder(
		f.store.EXPECT().CreateIfNoActive(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, t *models.BiometricTemplate) error {
			created = t.ID
			return nil
		}),
		f.store.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, templateID id.TemplateID) error {
			assert.Equal(t, created, templateID)
			return nil
		}),
	)

	tmpl, err := f.service.Enroll(context.Background(), models.EnrollRequest{UserID: "u1", Type: models.ModalityFace, BiometricData: []byte("S")})

	assert.Nil(t, tmpl)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestEnroll_CompensationToleratesRolledBackInsert(t *testing.T) {
	f := newFaultFixture(t)
	f.noActiveTemplates()
	f.recordAudits(audit.ActionEnrollment)
	f.processor.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).Return(modality.Result{Template: "abc", Quality: 80}, nil)
	f.cipher.EXPECT().Encrypt("abc").Return("00:11", nil)
	f.store.EXPECT().CreateIfNoActive(gomock.Any(), gomock.Any()).Return(nil)
	f.store.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(sentinel.ErrNotFound)

	_, err := f.service.Enroll(context.Background(), models.EnrollRequest{UserID: "u1", Type: models.ModalityFace, BiometricData: []byte("S")})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestValidate_TiesKeepFirstInEnrollmentOrder(t *testing.T) {
	f := newFaultFixture(t, WithConfig(Config{ScoringConcurrency: 3}))
	f.recordAudits()

	const n = 40
	stored := make([]*models.BiometricTemplate, n)
	for i := range stored {
		stored[i] = storedTemplate("u1", fmt.Sprintf("blob-%d", i))
	}
	f.store.EXPECT().ListActive(gomock.Any(), id.UserID("u1"), models.ModalityFace).Return(stored, nil)
	f.processor.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).Return(modality.Result{Template: "abcd"}, nil)
	f.cipher.EXPECT().Decrypt(gomock.Any()).DoAndReturn(func(blob string) (string, error) {
		switch blob {
		case "blob-7", "blob-21", "blob-30":
			return "abcd", nil
		default:
			return "abcx", nil
		}
	}).Times(n)
	f.store.EXPECT().UpdateLastUsed(gomock.Any(), stored[7].ID, gomock.Any()).Return(nil)

	result := f.service.Validate(context.Background(), models.ValidationRequest{UserID: "u1", Type: models.ModalityFace, BiometricData: []byte("S")})

	require.True(t, result.IsValid)
	assert.Equal(t, 100.0, result.Confidence)
	assert.Equal(t, stored[7].ID, *result.MatchedTemplateID)
	require.Len(t, f.events, 1)
	assert.Equal(t, audit.ActionValidationSuccess, f.events[0].Action)
}

func TestValidate_FaultsReportInternalReason(t *testing.T) {
	req := models.ValidationRequest{UserID: "u1", Type: models.ModalityFace, BiometricData: []byte("S")}

	t.Run("store failure", func(t *testing.T) {
		f := newFaultFixture(t)
		f.recordAudits()
		f.store.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

		result := f.service.Validate(context.Background(), req)
		assert.False(t, result.IsValid)
		assert.Equal(t, models.ReasonInternal, result.Reason)
		require.Len(t, f.events, 1)
		assert.Equal(t, audit.ActionValidationFailed, f.events[0].Action)
		assert.Equal(t, models.ReasonInternal, f.events[0].Details[audit.DetailReason])
	})

	t.Run("corrupt template", func(t *testing.T) {
		f := newFaultFixture(t)
		f.recordAudits()
		f.store.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]*models.BiometricTemplate{storedTemplate("u1", "garbage")}, nil)
		f.processor.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).Return(modality.Result{Template: "abcd"}, nil)
		f.cipher.EXPECT().Decrypt("garbage").Return("", errors.New("biometric template decryption failed"))

		result := f.service.Validate(context.Background(), req)
		assert.False(t, result.IsValid)
		assert.Zero(t, result.Confidence)
		assert.Equal(t, models.ReasonInternal, result.Reason)
		require.Len(t, f.events, 1)
	})

	t.Run("last used update failure keeps audited admission", func(t *testing.T) {
		f := newFaultFixture(t)
		f.recordAudits()
		tmpl := storedTemplate("u1", "blob")
		f.store.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*models.BiometricTemplate{tmpl}, nil)
		f.processor.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).Return(modality.Result{Template: "abcd"}, nil)
		f.cipher.EXPECT().Decrypt("blob").Return("abcd", nil)
		f.store.EXPECT().UpdateLastUsed(gomock.Any(), tmpl.ID, gomock.Any()).Return(errors.New("write failed"))

		result := f.service.Validate(context.Background(), req)
		assert.True(t, result.IsValid)
		require.NotNil(t, result.MatchedTemplateID)
		assert.Equal(t, tmpl.ID, *result.MatchedTemplateID)
		require.Len(t, f.events, 1)
		assert.Equal(t, audit.ActionValidationSuccess, f.events[0].Action)
	})

	t.Run("unaudited success denies admission", func(t *testing.T) {
		f := newFaultFixture(t)
		f.recordAudits(audit.ActionValidationSuccess)
		tmpl := storedTemplate("u1", "blob")
		f.store.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*models.BiometricTemplate{tmpl}, nil)
		f.processor.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).Return(modality.Result{Template: "abcd"}, nil)
		f.cipher.EXPECT().Decrypt("blob").Return("abcd", nil)
		f.store.EXPECT().UpdateLastUsed(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		result := f.service.Validate(context.Background(), req)
		assert.False(t, result.IsValid)
		assert.Equal(t, models.ReasonInternal, result.Reason)
		assert.Equal(t, 100.0, result.Confidence)
	})
}

func TestDeleteTemplate_Faults(t *testing.T) {
	ctx := context.Background()

	t.Run("lookup failure is internal", func(t *testing.T) {
		f := newFaultFixture(t)
		f.store.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

		err := f.service.DeleteTemplate(ctx, id.NewTemplateID(), "u1")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("concurrent removal is not found", func(t *testing.T) {
		f := newFaultFixture(t)
		tmpl := storedTemplate("u1", "blob")
		f.store.EXPECT().FindByID(gomock.Any(), tmpl.ID).Return(tmpl, nil)
		f.store.EXPECT().Delete(gomock.Any(), tmpl.ID).Return(sentinel.ErrNotFound)

		err := f.service.DeleteTemplate(ctx, tmpl.ID, "u1")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFoundOrForbidden))
	})

	t.Run("store failure is internal", func(t *testing.T) {
		f := newFaultFixture(t)
		tmpl := storedTemplate("u1", "blob")
		f.store.EXPECT().FindByID(gomock.Any(), tmpl.ID).Return(tmpl, nil)
		f.store.EXPECT().Delete(gomock.Any(), tmpl.ID).Return(errors.New("disk full"))

		err := f.service.DeleteTemplate(ctx, tmpl.ID, "u1")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("audit failure does not undo deletion", func(t *testing.T) {
		f := newFaultFixture(t)
		f.recordAudits(audit.ActionDeletion)
		tmpl := storedTemplate("u1", "blob")
		f.store.EXPECT().FindByID(gomock.Any(), tmpl.ID).Return(tmpl, nil)
		f.store.EXPECT().Delete(gomock.Any(), tmpl.ID).Return(nil)

		require.NoError(t, f.service.DeleteTemplate(ctx, tmpl.ID, "u1"))
		require.Len(t, f.events, 1)
	})
}

func TestDeactivateTemplate_StoreRace(t *testing.T) {
	f := newFaultFixture(t)
	tmpl := storedTemplate("u1", "blob")
	f.store.EXPECT().FindByID(gomock.Any(), tmpl.ID).Return(tmpl, nil)
	f.store.EXPECT().Deactivate(gomock.Any(), tmpl.ID).Return(sentinel.ErrInvalidState)

	err := f.service.DeactivateTemplate(context.Background(), tmpl.ID, "u1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestNew_Defaults(t *testing.T) {
	s := New(nil, nil, nil, nil, nil)
	assert.Equal(t, DefaultConfig(), s.Config())
	assert.NotNil(t, s.logger)

	s = New(nil, nil, nil, nil, nil, WithClock(func() time.Time { return time.Unix(0, 0) }))
	assert.Equal(t, time.Unix(0, 0), s.clock())
}

func TestValidate_ProcessorRejectionReasons(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"empty after normalization", modality.ErrSampleRequired, models.ReasonMissingBiometric},
		{"too large", modality.ErrSampleTooLarge, models.ReasonOversizedSample},
		{"extractor rejection", dErrors.New(dErrors.CodeValidation, "too blurry"), models.ReasonUnreadableSample},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFaultFixture(t)
			f.recordAudits()
			f.store.EXPECT().ListActive(gomock.Any(), gomock.Any(), gomock.Any()).
				Return([]*models.BiometricTemplate{storedTemplate("u1", "blob")}, nil)
			f.processor.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).Return(modality.Result{}, tt.err)

			result := f.service.Validate(context.Background(),
				models.ValidationRequest{UserID: "u1", Type: models.ModalityFace, BiometricData: []byte("S")})

			assert.False(t, result.IsValid)
			assert.Equal(t, tt.reason, result.Reason)
			require.Len(t, f.events, 1)
			assert.Equal(t, tt.reason, f.events[0].Details[audit.DetailReason])
		})
	}
}
