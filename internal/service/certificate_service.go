package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/database"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
	"github.com/noah-isme/certifytrack-api/pkg/export"
)

type certificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	Exists(ctx context.Context, eventID, studentID string) (bool, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	FindVerification(ctx context.Context, code string) (*models.CertificateVerification, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error)
	FindDuplicateGroups(ctx context.Context) ([]models.DuplicateKey, error)
	ListGroup(ctx context.Context, exec sqlx.ExtContext, studentID, eventID string) ([]models.Certificate, error)
	DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (int, error)
}

type certificateRenderer interface {
	Render(cert export.Certificate) ([]byte, error)
}

type fileStore interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (io.ReadCloser, error)
	Delete(relPath string) error
}

type urlSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (resourceID, relPath string, err error)
}

// CertificateConfig controls certificate issuing.
type CertificateConfig struct {
	Issuer          string
	DownloadBaseURL string
	VerifyCacheTTL  time.Duration
}

// CertificateService issues, verifies and serves participation certificates.
type CertificateService struct {
	db       database.TxBeginner
	certs    certificateStore
	events   eventStore
	present  attendanceStore
	students studentReader
	clubs    clubReader
	renderer certificateRenderer
	files    fileStore
	signer   urlSigner
	cache    *CacheService
	notifier Notifier
	logger   *zap.Logger
	cfg      CertificateConfig
	now      func() time.Time
	newCode  func() (string, error)
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(
	db database.TxBeginner,
	certs certificateStore,
	events eventStore,
	present attendanceStore,
	students studentReader,
	clubs clubReader,
	renderer certificateRenderer,
	files fileStore,
	signer urlSigner,
	cache *CacheService,
	notifier Notifier,
	logger *zap.Logger,
	cfg CertificateConfig,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.VerifyCacheTTL <= 0 {
		cfg.VerifyCacheTTL = time.Hour
	}
	cfg.DownloadBaseURL = strings.TrimRight(cfg.DownloadBaseURL, "/")
	return &CertificateService{
		db:       db,
		certs:    certs,
		events:   events,
		present:  present,
		students: students,
		clubs:    clubs,
		renderer: renderer,
		files:    files,
		signer:   signer,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  randomVerificationCode,
	}
}

// GenerateForEvent issues a certificate to every student marked present at a
// completed event. Students who already hold one are skipped; a failure for
// one student does not stop the others.
func (s *CertificateService) GenerateForEvent(ctx context.Context, actor models.Actor, eventID string) (*models.CertificateIssueReport, error) {
	event, err := s.events.FindByID(ctx, nil, eventID)
	if err != nil {
		return nil, eventError(err, "failed to load event")
	}
	if !actor.IsAdmin() {
		ok, err := s.clubs.IsOrganizer(ctx, event.ClubID, actor.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check club organizer")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the club's organizers can issue certificates")
		}
	}
	if event.Status != models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "certificates can only be issued for completed events")
	}

	attendance, err := s.present.ListPresent(ctx, event.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	ids := make([]string, 0, len(attendance))
	for _, a := range attendance {
		ids = append(ids, a.StudentID)
	}
	students, err := s.students.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	clubName := ""
	if club, err := s.clubs.FindByID(ctx, event.ClubID); err == nil {
		clubName = club.Name
	}

	report := &models.CertificateIssueReport{EventID: event.ID}
	for _, student := range students {
		issued, err := s.issue(ctx, event, clubName, student)
		switch {
		case err != nil:
			s.logger.Warn("certificate generation failed", zap.String("event_id", event.ID), zap.String("student_id", student.ID), zap.Error(err))
			report.Errors = append(report.Errors, models.ItemError{ID: student.ID, Error: err.Error()})
		case issued:
			report.Issued++
		default:
			report.Skipped++
		}
	}
	s.logger.Info("certificates generated",
		zap.String("event_id", event.ID),
		zap.Int("issued", report.Issued),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (s *CertificateService) issue(ctx context.Context, event *models.Event, clubName string, student models.Student) (bool, error) {
	exists, err := s.certs.Exists(ctx, event.ID, student.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return false, err
	}
	issuedAt := s.now()
	pdf, err := s.renderer.Render(export.Certificate{
		Issuer:           s.cfg.Issuer,
		StudentName:      student.FullName,
		USN:              student.USN,
		EventName:        event.Name,
		ClubName:         clubName,
		EventDate:        event.EventDate,
		Points:           event.PointsAwarded,
		VerificationCode: code,
		IssuedAt:         issuedAt,
	})
	if err != nil {
		return false, err
	}

	sum := sha256.Sum256(pdf)
	relPath, err := s.files.Save(path.Join(event.ID, code+".pdf"), pdf)
	if err != nil {
		return false, err
	}
	cert := &models.Certificate{
		EventID:          event.ID,
		StudentID:        student.ID,
		FilePath:         relPath,
		FileHash:         hex.EncodeToString(sum[:]),
		VerificationCode: code,
		IssuedAt:         issuedAt,
	}
	if err := s.certs.Create(ctx, cert); err != nil {
		if delErr := s.files.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned certificate file", zap.String("path", relPath), zap.Error(delErr))
		}
		return false, err
	}

	s.notifier.Notify(ctx, models.Notification{
		UserID:  student.UserID,
		EventID: &event.ID,
		Title:   "Certificate Issued",
		Message: fmt.Sprintf("Your certificate for '%s' is ready. Verification code: %s", event.Name, code),
		Type:    models.NotificationSuccess,
	})
	return true, nil
}

func (s *CertificateService) uniqueCode(ctx context.Context) (string, error) {
	return uniqueVerificationCode(s.newCode, func(code string) (bool, error) {
		return s.certs.CodeExists(ctx, code)
	})
}

// Verify looks up a certificate by its public code.
func (s *CertificateService) Verify(ctx context.Context, code string) (*models.CertificateVerification, bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != verificationLength {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "verification code must be 8 characters")
	}

	var cached models.CertificateVerification
	if s.cache.Get(ctx, verificationCacheKey(code), &cached) {
		return &cached, true, nil
	}
	verification, err := s.certs.FindVerification(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify certificate")
	}
	s.cache.Set(ctx, verificationCacheKey(code), verification, s.cfg.VerifyCacheTTL)
	return verification, false, nil
}

// ListMine returns the calling student's certificates.
func (s *CertificateService) ListMine(ctx context.Context, actor models.Actor) ([]models.Certificate, error) {
	student, err := s.students.FindByUserID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	certs, err := s.certs.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

// DownloadLink signs a short-lived link to the certificate PDF. Students may
// only sign links for their own certificates.
func (s *CertificateService) DownloadLink(ctx context.Context, actor models.Actor, id string) (*models.CertificateDownload, error) {
	cert, err := s.certs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if !actor.IsAdmin() {
		student, err := s.students.FindByUserID(ctx, actor.ID)
		if err != nil || student.ID != cert.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "certificate belongs to another student")
		}
	}
	token, expiresAt, err := s.signer.Generate(cert.ID, cert.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &models.CertificateDownload{URL: s.cfg.DownloadBaseURL + "/" + token, ExpiresAt: expiresAt}, nil
}

// OpenDownload validates a signed token and opens the file it points to.
// The caller closes the returned reader.
func (s *CertificateService) OpenDownload(ctx context.Context, token string) (io.ReadCloser, string, error) {
	id, relPath, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	cert, err := s.certs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert.FilePath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download link no longer matches the certificate")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "certificate file missing")
	}
	return file, fmt.Sprintf("certificate-%s.pdf", cert.VerificationCode), nil
}

// CleanupDuplicateCertificates keeps the most recently issued certificate of
// every (event, student) pair and removes the rest along with their files.
func (s *CertificateService) CleanupDuplicateCertificates(ctx context.Context) (*models.CertificateCleanupReport, error) {
	groups, err := s.certs.FindDuplicateGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("find duplicate certificates: %w", err)
	}

	report := &models.CertificateCleanupReport{Groups: len(groups)}
	for _, group := range groups {
		var (
			removed []models.Certificate
			deleted int
		)
		err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			certs, err := s.certs.ListGroup(ctx, tx, group.StudentID, group.EventID)
			if err != nil {
				return err
			}
			if len(certs) < 2 {
				return nil
			}
			removed = certs[1:]
			ids := make([]string, 0, len(removed))
			for _, c := range removed {
				ids = append(ids, c.ID)
			}
			n, err := s.certs.DeleteByIDs(ctx, tx, ids)
			if err != nil {
				return err
			}
			deleted = n
			return nil
		})
		if err != nil {
			report.Errors = append(report.Errors, models.ItemError{ID: group.StudentID + ":" + group.EventID, Error: err.Error()})
			continue
		}
		report.Deleted += deleted
		for _, c := range removed {
			s.cache.Invalidate(ctx, verificationCacheKey(c.VerificationCode))
			if err := s.files.Delete(c.FilePath); err != nil {
				s.logger.Warn("failed to delete duplicate certificate file", zap.String("path", c.FilePath), zap.Error(err))
			}
		}
	}
	s.logger.Info("certificate cleanup finished", zap.Int("groups", report.Groups), zap.Int("deleted", report.Deleted))
	return report, nil
}
