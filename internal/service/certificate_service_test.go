package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
	"github.com/noah-isme/certifytrack-api/pkg/export"
	"github.com/noah-isme/certifytrack-api/pkg/storage"
)

type certStoreStub struct {
	mu        sync.Mutex
	certs     []models.Certificate
	takenCode map[string]bool
	createErr error
}

func (s *certStoreStub) Create(ctx context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cert.ID = uuid.NewString()
	s.certs = append(s.certs, *cert)
	return nil
}

func (s *certStoreStub) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.certs {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *certStoreStub) Exists(ctx context.Context, eventID, studentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.certs {
		if c.EventID == eventID && c.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *certStoreStub) CodeExists(ctx context.Context, code string) (bool, error) {
	return s.takenCode[code], nil
}

func (s *certStoreStub) FindVerification(ctx context.Context, code string) (*models.CertificateVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.certs {
		if c.VerificationCode == code {
			return &models.CertificateVerification{Valid: true, VerificationCode: code, FileHash: c.FileHash, IssuedAt: c.IssuedAt}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *certStoreStub) ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Certificate
	for _, c := range s.certs {
		if c.StudentID == studentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *certStoreStub) FindDuplicateGroups(ctx context.Context) ([]models.DuplicateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[[2]string]int{}
	var order [][2]string
	for _, c := range s.certs {
		key := [2]string{c.StudentID, c.EventID}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}
	var out []models.DuplicateKey
	for _, key := range order {
		if counts[key] > 1 {
			out = append(out, models.DuplicateKey{StudentID: key[0], EventID: key[1], Count: counts[key]})
		}
	}
	return out, nil
}

func (s *certStoreStub) ListGroup(ctx context.Context, exec sqlx.ExtContext, studentID, eventID string) ([]models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Certificate
	for _, c := range s.certs {
		if c.StudentID == studentID && c.EventID == eventID {
			out = append(out, c)
		}
	}
	// newest first
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].IssuedAt.After(out[i].IssuedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (s *certStoreStub) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.certs[:0]
	n := 0
	for _, c := range s.certs {
		if drop[c.ID] {
			n++
			continue
		}
		kept = append(kept, c)
	}
	s.certs = kept
	return n, nil
}

type renderStub struct{}

func (renderStub) Render(cert export.Certificate) ([]byte, error) {
	if cert.StudentName == "" {
		return nil, errors.New("certificate requires student and event names")
	}
	return []byte("%PDF " + cert.StudentName + " " + cert.VerificationCode), nil
}

type memoryFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemoryFiles() *memoryFiles { return &memoryFiles{files: map[string][]byte{}} }

func (m *memoryFiles) Save(relPath string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[relPath] = data
	return relPath, nil
}

func (m *memoryFiles) Open(relPath string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[relPath]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryFiles) Delete(relPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, relPath)
	return nil
}

type certFixture struct {
	svc      *CertificateService
	store    *certStoreStub
	files    *memoryFiles
	present  *attendanceStub
	notifier *recordingNotifier
	cache    *memoryCache
}

func newCertFixture(t *testing.T) *certFixture {
	store := &certStoreStub{takenCode: map[string]bool{}}
	events := newEventStoreStub(
		models.Event{ID: "ev-1", ClubID: testClubID, Name: "Hackathon", Status: models.EventStatusCompleted, EventDate: date(2024, 3, 15)},
		models.Event{ID: "ev-2", ClubID: testClubID, Name: "Fest", Status: models.EventStatusOngoing},
	)
	present := &attendanceStub{}
	students := &studentStub{students: map[string]models.Student{
		studentA: {ID: studentA, UserID: "user-a", FullName: "Asha K", USN: "1AB21CS001"},
		studentB: {ID: studentB, UserID: "user-b", FullName: "Ravi M", USN: "1AB21CS002"},
	}}
	clubs := &clubStub{clubs: map[string]bool{testClubID: true}, organizers: map[string]string{"org-1": testClubID}}
	files := newMemoryFiles()
	notifier := &recordingNotifier{}
	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)

	svc := NewCertificateService(permissiveTx(t, 2), store, events, present, students, clubs, renderStub{}, files,
		storage.NewSignedURLSigner("test-secret", time.Minute), cache, notifier, nil,
		CertificateConfig{Issuer: "CertifyTrack", DownloadBaseURL: "/api/v1/certificates/download/"})
	return &certFixture{svc: svc, store: store, files: files, present: present, notifier: notifier, cache: cacheRepo}
}

func TestGenerateCertificatesForEvent(t *testing.T) {
	f := newCertFixture(t)
	require.NoError(t, f.present.MarkPresent(context.Background(), nil, "ev-1", studentA, "org-1"))
	require.NoError(t, f.present.MarkPresent(context.Background(), nil, "ev-1", studentB, "org-1"))

	report, err := f.svc.GenerateForEvent(context.Background(), organizerActor, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Issued)
	assert.Equal(t, 0, report.Skipped)
	require.Len(t, f.store.certs, 2)

	cert := f.store.certs[0]
	assert.Len(t, cert.VerificationCode, 8)
	assert.Equal(t, "ev-1/"+cert.VerificationCode+".pdf", cert.FilePath)
	sum := sha256.Sum256(f.files.files[cert.FilePath])
	assert.Equal(t, hex.EncodeToString(sum[:]), cert.FileHash)
	assert.Len(t, f.notifier.all(), 2)

	again, err := f.svc.GenerateForEvent(context.Background(), organizerActor, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Issued)
	assert.Equal(t, 2, again.Skipped)
}

func TestGenerateCertificatesRequiresCompletedEvent(t *testing.T) {
	f := newCertFixture(t)

	_, err := f.svc.GenerateForEvent(context.Background(), organizerActor, "ev-2")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)

	_, err = f.svc.GenerateForEvent(context.Background(), models.Actor{ID: "org-9", Role: models.RoleClubOrganizer}, "ev-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestGenerateRetriesTakenCodes(t *testing.T) {
	f := newCertFixture(t)
	require.NoError(t, f.present.MarkPresent(context.Background(), nil, "ev-1", studentA, "org-1"))
	f.store.takenCode["TAKEN001"] = true
	codes := []string{"TAKEN001", "FRESH002"}
	f.svc.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	report, err := f.svc.GenerateForEvent(context.Background(), organizerActor, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Issued)
	assert.Equal(t, "FRESH002", f.store.certs[0].VerificationCode)
}

func TestGenerateRemovesFileWhenInsertFails(t *testing.T) {
	f := newCertFixture(t)
	require.NoError(t, f.present.MarkPresent(context.Background(), nil, "ev-1", studentA, "org-1"))
	f.store.createErr = errors.New("unique violation")

	report, err := f.svc.GenerateForEvent(context.Background(), organizerActor, "ev-1")
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, studentA, report.Errors[0].ID)
	assert.Empty(t, f.files.files)
}

func TestVerifyCertificate(t *testing.T) {
	f := newCertFixture(t)
	f.store.certs = []models.Certificate{{ID: "c1", VerificationCode: "ABCD1234", FileHash: "hash"}}

	result, cached, err := f.svc.Verify(context.Background(), " abcd1234 ")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.True(t, result.Valid)

	f.store.certs = nil
	result, cached, err = f.svc.Verify(context.Background(), "ABCD1234")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "hash", result.FileHash)

	_, _, err = f.svc.Verify(context.Background(), "ZZZZ9999")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	_, _, err = f.svc.Verify(context.Background(), "short")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestDownloadLinkRoundTrip(t *testing.T) {
	f := newCertFixture(t)
	_, _ = f.files.Save("ev-1/ABCD1234.pdf", []byte("%PDF"))
	f.store.certs = []models.Certificate{{ID: "c1", StudentID: studentA, FilePath: "ev-1/ABCD1234.pdf", VerificationCode: "ABCD1234"}}

	_, err := f.svc.DownloadLink(context.Background(), models.Actor{ID: "user-b", Role: models.RoleStudent}, "c1")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	link, err := f.svc.DownloadLink(context.Background(), models.Actor{ID: "user-a", Role: models.RoleStudent}, "c1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/certificates/download/"))
	token := strings.TrimPrefix(link.URL, "/api/v1/certificates/download/")

	body, name, err := f.svc.OpenDownload(context.Background(), token)
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "%PDF", string(data))
	assert.Equal(t, "certificate-ABCD1234.pdf", name)

	_, _, err = f.svc.OpenDownload(context.Background(), token+"x")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestCleanupDuplicateCertificates(t *testing.T) {
	f := newCertFixture(t)
	base := time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)
	f.store.certs = []models.Certificate{
		{ID: "old", EventID: "ev-1", StudentID: studentA, FilePath: "ev-1/OLD00001.pdf", VerificationCode: "OLD00001", IssuedAt: base},
		{ID: "new", EventID: "ev-1", StudentID: studentA, FilePath: "ev-1/NEW00001.pdf", VerificationCode: "NEW00001", IssuedAt: base.Add(time.Hour)},
		{ID: "solo", EventID: "ev-1", StudentID: studentB, FilePath: "ev-1/SOLO0001.pdf", VerificationCode: "SOLO0001", IssuedAt: base},
	}
	_, _ = f.files.Save("ev-1/OLD00001.pdf", []byte("old"))
	f.cache.items[verificationCacheKey("OLD00001")] = []byte(`{}`)

	report, err := f.svc.CleanupDuplicateCertificates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Groups)
	assert.Equal(t, 1, report.Deleted)

	ids := make([]string, 0, len(f.store.certs))
	for _, c := range f.store.certs {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"new", "solo"}, ids)
	assert.NotContains(t, f.files.files, "ev-1/OLD00001.pdf")
	assert.NotContains(t, f.cache.items, verificationCacheKey("OLD00001"))
}

func TestRandomVerificationCode(t *testing.T) {
	code, err := randomVerificationCode()
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Equal(t, strings.ToUpper(code), code)
}
