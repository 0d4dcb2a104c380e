package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-extractor/internal/storage"
	"resume-extractor/internal/storage/models"
	"resume-extractor/internal/types"
)

// MockCache 内存版解析结果缓存
type MockCache struct {
	mu       sync.Mutex
	entries  map[string]*storage.CachedParse
	locks    map[string]string
	getErr   error
	setErr   error
	lockErr  error
	released []string

	// peerResult 非空时，加锁前把它写入缓存，相当于另一个请求刚好完成
	peerResult *storage.CachedParse
}

func NewMockCache() *MockCache {
	return &MockCache{entries: map[string]*storage.CachedParse{}, locks: map[string]string{}}
}

func (m *MockCache) GetParsedResume(ctx context.Context, md5Hex string) (*storage.CachedParse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if v, ok := m.entries[md5Hex]; ok {
		return v, nil
	}
	return nil, storage.ErrCacheMiss
}

func (m *MockCache) SetParsedResume(ctx context.Context, md5Hex string, parsed *storage.CachedParse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[md5Hex] = parsed
	return nil
}

func (m *MockCache) AcquireParseLock(ctx context.Context, md5Hex, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return m.lockErr
	}
	if m.peerResult != nil {
		m.entries[md5Hex] = m.peerResult
	}
	if _, held := m.locks[md5Hex]; held {
		return storage.ErrLockNotAcquired
	}
	m.locks[md5Hex] = token
	return nil
}

func (m *MockCache) ReleaseParseLock(ctx context.Context, md5Hex, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[md5Hex] == token {
		delete(m.locks, md5Hex)
		m.released = append(m.released, token)
	}
	return nil
}

// MockArchive 记录上传的原始文件
type MockArchive struct {
	uploads map[string][]byte
	err     error
}

func (m *MockArchive) UploadResumeFile(ctx context.Context, submissionUUID, fileExt string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	key := storage.OriginalObjectKey(submissionUUID, fileExt)
	if m.uploads == nil {
		m.uploads = map[string][]byte{}
	}
	m.uploads[key] = data
	return key, nil
}

func (m *MockArchive) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "https://minio.local/resume-originals/" + objectName, nil
}

// MockRepository 内存版持久化
type MockRepository struct {
	records map[string]*models.ParsedResumeRecord
	saveErr error
}

func (m *MockRepository) SaveParsedResume(ctx context.Context, rec *models.ParsedResumeRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.records == nil {
		m.records = map[string]*models.ParsedResumeRecord{}
	}
	m.records[rec.SubmissionUUID] = rec
	return nil
}

func (m *MockRepository) GetParsedResume(ctx context.Context, submissionUUID string) (*models.ParsedResumeRecord, error) {
	if rec, ok := m.records[submissionUUID]; ok {
		return rec, nil
	}
	return nil, storage.ErrRecordNotFound
}

// MockPublisher 记录发布的事件
type MockPublisher struct {
	messages []storage.ResumeParsedMessage
	err      error
}

func (m *MockPublisher) PublishResumeParsed(ctx context.Context, msg storage.ResumeParsedMessage) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

type serviceFixture struct {
	extractor *MockTextExtractor
	cache     *MockCache
	archive   *MockArchive
	repo      *MockRepository
	events    *MockPublisher
	service   *ResumeService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		extractor: &MockTextExtractor{text: sampleResumeText},
		cache:     NewMockCache(),
		archive:   &MockArchive{},
		repo:      &MockRepository{},
		events:    &MockPublisher{},
	}
	ids := 0
	svc, err := NewResumeService(newTestProcessor(t, f.extractor),
		WithCache(f.cache),
		WithArchive(f.archive),
		WithRepository(f.repo),
		WithEventPublisher(f.events),
		WithServiceLogger(zerolog.Nop()),
		WithIDGenerator(func() (string, error) {
			ids++
			return []string{"", "uuid-1", "uuid-2", "uuid-3"}[ids], nil
		}),
	)
	require.NoError(t, err)
	f.service = svc
	return f
}

func TestNewResumeService_RequiresProcessor(t *testing.T) {
	_, err := NewResumeService(nil)
	assert.Error(t, err)
}

func TestResumeService_ParseUpload_FullFlow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	out, err := f.service.ParseUpload(ctx, "张三.pdf", []byte("%PDF-1.4 sample"))
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", out.SubmissionUUID)
	assert.False(t, out.Cached)
	assert.Equal(t, "张三", out.Resume.Name)

	assert.Contains(t, f.archive.uploads, "resume/uuid-1/original.pdf")

	rec := f.repo.records["uuid-1"]
	require.NotNil(t, rec)
	assert.Equal(t, "resume/uuid-1/original.pdf", rec.OriginalObjectKey)
	assert.Equal(t, ".pdf", rec.FileExt)
	assert.Len(t, rec.RawFileMD5, 32)

	require.Len(t, f.events.messages, 1)
	msg := f.events.messages[0]
	assert.Equal(t, "uuid-1", msg.SubmissionUUID)
	assert.True(t, msg.HasName)
	assert.Equal(t, 3, msg.SkillsCount)

	assert.Equal(t, []string{"uuid-1"}, f.cache.released, "解析结束后应释放锁")
	assert.Empty(t, f.cache.locks)
}

func TestResumeService_ParseUpload_CacheHit(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	data := []byte("%PDF-1.4 same bytes")

	first, err := f.service.ParseUpload(ctx, "a.pdf", data)
	require.NoError(t, err)

	second, err := f.service.ParseUpload(ctx, "renamed.pdf", data)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.SubmissionUUID, second.SubmissionUUID)
	assert.Equal(t, first.Resume, second.Resume)

	assert.Equal(t, 1, f.extractor.Calls(), "命中缓存时不应再次解析")
	assert.Len(t, f.repo.records, 1)
	assert.Len(t, f.events.messages, 1)
}

func TestResumeService_ParseUpload_UnsupportedHasNoSideEffects(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.ParseUpload(context.Background(), "resume.txt", []byte("姓名：张三"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	assert.Empty(t, f.archive.uploads)
	assert.Empty(t, f.repo.records)
	assert.Empty(t, f.events.messages)
	assert.Empty(t, f.cache.entries)
	assert.Equal(t, 0, f.extractor.Calls())
}

func TestResumeService_ParseUpload_ParseFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.extractor.err = errors.New("bad pdf")

	_, err := f.service.ParseUpload(context.Background(), "bad.pdf", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParseFailure))

	assert.Empty(t, f.repo.records, "失败的解析不应持久化")
	assert.Empty(t, f.cache.entries)
	assert.Empty(t, f.events.messages)
	assert.Empty(t, f.cache.locks, "失败时同样释放锁")
}

func TestResumeService_ParseUpload_OptionalFailuresAreNotFatal(t *testing.T) {
	f := newServiceFixture(t)
	f.archive.err = errors.New("minio down")
	f.repo.saveErr = errors.New("mysql down")
	f.events.err = errors.New("rabbitmq down")
	f.cache.setErr = errors.New("redis down")

	out, err := f.service.ParseUpload(context.Background(), "a.docx", []byte("PK"))
	require.NoError(t, err)
	assert.Equal(t, "张三", out.Resume.Name)
}

func TestResumeService_ParseUpload_CacheErrorsFallThrough(t *testing.T) {
	f := newServiceFixture(t)
	f.cache.getErr = errors.New("redis timeout")
	f.cache.lockErr = errors.New("redis timeout")

	out, err := f.service.ParseUpload(context.Background(), "a.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Equal(t, 1, f.extractor.Calls())
}

func TestResumeService_ParseUpload_WaitsForConcurrentParse(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	data := []byte("%PDF in flight")
	sum := md5.Sum(data)
	md5Hex := hex.EncodeToString(sum[:])

	first, err := f.service.ParseUpload(ctx, "a.pdf", data)
	require.NoError(t, err)

	// 模拟另一请求持有锁且缓存尚未写入
	f.cache.mu.Lock()
	cached := f.cache.entries[md5Hex]
	delete(f.cache.entries, md5Hex)
	f.cache.locks[md5Hex] = "other"
	f.cache.mu.Unlock()

	go func() {
		time.Sleep(3 * cacheWaitInterval)
		f.cache.mu.Lock()
		f.cache.entries[md5Hex] = cached
		f.cache.mu.Unlock()
	}()

	out, err := f.service.ParseUpload(ctx, "a.pdf", data)
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, first.SubmissionUUID, out.SubmissionUUID)
	assert.Equal(t, 1, f.extractor.Calls())
}

func TestResumeService_ParseUpload_RechecksCacheAfterLock(t *testing.T) {
	f := newServiceFixture(t)
	peer := &storage.CachedParse{SubmissionUUID: "uuid-peer", Resume: types.NewParsedResume()}
	peer.Resume.Name = "李四"
	f.cache.peerResult = peer

	out, err := f.service.ParseUpload(context.Background(), "a.pdf", []byte("%PDF-1.4 racing"))
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, "uuid-peer", out.SubmissionUUID)
	assert.Equal(t, "李四", out.Resume.Name)

	assert.Equal(t, 0, f.extractor.Calls(), "加锁后命中缓存时不应解析")
	assert.Empty(t, f.archive.uploads)
	assert.Empty(t, f.repo.records)
	assert.Empty(t, f.events.messages)
	assert.Equal(t, []string{"uuid-1"}, f.cache.released, "命中后释放刚拿到的锁")
	assert.Empty(t, f.cache.locks)
}

func TestResumeService_GetParsed(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	out, err := f.service.ParseUpload(ctx, "张三.pdf", []byte("%PDF"))
	require.NoError(t, err)

	stored, err := f.service.GetParsed(ctx, out.SubmissionUUID)
	require.NoError(t, err)
	assert.Equal(t, out.Resume, stored.Resume)
	assert.Equal(t, "张三.pdf", stored.OriginalFilename)
	assert.Equal(t, "https://minio.local/resume-originals/resume/uuid-1/original.pdf", stored.OriginalURL)

	_, err = f.service.GetParsed(ctx, "does-not-exist")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResumeService_GetParsed_PersistenceDisabled(t *testing.T) {
	svc, err := NewResumeService(newTestProcessor(t, &MockTextExtractor{}), WithServiceLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, err = svc.GetParsed(context.Background(), "any")
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
}

func TestResumeService_NoOptionalComponents(t *testing.T) {
	ext := &MockTextExtractor{text: sampleResumeText}
	svc, err := NewResumeService(newTestProcessor(t, ext), StorageOptions(&storage.Storage{})...)
	require.NoError(t, err)

	out, err := svc.ParseUpload(context.Background(), "a.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.NotEmpty(t, out.SubmissionUUID, "默认使用 v7 UUID")
	assert.Len(t, out.SubmissionUUID, 36)
	assert.Empty(t, StorageOptions(nil))
}

// MockOutbox 记录同事务写入的记录和事件
type MockOutbox struct {
	records  []*models.ParsedResumeRecord
	messages []*models.OutboxMessage
}

func (m *MockOutbox) SaveParsedResumeWithOutbox(ctx context.Context, rec *models.ParsedResumeRecord, msg *models.OutboxMessage) error {
	m.records = append(m.records, rec)
	m.messages = append(m.messages, msg)
	return nil
}

func TestResumeService_ParseUpload_Outbox(t *testing.T) {
	ob := &MockOutbox{}
	repo := &MockRepository{}
	events := &MockPublisher{}
	svc, err := NewResumeService(newTestProcessor(t, &MockTextExtractor{text: sampleResumeText}),
		WithRepository(repo),
		WithEventPublisher(events),
		WithOutbox(ob, "resume.events.exchange", "resume.parsed"),
		WithServiceLogger(zerolog.Nop()),
		WithIDGenerator(func() (string, error) { return "uuid-ob", nil }),
	)
	require.NoError(t, err)

	_, err = svc.ParseUpload(context.Background(), "a.pdf", []byte("%PDF"))
	require.NoError(t, err)

	require.Len(t, ob.records, 1)
	require.Len(t, ob.messages, 1)
	msg := ob.messages[0]
	assert.Equal(t, "uuid-ob", msg.AggregateID)
	assert.Equal(t, models.EventTypeResumeParsed, msg.EventType)
	assert.Equal(t, "resume.parsed", msg.TargetRoutingKey)
	assert.Contains(t, msg.Payload, `"submission_uuid":"uuid-ob"`)

	assert.Empty(t, repo.records, "使用发件箱时不直接写库")
	assert.Empty(t, events.messages, "使用发件箱时不直接发布")
}
