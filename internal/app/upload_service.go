package app

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"knowledgehub/internal/cache"
	"knowledgehub/internal/model"
	"knowledgehub/internal/platform/objectstore"
	"knowledgehub/internal/platform/rabbitmq"
	"knowledgehub/internal/repository"
)

var (
	ErrUploadAlreadyMerged  = errors.New("file already uploaded and merged")
	ErrChunkIndexOutOfRange = errors.New("chunk index out of range")
	ErrFileIncomplete       = errors.New("not all chunks have been uploaded")
	ErrFileNotFound         = errors.New("file not found")
	ErrChunkMissing         = errors.New("a chunk object is missing from storage")
	ErrMergeVerifyFailed    = errors.New("merged object could not be verified after compose")
	ErrForbidden            = errors.New("not permitted to operate on this file")
)

// UploadService implements the resumable chunked upload pipeline: a
// client uploads a file's content-addressed chunks in any order and
// any number of times, the chunk ledger tracks what has landed, and
// once every chunk is present the chunks are composed into one object
// and an ingestion task is queued. Grounded on manshu's UploadService
// (uploadChunk/isChunkUploaded/markChunkUploaded/getUploadedChunks/
// mergeChunks).
type UploadService struct {
	fileRepo   *repository.FileRepository
	chunkRepo  *repository.ChunkRepository
	userRepo   *repository.UserRepository
	ledger     *cache.UploadLedger
	store      objectstore.Store
	publisher  *rabbitmq.TaskPublisher
	chunkSize  int64
	presignTTL time.Duration
}

func NewUploadService(
	fileRepo *repository.FileRepository,
	chunkRepo *repository.ChunkRepository,
	userRepo *repository.UserRepository,
	ledger *cache.UploadLedger,
	store objectstore.Store,
	publisher *rabbitmq.TaskPublisher,
	chunkSize int64,
	presignTTL time.Duration,
) *UploadService {
	if chunkSize <= 0 {
		chunkSize = 5 * 1024 * 1024
	}
	if presignTTL <= 0 {
		presignTTL = 60 * time.Minute
	}
	return &UploadService{
		fileRepo:   fileRepo,
		chunkRepo:  chunkRepo,
		userRepo:   userRepo,
		ledger:     ledger,
		store:      store,
		publisher:  publisher,
		chunkSize:  chunkSize,
		presignTTL: presignTTL,
	}
}

// ChunkSize is the fixed byte size every client-side chunk but the
// last must be split to.
func (s *UploadService) ChunkSize() int64 {
	return s.chunkSize
}

type UploadChunkInput struct {
	Fingerprint string
	UserID      uint
	FileName    string
	TotalSize   int64
	ChunkIndex  int
	ScopeTag    string
	IsPublic    bool
	Body        io.Reader
	Size        int64
}

type UploadChunkResult struct {
	File            *model.FileRecord
	ChunkIndex      int
	UploadedIndices []int
	TotalChunks     int
}

// UploadChunk stores one chunk's bytes and marks it present in the
// ledger, creating the owning FileRecord the first time any chunk of
// a new (fingerprint, user) pair arrives. Matches manshu's single
// uploadChunk endpoint, which both registers and accepts chunks in
// one call rather than splitting init from upload.
func (s *UploadService) UploadChunk(ctx context.Context, input UploadChunkInput) (*UploadChunkResult, error) {
	fingerprint := strings.ToLower(strings.TrimSpace(input.Fingerprint))
	if fingerprint == "" || input.FileName == "" || input.TotalSize <= 0 {
		return nil, ErrInvalidInput
	}

	totalChunks := int((input.TotalSize + s.chunkSize - 1) / s.chunkSize)

	file, err := s.fileRepo.GetByFingerprintAndUser(fingerprint, input.UserID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		scopeTag := strings.TrimSpace(input.ScopeTag)
		if scopeTag == "" {
			scopeTag = s.defaultScopeTag(input.UserID)
		}
		file = &model.FileRecord{
			Fingerprint: fingerprint,
			UserID:      input.UserID,
			FileName:    input.FileName,
			TotalSize:   input.TotalSize,
			TotalChunks: totalChunks,
			Status:      model.FileStatusUploading,
			ScopeTag:    scopeTag,
			IsPublic:    input.IsPublic,
		}
		if err := s.fileRepo.Create(file); err != nil {
			return nil, err
		}
	}
	if file.Status == model.FileStatusMerged {
		return nil, ErrUploadAlreadyMerged
	}
	if input.ChunkIndex < 0 || input.ChunkIndex >= file.TotalChunks {
		return nil, ErrChunkIndexOutOfRange
	}

	key := chunkObjectKey(fingerprint, input.ChunkIndex)

	// If the bitmap already has this index, a re-upload of the same
	// chunk is a no-op as long as the object is still actually there —
	// matching manshu's isChunkUploaded/isBitSet fast path rather than
	// blindly re-writing storage on every replay. A bit set with no
	// backing object falls through to the normal write path below.
	alreadyUploaded, err := s.ledger.IsUploaded(ctx, input.UserID, fingerprint, input.ChunkIndex)
	if err != nil {
		return nil, err
	}
	if alreadyUploaded {
		exists, err := s.store.Head(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("verify existing chunk object failed: %w", err)
		}
		if exists {
			indices, err := s.ledger.UploadedIndices(ctx, input.UserID, fingerprint, file.TotalChunks)
			if err != nil {
				return nil, err
			}
			return &UploadChunkResult{
				File:            file,
				ChunkIndex:      input.ChunkIndex,
				UploadedIndices: indices,
				TotalChunks:     file.TotalChunks,
			}, nil
		}
	}

	hasher := md5.New()
	if err := s.store.Put(ctx, key, io.TeeReader(input.Body, hasher), input.Size); err != nil {
		return nil, fmt.Errorf("store chunk failed: %w", err)
	}

	chunk := &model.ChunkRecord{
		Fingerprint:      fingerprint,
		ChunkIndex:       input.ChunkIndex,
		ChunkFingerprint: hex.EncodeToString(hasher.Sum(nil)),
		StoragePath:      key,
		Size:             input.Size,
	}
	if err := s.chunkRepo.Upsert(chunk); err != nil {
		return nil, err
	}
	if err := s.ledger.MarkUploaded(ctx, input.UserID, fingerprint, input.ChunkIndex); err != nil {
		return nil, err
	}

	indices, err := s.ledger.UploadedIndices(ctx, input.UserID, fingerprint, file.TotalChunks)
	if err != nil {
		return nil, err
	}
	return &UploadChunkResult{
		File:            file,
		ChunkIndex:      input.ChunkIndex,
		UploadedIndices: indices,
		TotalChunks:     file.TotalChunks,
	}, nil
}

// defaultScopeTag falls back to the uploader's primary org tag when
// the request doesn't specify one, matching manshu's UploadService
// defaulting an upload's visibility to the owner's own tag.
func (s *UploadService) defaultScopeTag(userID uint) string {
	user, err := s.userRepo.GetByID(userID)
	if err != nil || user == nil || user.PrimaryTag == "" {
		return model.DefaultTagID
	}
	return user.PrimaryTag
}

type UploadStatusResult struct {
	File            *model.FileRecord
	UploadedIndices []int
	TotalChunks     int
	AlreadyMerged   bool
}

// UploadStatus reports which chunk indices are already present for a
// resumable upload, letting the client skip re-sending them.
func (s *UploadService) UploadStatus(ctx context.Context, userID uint, fingerprint string) (*UploadStatusResult, error) {
	fingerprint = strings.ToLower(strings.TrimSpace(fingerprint))
	file, err := s.fileRepo.GetByFingerprintAndUser(fingerprint, userID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	indices, err := s.ledger.UploadedIndices(ctx, userID, fingerprint, file.TotalChunks)
	if err != nil {
		return nil, err
	}
	return &UploadStatusResult{
		File:            file,
		UploadedIndices: indices,
		TotalChunks:     file.TotalChunks,
		AlreadyMerged:   file.Status == model.FileStatusMerged,
	}, nil
}

type MergeResult struct {
	File        *model.FileRecord
	DownloadURL string
}

// MergeUpload runs manshu's mergeChunks sequence: recompute the
// expected chunk count from the file's declared size and refuse on a
// mismatch; verify every chunk object actually exists in storage
// before composing (a missing chunk must fail loudly, not produce a
// truncated merged object); compose; verify the composed object
// exists; best-effort delete the source chunk objects (their loss is
// not fatal once the merge itself is confirmed); clear the chunk
// ledger; mark the FileRecord MERGED with its merge timestamp;
// enqueue the ingestion task; and return a presigned URL for the
// caller to download what it just uploaded.
func (s *UploadService) MergeUpload(ctx context.Context, userID uint, fingerprint, fileName string) (*MergeResult, error) {
	fingerprint = strings.ToLower(strings.TrimSpace(fingerprint))
	file, err := s.fileRepo.GetByFingerprintAndUser(fingerprint, userID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	if strings.TrimSpace(fileName) != "" && fileName != file.FileName {
		return nil, ErrInvalidInput
	}
	if file.Status == model.FileStatusMerged {
		url, presignErr := s.store.PresignGet(file.MergedPath, s.presignTTL)
		if presignErr != nil {
			return nil, fmt.Errorf("presign merged object failed: %w", presignErr)
		}
		return &MergeResult{File: file, DownloadURL: url}, nil
	}

	expectedChunks := int(math.Ceil(float64(file.TotalSize) / float64(s.chunkSize)))
	if expectedChunks != file.TotalChunks {
		return nil, ErrFileIncomplete
	}

	uploadedCount, err := s.ledger.Count(ctx, userID, fingerprint)
	if err != nil {
		return nil, err
	}
	if int(uploadedCount) < file.TotalChunks {
		return nil, ErrFileIncomplete
	}

	chunks, err := s.chunkRepo.ListByFingerprint(fingerprint)
	if err != nil {
		return nil, err
	}
	if len(chunks) < file.TotalChunks {
		return nil, ErrFileIncomplete
	}

	srcKeys := make([]string, file.TotalChunks)
	for _, chunk := range chunks {
		srcKeys[chunk.ChunkIndex] = chunk.StoragePath
	}
	for _, key := range srcKeys {
		exists, err := s.store.Head(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("verify chunk object failed: %w", err)
		}
		if !exists {
			return nil, ErrChunkMissing
		}
	}

	mergedKey := mergedObjectKey(file.FileName)
	if err := s.store.ComposeObject(ctx, mergedKey, srcKeys); err != nil {
		return nil, fmt.Errorf("compose merged object failed: %w", err)
	}
	exists, err := s.store.Head(ctx, mergedKey)
	if err != nil {
		return nil, fmt.Errorf("verify merged object failed: %w", err)
	}
	if !exists {
		return nil, ErrMergeVerifyFailed
	}

	for _, key := range srcKeys {
		_ = s.store.Delete(ctx, key)
	}
	if err := s.ledger.Delete(ctx, userID, fingerprint); err != nil {
		return nil, err
	}

	now := time.Now()
	file.Status = model.FileStatusMerged
	file.MergedPath = mergedKey
	file.MergedAt = &now
	if err := s.fileRepo.Update(file); err != nil {
		return nil, err
	}

	task := rabbitmq.IngestionTask{
		Fingerprint: fingerprint,
		UserID:      userID,
		ObjectKey:   mergedKey,
		ScopeTag:    file.ScopeTag,
		IsPublic:    file.IsPublic,
	}
	if err := s.publisher.Publish(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue ingestion task failed: %w", err)
	}

	url, err := s.store.PresignGet(mergedKey, s.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("presign merged object failed: %w", err)
	}
	return &MergeResult{File: file, DownloadURL: url}, nil
}

// DeleteFile removes a file's merged object, chunk objects, ledger
// entry, FileRecord and ChunkRecord rows. The file's Passage rows and
// its search-index documents are not deleted.
//
// The resource is looked up by fingerprint alone — not scoped to
// userID — and then run through an owner/admin/PRIVATE_/tag-
// membership decision modelled on middleware.OrgTagAuthz's (see
// authorizeFileAccess for how it differs), so that
// a non-owner outside the file's organization tag gets ErrForbidden
// (403) rather than the ErrFileNotFound (404) a userID-scoped lookup
// would produce. Grounded on spec.md §8 Scenario 4 and manshu's
// OrgTagAuthorizationFilter decision the deletion endpoint is also
// routed through.
func (s *UploadService) DeleteFile(ctx context.Context, userID uint, role string, effectiveTags []string, fingerprint string) error {
	fingerprint = strings.ToLower(strings.TrimSpace(fingerprint))
	file, err := s.fileRepo.GetByFingerprint(fingerprint)
	if err != nil {
		return err
	}
	if file == nil {
		return ErrFileNotFound
	}

	if err := s.authorizeFileAccess(file, userID, role, effectiveTags); err != nil {
		return err
	}

	chunks, err := s.chunkRepo.ListByFingerprint(fingerprint)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		_ = s.store.Delete(ctx, chunk.StoragePath)
	}
	if file.MergedPath != "" {
		_ = s.store.Delete(ctx, file.MergedPath)
	}
	if err := s.chunkRepo.DeleteByFingerprint(fingerprint); err != nil {
		return err
	}
	if err := s.ledger.Delete(ctx, file.UserID, fingerprint); err != nil {
		return err
	}
	return s.fileRepo.DeleteByFingerprint(fingerprint)
}

// authorizeFileAccess mirrors middleware.OrgTagAuthz's read-path
// decision: public, untagged, or DEFAULT-tagged files are open to any
// authenticated caller; the owner and any ADMIN always pass; a
// PRIVATE_ tag refuses everyone else outright; any other tag requires
// literal membership in effectiveTags. Unlike OrgTagAuthz, which checks
// the assigned tags carried in the caller's token, this checks the
// tag set the caller passes in — the document handler passes the
// ancestor-expanded effective set.
func (s *UploadService) authorizeFileAccess(file *model.FileRecord, userID uint, role string, effectiveTags []string) error {
	if file.IsPublic || file.ScopeTag == "" || file.ScopeTag == model.DefaultTagID {
		return nil
	}
	if userID == file.UserID || role == model.RoleAdmin {
		return nil
	}
	if strings.HasPrefix(file.ScopeTag, model.PrivateTagPrefix) {
		return ErrForbidden
	}
	for _, tag := range effectiveTags {
		if tag == file.ScopeTag {
			return nil
		}
	}
	return ErrForbidden
}

func (s *UploadService) ListFiles(userID uint) ([]model.FileRecord, error) {
	return s.fileRepo.ListByUser(userID)
}

// ListAccessible returns every merged file userID can see under tags
// (their own effective tag set): owned, public, or tag-scoped.
func (s *UploadService) ListAccessible(userID uint, tags []string) ([]model.FileRecord, error) {
	return s.fileRepo.ListAccessible(userID, tags)
}

// DownloadURL resolves a file by display name within tags' visibility
// and returns a presigned GET for its merged object.
func (s *UploadService) DownloadURL(ctx context.Context, userID uint, tags []string, fileName string) (string, error) {
	file, err := s.fileRepo.GetAccessibleByFileName(fileName, userID, tags)
	if err != nil {
		return "", err
	}
	if file == nil {
		return "", ErrFileNotFound
	}
	return s.store.PresignGet(file.MergedPath, s.presignTTL)
}

func chunkObjectKey(fingerprint string, chunkIndex int) string {
	return "chunks/" + fingerprint + "/" + strconv.Itoa(chunkIndex)
}

func mergedObjectKey(fileName string) string {
	return "merged/" + fileName
}
