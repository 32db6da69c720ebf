package app

import (
	"context"
	"fmt"
	"strconv"

	"knowledgehub/internal/ai"
	"knowledgehub/internal/platform/search"
	"knowledgehub/internal/repository"
)

// HybridSearchService resolves a query into a permissioned hybrid
// (kNN + lexical, rescored) search against the SearchStore, falling
// back to a lexical-only search when no embedding is available.
// Grounded on manshu's HybridSearchService (searchWithPermission/
// textOnlySearchWithPermission/attachFileNames).
type HybridSearchService struct {
	tags        *TagService
	embedder    *ai.EmbeddingClient
	searchStore search.Store
	fileRepo    *repository.FileRepository
}

func NewHybridSearchService(tags *TagService, embedder *ai.EmbeddingClient, searchStore search.Store, fileRepo *repository.FileRepository) *HybridSearchService {
	return &HybridSearchService{tags: tags, embedder: embedder, searchStore: searchStore, fileRepo: fileRepo}
}

// SearchResult is one scored hit with the owning file's name attached,
// mirroring attachFileNames in the original.
type SearchResult struct {
	search.Hit
	FileName string
}

// SearchWithPermission embeds the query and runs a hybrid search
// scoped to the requesting user's own documents, their effective
// organization tags, and public documents.
func (s *HybridSearchService) SearchWithPermission(ctx context.Context, userID uint, queryText string, k int) ([]SearchResult, error) {
	effectiveTags, err := s.tags.EffectiveTags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve effective tags failed: %w", err)
	}

	vectors, err := s.embedder.EmbedAll(ctx, []string{queryText})
	if err != nil || len(vectors) == 0 {
		return s.textOnlySearchWithPermission(ctx, userID, queryText, k, effectiveTags)
	}

	// recallK/rescoreWindow at 30x topK and the 0.2/1.0 query/rescore
	// weights are manshu's HybridSearchService constants verbatim
	// (recallK = topK * 30, queryWeight(0.2d), rescoreQueryWeight(1.0d))
	// — not the generic knN-search defaults search.Client falls back to
	// when left zero.
	hits, err := s.searchStore.Search(ctx, search.Query{
		Text:          queryText,
		Vector:        vectors[0],
		K:             k,
		NumCandidates: k * 30,
		RescoreWindow: k * 30,
		QueryWeight:   0.2,
		RescoreWeight: 1.0,
		OwnerUserID:   strconv.FormatUint(uint64(userID), 10),
		EffectiveTags: effectiveTags,
		AllowPublic:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}
	return s.attachFileNames(hits), nil
}

func (s *HybridSearchService) textOnlySearchWithPermission(ctx context.Context, userID uint, queryText string, k int, effectiveTags []string) ([]SearchResult, error) {
	hits, err := s.searchStore.TextOnlySearch(ctx, search.Query{
		Text:          queryText,
		Size:          k,
		OwnerUserID:   strconv.FormatUint(uint64(userID), 10),
		EffectiveTags: effectiveTags,
		AllowPublic:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("text-only search failed: %w", err)
	}
	return s.attachFileNames(hits), nil
}

// Search is the unauthenticated diagnostic variant spec.md §4.6
// describes (no ownership/tag filter) — kept for operational use but
// never routed from transport/http.
func (s *HybridSearchService) Search(ctx context.Context, queryText string, k int) ([]SearchResult, error) {
	vectors, err := s.embedder.EmbedAll(ctx, []string{queryText})
	if err != nil || len(vectors) == 0 {
		hits, err := s.searchStore.TextOnlySearch(ctx, search.Query{Text: queryText, Size: k})
		if err != nil {
			return nil, fmt.Errorf("text-only search failed: %w", err)
		}
		return s.attachFileNames(hits), nil
	}
	hits, err := s.searchStore.Search(ctx, search.Query{Text: queryText, Vector: vectors[0], K: k})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return s.attachFileNames(hits), nil
}

// attachFileNames resolves every hit's owning file name with a single
// batched repository lookup over the distinct fingerprints, rather
// than one round trip per hit — grounded on spec.md's explicit
// batching requirement for attachFileNames.
func (s *HybridSearchService) attachFileNames(hits []search.Hit) []SearchResult {
	seen := make(map[string]bool)
	distinct := make([]string, 0, len(hits))
	for _, hit := range hits {
		if !seen[hit.Document.FileMD5] {
			seen[hit.Document.FileMD5] = true
			distinct = append(distinct, hit.Document.FileMD5)
		}
	}

	fileNames := make(map[string]string, len(distinct))
	if files, err := s.fileRepo.GetByFingerprints(distinct); err == nil {
		for _, file := range files {
			fileNames[file.Fingerprint] = file.FileName
		}
	}

	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult{Hit: hit, FileName: fileNames[hit.Document.FileMD5]}
	}
	return results
}
