package app

import (
	"context"
	"errors"
	"strings"

	"knowledgehub/internal/cache"
	"knowledgehub/internal/model"
	"knowledgehub/internal/repository"
)

var (
	ErrTagNotFound  = errors.New("organization tag not found")
	ErrTagExists    = errors.New("organization tag already exists")
	ErrTagHasCycle  = errors.New("organization tag parent chain forms a cycle")
	ErrTagIDInvalid = errors.New("organization tag id is invalid")
	ErrTagInUse     = errors.New("organization tag is still in use")
	ErrUserNotFound = errors.New("user not found")
)

// TagService resolves a user's assigned tags into the ancestor-
// expanded "effective" tag set used for search and authorization, and
// caches both layers. Grounded on manshu's OrgTagCacheService.
type TagService struct {
	tagRepo  *repository.OrgTagRepository
	userRepo *repository.UserRepository
	cache    *cache.TagCache
}

func NewTagService(tagRepo *repository.OrgTagRepository, userRepo *repository.UserRepository, tagCache *cache.TagCache) *TagService {
	return &TagService{tagRepo: tagRepo, userRepo: userRepo, cache: tagCache}
}

type CreateTagInput struct {
	ID          string
	Name        string
	Description string
	ParentID    string
	CreatedBy   uint
}

func (s *TagService) CreateTag(input CreateTagInput) (*model.OrganizationTag, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" || strings.Contains(id, ",") {
		return nil, ErrTagIDInvalid
	}
	existing, err := s.tagRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTagExists
	}

	tag := &model.OrganizationTag{
		ID:          id,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		ParentID:    strings.TrimSpace(input.ParentID),
		CreatedBy:   input.CreatedBy,
	}
	if err := s.tagRepo.Create(tag); err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateAllEffective(context.Background())
	}
	return tag, nil
}

func (s *TagService) ListTags() ([]model.OrganizationTag, error) {
	return s.tagRepo.List()
}

type UpdateTagInput struct {
	ID          string
	Name        string
	Description string
	ParentID    string
}

// UpdateTag changes a tag's name, description, and/or parent.
// Reparenting is refused if the proposed parent's own ancestor chain
// ever reaches the tag being updated — including the tag itself as
// its own proposed parent — per spec.md's cycle invariant: "no
// cycles — updating a parent must refuse any choice that appears in
// the proposed parent's ancestor chain including the tag itself."
func (s *TagService) UpdateTag(input UpdateTagInput) (*model.OrganizationTag, error) {
	id := strings.TrimSpace(input.ID)
	tag, err := s.tagRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, ErrTagNotFound
	}

	newParent := strings.TrimSpace(input.ParentID)
	if newParent != "" && newParent != tag.ParentID {
		if err := s.refuseCycle(id, newParent); err != nil {
			return nil, err
		}
		tag.ParentID = newParent
	} else if input.ParentID == "" {
		tag.ParentID = ""
	}
	if strings.TrimSpace(input.Name) != "" {
		tag.Name = strings.TrimSpace(input.Name)
	}
	tag.Description = strings.TrimSpace(input.Description)

	if err := s.tagRepo.Update(tag); err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateAllEffective(context.Background())
	}
	return tag, nil
}

// refuseCycle walks newParent's ancestor chain and refuses if
// tagID ever appears in it.
func (s *TagService) refuseCycle(tagID, newParent string) error {
	seen := map[string]bool{}
	current := newParent
	for current != "" && !seen[current] {
		if current == tagID {
			return ErrTagHasCycle
		}
		seen[current] = true
		parent, err := s.tagRepo.GetByID(current)
		if err != nil {
			return err
		}
		if parent == nil {
			return nil
		}
		current = parent.ParentID
	}
	return nil
}

// DeleteTag refuses to delete a tag that still has child tags or is
// still referenced by a user's primary or assigned tags, matching
// manshu's OrgTagController refusing deletion of an in-use tag rather
// than silently orphaning references.
func (s *TagService) DeleteTag(id string) error {
	children, err := s.tagRepo.CountChildren(id)
	if err != nil {
		return err
	}
	if children > 0 {
		return ErrTagInUse
	}
	assigned, err := s.userRepo.CountAssignedTag(id)
	if err != nil {
		return err
	}
	if assigned > 0 {
		return ErrTagInUse
	}

	if err := s.tagRepo.Delete(id); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateAllEffective(context.Background())
	}
	return nil
}

// AssignUserTags replaces a user's assigned org tags wholesale, for
// admin reassignment. The user's primary tag is reset to the first
// entry in tags when it is no longer among them, mirroring manshu's
// UserController.updateUserOrgTags.
func (s *TagService) AssignUserTags(userID uint, tags []string) (*model.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}

	user.SetAssignedTagList(clean)
	if !containsTag(clean, user.PrimaryTag) {
		if len(clean) > 0 {
			user.PrimaryTag = clean[0]
		} else {
			user.PrimaryTag = model.DefaultTagID
		}
	}
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	s.InvalidateUser(context.Background(), userID)
	return user, nil
}

func containsTag(tags []string, target string) bool {
	for _, t := range tags {
		if t == target {
			return true
		}
	}
	return false
}

// AssignedTags returns a user's directly-assigned tags, through the
// cache when possible. Any repository error collapses to the DEFAULT
// tag set rather than surfacing an error — a user whose tag lookup
// fails should still be treated as at least a DEFAULT member for the
// purpose of search/authorization, never locked out entirely.
func (s *TagService) AssignedTags(ctx context.Context, userID uint) ([]string, error) {
	if s.cache != nil {
		if tags, hit, err := s.cache.GetAssignedTags(ctx, userID); err == nil && hit {
			return tags, nil
		}
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil || user == nil {
		return []string{model.DefaultTagID}, nil
	}
	tags := user.AssignedTagList()
	if s.cache != nil {
		_ = s.cache.CacheAssignedTags(ctx, userID, tags)
	}
	return tags, nil
}

// EffectiveTags expands a user's assigned tags plus DEFAULT into the
// full ancestor set, walking each tag's parent chain. A visited set
// guards against a corrupted tag forest looping forever — the
// original Java implementation has no such guard (see DESIGN.md,
// Open Question 4). Like AssignedTags, any repository error collapses
// to the DEFAULT tag set rather than surfacing an error.
func (s *TagService) EffectiveTags(ctx context.Context, userID uint) ([]string, error) {
	if s.cache != nil {
		if tags, hit, err := s.cache.GetEffectiveTags(ctx, userID); err == nil && hit {
			return tags, nil
		}
	}

	assigned, _ := s.AssignedTags(ctx, userID)

	seen := map[string]bool{model.DefaultTagID: true}
	result := []string{model.DefaultTagID}
	for _, tagID := range assigned {
		if err := s.collectAncestors(tagID, seen, &result); err != nil {
			return []string{model.DefaultTagID}, nil
		}
	}

	if s.cache != nil {
		_ = s.cache.CacheEffectiveTags(ctx, userID, result)
	}
	return result, nil
}

func (s *TagService) collectAncestors(tagID string, seen map[string]bool, result *[]string) error {
	for tagID != "" && !seen[tagID] {
		seen[tagID] = true
		*result = append(*result, tagID)

		tag, err := s.tagRepo.GetByID(tagID)
		if err != nil {
			return err
		}
		if tag == nil {
			return nil
		}
		tagID = tag.ParentID
	}
	return nil
}

func (s *TagService) InvalidateUser(ctx context.Context, userID uint) {
	if s.cache != nil {
		_ = s.cache.InvalidateUser(ctx, userID)
	}
}
