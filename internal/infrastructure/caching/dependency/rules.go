// Package dependency maps entity mutations to the cache key patterns they
// invalidate. The table is pure and side-effect free; both the server-side
// coordinator and the client sync agent resolve through it so the two sides
// can never disagree about what a mutation touches.
package dependency

import (
	"github.com/inkwellhq/inkwell-go/internal/domain/entities/content"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
)

// Mutation pins down one (entityType, mutationKind) pair plus the identifiers
// needed to expand key templates. ParentID carries the owning entity where a
// rule reaches upward (a chapter's story, a comment's post); it may be empty
// for top-level entities.
type Mutation struct {
	EntityType content.EntityType
	Kind       content.MutationKind
	EntityID   string
	ParentID   string
}

// rule expands one mutation into its invalidation set.
type rule func(entityID, parentID string) []keys.Pattern

// ruleKey indexes the table.
type ruleKey struct {
	entityType content.EntityType
	kind       content.MutationKind
}

// The table is total over every (EntityType, MutationKind) pair reachable
// from the data-access interface; TestRulesAreTotal enforces this. A lookup
// that misses the table is a latent staleness bug surfaced by the caller.
var table = map[ruleKey]rule{
	// Stories. List and structure caches depend on the story record itself.
	{content.EntityStory, content.MutationCreate}:    storyRule,
	{content.EntityStory, content.MutationUpdate}:    storyRule,
	{content.EntityStory, content.MutationDelete}:    storyRule,
	{content.EntityStory, content.MutationPublish}:   storyRule,
	{content.EntityStory, content.MutationUnpublish}: storyRule,
	{content.EntityStory, content.MutationReorder}:   storyStructureRule,
	{content.EntityStory, content.MutationLike}:      storyLikeRule,

	// Chapters. ParentID is the owning story.
	{content.EntityChapter, content.MutationCreate}:    chapterRule,
	{content.EntityChapter, content.MutationUpdate}:    chapterRule,
	{content.EntityChapter, content.MutationDelete}:    chapterRule,
	{content.EntityChapter, content.MutationPublish}:   chapterRule,
	{content.EntityChapter, content.MutationUnpublish}: chapterRule,
	{content.EntityChapter, content.MutationReorder}:   chapterReorderRule,
	{content.EntityChapter, content.MutationLike}:      chapterLikeRule,

	// Scenes. ParentID is the owning chapter.
	{content.EntityScene, content.MutationCreate}:    sceneRule,
	{content.EntityScene, content.MutationUpdate}:    sceneRule,
	{content.EntityScene, content.MutationDelete}:    sceneRule,
	{content.EntityScene, content.MutationPublish}:   sceneRule,
	{content.EntityScene, content.MutationUnpublish}: sceneRule,
	{content.EntityScene, content.MutationReorder}:   sceneReorderRule,
	{content.EntityScene, content.MutationLike}:      sceneLikeRule,

	// Posts.
	{content.EntityPost, content.MutationCreate}:    postRule,
	{content.EntityPost, content.MutationUpdate}:    postRule,
	{content.EntityPost, content.MutationDelete}:    postRule,
	{content.EntityPost, content.MutationPublish}:   postRule,
	{content.EntityPost, content.MutationUnpublish}: postRule,
	{content.EntityPost, content.MutationReorder}:   postFeedRule,
	{content.EntityPost, content.MutationLike}:      postLikeRule,

	// Comments. ParentID is the owning post.
	{content.EntityComment, content.MutationCreate}:    commentRule,
	{content.EntityComment, content.MutationUpdate}:    commentRule,
	{content.EntityComment, content.MutationDelete}:    commentRule,
	{content.EntityComment, content.MutationPublish}:   commentRule,
	{content.EntityComment, content.MutationUnpublish}: commentRule,
	{content.EntityComment, content.MutationReorder}:   commentThreadRule,
	{content.EntityComment, content.MutationLike}:      commentLikeRule,
}

func storyRule(entityID, _ string) []keys.Pattern {
	return []keys.Pattern{
		keys.Exact(keys.New(keys.NSStory, entityID)),
		keys.Prefix(keys.NSStory, entityID),
		keys.PrefixAll(keys.NSStoryList),
		keys.Exact(keys.New(keys.NSStoryStructure, entityID)),
	}
}

func storyStructureRule(entityID, _ string) []keys.Pattern {
	return []keys.Pattern{
		keys.Exact(keys.New(keys.NSStoryStructure, entityID)),
		keys.Prefix(keys.NSChapterList, entityID),
	}
}

func storyLikeRule(entityID, _ string) []keys.Pattern {
	return []keys.Pattern{
		keys.Exact(keys.New(keys.NSStory, entityID)),
		keys.Prefix(keys.NSStory, entityID),
	}
}

func chapterRule(entityID, parentID string) []keys.Pattern {
	return []keys.Pattern{
		keys.Exact(keys.New(keys.NSChapter, entityID)),
		keys.Exact(keys.New(keys.NSStoryStructure, parentID)),
		keys.Prefix(keys.NSChapterList, parentID),
	}
}

func chapterReorderRule(entityID, parentID string) []keys.Pattern {
	return []keys.Pattern{
		keys.Exact(keys.New(keys.NSStoryStructure, parentID)),
		keys.Prefix(keys.NSChapterList, parentID),
	}
}

func chapterLikeRule(entityID, _ string) []keys.Pattern {
	return []keys.Pattern{keys.Exact(keys.New(keys.NSChapter, entityID))}
}

func sceneRule(entityID, parentID string) []keys.Pattern {
	return []keys.Pattern{
		keys.Exact(keys.New(keys.NSScene, entityID)),
		keys.Exact(keys.New(keys.NSChapter, parentID)),
		keys.Prefix(keys.NSSceneList, parentID),
	}
}

func sceneReorderRule(entityID, parentID string) []keys.Pattern {
	return []keys.Pattern{
		keys.Exact(keys.New(keys.NSChapter, parentID)),
		keys.Prefix(keys.NSSceneList, parentID),
	}
}

func sceneLikeRule(entityID, _ string) []keys.Pattern {
	return []keys.Pattern{keys.Exact(keys.New(keys.NSScene, entityID))}
}

func postRule(entityID, _ string) []keys.Pattern {
	return []keys.Pattern{
		keys.Exact(keys.New(keys.NSPost, entityID)),
		keys.PrefixAll(keys.NSPostFeed),
	}
}

func postFeedRule(_, _ string) []keys.Pattern {
	return []keys.Pattern{keys.PrefixAll(keys.NSPostFeed)}
}

func postLikeRule(entityID, _ string) []keys.Pattern {
	return []keys.Pattern{keys.Exact(keys.New(keys.NSPost, entityID))}
}

func commentRule(entityID, parentID string) []keys.Pattern {
	return []keys.Pattern{
		keys.Prefix(keys.NSCommentThread, parentID),
		keys.Exact(keys.New(keys.NSPost, parentID)),
	}
}

func commentThreadRule(_, parentID string) []keys.Pattern {
	return []keys.Pattern{keys.Prefix(keys.NSCommentThread, parentID)}
}

func commentLikeRule(_, parentID string) []keys.Pattern {
	return []keys.Pattern{keys.Prefix(keys.NSCommentThread, parentID)}
}

// RulesFor resolves the invalidation set for a mutation. A missing rule
// returns an empty list and ok=false; the caller owns the diagnostic, since
// this package stays pure.
func RulesFor(m Mutation) ([]keys.Pattern, bool) {
	r, ok := table[ruleKey{m.EntityType, m.Kind}]
	if !ok {
		return nil, false
	}
	return r(m.EntityID, m.ParentID), true
}
