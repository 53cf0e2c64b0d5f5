// Package content defines the application's core content-related domain entities.
package content

import (
	"fmt"
	"time"
)

// EntityType identifies a kind of content record tracked by the cache engine.
// The set is closed: the dependency map and topic derivation switch over it
// exhaustively, so an unknown value is a caller error, not a runtime case.
type EntityType string

const (
	EntityStory   EntityType = "story"
	EntityChapter EntityType = "chapter"
	EntityScene   EntityType = "scene"
	EntityPost    EntityType = "post"
	EntityComment EntityType = "comment"
)

// EntityTypes lists every entity type reachable from the data-access interface.
var EntityTypes = []EntityType{EntityStory, EntityChapter, EntityScene, EntityPost, EntityComment}

// ParseEntityType validates a wire-format entity type string.
func ParseEntityType(s string) (EntityType, error) {
	et := EntityType(s)
	for _, known := range EntityTypes {
		if et == known {
			return et, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// MutationKind identifies the kind of write applied to an entity.
type MutationKind string

const (
	MutationCreate    MutationKind = "create"
	MutationUpdate    MutationKind = "update"
	MutationDelete    MutationKind = "delete"
	MutationPublish   MutationKind = "publish"
	MutationUnpublish MutationKind = "unpublish"
	MutationReorder   MutationKind = "reorder"
	MutationLike      MutationKind = "like"
)

// MutationKinds lists every mutation kind reachable from the data-access interface.
var MutationKinds = []MutationKind{
	MutationCreate, MutationUpdate, MutationDelete,
	MutationPublish, MutationUnpublish, MutationReorder, MutationLike,
}

// ParseMutationKind validates a wire-format mutation kind string.
func ParseMutationKind(s string) (MutationKind, error) {
	mk := MutationKind(s)
	for _, known := range MutationKinds {
		if mk == known {
			return mk, nil
		}
	}
	return "", fmt.Errorf("unknown mutation kind %q", s)
}

type StoryNode struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	AuthorID        string     `json:"authorId"`
	Summary         *string    `json:"summary,omitempty"`
	CoverImagePath  *string    `json:"coverImagePath,omitempty"`
	IsPublished     bool       `json:"isPublished"`
	ChapterIDs      []string   `json:"chapterIds"`
	VisibilityScope string     `json:"visibilityScope"`
	Created         time.Time  `json:"created"`
	Changed         *time.Time `json:"changed,omitempty"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
}

type ChapterNode struct {
	ID       string     `json:"id"`
	StoryID  string     `json:"storyId"`
	Title    string     `json:"title"`
	Slug     string     `json:"slug"`
	Position int        `json:"position"`
	SceneIDs []string   `json:"sceneIds"`
	Created  time.Time  `json:"created"`
	Changed  *time.Time `json:"changed,omitempty"`
}

type SceneNode struct {
	ID        string     `json:"id"`
	ChapterID string     `json:"chapterId"`
	StoryID   string     `json:"storyId"`
	Title     string     `json:"title"`
	Position  int        `json:"position"`
	Body      *string    `json:"body,omitempty"`
	Created   time.Time  `json:"created"`
	Changed   *time.Time `json:"changed,omitempty"`
}

type PostNode struct {
	ID        string     `json:"id"`
	AuthorID  string     `json:"authorId"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	StoryID   *string    `json:"storyId,omitempty"`
	LikeCount int        `json:"likeCount"`
	Created   time.Time  `json:"created"`
	Changed   *time.Time `json:"changed,omitempty"`
}

type CommentNode struct {
	ID        string     `json:"id"`
	PostID    string     `json:"postId"`
	AuthorID  string     `json:"authorId"`
	Body      string     `json:"body"`
	LikeCount int        `json:"likeCount"`
	Created   time.Time  `json:"created"`
	Changed   *time.Time `json:"changed,omitempty"`
}
