package ports

import (
	"context"

	"github.com/els777/TGtoWP/internal/core/domain"
)

// SessionStore persists one draft per user id. Save overwrites the whole
// record; callers read-modify-write. Load returns ok=false (and a zero draft)
// for a missing key; Delete is a no-op when nothing is stored.
type SessionStore interface {
	Save(ctx context.Context, userID int64, draft domain.Draft) error
	Load(ctx context.Context, userID int64) (domain.Draft, bool, error)
	Delete(ctx context.Context, userID int64) error
}

// Publisher is the remote CMS the assembled post is submitted to.
type Publisher interface {
	// Categories returns the full category tree, cached for up to an hour.
	Categories(ctx context.Context) ([]domain.Category, error)
	// Tags fetches the complete tag index fresh, mapping trimmed lower-case
	// labels to remote ids.
	Tags(ctx context.Context) (map[string]int, error)
	// CreateTag creates a tag, resolving duplicates to the existing id.
	CreateTag(ctx context.Context, label string) (int, error)
	// UploadImage streams the image at srcURL and re-uploads it as a new
	// media object, returning the remote media id.
	UploadImage(ctx context.Context, srcURL string) (int, error)
	// ImageURL resolves a media id to its public URL.
	ImageURL(ctx context.Context, mediaID int) (string, error)
	// CreatePost submits the draft, publishing immediately when publishNow is
	// true and scheduling for draft.ScheduleAt otherwise.
	CreatePost(ctx context.Context, draft domain.Draft, publishNow bool) error
}
