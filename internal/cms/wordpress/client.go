package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/els777/TGtoWP/internal/core/domain"
	"github.com/els777/TGtoWP/internal/core/ports"
)

const (
	apiPrefix   = "/wp-json/wp/v2"
	tagPageSize = 100

	// CategoryTTL is how long a fetched category tree stays valid.
	CategoryTTL = time.Hour
)

var (
	// ErrRemoteFetch marks a failed category or tag listing.
	ErrRemoteFetch = errors.New("wordpress: remote fetch failed")
	// ErrUpload marks a failed media mirror (either leg).
	ErrUpload = errors.New("wordpress: media upload failed")
)

// Client is the adapter for a WordPress site's REST API. It authenticates
// every request with basic auth and keeps a process-wide category tree cache.
type Client struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client

	// RequireFeaturedImage makes CreatePost fail when the cover image cannot
	// be uploaded; when false the post is created without a featured image.
	RequireFeaturedImage bool

	// Now is the clock used for cache expiry. Tests override it.
	Now func() time.Time

	log zerolog.Logger

	mu        sync.Mutex
	tree      []domain.Category
	fetchedAt time.Time
}

var _ ports.Publisher = (*Client)(nil)

func NewClient(baseURL, username, password string, log zerolog.Logger) *Client {
	return &Client{
		BaseURL:              strings.TrimRight(baseURL, "/"),
		Username:             username,
		Password:             password,
		HTTPClient:           &http.Client{Timeout: 60 * time.Second},
		RequireFeaturedImage: true,
		Now:                  time.Now,
		log:                  log,
	}
}

func (c *Client) endpoint(path string) string {
	return c.BaseURL + apiPrefix + path
}

// Categories returns the two-level category tree, refetching at most once per
// CategoryTTL. Two concurrent misses may both refetch; the second write wins.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	c.mu.Lock()
	if c.tree != nil && c.Now().Sub(c.fetchedAt) < CategoryTTL {
		tree := c.tree
		c.mu.Unlock()
		return tree, nil
	}
	c.mu.Unlock()

	tree, err := c.fetchCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: categories: %v", ErrRemoteFetch, err)
	}

	c.mu.Lock()
	c.tree = tree
	c.fetchedAt = c.Now()
	c.mu.Unlock()
	return tree, nil
}

func (c *Client) fetchCategories(ctx context.Context) ([]domain.Category, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/categories?per_page=100"), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var cats []apiCategory
	if err := json.NewDecoder(resp.Body).Decode(&cats); err != nil {
		return nil, err
	}

	// Two-level tree: top-level entries keep their fetch order, children hang
	// under their parent, orphans are promoted to the top level.
	var tree []domain.Category
	index := make(map[int]int)
	for _, cat := range cats {
		if cat.Parent == 0 {
			index[cat.ID] = len(tree)
			tree = append(tree, domain.Category{ID: cat.ID, Name: cat.Name})
		}
	}
	for _, cat := range cats {
		if cat.Parent == 0 {
			continue
		}
		if i, ok := index[cat.Parent]; ok {
			tree[i].Children = append(tree[i].Children, domain.Category{ID: cat.ID, Name: cat.Name})
		} else {
			tree = append(tree, domain.Category{ID: cat.ID, Name: cat.Name})
		}
	}
	return tree, nil
}

// Tags fetches the full tag index fresh, paginating until an empty page.
// Labels are matched case-insensitively, so keys are trimmed and lower-cased.
func (c *Client) Tags(ctx context.Context) (map[string]int, error) {
	index := make(map[string]int)
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s?per_page=%d&page=%d", c.endpoint("/tags"), tagPageSize, page)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.Username, c.Password)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: tags: %v", ErrRemoteFetch, err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			// WordPress answers 400 rest_post_invalid_page_number past the
			// last page.
			if page > 1 && resp.StatusCode == http.StatusBadRequest {
				return index, nil
			}
			return nil, fmt.Errorf("%w: tags: status %d", ErrRemoteFetch, resp.StatusCode)
		}

		var tags []apiTag
		err = json.NewDecoder(resp.Body).Decode(&tags)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: tags: %v", ErrRemoteFetch, err)
		}
		if len(tags) == 0 {
			return index, nil
		}
		for _, t := range tags {
			index[normalizeLabel(t.Name)] = t.ID
		}
		if len(tags) < tagPageSize {
			return index, nil
		}
	}
}

// CreateTag creates a tag and returns its id. A "term_exists" answer resolves
// to the pre-existing id instead of failing.
func (c *Client) CreateTag(ctx context.Context, label string) (int, error) {
	body, _ := json.Marshal(map[string]string{"name": strings.TrimSpace(label)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/tags"), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		var tag apiTag
		if err := json.NewDecoder(resp.Body).Decode(&tag); err != nil {
			return 0, err
		}
		return tag.ID, nil
	}

	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Code != "term_exists" {
		return 0, fmt.Errorf("create tag %q: status %d", label, resp.StatusCode)
	}
	if apiErr.Data.TermID != 0 {
		return apiErr.Data.TermID, nil
	}

	// Older WordPress versions omit the term id; resolve by label instead.
	index, err := c.Tags(ctx)
	if err != nil {
		return 0, err
	}
	if id, ok := index[normalizeLabel(label)]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("tag %q reported as existing but not found", label)
}

// UploadImage fetches the image at srcURL and re-uploads the bytes as a new
// media object.
func (c *Client) UploadImage(ctx context.Context, srcURL string) (int, error) {
	if srcURL == "" {
		return 0, fmt.Errorf("%w: no source image", ErrUpload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch source: %v", ErrUpload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: fetch source: status %d", ErrUpload, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if _, err := io.Copy(part, resp.Body); err != nil {
		return 0, fmt.Errorf("%w: read source: %v", ErrUpload, err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpload, err)
	}

	upload, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/media"), &buf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	upload.Header.Set("Content-Type", mw.FormDataContentType())
	upload.SetBasicAuth(c.Username, c.Password)

	uresp, err := c.HTTPClient.Do(upload)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer uresp.Body.Close()
	if uresp.StatusCode != http.StatusCreated && uresp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrUpload, uresp.StatusCode)
	}

	var media apiMedia
	if err := json.NewDecoder(uresp.Body).Decode(&media); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return media.ID, nil
}

// ImageURL resolves a media id to its public source URL.
func (c *Client) ImageURL(ctx context.Context, mediaID int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%d", c.endpoint("/media"), mediaID), nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: media %d: %v", ErrRemoteFetch, mediaID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: media %d: status %d", ErrRemoteFetch, mediaID, resp.StatusCode)
	}

	var media apiMedia
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return "", err
	}
	return media.SourceURL, nil
}

// CreatePost uploads the cover image, resolves the tag labels and submits the
// post. Tag resolution is best-effort per label; the cover image is mandatory
// unless RequireFeaturedImage is off.
func (c *Client) CreatePost(ctx context.Context, draft domain.Draft, publishNow bool) error {
	payload := postPayload{
		Title:      draft.Title,
		Content:    draft.Body,
		Categories: []int{draft.CategoryID},
	}

	mediaID, err := c.UploadImage(ctx, draft.Image)
	if err != nil {
		if c.RequireFeaturedImage {
			return err
		}
		c.log.Warn().Err(err).Msg("cover upload failed, posting without featured image")
	} else {
		payload.FeaturedMedia = mediaID
	}

	payload.Tags = c.resolveTags(ctx, draft.Tags)

	if publishNow {
		payload.Status = "publish"
	} else {
		payload.Status = "future"
		payload.Date = draft.ScheduleAt
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/posts"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("create post: status %d", resp.StatusCode)
	}
	return nil
}

// resolveTags maps labels to remote ids, creating missing tags. A label that
// cannot be resolved is logged and dropped; it never fails the post.
func (c *Client) resolveTags(ctx context.Context, labels []string) []int {
	if len(labels) == 0 {
		return nil
	}

	index, err := c.Tags(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("tag listing failed, creating tags blind")
		index = make(map[string]int)
	}

	var ids []int
	seen := make(map[string]bool)
	for _, label := range labels {
		key := normalizeLabel(label)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		id, ok := index[key]
		if !ok {
			id, err = c.CreateTag(ctx, label)
			if err != nil {
				c.log.Warn().Err(err).Str("tag", label).Msg("dropping unresolvable tag")
				continue
			}
		}
		ids = append(ids, id)
	}
	return ids
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
