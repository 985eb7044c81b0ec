package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/els777/TGtoWP/internal/core/domain"
)

// fakeWP is a minimal in-memory WordPress REST endpoint.
type fakeWP struct {
	mux *http.ServeMux

	categories []apiCategory
	catCalls   int

	tags        []apiTag
	tagCalls    int
	nextTagID   int
	tagConflict *apiError // returned for every POST /tags when set

	mediaCalls int
	posts      []postPayload
}

func newFakeWP(t *testing.T) (*fakeWP, *httptest.Server) {
	t.Helper()
	f := &fakeWP{mux: http.NewServeMux(), nextTagID: 100}

	f.mux.HandleFunc("/wp-json/wp/v2/categories", func(w http.ResponseWriter, r *http.Request) {
		f.catCalls++
		json.NewEncoder(w).Encode(f.categories)
	})

	f.mux.HandleFunc("/wp-json/wp/v2/tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if f.tagConflict != nil {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(f.tagConflict)
				return
			}
			var req struct {
				Name string `json:"name"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			tag := apiTag{ID: f.nextTagID, Name: req.Name}
			f.nextTagID++
			f.tags = append(f.tags, tag)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(tag)
			return
		}

		f.tagCalls++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		start := (page - 1) * perPage
		if start >= len(f.tags) {
			json.NewEncoder(w).Encode([]apiTag{})
			return
		}
		end := start + perPage
		if end > len(f.tags) {
			end = len(f.tags)
		}
		json.NewEncoder(w).Encode(f.tags[start:end])
	})

	f.mux.HandleFunc("/wp-json/wp/v2/media", func(w http.ResponseWriter, r *http.Request) {
		f.mediaCalls++
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file.Close()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(apiMedia{ID: 55})
	})

	f.mux.HandleFunc("/wp-json/wp/v2/media/55", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiMedia{ID: 55, SourceURL: "https://wp.example/uploads/cover.jpg"})
	})

	f.mux.HandleFunc("/wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		var p postPayload
		json.NewDecoder(r.Body).Decode(&p)
		f.posts = append(f.posts, p)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	})

	f.mux.HandleFunc("/source.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		io.WriteString(w, "jpeg-bytes")
	})

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, "admin", "secret", zerolog.Nop())
}

func TestCategoriesBuildsTwoLevelTree(t *testing.T) {
	f, srv := newFakeWP(t)
	f.categories = []apiCategory{
		{ID: 1, Name: "News"},
		{ID: 2, Name: "Tech"},
		{ID: 3, Name: "Go", Parent: 2},
	}
	c := newTestClient(srv)

	tree, err := c.Categories(context.Background())
	require.NoError(t, err)

	require.Len(t, tree, 2)
	assert.Equal(t, domain.Category{ID: 1, Name: "News"}, tree[0])
	assert.Equal(t, "Tech", tree[1].Name)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, domain.Category{ID: 3, Name: "Go"}, tree[1].Children[0])
}

func TestCategoriesCacheTTL(t *testing.T) {
	f, srv := newFakeWP(t)
	f.categories = []apiCategory{{ID: 1, Name: "News"}}
	c := newTestClient(srv)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return now }

	first, err := c.Categories(context.Background())
	require.NoError(t, err)
	second, err := c.Categories(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.catCalls, "second lookup within the TTL must hit the cache")
	assert.Equal(t, first, second)

	now = now.Add(CategoryTTL + time.Minute)
	_, err = c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.catCalls, "expired cache triggers exactly one refetch")
}

func TestTagsPaginatesAndNormalizes(t *testing.T) {
	f, srv := newFakeWP(t)
	for i := 0; i < tagPageSize; i++ {
		f.tags = append(f.tags, apiTag{ID: i + 1, Name: fmt.Sprintf("tag%d", i+1)})
	}
	f.tags = append(f.tags, apiTag{ID: 999, Name: " Tech "})
	c := newTestClient(srv)

	index, err := c.Tags(context.Background())
	require.NoError(t, err)

	assert.Len(t, index, tagPageSize+1)
	assert.Equal(t, 999, index["tech"], "labels are trimmed and lower-cased")
	assert.GreaterOrEqual(t, f.tagCalls, 2, "full page forces a second fetch")
}

func TestCreateTagDuplicateResolvesByTermID(t *testing.T) {
	f, srv := newFakeWP(t)
	f.tagConflict = &apiError{Code: "term_exists"}
	f.tagConflict.Data.TermID = 7
	c := newTestClient(srv)

	id, err := c.CreateTag(context.Background(), "Tech")
	require.NoError(t, err)
	assert.Equal(t, 7, id)
}

func TestCreateTagDuplicateResolvesByLabel(t *testing.T) {
	f, srv := newFakeWP(t)
	f.tagConflict = &apiError{Code: "term_exists"} // no term id in the payload
	f.tags = []apiTag{{ID: 7, Name: "Tech"}}
	c := newTestClient(srv)

	id, err := c.CreateTag(context.Background(), " tech ")
	require.NoError(t, err)
	assert.Equal(t, 7, id, "case- and whitespace-insensitive label match")
}

func TestUploadImageMirrorsSource(t *testing.T) {
	f, srv := newFakeWP(t)
	c := newTestClient(srv)

	id, err := c.UploadImage(context.Background(), srv.URL+"/source.jpg")
	require.NoError(t, err)
	assert.Equal(t, 55, id)
	assert.Equal(t, 1, f.mediaCalls)

	url, err := c.ImageURL(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://wp.example/uploads/cover.jpg", url)
}

func TestUploadImageSourceFailure(t *testing.T) {
	_, srv := newFakeWP(t)
	c := newTestClient(srv)

	_, err := c.UploadImage(context.Background(), srv.URL+"/missing.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpload)
}

func TestCreatePostPublishNow(t *testing.T) {
	f, srv := newFakeWP(t)
	f.tags = []apiTag{{ID: 3, Name: "go"}}
	c := newTestClient(srv)

	draft := domain.Draft{
		Title:      "Hello",
		Body:       "Intro <!--more--> Rest",
		CategoryID: 5,
		Tags:       []string{"Go", " go ", "fresh"},
		Image:      srv.URL + "/source.jpg",
	}

	require.NoError(t, c.CreatePost(context.Background(), draft, true))

	require.Len(t, f.posts, 1)
	p := f.posts[0]
	assert.Equal(t, "Hello", p.Title)
	assert.Equal(t, "publish", p.Status)
	assert.Empty(t, p.Date)
	assert.Equal(t, []int{5}, p.Categories)
	assert.Equal(t, 55, p.FeaturedMedia)
	assert.Equal(t, []int{3, 100}, p.Tags, "duplicate labels collapse, new tags are created")
}

func TestCreatePostScheduled(t *testing.T) {
	f, srv := newFakeWP(t)
	c := newTestClient(srv)

	draft := domain.Draft{
		Title:      "Later",
		Body:       "Body",
		CategoryID: 5,
		Image:      srv.URL + "/source.jpg",
		ScheduleAt: "2025-03-01T14:30:00",
	}

	require.NoError(t, c.CreatePost(context.Background(), draft, false))

	require.Len(t, f.posts, 1)
	assert.Equal(t, "future", f.posts[0].Status)
	assert.Equal(t, "2025-03-01T14:30:00", f.posts[0].Date)
}

func TestCreatePostCoverPolicy(t *testing.T) {
	t.Run("required", func(t *testing.T) {
		f, srv := newFakeWP(t)
		c := newTestClient(srv)

		draft := domain.Draft{Title: "x", CategoryID: 1, Image: srv.URL + "/missing.jpg"}
		err := c.CreatePost(context.Background(), draft, true)
		assert.ErrorIs(t, err, ErrUpload)
		assert.Empty(t, f.posts, "no post without a resolvable cover")
	})

	t.Run("optional", func(t *testing.T) {
		f, srv := newFakeWP(t)
		c := newTestClient(srv)
		c.RequireFeaturedImage = false

		draft := domain.Draft{Title: "x", CategoryID: 1, Image: srv.URL + "/missing.jpg"}
		require.NoError(t, c.CreatePost(context.Background(), draft, true))
		require.Len(t, f.posts, 1)
		assert.Zero(t, f.posts[0].FeaturedMedia)
	})
}
