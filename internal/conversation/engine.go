package conversation

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/els777/TGtoWP/internal/core/domain"
	"github.com/els777/TGtoWP/internal/core/ports"
)

const previewBodyLimit = 100

// Engine drives the multi-turn collection dialogue. It is a transition
// function over (state, event): every call reads the stored draft, mutates
// it, and answers with the next state plus the replies to send. Remote and
// storage failures never escape as errors; they become user-visible replies.
type Engine struct {
	store        ports.SessionStore
	cms          ports.Publisher
	allowed      map[int64]struct{}
	markdownBody bool
	log          zerolog.Logger
}

func New(store ports.SessionStore, cms ports.Publisher, allowedUsers []int64, markdownBody bool, log zerolog.Logger) *Engine {
	allowed := make(map[int64]struct{}, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = struct{}{}
	}
	return &Engine{
		store:        store,
		cms:          cms,
		allowed:      allowed,
		markdownBody: markdownBody,
		log:          log,
	}
}

// Handle advances one user's conversation by one event.
func (e *Engine) Handle(ctx context.Context, state State, ev Event) (State, []Reply) {
	if isCancel(ev) {
		return e.cancel(ctx, ev)
	}

	switch state {
	case StateIdle:
		return e.handleStart(ctx, ev)
	case StateTitle:
		return e.handleTitle(ctx, ev)
	case StateBody:
		return e.handleBody(ctx, ev)
	case StateCategory:
		return e.handleCategory(ctx, ev)
	case StateTags:
		return e.handleTags(ctx, ev)
	case StateImage:
		return e.handleImage(ctx, ev)
	case StatePreview, StatePublish:
		return e.handlePublishChoice(ctx, state, ev)
	case StateScheduleDate:
		return e.handleScheduleDate(ctx, ev)
	case StateScheduleTime:
		return e.handleScheduleTime(ctx, ev)
	}
	return state, nil
}

func isCancel(ev Event) bool {
	return (ev.Kind == EventCommand && ev.Text == "cancel") ||
		(ev.Kind == EventCallback && ev.Data == callbackCancel)
}

func (e *Engine) cancel(ctx context.Context, ev Event) (State, []Reply) {
	if err := e.store.Delete(ctx, ev.UserID); err != nil {
		e.log.Error().Err(err).Int64("user", ev.UserID).Msg("failed to delete session on cancel")
	}
	return StateIdle, []Reply{{Text: "Publication cancelled."}}
}

func (e *Engine) handleStart(ctx context.Context, ev Event) (State, []Reply) {
	if ev.Kind != EventCommand || (ev.Text != "start" && ev.Text != "post") {
		return StateIdle, nil
	}
	if _, ok := e.allowed[ev.UserID]; !ok {
		e.log.Warn().Int64("user", ev.UserID).Msg("unauthorized start attempt")
		return StateIdle, []Reply{{Text: "You are not allowed to publish."}}
	}
	return StateTitle, []Reply{{
		Text:    "Send the post title:",
		Buttons: [][]Button{{{Label: "Cancel", Data: callbackCancel}}},
	}}
}

func (e *Engine) handleTitle(ctx context.Context, ev Event) (State, []Reply) {
	if ev.Kind != EventText {
		return StateTitle, nil
	}
	draft := e.load(ctx, ev.UserID)
	draft.Title = ev.Text
	if reply, ok := e.save(ctx, ev.UserID, draft); !ok {
		return StateTitle, reply
	}
	return StateBody, []Reply{{Text: "*Now send the post body:*", Markdown: true}}
}

func (e *Engine) handleBody(ctx context.Context, ev Event) (State, []Reply) {
	if ev.Kind != EventText {
		return StateBody, nil
	}

	body := ev.HTML
	if body == "" {
		body = ev.Text
	}
	body = ReplaceMoreMarkers(body)
	if ev.HTML == "" && e.markdownBody {
		rendered, err := RenderMarkdown(body)
		if err != nil {
			e.log.Warn().Err(err).Msg("markdown rendering failed, keeping plain text")
		} else {
			body = rendered
		}
	}

	draft := e.load(ctx, ev.UserID)
	draft.Body = body
	if reply, ok := e.save(ctx, ev.UserID, draft); !ok {
		return StateBody, reply
	}

	tree, err := e.cms.Categories(ctx)
	if err != nil || len(tree) == 0 {
		e.log.Error().Err(err).Msg("category tree fetch failed")
		// The draft stays; the user can restart and it reloads.
		return StateIdle, []Reply{{Text: "Failed to load categories. Try again later."}}
	}

	return StateCategory, []Reply{{
		Text:     "*Choose a category:*",
		Markdown: true,
		Buttons:  categoryKeyboard(tree),
	}}
}

func categoryKeyboard(tree []domain.Category) [][]Button {
	var rows [][]Button
	for _, cat := range tree {
		rows = append(rows, []Button{{Label: cat.Name, Data: strconv.Itoa(cat.ID)}})
		for _, child := range cat.Children {
			rows = append(rows, []Button{{Label: "˪ " + child.Name, Data: strconv.Itoa(child.ID)}})
		}
	}
	return rows
}

func (e *Engine) handleCategory(ctx context.Context, ev Event) (State, []Reply) {
	if ev.Kind != EventCallback {
		return StateCategory, nil
	}

	id, convErr := strconv.Atoi(ev.Data)
	tree, err := e.cms.Categories(ctx)
	if convErr != nil || err != nil {
		return e.finish(ctx, ev.UserID, "Could not resolve that category.")
	}
	cat, ok := domain.FindCategory(tree, id)
	if !ok {
		return e.finish(ctx, ev.UserID, "Could not resolve that category.")
	}

	draft := e.load(ctx, ev.UserID)
	draft.CategoryID = cat.ID
	if reply, ok := e.save(ctx, ev.UserID, draft); !ok {
		return StateCategory, reply
	}

	return StateTags, []Reply{{
		Text:     "*Category:* " + cat.Name + "\n\n*Send tags (comma-separated) or press Skip:*",
		Markdown: true,
		Buttons:  [][]Button{{{Label: "Skip", Data: callbackSkip}}},
	}}
}

func (e *Engine) handleTags(ctx context.Context, ev Event) (State, []Reply) {
	draft := e.load(ctx, ev.UserID)

	switch {
	case ev.Kind == EventCallback && ev.Data == callbackSkip:
		draft.Tags = nil
		if reply, ok := e.save(ctx, ev.UserID, draft); !ok {
			return StateTags, reply
		}
		return StateImage, []Reply{{Text: "*Send a photo for the cover:*", Markdown: true}}

	case ev.Kind == EventText:
		var tags []string
		for _, t := range strings.Split(ev.Text, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		draft.Tags = tags
		if reply, ok := e.save(ctx, ev.UserID, draft); !ok {
			return StateTags, reply
		}
		return StateImage, []Reply{{
			Text:     "*Tags:* " + strings.Join(tags, ", ") + "\n\n*Send a photo for the cover:*",
			Markdown: true,
		}}
	}
	return StateTags, nil
}

func (e *Engine) handleImage(ctx context.Context, ev Event) (State, []Reply) {
	if ev.Kind != EventPhoto || ev.PhotoURL == "" {
		return StateImage, []Reply{{Text: "Please send a photo."}}
	}

	draft := e.load(ctx, ev.UserID)
	draft.Image = ev.PhotoURL

	// Mirror the cover to the CMS right away so the preview can show the
	// public URL. Failures degrade: the draft keeps the source reference.
	if mediaID, err := e.cms.UploadImage(ctx, ev.PhotoURL); err != nil {
		e.log.Warn().Err(err).Msg("cover mirror failed")
	} else if url, err := e.cms.ImageURL(ctx, mediaID); err != nil {
		e.log.Warn().Err(err).Int("media", mediaID).Msg("mirrored cover URL lookup failed")
	} else {
		draft.MirrorURL = url
	}

	if reply, ok := e.save(ctx, ev.UserID, draft); !ok {
		return StateImage, reply
	}

	return StatePreview, e.renderPreview(ctx, ev.UserID)
}

// renderPreview sends the assembled draft back to the user with the publish
// actions. Guarded by PreviewShown so a duplicate event does not resend it.
func (e *Engine) renderPreview(ctx context.Context, userID int64) []Reply {
	draft := e.load(ctx, userID)
	if draft.PreviewShown {
		return nil
	}

	body := []rune(draft.Body)
	if len(body) > previewBodyLimit {
		body = body[:previewBodyLimit]
	}

	tags := strings.Join(draft.Tags, ", ")
	if tags == "" {
		tags = "no tags"
	}

	text := "*Title:* " + draft.Title + "\n\n" +
		string(body) + "...\n\n" +
		"*Category:* " + e.categoryName(ctx, draft.CategoryID) + "\n" +
		"*Tags:* " + tags

	reply := Reply{
		Text:     text,
		PhotoURL: draft.MirrorURL,
		Markdown: true,
		Buttons: [][]Button{
			{{Label: "Publish now", Data: callbackPublishNow}},
			{{Label: "Schedule", Data: callbackSchedule}},
			{{Label: "Cancel", Data: callbackCancel}},
		},
	}

	draft.PreviewShown = true
	if err := e.store.Save(ctx, userID, draft); err != nil {
		e.log.Error().Err(err).Int64("user", userID).Msg("failed to mark preview shown")
	}
	return []Reply{reply}
}

func (e *Engine) categoryName(ctx context.Context, id int) string {
	tree, err := e.cms.Categories(ctx)
	if err != nil {
		return "unknown"
	}
	if cat, ok := domain.FindCategory(tree, id); ok {
		return cat.Name
	}
	return "unknown"
}

func (e *Engine) handlePublishChoice(ctx context.Context, state State, ev Event) (State, []Reply) {
	if ev.Kind != EventCallback {
		return state, nil
	}

	draft := e.load(ctx, ev.UserID)
	if !draft.PreviewShown {
		return StatePublish, e.renderPreview(ctx, ev.UserID)
	}

	switch ev.Data {
	case callbackPublishNow:
		text := "Post published!"
		if err := e.cms.CreatePost(ctx, draft, true); err != nil {
			e.log.Error().Err(err).Int64("user", ev.UserID).Msg("publish failed")
			text = "Failed to publish the post."
		}
		return e.finish(ctx, ev.UserID, text)

	case callbackSchedule:
		return StateScheduleDate, []Reply{{Text: "Send the publish date (YYYY-MM-DD):"}}
	}
	return state, nil
}

func (e *Engine) handleScheduleDate(ctx context.Context, ev Event) (State, []Reply) {
	if ev.Kind != EventText {
		return StateScheduleDate, nil
	}
	if _, err := time.Parse("2006-01-02", ev.Text); err != nil {
		return StateScheduleDate, []Reply{{Text: "Invalid date format. Send the date as YYYY-MM-DD:"}}
	}

	draft := e.load(ctx, ev.UserID)
	draft.ScheduleDate = ev.Text
	if reply, ok := e.save(ctx, ev.UserID, draft); !ok {
		return StateScheduleDate, reply
	}
	return StateScheduleTime, []Reply{{Text: "Send the publish time (HH:MM):"}}
}

func (e *Engine) handleScheduleTime(ctx context.Context, ev Event) (State, []Reply) {
	if ev.Kind != EventText {
		return StateScheduleTime, nil
	}
	if _, err := time.Parse("15:04", ev.Text); err != nil {
		return StateScheduleTime, []Reply{{Text: "Invalid time format. Send the time as HH:MM:"}}
	}

	draft := e.load(ctx, ev.UserID)
	if draft.ScheduleDate == "" {
		// State machine violation; bail out instead of submitting garbage.
		return e.finish(ctx, ev.UserID, "The publish date was lost. Please start over with /start.")
	}

	draft.ScheduleTime = ev.Text
	draft.ScheduleAt = draft.ScheduleDate + "T" + ev.Text + ":00"
	if reply, ok := e.save(ctx, ev.UserID, draft); !ok {
		return StateScheduleTime, reply
	}

	text := "Post scheduled!"
	if err := e.cms.CreatePost(ctx, draft, false); err != nil {
		e.log.Error().Err(err).Int64("user", ev.UserID).Msg("scheduled publish failed")
		text = "Failed to schedule the post."
	}
	return e.finish(ctx, ev.UserID, text)
}

// finish reports the outcome, clears the session and returns to idle.
func (e *Engine) finish(ctx context.Context, userID int64, text string) (State, []Reply) {
	if err := e.store.Delete(ctx, userID); err != nil {
		e.log.Error().Err(err).Int64("user", userID).Msg("failed to delete session")
	}
	return StateIdle, []Reply{{Text: text}}
}

func (e *Engine) load(ctx context.Context, userID int64) domain.Draft {
	draft, _, err := e.store.Load(ctx, userID)
	if err != nil {
		e.log.Error().Err(err).Int64("user", userID).Msg("failed to load session")
	}
	return draft
}

// save persists the draft; on failure it reports the step as failed so the
// user can resend the same input.
func (e *Engine) save(ctx context.Context, userID int64, draft domain.Draft) ([]Reply, bool) {
	if err := e.store.Save(ctx, userID, draft); err != nil {
		e.log.Error().Err(err).Int64("user", userID).Msg("failed to save session")
		return []Reply{{Text: "Something went wrong saving your draft. Please resend that."}}, false
	}
	return nil, true
}
