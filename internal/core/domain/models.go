package domain

// Draft is the in-progress post a user assembles across conversation turns.
// Exactly one draft exists per user id; it is deleted when the conversation
// terminates.
type Draft struct {
	Title      string
	Body       string
	CategoryID int
	Tags       []string

	// Image is the source URL the cover photo can be fetched from (the chat
	// platform's file URL). MirrorURL is the public URL on the CMS after the
	// image has been mirrored there; empty if mirroring failed.
	Image     string
	MirrorURL string

	// ScheduleDate / ScheduleTime are the raw validated inputs ("2006-01-02",
	// "15:04"); ScheduleAt is the combined naive timestamp submitted to the
	// CMS ("2006-01-02T15:04:05").
	ScheduleDate string
	ScheduleTime string
	ScheduleAt   string

	// PreviewShown makes the preview step idempotent under duplicate events.
	PreviewShown bool
}

// Empty reports whether the draft carries no collected data yet.
func (d Draft) Empty() bool {
	return d.Title == "" && d.Body == "" && d.CategoryID == 0 &&
		len(d.Tags) == 0 && d.Image == ""
}

// Category is one node of the two-level category tree exposed by the CMS.
type Category struct {
	ID       int
	Name     string
	Children []Category
}

// FindCategory resolves an id against a two-level tree, searching top-level
// entries first and then their children. The boolean is false when the id is
// not present.
func FindCategory(tree []Category, id int) (Category, bool) {
	for _, c := range tree {
		if c.ID == id {
			return c, true
		}
		for _, child := range c.Children {
			if child.ID == id {
				return child, true
			}
		}
	}
	return Category{}, false
}
