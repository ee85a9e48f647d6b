package readeck

// Bookmark is the subset of Readeck's bookmark info the bot works with.
// Nothing here is persisted locally; it is fetched on demand.
type Bookmark struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Href       string   `json:"href"`
	SiteName   string   `json:"site_name"`
	Labels     []string `json:"labels"`
	IsArchived bool     `json:"is_archived"`
	IsMarked   bool     `json:"is_marked"`
	Loaded     bool     `json:"loaded"`
}

// Link returns the best clickable address for the bookmark.
func (b Bookmark) Link() string {
	if b.URL != "" {
		return b.URL
	}
	return b.Href
}

// DisplayTitle falls back to the URL when the page had no title.
func (b Bookmark) DisplayTitle() string {
	if b.Title != "" {
		return b.Title
	}
	if l := b.Link(); l != "" {
		return l
	}
	return "No Title"
}

type authRequest struct {
	Application string `json:"application"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

type profileResponse struct {
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

type createBookmarkRequest struct {
	URL    string   `json:"url"`
	Title  string   `json:"title,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

type archiveRequest struct {
	IsArchived bool `json:"is_archived"`
}

// ListOptions narrows a bookmark listing. Zero value lists everything.
type ListOptions struct {
	Search     string
	Label      string
	Unarchived bool // only bookmarks not yet archived
	Cap        int  // max items followed across pages; 0 = client default
}
