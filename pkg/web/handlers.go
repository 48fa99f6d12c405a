package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/testsabirweb/chat_archive/pkg/models"
	"github.com/testsabirweb/chat_archive/pkg/store"
)

const (
	defaultPerPage   = 50
	defaultAPILimit  = 100
	searchResultCap  = 100
	searchSnippetLen = 300
	topAuthorCount   = 10
)

// dashboardData is the view model for the statistics page
type dashboardData struct {
	TotalMessages   int
	UniqueAuthors   int
	AttachmentCount int
	DateStart       string
	DateEnd         string
	TopAuthors      []store.AuthorCount
}

// groupView is one rendered display group
type groupView struct {
	AuthorDisplay string
	Time          string
	Messages      []messageView
}

// messageView is one rendered message inside a group
type messageView struct {
	Content            string
	Time               string
	HasAttachment      bool
	AttachmentFilename string
	AttachmentURL      string
}

// messagesData is the view model for the paginated transcript
type messagesData struct {
	Page     int
	PerPage  int
	PrevPage int
	NextPage int
	Groups   []groupView
}

// searchRowView is one row in the search results table
type searchRowView struct {
	Timestamp string
	Author    string
	Content   string
}

// searchData is the view model for the search page
type searchData struct {
	Query   string
	Author  string
	Total   int
	Results []searchRowView
}

// requireData lazily loads the store, writing a plain-text error response
// when no data is available. Every view degrades the same way until the
// consolidate command has been run.
func (s *Server) requireData(w http.ResponseWriter) bool {
	ok, err := s.store.Load()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load chat data")
		http.Error(w, "failed to load chat data", http.StatusInternalServerError)
		return false
	}
	if !ok {
		http.Error(w, store.ErrNoData.Error(), http.StatusServiceUnavailable)
		return false
	}
	return true
}

// handleDashboard renders the statistics page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !s.requireData(w) {
		return
	}

	data := dashboardData{
		TotalMessages:   s.store.Count(),
		UniqueAuthors:   len(s.store.AuthorCounts()),
		AttachmentCount: s.store.AttachmentCount(),
		TopAuthors:      s.store.TopAuthors(topAuthorCount),
	}
	if oldest, newest, ok := s.store.TimeRange(); ok {
		data.DateStart = oldest.Format("2006-01-02")
		data.DateEnd = newest.Format("2006-01-02")
	}

	s.render(w, "dashboard.html", data)
}

// handleMessages renders the paginated transcript. Grouping is applied to
// the requested page window only; a page beyond the end of the data yields
// an empty transcript with still-valid pagination links.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if !s.requireData(w) {
		return
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(r, "per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}

	groups := BuildGroups(s.store.Page(page, perPage))

	data := messagesData{
		Page:     page,
		PerPage:  perPage,
		PrevPage: max(1, page-1),
		NextPage: page + 1,
		Groups:   make([]groupView, 0, len(groups)),
	}
	for _, g := range groups {
		gv := groupView{
			AuthorDisplay: g.AuthorDisplay,
			Time:          g.FirstTimestamp.Format("2006-01-02 15:04"),
			Messages:      make([]messageView, 0, len(g.Messages)),
		}
		for _, m := range g.Messages {
			gv.Messages = append(gv.Messages, messageView{
				Content:            m.Content,
				Time:               m.Timestamp.Format("15:04"),
				HasAttachment:      m.HasAttachment,
				AttachmentFilename: m.AttachmentFilename,
				AttachmentURL:      m.AttachmentURL,
			})
		}
		data.Groups = append(data.Groups, gv)
	}

	s.render(w, "messages.html", data)
}

// handleSearch renders the search form and results table. Both filters are
// optional; an empty parameter imposes no constraint on that field.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireData(w) {
		return
	}

	query := r.URL.Query().Get("q")
	author := r.URL.Query().Get("author")

	results, total := s.store.Search(query, author, searchResultCap)

	data := searchData{
		Query:   query,
		Author:  author,
		Total:   total,
		Results: make([]searchRowView, 0, len(results)),
	}
	for _, msg := range results {
		data.Results = append(data.Results, searchRowView{
			Timestamp: msg.Timestamp.Format("2006-01-02 15:04:05"),
			Author:    msg.AuthorUsername,
			Content:   truncate(msg.Content, searchSnippetLen),
		})
	}

	s.render(w, "search.html", data)
}

// apiMessagesResponse is the JSON envelope for the raw message window
type apiMessagesResponse struct {
	Messages []models.Message `json:"messages"`
	Total    int              `json:"total"`
	Offset   int              `json:"offset"`
	Limit    int              `json:"limit"`
}

// handleAPIMessages returns a raw window of the table as JSON. No
// filtering is available on this path.
func (s *Server) handleAPIMessages(w http.ResponseWriter, r *http.Request) {
	if !s.requireData(w) {
		return
	}

	limit := queryInt(r, "limit", defaultAPILimit)
	if limit < 1 {
		limit = defaultAPILimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	response := apiMessagesResponse{
		Messages: s.store.Slice(offset, limit),
		Total:    s.store.Count(),
		Offset:   offset,
		Limit:    limit,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode API response")
	}
}

// render executes a template into a buffer first so a rendering failure
// can still produce a clean error response
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("failed to render template")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w) //nolint:errcheck // Client disconnects are not actionable
}

// queryInt reads an integer query parameter, falling back to def when the
// parameter is absent or not an integer
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
