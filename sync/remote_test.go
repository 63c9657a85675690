package sync

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"notesync/remote"
)

// fakeRemote is an in-memory stand-in for the remote row store, speaking
// the same table/rpc/storage protocol the client does. Shared by the
// repository, social, and manager tests.
type fakeRemote struct {
	t   *testing.T
	srv *httptest.Server

	mu       gosync.Mutex
	notes    map[string]NoteRow
	likes    []Like
	comments []Comment
	uploads  map[string][]byte

	hits int // table/rpc requests served

	// failNextOp makes the next "{table}/{op}" request return failNextStatus.
	failNextOp     string
	failNextStatus int

	// hookFn runs just before the next "{table}/{op}" request is served,
	// for injecting state changes mid-pass.
	hookOp string
	hookFn func()

	nextCommentID int
}

type wireFilter struct {
	Column string      `json:"column"`
	Value  interface{} `json:"value"`
}

type wireSelect struct {
	Filters []wireFilter `json:"filters"`
	Order   *struct {
		Column     string `json:"column"`
		Descending bool   `json:"descending"`
	} `json:"order"`
	Limit int `json:"limit"`
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()
	f := &fakeRemote{
		t:       t,
		notes:   make(map[string]NoteRow),
		uploads: make(map[string][]byte),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

// client builds a remote client pointed at the fake.
func (f *fakeRemote) client(session remote.SessionProvider) *remote.Client {
	return remote.NewClient(f.srv.URL, "test-api-key", session)
}

// failNext arms a one-shot failure for the given "{table}/{op}" pair.
func (f *fakeRemote) failNext(op string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNextOp = op
	f.failNextStatus = status
}

// hookNext arms a one-shot callback fired just before the given
// "{table}/{op}" request is answered.
func (f *fakeRemote) hookNext(op string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hookOp = op
	f.hookFn = fn
}

func (f *fakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Api-Key") == "" {
		http.Error(w, "missing api key", http.StatusUnauthorized)
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/v1/tables/"):
		f.handleTable(w, r, strings.TrimPrefix(r.URL.Path, "/v1/tables/"))
	case strings.HasPrefix(r.URL.Path, "/v1/rpc/"):
		f.handleRPC(w, r, strings.TrimPrefix(r.URL.Path, "/v1/rpc/"))
	case strings.HasPrefix(r.URL.Path, "/v1/storage/"):
		f.handleStorage(w, r, strings.TrimPrefix(r.URL.Path, "/v1/storage/"))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRemote) handleTable(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	table, op := parts[0], parts[1]

	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++

	if f.hookFn != nil && f.hookOp == table+"/"+op {
		fn := f.hookFn
		f.hookOp, f.hookFn = "", nil
		fn()
	}

	if f.failNextOp == table+"/"+op {
		status := f.failNextStatus
		f.failNextOp, f.failNextStatus = "", 0
		http.Error(w, "injected failure", status)
		return
	}

	body, _ := io.ReadAll(r.Body)

	switch table {
	case "notes":
		f.handleNotes(w, op, body)
	case "likes":
		f.handleLikes(w, op, body)
	case "comments":
		f.handleComments(w, op, body)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRemote) handleNotes(w http.ResponseWriter, op string, body []byte) {
	switch op {
	case "select":
		var req wireSelect
		json.Unmarshal(body, &req)
		var rows []NoteRow
		for _, n := range f.notes {
			if matchNote(n, req.Filters) {
				rows = append(rows, n)
			}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
		if req.Limit > 0 && len(rows) > req.Limit {
			rows = rows[:req.Limit]
		}
		writeRows(w, rows)
	case "insert":
		var row NoteRow
		json.Unmarshal(body, &row)
		if _, exists := f.notes[row.ID]; exists {
			http.Error(w, "duplicate key", http.StatusConflict)
			return
		}
		f.notes[row.ID] = row
		writeRows(w, nil)
	case "update":
		var req struct {
			Filters []wireFilter `json:"filters"`
			Values  NoteRow      `json:"values"`
		}
		json.Unmarshal(body, &req)
		updated := false
		for id, n := range f.notes {
			if matchNote(n, req.Filters) {
				req.Values.ID = id
				f.notes[id] = req.Values
				updated = true
			}
		}
		if !updated {
			http.Error(w, "no rows", http.StatusNotFound)
			return
		}
		writeRows(w, nil)
	case "upsert":
		var row NoteRow
		json.Unmarshal(body, &row)
		f.notes[row.ID] = row
		writeRows(w, nil)
	case "delete":
		var req wireSelect
		json.Unmarshal(body, &req)
		deleted := false
		for id, n := range f.notes {
			if matchNote(n, req.Filters) {
				delete(f.notes, id)
				deleted = true
			}
		}
		if !deleted {
			http.Error(w, "no rows", http.StatusNotFound)
			return
		}
		writeRows(w, nil)
	default:
		http.Error(w, "bad op", http.StatusBadRequest)
	}
}

func (f *fakeRemote) handleLikes(w http.ResponseWriter, op string, body []byte) {
	var req wireSelect
	json.Unmarshal(body, &req)

	match := func(l Like) bool {
		for _, flt := range req.Filters {
			switch flt.Column {
			case "note_id":
				if l.NoteID != flt.Value.(string) {
					return false
				}
			case "user_id":
				if l.UserID != flt.Value.(string) {
					return false
				}
			}
		}
		return true
	}

	switch op {
	case "select":
		var rows []Like
		for _, l := range f.likes {
			if match(l) {
				rows = append(rows, l)
			}
		}
		if req.Limit > 0 && len(rows) > req.Limit {
			rows = rows[:req.Limit]
		}
		writeRows(w, rows)
	case "count":
		count := 0
		for _, l := range f.likes {
			if match(l) {
				count++
			}
		}
		json.NewEncoder(w).Encode(map[string]int{"count": count})
	case "insert":
		var like Like
		json.Unmarshal(body, &like)
		for _, l := range f.likes {
			if l.NoteID == like.NoteID && l.UserID == like.UserID {
				http.Error(w, "duplicate pair", http.StatusConflict)
				return
			}
		}
		f.likes = append(f.likes, like)
		writeRows(w, nil)
	case "delete":
		var kept []Like
		deleted := false
		for _, l := range f.likes {
			if match(l) {
				deleted = true
				continue
			}
			kept = append(kept, l)
		}
		f.likes = kept
		if !deleted {
			http.Error(w, "no rows", http.StatusNotFound)
			return
		}
		writeRows(w, nil)
	default:
		http.Error(w, "bad op", http.StatusBadRequest)
	}
}

func (f *fakeRemote) handleComments(w http.ResponseWriter, op string, body []byte) {
	switch op {
	case "select":
		var req wireSelect
		json.Unmarshal(body, &req)
		var rows []Comment
		for _, c := range f.comments {
			ok := true
			for _, flt := range req.Filters {
				if flt.Column == "note_id" && c.NoteID != flt.Value.(string) {
					ok = false
				}
			}
			if ok {
				rows = append(rows, c)
			}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
		writeRows(w, rows)
	case "insert":
		var c Comment
		json.Unmarshal(body, &c)
		f.nextCommentID++
		c.ID = "comment-" + time.Now().Format("150405") + "-" + string(rune('a'+f.nextCommentID))
		f.comments = append(f.comments, c)
		writeRows(w, nil)
	default:
		http.Error(w, "bad op", http.StatusBadRequest)
	}
}

func (f *fakeRemote) handleRPC(w http.ResponseWriter, r *http.Request, fn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++

	body, _ := io.ReadAll(r.Body)
	var params struct {
		CommentID string `json:"comment_id"`
		AuthorID  string `json:"author_id"`
		Body      string `json:"body"`
	}
	json.Unmarshal(body, &params)

	idx := -1
	for i, c := range f.comments {
		if c.ID == params.CommentID {
			idx = i
		}
	}
	if idx < 0 {
		http.Error(w, "no such comment", http.StatusNotFound)
		return
	}
	if f.comments[idx].AuthorID != params.AuthorID {
		http.Error(w, "not the author", http.StatusForbidden)
		return
	}

	switch fn {
	case "update_comment":
		f.comments[idx].Body = params.Body
		f.comments[idx].UpdatedAt = time.Now()
		writeRows(w, nil)
	case "delete_comment":
		f.comments = append(f.comments[:idx], f.comments[idx+1:]...)
		writeRows(w, nil)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRemote) handleStorage(w http.ResponseWriter, r *http.Request, rest string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, _ := io.ReadAll(r.Body)
	f.uploads[rest] = data

	// Path minus the bucket segment
	parts := strings.SplitN(rest, "/", 2)
	path := rest
	if len(parts) == 2 {
		path = parts[1]
	}
	json.NewEncoder(w).Encode(map[string]string{"path": path})
}

// noteRow returns a copy of a stored mirror row.
func (f *fakeRemote) noteRow(id string) (NoteRow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.notes[id]
	return row, ok
}

// putNoteRow seeds a mirror row directly, bypassing the protocol.
func (f *fakeRemote) putNoteRow(row NoteRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[row.ID] = row
}

func (f *fakeRemote) noteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

func (f *fakeRemote) likeRows() []Like {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Like{}, f.likes...)
}

func (f *fakeRemote) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

func matchNote(n NoteRow, filters []wireFilter) bool {
	for _, flt := range filters {
		switch flt.Column {
		case "id":
			if n.ID != flt.Value.(string) {
				return false
			}
		case "owner_id":
			if n.OwnerID != flt.Value.(string) {
				return false
			}
		}
	}
	return true
}

func writeRows(w http.ResponseWriter, rows interface{}) {
	resp := map[string]interface{}{"rows": rows}
	json.NewEncoder(w).Encode(resp)
}
