package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/search"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

// IndexOp is the action carried by an IndexJob.
type IndexOp string

const (
	IndexOpIndex  IndexOp = "index"
	IndexOpDelete IndexOp = "delete"
)

// IndexJob is published to the index queue and applied by the index worker.
type IndexJob struct {
	Op       IndexOp         `json:"op"`
	Document search.Document `json:"document"`
}

// Indexer keeps search documents in sync with entities.
type Indexer interface {
	Index(ctx context.Context, d search.Document) error
	Delete(ctx context.Context, docType search.DocType, id string) error
}

// SearchSources are the repositories Reindex reads from. Nil entries are skipped.
type SearchSources struct {
	Users  repo.UserRepository
	Posts  repo.PostRepository
	Events repo.EventRepository
	Groups repo.GroupRepository
	Homes  repo.HostHomeRepository
}

const reindexBatch = 1000

// SearchService always maintains the in-memory index. When a remote searcher
// is configured it also receives documents, directly or through the queue
// when a publisher is set, and serves queries with memory as the fallback.
type SearchService struct {
	mem    *search.MemoryIndex
	remote search.Searcher
	pub    helpers.Publisher
	logger *logrus.Logger
}

func NewSearchService(mem *search.MemoryIndex, remote search.Searcher, pub helpers.Publisher, logger *logrus.Logger) *SearchService {
	if mem == nil {
		mem = search.NewMemoryIndex()
	}
	return &SearchService{mem: mem, remote: remote, pub: pub, logger: logger}
}

// Memory exposes the local index, e.g. for size stats.
func (s *SearchService) Memory() *search.MemoryIndex { return s.mem }

func (s *SearchService) Index(ctx context.Context, d search.Document) error {
	if err := s.mem.Index(ctx, d); err != nil {
		return err
	}
	s.forward(ctx, IndexJob{Op: IndexOpIndex, Document: d})
	return nil
}

func (s *SearchService) Delete(ctx context.Context, docType search.DocType, id string) error {
	if err := s.mem.Delete(ctx, docType, id); err != nil {
		return err
	}
	s.forward(ctx, IndexJob{Op: IndexOpDelete, Document: search.Document{ID: id, Type: docType}})
	return nil
}

// forward mirrors a change to the remote searcher. Failures are logged only;
// the memory index already holds the change.
func (s *SearchService) forward(ctx context.Context, job IndexJob) {
	if s.remote == nil {
		return
	}
	var err error
	if s.pub != nil {
		err = s.pub.PublishJSON(ctx, job)
	} else {
		err = ApplyIndexJob(ctx, s.remote, job)
	}
	if err != nil && s.logger != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"op": job.Op, "doc": job.Document.Key()}).Warn("remote index update failed")
	}
}

// ApplyIndexJob performs job against target.
func ApplyIndexJob(ctx context.Context, target search.Searcher, job IndexJob) error {
	switch job.Op {
	case IndexOpIndex:
		return target.Index(ctx, job.Document)
	case IndexOpDelete:
		return target.Delete(ctx, job.Document.Type, job.Document.ID)
	default:
		return helpers.Permanent(fmt.Errorf("index job: unknown op %q", job.Op))
	}
}

// DecodeIndexJob parses a queue message body. Malformed bodies are
// permanent failures.
func DecodeIndexJob(body []byte) (IndexJob, error) {
	var job IndexJob
	if err := json.Unmarshal(body, &job); err != nil {
		return job, helpers.Permanent(fmt.Errorf("decode index job: %w", err))
	}
	if job.Document.ID == "" || job.Document.Type == "" {
		return job, helpers.Permanent(errors.New("index job: document id and type are required"))
	}
	return job, nil
}

// Search queries the remote searcher first and falls back to memory on error.
func (s *SearchService) Search(ctx context.Context, q search.Query) (search.Result, error) {
	q = q.Normalize()
	if strings.TrimSpace(q.Text) == "" {
		return search.Result{Hits: []search.Hit{}}, nil
	}
	if s.remote != nil {
		res, err := s.remote.Search(ctx, q)
		if err == nil {
			return res, nil
		}
		if s.logger != nil {
			s.logger.WithError(err).Warn("remote search failed, using memory index")
		}
	}
	return s.mem.Search(ctx, q)
}

func (s *SearchService) Suggest(prefix string, limit int) []string {
	return s.mem.Suggest(prefix, limit)
}

// Reindex rebuilds the memory index from the repositories and returns the
// number of documents indexed. Remote searchers are not touched.
func (s *SearchService) Reindex(ctx context.Context, src SearchSources) (int, error) {
	n := 0
	add := func(d search.Document) error {
		n++
		return s.mem.Index(ctx, d)
	}
	if src.Posts != nil {
		posts, err := src.Posts.ListPublic(ctx, reindexBatch)
		if err != nil {
			return n, fmt.Errorf("reindex posts: %w", err)
		}
		for _, p := range posts {
			if err := add(PostDocument(p)); err != nil {
				return n, err
			}
		}
	}
	if src.Events != nil {
		events, err := src.Events.Upcoming(ctx, time.Now(), "", reindexBatch)
		if err != nil {
			return n, fmt.Errorf("reindex events: %w", err)
		}
		for _, e := range events {
			if err := add(EventDocument(e)); err != nil {
				return n, err
			}
		}
	}
	if src.Groups != nil {
		groups, err := src.Groups.List(ctx, "", reindexBatch)
		if err != nil {
			return n, fmt.Errorf("reindex groups: %w", err)
		}
		for _, g := range groups {
			if err := add(GroupDocument(g)); err != nil {
				return n, err
			}
		}
	}
	if src.Homes != nil {
		homes, err := src.Homes.List(ctx, "", reindexBatch)
		if err != nil {
			return n, fmt.Errorf("reindex homes: %w", err)
		}
		for _, h := range homes {
			if err := add(HomeDocument(h)); err != nil {
				return n, err
			}
		}
	}
	if src.Users != nil {
		users, err := src.Users.List(ctx, reindexBatch)
		if err != nil {
			return n, fmt.Errorf("reindex users: %w", err)
		}
		for _, u := range users {
			if err := add(UserDocument(u)); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func PostDocument(p *entity.Post) search.Document {
	return search.Document{ID: p.ID, Type: search.TypePost, Title: firstLine(p.Content, 80), Body: p.Content, Tags: p.Tags, CreatedAt: p.CreatedAt}
}

func EventDocument(e *entity.Event) search.Document {
	return search.Document{ID: e.ID, Type: search.TypeEvent, Title: e.Title, Body: e.Description + " " + e.Venue, Tags: e.Tags, City: e.City, CreatedAt: e.CreatedAt}
}

func GroupDocument(g *entity.Group) search.Document {
	return search.Document{ID: g.ID, Type: search.TypeGroup, Title: g.Name, Body: g.Description, Tags: g.Tags, City: g.City, CreatedAt: g.CreatedAt}
}

func HomeDocument(h *entity.HostHome) search.Document {
	return search.Document{ID: h.ID, Type: search.TypeHome, Title: h.Title, Body: h.Description + " " + h.Country, City: h.City, CreatedAt: h.CreatedAt}
}

// UserDocument never carries the email address.
func UserDocument(u *entity.User) search.Document {
	return search.Document{ID: u.ID, Type: search.TypeUser, Title: u.Name, Tags: u.Interests, City: u.City, CreatedAt: u.CreatedAt}
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}

var _ Indexer = (*SearchService)(nil)
