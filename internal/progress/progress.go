// Package progress tracks which lessons of a course the learner has visited and
// computes the lesson that follows the current one. It makes no network calls.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/learnhub-client/internal/errs"
	"github.com/and161185/learnhub-client/internal/model"
	"github.com/and161185/learnhub-client/internal/storage"
)

// LessonPrefix is the route prefix of the learning viewer: /learning/{course}/{section}/{content}.
const LessonPrefix = "/learning"

// ComputeNext flattens the course in stored order and returns the entry after cur.
// The last entry yields IsFinished with a nil Position. cur must name this course, and
// its content must sit in its section; otherwise ErrPositionNotFound is returned.
func ComputeNext(course model.Course, cur model.Position) (model.Next, error) {
	if cur.CourseID != course.ID {
		return model.Next{}, fmt.Errorf("%w: course %d is not %d", errs.ErrPositionNotFound, cur.CourseID, course.ID)
	}
	found := false
	for _, sec := range course.Sections {
		for _, c := range sec.Contents {
			if found {
				return model.Next{Position: &model.Position{CourseID: course.ID, SectionID: sec.ID, ContentID: c.ID}}, nil
			}
			if sec.ID == cur.SectionID && c.ID == cur.ContentID {
				found = true
			}
		}
	}
	if !found {
		return model.Next{}, fmt.Errorf("%w: content %d in section %d of course %d",
			errs.ErrPositionNotFound, cur.ContentID, cur.SectionID, course.ID)
	}
	return model.Next{IsFinished: true}, nil
}

// Locate returns the full position of contentID within course.
func Locate(course model.Course, contentID int64) (model.Position, error) {
	for _, sec := range course.Sections {
		for _, c := range sec.Contents {
			if c.ID == contentID {
				return model.Position{CourseID: course.ID, SectionID: sec.ID, ContentID: c.ID}, nil
			}
		}
	}
	return model.Position{}, fmt.Errorf("%w: content %d in course %d", errs.ErrPositionNotFound, contentID, course.ID)
}

// First returns the first lesson of course, or false for a course without contents.
func First(course model.Course) (model.Position, bool) {
	for _, sec := range course.Sections {
		if len(sec.Contents) > 0 {
			return model.Position{CourseID: course.ID, SectionID: sec.ID, ContentID: sec.Contents[0].ID}, true
		}
	}
	return model.Position{}, false
}

// LessonPath renders the viewer route of p.
func LessonPath(p model.Position) string {
	return fmt.Sprintf("%s/%d/%d/%d", LessonPrefix, p.CourseID, p.SectionID, p.ContentID)
}

// PositionFromPath derives the lesson position from a viewer route.
func PositionFromPath(path string) (model.Position, error) {
	rest, ok := strings.CutPrefix(strings.TrimRight(path, "/"), LessonPrefix+"/")
	if !ok {
		return model.Position{}, fmt.Errorf("%w: %q is not a lesson route", errs.ErrInvalidInput, path)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return model.Position{}, fmt.Errorf("%w: %q is not a lesson route", errs.ErrInvalidInput, path)
	}
	var ids [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n <= 0 {
			return model.Position{}, fmt.Errorf("%w: bad id %q in %q", errs.ErrInvalidInput, p, path)
		}
		ids[i] = n
	}
	return model.Position{CourseID: ids[0], SectionID: ids[1], ContentID: ids[2]}, nil
}

// Tracker keeps one completed-content set per course in storage.
type Tracker struct {
	st  storage.Storage
	log *zap.Logger
	mu  sync.Mutex
}

// New constructs a tracker; a nil logger means no logging.
func New(st storage.Storage, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{st: st, log: log}
}

func (t *Tracker) load(ctx context.Context, courseID int64) ([]int64, error) {
	b, err := t.st.Get(ctx, storage.CompletedKey(courseID))
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read completed contents: %w", err)
	}
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		t.log.Warn("discard unreadable completed contents", zap.Int64("course_id", courseID), zap.Error(err))
		return nil, nil
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// MarkVisited adds contentID to the course's set. Marking twice is a no-op.
func (t *Tracker) MarkVisited(ctx context.Context, courseID, contentID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids, err := t.load(ctx, courseID)
	if err != nil {
		return err
	}
	i, ok := slices.BinarySearch(ids, contentID)
	if ok {
		return nil
	}
	ids = slices.Insert(ids, i, contentID)
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := t.st.Set(ctx, storage.CompletedKey(courseID), b); err != nil {
		return fmt.Errorf("save completed contents: %w", err)
	}
	return nil
}

// IsCompleted reports whether contentID was visited.
func (t *Tracker) IsCompleted(ctx context.Context, courseID, contentID int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids, err := t.load(ctx, courseID)
	if err != nil {
		return false, err
	}
	_, ok := slices.BinarySearch(ids, contentID)
	return ok, nil
}

// Completed returns the visited content ids of a course in ascending order.
func (t *Tracker) Completed(ctx context.Context, courseID int64) ([]int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx, courseID)
}

// Progress counts visited contents that are still part of course.
func (t *Tracker) Progress(ctx context.Context, course model.Course) (done, total int, err error) {
	ids, err := t.Completed(ctx, course.ID)
	if err != nil {
		return 0, 0, err
	}
	for _, sec := range course.Sections {
		for _, c := range sec.Contents {
			total++
			if _, ok := slices.BinarySearch(ids, c.ID); ok {
				done++
			}
		}
	}
	return done, total, nil
}

// Reset forgets every visited content of a course.
func (t *Tracker) Reset(ctx context.Context, courseID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.st.Delete(ctx, storage.CompletedKey(courseID)); err != nil {
		return fmt.Errorf("reset completed contents: %w", err)
	}
	return nil
}

// Advance marks cur as visited and returns the following lesson.
// Nothing is marked when cur is not part of course.
func (t *Tracker) Advance(ctx context.Context, course model.Course, cur model.Position) (model.Next, error) {
	next, err := ComputeNext(course, cur)
	if err != nil {
		return model.Next{}, err
	}
	if err := t.MarkVisited(ctx, course.ID, cur.ContentID); err != nil {
		return model.Next{}, err
	}
	return next, nil
}
