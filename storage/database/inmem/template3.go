package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/template3"
)

type template3Repository struct {
	db *DB
}

var _ template3.Repository = (*template3Repository)(nil) // interface compliance check

func NewTemplate3Repository(db *DB) *template3Repository {
	return &template3Repository{db: db}
}

// sameKey mirrors the template3 unique indexes.
func sameKey(a, b template3.Template3) bool {
	return a.Key() == b.Key()
}

func (repo *template3Repository) CreateTemplate3(_ context.Context, t template3.Template3) (template3.Template3, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.template3 {
		if sameKey(existing, t) {
			return template3.Template3{}, template3.ErrExists
		}
	}
	t.ID = repo.db.nextID("template3")
	t.Course, t.OldCampus = nil, nil
	repo.db.template3[t.ID] = t
	return t, nil
}

func (repo *template3Repository) QueryTemplate3(_ context.Context, filter template3.QueryFilter) ([]template3.Template3, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ts := make([]template3.Template3, 0)
	for _, t := range repo.db.template3 {
		if filter.OldCampusID != 0 && (t.OldCampusID == nil || *t.OldCampusID != filter.OldCampusID) {
			continue
		}
		if filter.OldCampusName != "" && !strings.EqualFold(t.OldCampusName, filter.OldCampusName) {
			continue
		}
		if filter.OldProgrammeName != "" && !strings.EqualFold(t.OldProgrammeName, filter.OldProgrammeName) {
			continue
		}
		if filter.ProgramIDs != nil || filter.ProgramID != 0 {
			if !core.IntsContain(filter.ProgramIDs, t.ProgramID) && t.ProgramID != filter.ProgramID {
				continue
			}
		}
		if filter.CourseID != 0 && t.CourseID != filter.CourseID {
			continue
		}
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID > ts[j].ID })
	return ts, nil
}
