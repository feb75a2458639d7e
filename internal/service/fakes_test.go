package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

func int64Ptr(v int64) *int64 {
	return &v
}

// --- transactions ---

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (p *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

// --- skills ---

type skillRepoFake struct {
	skills    []models.Skill
	nextID    int64
	deleteErr error
}

func newSkillRepoFake(skills ...models.Skill) *skillRepoFake {
	repo := &skillRepoFake{nextID: 100}
	repo.skills = append(repo.skills, skills...)
	return repo
}

func (r *skillRepoFake) List(ctx context.Context, exec sqlx.ExtContext) ([]models.Skill, error) {
	out := append([]models.Skill(nil), r.skills...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *skillRepoFake) FindByID(ctx context.Context, id int64) (*models.Skill, error) {
	for _, skill := range r.skills {
		if skill.ID == id {
			found := skill
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *skillRepoFake) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.Skill, error) {
	var out []models.Skill
	for _, id := range ids {
		if skill, err := r.FindByID(ctx, id); err == nil {
			out = append(out, *skill)
		}
	}
	return out, nil
}

func (r *skillRepoFake) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	for _, skill := range r.skills {
		if skill.ID != excludeID && strings.EqualFold(strings.TrimSpace(skill.Name), strings.TrimSpace(name)) {
			return true, nil
		}
	}
	return false, nil
}

func (r *skillRepoFake) Create(ctx context.Context, exec sqlx.ExtContext, skill *models.Skill) error {
	r.nextID++
	skill.ID = r.nextID
	r.skills = append(r.skills, *skill)
	return nil
}

func (r *skillRepoFake) Update(ctx context.Context, skill *models.Skill) error {
	for i := range r.skills {
		if r.skills[i].ID == skill.ID {
			r.skills[i].Name = skill.Name
		}
	}
	return nil
}

func (r *skillRepoFake) Delete(ctx context.Context, id int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for i := range r.skills {
		if r.skills[i].ID == id {
			r.skills = append(r.skills[:i], r.skills[i+1:]...)
			return nil
		}
	}
	return nil
}

// --- teachers ---

type teacherRepoFake struct {
	teachers []models.Teacher
	skills   *skillRepoFake
	nextID   int64
}

func newTeacherRepoFake(skills *skillRepoFake, teachers ...models.Teacher) *teacherRepoFake {
	repo := &teacherRepoFake{skills: skills, nextID: 200}
	repo.teachers = append(repo.teachers, teachers...)
	return repo
}

func (r *teacherRepoFake) List(ctx context.Context, exec sqlx.ExtContext) ([]models.Teacher, error) {
	out := append([]models.Teacher(nil), r.teachers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *teacherRepoFake) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Teacher, error) {
	for _, teacher := range r.teachers {
		if teacher.ID == id {
			found := teacher
			found.Skills = append([]models.Skill(nil), teacher.Skills...)
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *teacherRepoFake) Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	r.nextID++
	teacher.ID = r.nextID
	r.teachers = append(r.teachers, models.Teacher{ID: teacher.ID, Name: teacher.Name, FreeSlots: teacher.FreeSlots})
	return nil
}

func (r *teacherRepoFake) Update(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	for i := range r.teachers {
		if r.teachers[i].ID == teacher.ID {
			r.teachers[i].Name = teacher.Name
			r.teachers[i].FreeSlots = teacher.FreeSlots
		}
	}
	return nil
}

func (r *teacherRepoFake) ReplaceSkills(ctx context.Context, exec sqlx.ExtContext, teacherID int64, skillIDs []int64) error {
	for i := range r.teachers {
		if r.teachers[i].ID != teacherID {
			continue
		}
		r.teachers[i].Skills = nil
		for _, id := range skillIDs {
			skill, err := r.skills.FindByID(ctx, id)
			if err != nil {
				return err
			}
			r.teachers[i].Skills = append(r.teachers[i].Skills, *skill)
		}
	}
	return nil
}

func (r *teacherRepoFake) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	for i := range r.teachers {
		if r.teachers[i].ID == id {
			r.teachers = append(r.teachers[:i], r.teachers[i+1:]...)
			return nil
		}
	}
	return nil
}

// --- sessions ---

type sessionRepoFake struct {
	sessions []models.Session
	nextID   int64
	locks    int
}

func newSessionRepoFake(sessions ...models.Session) *sessionRepoFake {
	repo := &sessionRepoFake{nextID: 1000}
	for _, s := range sessions {
		repo.sessions = append(repo.sessions, copySession(s))
	}
	return repo
}

func copySession(s models.Session) models.Session {
	if s.TeacherID != nil {
		s.TeacherID = int64Ptr(*s.TeacherID)
	}
	return s
}

func (r *sessionRepoFake) find(id int64) *models.Session {
	for i := range r.sessions {
		if r.sessions[i].ID == id {
			return &r.sessions[i]
		}
	}
	return nil
}

func (r *sessionRepoFake) ordered(filter func(models.Session) bool) []models.Session {
	var out []models.Session
	for _, s := range r.sessions {
		if filter(s) {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *sessionRepoFake) LockGrid(ctx context.Context, exec sqlx.ExtContext) error {
	r.locks++
	return nil
}

func (r *sessionRepoFake) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error) {
	return r.ordered(func(models.Session) bool { return true }), nil
}

func (r *sessionRepoFake) ListGrid(ctx context.Context, exec sqlx.ExtContext) ([]models.Session, error) {
	return r.ordered(timetable.OnGrid), nil
}

func (r *sessionRepoFake) CountGrid(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	return len(r.ordered(timetable.OnGrid)), nil
}

func (r *sessionRepoFake) CountBySkill(ctx context.Context, skillID int64) (int, error) {
	return len(r.ordered(func(s models.Session) bool { return s.RequiredSkillID == skillID })), nil
}

func (r *sessionRepoFake) ListByCell(ctx context.Context, exec sqlx.ExtContext, day, slot, yearGroup string) ([]models.Session, error) {
	return r.ordered(func(s models.Session) bool {
		return s.Day == day && s.Slot == slot && s.YearGroup == yearGroup
	}), nil
}

func (r *sessionRepoFake) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	r.nextID++
	session.ID = r.nextID
	r.sessions = append(r.sessions, copySession(*session))
	return nil
}

func (r *sessionRepoFake) Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if stored := r.find(session.ID); stored != nil {
		stored.RequiredSkillID = session.RequiredSkillID
		stored.TeacherID = copySession(*session).TeacherID
	}
	return nil
}

func (r *sessionRepoFake) SetTeacher(ctx context.Context, exec sqlx.ExtContext, id int64, teacherID *int64) error {
	if stored := r.find(id); stored != nil {
		stored.TeacherID = nil
		if teacherID != nil {
			stored.TeacherID = int64Ptr(*teacherID)
		}
	}
	return nil
}

func (r *sessionRepoFake) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) (int64, error) {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := r.sessions[:0]
	var deleted int64
	for _, s := range r.sessions {
		if _, ok := drop[s.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	r.sessions = kept
	return deleted, nil
}

func (r *sessionRepoFake) TeacherBusy(ctx context.Context, exec sqlx.ExtContext, day, slot string, teacherID, excludeSessionID int64) (bool, error) {
	for _, s := range r.sessions {
		if s.Day == day && s.Slot == slot && s.ID != excludeSessionID && s.TeacherID != nil && *s.TeacherID == teacherID {
			return true, nil
		}
	}
	return false, nil
}

func (r *sessionRepoFake) ReleaseTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID int64) (int64, error) {
	var released int64
	for i := range r.sessions {
		if r.sessions[i].TeacherID != nil && *r.sessions[i].TeacherID == teacherID {
			r.sessions[i].TeacherID = nil
			released++
		}
	}
	return released, nil
}

func (r *sessionRepoFake) ClearGridAssignments(ctx context.Context, exec sqlx.ExtContext) error {
	for i := range r.sessions {
		if timetable.OnGrid(r.sessions[i]) {
			r.sessions[i].TeacherID = nil
		}
	}
	return nil
}

func (r *sessionRepoFake) MigrateLegacyYearGroups(ctx context.Context, exec sqlx.ExtContext, mapping map[string]string) (int64, error) {
	var migrated int64
	for i := range r.sessions {
		if label, ok := mapping[r.sessions[i].YearGroup]; ok {
			r.sessions[i].YearGroup = label
			migrated++
		}
	}
	return migrated, nil
}

// --- allocation runs ---

type runRepoFake struct {
	runs map[string]models.AllocationRun
}

func newRunRepoFake() *runRepoFake {
	return &runRepoFake{runs: make(map[string]models.AllocationRun)}
}

func (r *runRepoFake) Create(ctx context.Context, exec sqlx.ExtContext, run *models.AllocationRun) error {
	r.runs[run.ID] = *run
	return nil
}

func (r *runRepoFake) Update(ctx context.Context, exec sqlx.ExtContext, run *models.AllocationRun) error {
	r.runs[run.ID] = *run
	return nil
}

func (r *runRepoFake) FindByID(ctx context.Context, id string) (*models.AllocationRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &run, nil
}

func (r *runRepoFake) List(ctx context.Context, limit, offset int) ([]models.AllocationRun, int, error) {
	out := make([]models.AllocationRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset >= len(out) {
		return []models.AllocationRun{}, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

// --- queue and cache ---

type queueFake struct {
	jobs []jobs.Job
	err  error
}

func (q *queueFake) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type cacheRepoFake struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes []string
}

func newCacheRepoFake() *cacheRepoFake {
	return &cacheRepoFake{entries: make(map[string][]byte)}
}

func (c *cacheRepoFake) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (c *cacheRepoFake) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
	return nil
}

func (c *cacheRepoFake) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.deletes = append(c.deletes, pattern)
	return nil
}
