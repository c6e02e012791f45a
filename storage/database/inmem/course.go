package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/course"
)

type courseRepository struct {
	courses     *table[course.Course]
	enrollments *table[course.Enrollment]
	modules     *table[course.Module]
	items       *table[course.ModuleItem]
	pages       *table[course.Page]
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{
		courses:     db.course,
		enrollments: db.enrollment,
		modules:     db.module,
		items:       db.moduleItem,
		pages:       db.page,
	}
}

// Courses

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.courses.Lock()
	defer repo.courses.Unlock()

	for _, other := range repo.courses.rows {
		if other.Code == c.Code {
			return course.Course{}, course.ErrCodeExists
		}
	}
	repo.courses.rows[c.ID] = c
	return c, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.courses.Lock()
	defer repo.courses.Unlock()

	if _, ok := repo.courses.rows[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.courses.rows[c.ID] = c
	return c, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.courses.Lock()
	delete(repo.courses.rows, id)
	repo.courses.Unlock()

	repo.enrollments.Lock()
	repo.enrollments.deleteWhere(func(e course.Enrollment) bool { return e.CourseID == id })
	repo.enrollments.Unlock()

	repo.pages.Lock()
	repo.pages.deleteWhere(func(p course.Page) bool { return p.CourseID == id })
	repo.pages.Unlock()

	repo.modules.Lock()
	var moduleIDs []string
	for _, m := range repo.modules.rows {
		if m.CourseID == id {
			moduleIDs = append(moduleIDs, m.ID)
		}
	}
	repo.modules.Unlock()
	for _, mid := range moduleIDs {
		_ = repo.DeleteModule(context.Background(), mid)
	}
	return nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()

	if c, ok := repo.courses.rows[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCourseByCode(_ context.Context, code string) (course.Course, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()

	for _, c := range repo.courses.rows {
		if c.Code == code {
			return c, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	if filter == nil {
		filter = &course.QueryFilter{}
	}

	var enrolled map[string]bool
	if filter.MemberID != "" {
		enrolled = make(map[string]bool)
		repo.enrollments.RLock()
		for _, e := range repo.enrollments.rows {
			if e.UserID == filter.MemberID {
				enrolled[e.CourseID] = true
			}
		}
		repo.enrollments.RUnlock()
	}

	repo.courses.RLock()
	defer repo.courses.RUnlock()

	search := strings.ToLower(filter.Search)
	courses := repo.courses.filter(func(c course.Course) bool {
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Code), search) &&
			!strings.Contains(strings.ToLower(c.Title), search) {
			return false
		}
		if filter.IsPublished != nil && c.IsPublished != *filter.IsPublished {
			return false
		}
		if filter.MemberID != "" && c.InstructorID != filter.MemberID && !enrolled[c.ID] {
			return false
		}
		return true
	}, func(a, b course.Course) bool { return a.Code < b.Code })

	sortCourses(courses, ordering)
	return courses, nil
}

// Enrollments

func (repo *courseRepository) CreateEnrollment(_ context.Context, e course.Enrollment) (course.Enrollment, error) {
	repo.enrollments.Lock()
	defer repo.enrollments.Unlock()

	for _, other := range repo.enrollments.rows {
		if other.CourseID == e.CourseID && other.UserID == e.UserID {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
	}
	repo.enrollments.rows[e.ID] = e
	return e, nil
}

func (repo *courseRepository) DeleteEnrollment(_ context.Context, courseID, userID string) (int, error) {
	repo.enrollments.Lock()
	defer repo.enrollments.Unlock()

	n := repo.enrollments.deleteWhere(func(e course.Enrollment) bool {
		return e.CourseID == courseID && e.UserID == userID
	})
	return n, nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, courseID, userID string) (course.Enrollment, error) {
	repo.enrollments.RLock()
	defer repo.enrollments.RUnlock()

	for _, e := range repo.enrollments.rows {
		if e.CourseID == courseID && e.UserID == userID {
			return e, nil
		}
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) QueryEnrollments(_ context.Context, courseID, role string) ([]course.Enrollment, error) {
	repo.enrollments.RLock()
	defer repo.enrollments.RUnlock()

	return repo.enrollments.filter(
		func(e course.Enrollment) bool { return e.CourseID == courseID && (role == "" || e.Role == role) },
		func(a, b course.Enrollment) bool { return a.CreatedAt.Before(b.CreatedAt) },
	), nil
}

// Modules

func (repo *courseRepository) CreateModule(_ context.Context, m course.Module) (course.Module, error) {
	repo.modules.Lock()
	defer repo.modules.Unlock()

	repo.modules.rows[m.ID] = m
	return m, nil
}

func (repo *courseRepository) UpdateModule(_ context.Context, m course.Module) (course.Module, error) {
	repo.modules.Lock()
	defer repo.modules.Unlock()

	if _, ok := repo.modules.rows[m.ID]; !ok {
		return course.Module{}, course.ErrModuleNotFound
	}
	repo.modules.rows[m.ID] = m
	return m, nil
}

func (repo *courseRepository) DeleteModule(_ context.Context, id string) error {
	repo.modules.Lock()
	delete(repo.modules.rows, id)
	repo.modules.Unlock()

	repo.items.Lock()
	defer repo.items.Unlock()
	repo.items.deleteWhere(func(it course.ModuleItem) bool { return it.ModuleID == id })
	return nil
}

func (repo *courseRepository) GetModule(_ context.Context, id string) (course.Module, error) {
	repo.modules.RLock()
	defer repo.modules.RUnlock()

	if m, ok := repo.modules.rows[id]; ok {
		return m, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) QueryModules(_ context.Context, courseID string) ([]course.Module, error) {
	repo.modules.RLock()
	defer repo.modules.RUnlock()

	return repo.modules.filter(
		func(m course.Module) bool { return m.CourseID == courseID },
		func(a, b course.Module) bool {
			if a.Position != b.Position {
				return a.Position < b.Position
			}
			return a.CreatedAt.Before(b.CreatedAt)
		},
	), nil
}

// Module items

func (repo *courseRepository) CreateModuleItem(_ context.Context, it course.ModuleItem) (course.ModuleItem, error) {
	repo.items.Lock()
	defer repo.items.Unlock()

	repo.items.rows[it.ID] = it
	return it, nil
}

func (repo *courseRepository) DeleteModuleItem(_ context.Context, id string) error {
	repo.items.Lock()
	defer repo.items.Unlock()

	delete(repo.items.rows, id)
	return nil
}

func (repo *courseRepository) GetModuleItem(_ context.Context, id string) (course.ModuleItem, error) {
	repo.items.RLock()
	defer repo.items.RUnlock()

	if it, ok := repo.items.rows[id]; ok {
		return it, nil
	}
	return course.ModuleItem{}, course.ErrItemNotFound
}

func (repo *courseRepository) QueryModuleItems(_ context.Context, moduleID string) ([]course.ModuleItem, error) {
	repo.items.RLock()
	defer repo.items.RUnlock()

	return repo.items.filter(
		func(it course.ModuleItem) bool { return it.ModuleID == moduleID },
		func(a, b course.ModuleItem) bool { return a.Position < b.Position },
	), nil
}

func (repo *courseRepository) SetModuleItemPositions(_ context.Context, moduleID string, ids []string) error {
	repo.items.Lock()
	defer repo.items.Unlock()

	for pos, id := range ids {
		it, ok := repo.items.rows[id]
		if !ok || it.ModuleID != moduleID {
			return course.ErrItemNotFound
		}
		it.Position = pos
		repo.items.rows[id] = it
	}
	return nil
}

// Pages

func (repo *courseRepository) CreatePage(_ context.Context, p course.Page) (course.Page, error) {
	repo.pages.Lock()
	defer repo.pages.Unlock()

	for _, other := range repo.pages.rows {
		if other.CourseID == p.CourseID && other.Slug == p.Slug {
			return course.Page{}, course.ErrSlugExists
		}
	}
	repo.pages.rows[p.ID] = p
	return p, nil
}

func (repo *courseRepository) UpdatePage(_ context.Context, p course.Page) (course.Page, error) {
	repo.pages.Lock()
	defer repo.pages.Unlock()

	if _, ok := repo.pages.rows[p.ID]; !ok {
		return course.Page{}, course.ErrPageNotFound
	}
	repo.pages.rows[p.ID] = p
	return p, nil
}

func (repo *courseRepository) DeletePage(_ context.Context, id string) error {
	repo.pages.Lock()
	defer repo.pages.Unlock()

	delete(repo.pages.rows, id)
	return nil
}

func (repo *courseRepository) GetPage(_ context.Context, id string) (course.Page, error) {
	repo.pages.RLock()
	defer repo.pages.RUnlock()

	if p, ok := repo.pages.rows[id]; ok {
		return p, nil
	}
	return course.Page{}, course.ErrPageNotFound
}

func (repo *courseRepository) GetPageBySlug(_ context.Context, courseID, slug string) (course.Page, error) {
	repo.pages.RLock()
	defer repo.pages.RUnlock()

	for _, p := range repo.pages.rows {
		if p.CourseID == courseID && p.Slug == slug {
			return p, nil
		}
	}
	return course.Page{}, course.ErrPageNotFound
}

func (repo *courseRepository) QueryPages(_ context.Context, courseID string) ([]course.Page, error) {
	repo.pages.RLock()
	defer repo.pages.RUnlock()

	return repo.pages.filter(
		func(p course.Page) bool { return p.CourseID == courseID },
		func(a, b course.Page) bool { return a.Title < b.Title },
	), nil
}

func sortCourses(courses []course.Course, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	less := func(a, b course.Course, field string) int {
		switch field {
		case "code":
			return strings.Compare(a.Code, b.Code)
		case "title":
			return strings.Compare(a.Title, b.Title)
		case "is_published":
			return compareBool(a.IsPublished, b.IsPublished)
		case "starts_at":
			return a.StartsAt.Time.Compare(b.StartsAt.Time)
		case "ends_at":
			return a.EndsAt.Time.Compare(b.EndsAt.Time)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		}
		return 0
	}
	sortStable(courses, ordering, less)
}
