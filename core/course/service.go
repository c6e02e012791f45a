package course

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrCodeExists         = errors.New("a course with this code already exists")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrAlreadyEnrolled    = errors.New("user is already enrolled in this course")
	ErrModuleNotFound     = errors.New("module not found")
	ErrItemNotFound       = errors.New("module item not found")
	ErrPageNotFound       = errors.New("page not found")
	ErrSlugExists         = errors.New("a page with this slug already exists in this course")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
		GetCourse(ctx context.Context, id string) (Course, error)
		// GetCourseByCode returns ErrNotFound when no course has this code.
		GetCourseByCode(ctx context.Context, code string) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)

		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, courseID, userID string) (int, error)
		GetEnrollment(ctx context.Context, courseID, userID string) (Enrollment, error)
		// QueryEnrollments lists enrollments of a course, filtered by role when role != "".
		QueryEnrollments(ctx context.Context, courseID, role string) ([]Enrollment, error)

		CreateModule(ctx context.Context, m Module) (Module, error)
		UpdateModule(ctx context.Context, m Module) (Module, error)
		DeleteModule(ctx context.Context, id string) error
		GetModule(ctx context.Context, id string) (Module, error)
		QueryModules(ctx context.Context, courseID string) ([]Module, error)

		CreateModuleItem(ctx context.Context, it ModuleItem) (ModuleItem, error)
		DeleteModuleItem(ctx context.Context, id string) error
		GetModuleItem(ctx context.Context, id string) (ModuleItem, error)
		QueryModuleItems(ctx context.Context, moduleID string) ([]ModuleItem, error)
		// SetModuleItemPositions sets each item position to its index in ids.
		SetModuleItemPositions(ctx context.Context, moduleID string, ids []string) error

		CreatePage(ctx context.Context, p Page) (Page, error)
		UpdatePage(ctx context.Context, p Page) (Page, error)
		DeletePage(ctx context.Context, id string) error
		GetPage(ctx context.Context, id string) (Page, error)
		GetPageBySlug(ctx context.Context, courseID, slug string) (Page, error)
		QueryPages(ctx context.Context, courseID string) ([]Page, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewCourse) (Course, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error

		Enroll(ctx context.Context, courseID string, ne NewEnrollment) (Enrollment, error)
		Unenroll(ctx context.Context, courseID, userID string) error
		Enrollments(ctx context.Context, courseID, role string) ([]Enrollment, error)
		StudentIDs(ctx context.Context, courseID string) ([]string, error)
		Membership(ctx context.Context, c Course, usr user.User) (Membership, error)

		CreateModule(ctx context.Context, courseID string, nm NewModule) (Module, error)
		UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error)
		DeleteModule(ctx context.Context, id string) error
		GetModule(ctx context.Context, id string) (Module, error)
		Modules(ctx context.Context, courseID string) ([]Module, error)
		AddItem(ctx context.Context, moduleID string, ni NewModuleItem) (ModuleItem, error)
		RemoveItem(ctx context.Context, moduleID, itemID string) error
		ReorderItems(ctx context.Context, moduleID string, ri ReorderItems) ([]ModuleItem, error)
		Items(ctx context.Context, moduleID string) ([]ModuleItem, error)

		CreatePage(ctx context.Context, courseID string, np NewPage) (Page, error)
		UpdatePage(ctx context.Context, id string, up UpdatePage) (Page, error)
		DeletePage(ctx context.Context, id string) error
		GetPage(ctx context.Context, id string) (Page, error)
		Pages(ctx context.Context, courseID string) ([]Page, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) checkCode(ctx context.Context, code, exclID string) error {
	c, err := svc.repo.GetCourseByCode(ctx, code)
	switch {
	case errors.Cause(err) == ErrNotFound:
		return nil
	case err != nil:
		return errors.Wrap(err, "finding course by code")
	case c.ID == exclID:
		return nil
	}
	return core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if err := svc.checkCode(ctx, nc.Code, ""); err != nil {
		return Course{}, err
	}
	now := core.Now()
	return svc.repo.CreateCourse(ctx, Course{
		ID:           core.NewID(),
		Code:         nc.Code,
		Title:        nc.Title,
		Description:  nc.Description,
		InstructorID: nc.InstructorID,
		IsPublished:  nc.IsPublished,
		StartsAt:     nc.StartsAt,
		EndsAt:       nc.EndsAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, core.CleanOrderings(ordering, Orderable...))
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.GetByID(ctx, id)
	if err != nil {
		return Course{}, errors.Wrap(err, "finding course by ID")
	}
	if uc.Code != "" && uc.Code != c.Code {
		if err = svc.checkCode(ctx, uc.Code, c.ID); err != nil {
			return Course{}, err
		}
		c.Code = uc.Code
	}
	if uc.Title != "" {
		c.Title = uc.Title
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.InstructorID != "" {
		c.InstructorID = uc.InstructorID
	}
	if uc.IsPublished != nil {
		c.IsPublished = *uc.IsPublished
	}
	if uc.StartsAt.Valid {
		c.StartsAt = uc.StartsAt
	}
	if uc.EndsAt.Valid {
		c.EndsAt = uc.EndsAt
	}
	if err = core.CheckTimeRange("ends_at", c.StartsAt, c.EndsAt); err != nil {
		return Course{}, err
	}
	c.UpdatedAt = core.Now()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Enrollments

func (svc *service) Enroll(ctx context.Context, courseID string, ne NewEnrollment) (Enrollment, error) {
	_, err := svc.repo.GetEnrollment(ctx, courseID, ne.UserID)
	if err == nil {
		return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled, core.FieldError{Field: "user_id", Error: ErrAlreadyEnrolled.Error()})
	}
	if errors.Cause(err) != ErrEnrollmentNotFound {
		return Enrollment{}, errors.Wrap(err, "finding enrollment")
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:        core.NewID(),
		CourseID:  courseID,
		UserID:    ne.UserID,
		Role:      ne.Role,
		CreatedAt: core.Now(),
	})
}

func (svc *service) Unenroll(ctx context.Context, courseID, userID string) error {
	n, err := svc.repo.DeleteEnrollment(ctx, courseID, userID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

func (svc *service) Enrollments(ctx context.Context, courseID, role string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, courseID, role)
}

func (svc *service) StudentIDs(ctx context.Context, courseID string) ([]string, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, courseID, RoleStudent)
	if err != nil {
		return nil, errors.Wrap(err, "querying student enrollments")
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.UserID)
	}
	return ids, nil
}

func (svc *service) Membership(ctx context.Context, c Course, usr user.User) (Membership, error) {
	m := Membership{CourseID: c.ID, UserID: usr.ID, IsOwner: c.InstructorID == usr.ID}
	e, err := svc.repo.GetEnrollment(ctx, c.ID, usr.ID)
	switch errors.Cause(err) {
	case nil:
		m.Role = e.Role
	case ErrEnrollmentNotFound:
	default:
		return Membership{}, errors.Wrap(err, "finding enrollment")
	}
	return m, nil
}

// Modules

func (svc *service) CreateModule(ctx context.Context, courseID string, nm NewModule) (Module, error) {
	modules, err := svc.repo.QueryModules(ctx, courseID)
	if err != nil {
		return Module{}, errors.Wrap(err, "querying modules")
	}
	now := core.Now()
	return svc.repo.CreateModule(ctx, Module{
		ID:          core.NewID(),
		CourseID:    courseID,
		Title:       nm.Title,
		Position:    len(modules),
		IsPublished: nm.IsPublished,
		UnlockAt:    nm.UnlockAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error) {
	m, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, errors.Wrap(err, "finding module by ID")
	}
	if um.Title != "" {
		m.Title = um.Title
	}
	if um.Position != nil {
		m.Position = *um.Position
	}
	if um.IsPublished != nil {
		m.IsPublished = *um.IsPublished
	}
	if um.UnlockAt.Valid {
		m.UnlockAt = um.UnlockAt
	}
	m.UpdatedAt = core.Now()
	return svc.repo.UpdateModule(ctx, m)
}

func (svc *service) DeleteModule(ctx context.Context, id string) error {
	return svc.repo.DeleteModule(ctx, id)
}

func (svc *service) GetModule(ctx context.Context, id string) (Module, error) {
	return svc.repo.GetModule(ctx, id)
}

func (svc *service) Modules(ctx context.Context, courseID string) ([]Module, error) {
	return svc.repo.QueryModules(ctx, courseID)
}

func (svc *service) AddItem(ctx context.Context, moduleID string, ni NewModuleItem) (ModuleItem, error) {
	items, err := svc.repo.QueryModuleItems(ctx, moduleID)
	if err != nil {
		return ModuleItem{}, errors.Wrap(err, "querying module items")
	}
	for _, it := range items {
		if it.ItemType == ni.ItemType && it.ItemID == ni.ItemID {
			return ModuleItem{}, core.NewValidationError(nil, core.FieldError{Field: "item_id", Error: "item is already in this module"})
		}
	}
	return svc.repo.CreateModuleItem(ctx, ModuleItem{
		ID:       core.NewID(),
		ModuleID: moduleID,
		ItemType: ni.ItemType,
		ItemID:   ni.ItemID,
		Position: len(items),
	})
}

func (svc *service) RemoveItem(ctx context.Context, moduleID, itemID string) error {
	it, err := svc.repo.GetModuleItem(ctx, itemID)
	if err != nil {
		return err
	}
	if it.ModuleID != moduleID {
		return ErrItemNotFound
	}
	return svc.repo.DeleteModuleItem(ctx, itemID)
}

// ReorderItems expects every item of the module exactly once, in the wanted order.
func (svc *service) ReorderItems(ctx context.Context, moduleID string, ri ReorderItems) ([]ModuleItem, error) {
	items, err := svc.repo.QueryModuleItems(ctx, moduleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying module items")
	}
	invalid := core.NewValidationError(nil, core.FieldError{Field: "item_ids", Error: "must list every item of the module exactly once"})
	if len(ri.ItemIDs) != len(items) {
		return nil, invalid
	}
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	for _, id := range ri.ItemIDs {
		if !known[id] {
			return nil, invalid
		}
		delete(known, id) // duplicates
	}

	if err = svc.repo.SetModuleItemPositions(ctx, moduleID, ri.ItemIDs); err != nil {
		return nil, errors.Wrap(err, "setting module item positions")
	}
	return svc.repo.QueryModuleItems(ctx, moduleID)
}

func (svc *service) Items(ctx context.Context, moduleID string) ([]ModuleItem, error) {
	return svc.repo.QueryModuleItems(ctx, moduleID)
}

// Pages

func (svc *service) checkSlug(ctx context.Context, courseID, slug, exclID string) error {
	p, err := svc.repo.GetPageBySlug(ctx, courseID, slug)
	switch {
	case errors.Cause(err) == ErrPageNotFound:
		return nil
	case err != nil:
		return errors.Wrap(err, "finding page by slug")
	case p.ID == exclID:
		return nil
	}
	return core.NewValidationError(ErrSlugExists, core.FieldError{Field: "slug", Error: ErrSlugExists.Error()})
}

func (svc *service) CreatePage(ctx context.Context, courseID string, np NewPage) (Page, error) {
	if err := svc.checkSlug(ctx, courseID, np.Slug, ""); err != nil {
		return Page{}, err
	}
	now := core.Now()
	return svc.repo.CreatePage(ctx, Page{
		ID:          core.NewID(),
		CourseID:    courseID,
		Title:       np.Title,
		Slug:        np.Slug,
		Body:        np.Body,
		IsPublished: np.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) UpdatePage(ctx context.Context, id string, up UpdatePage) (Page, error) {
	p, err := svc.repo.GetPage(ctx, id)
	if err != nil {
		return Page{}, errors.Wrap(err, "finding page by ID")
	}
	if up.Slug != "" && up.Slug != p.Slug {
		if err = svc.checkSlug(ctx, p.CourseID, up.Slug, p.ID); err != nil {
			return Page{}, err
		}
		p.Slug = up.Slug
	}
	if up.Title != "" {
		p.Title = up.Title
	}
	if up.Body != nil {
		p.Body = *up.Body
	}
	if up.IsPublished != nil {
		p.IsPublished = *up.IsPublished
	}
	p.UpdatedAt = core.Now()
	return svc.repo.UpdatePage(ctx, p)
}

func (svc *service) DeletePage(ctx context.Context, id string) error {
	return svc.repo.DeletePage(ctx, id)
}

func (svc *service) GetPage(ctx context.Context, id string) (Page, error) {
	return svc.repo.GetPage(ctx, id)
}

func (svc *service) Pages(ctx context.Context, courseID string) ([]Page, error) {
	return svc.repo.QueryPages(ctx, courseID)
}
