package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/user"
)

func courseIDs(courses []course.Course) []string {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return ids
}

func Test_courseApi_create(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "admin", user.RoleAdmin)
	prof := env.createUser(t, "prof", user.RoleInstructor)
	other := env.createUser(t, "other", user.RoleInstructor)
	student := env.createUser(t, "hero", user.RoleStudent)

	runHTTPTests(t, env, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "students cannot create courses", method: http.MethodPost, path: "/v1/courses", token: getToken(t, env.conf, student),
			body:     []byte(`{"code": "MATH101", "title": "Maths"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/courses", token: getToken(t, env.conf, prof),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"code": "this field is required", "title": "this field is required"}`),
		},
		{
			name: "instructors cannot create for someone else", method: http.MethodPost, path: "/v1/courses", token: getToken(t, env.conf, prof),
			body:     marchallObj(t, course.NewCourse{Code: "MATH101", Title: "Maths", InstructorID: other.ID}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})

	t.Run("instructor", func(t *testing.T) {
		var c course.Course
		env.decode(t, http.StatusCreated, &c, http.MethodPost, "/v1/courses", getToken(t, env.conf, prof),
			[]byte(`{"code": " math101 ", "title": "Maths"}`))
		assert.Equal(t, "MATH101", c.Code)
		assert.Equal(t, prof.ID, c.InstructorID)
		assert.False(t, c.IsPublished)
	})

	t.Run("duplicate code", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/courses", getToken(t, env.conf, prof), []byte(`{"code": "MATH101", "title": "More Maths"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"code": "a course with this code already exists"}`, rec.Body.String())
	})

	t.Run("admin on behalf of an instructor", func(t *testing.T) {
		var c course.Course
		env.decode(t, http.StatusCreated, &c, http.MethodPost, "/v1/courses", getToken(t, env.conf, admin),
			marchallObj(t, course.NewCourse{Code: "PHY101", Title: "Physics", InstructorID: other.ID}))
		assert.Equal(t, other.ID, c.InstructorID)
	})
}

func Test_courseApi_query(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "admin", user.RoleAdmin)
	prof := env.createUser(t, "prof", user.RoleInstructor)
	student := env.createUser(t, "hero", user.RoleStudent)
	outsider := env.createUser(t, "outsider", user.RoleStudent)

	maths := env.createCourse(t, "MATH101", prof, true)
	draft := env.createCourse(t, "DRAFT101", prof, false)
	env.createCourse(t, "PHY101", admin, true)
	env.enroll(t, maths, student, course.RoleStudent)
	env.enroll(t, draft, student, course.RoleStudent)

	var courses []course.Course
	env.decode(t, http.StatusOK, &courses, http.MethodGet, "/v1/courses?ordering=code", getToken(t, env.conf, admin))
	assert.Len(t, courses, 3)

	env.decode(t, http.StatusOK, &courses, http.MethodGet, "/v1/courses?ordering=code", getToken(t, env.conf, prof))
	assert.Equal(t, []string{draft.ID, maths.ID}, courseIDs(courses))

	// unpublished courses are hidden from students
	env.decode(t, http.StatusOK, &courses, http.MethodGet, "/v1/courses", getToken(t, env.conf, student))
	assert.Equal(t, []string{maths.ID}, courseIDs(courses))

	env.decode(t, http.StatusOK, &courses, http.MethodGet, "/v1/courses", getToken(t, env.conf, outsider))
	assert.Empty(t, courses)
}

func Test_courseApi_retrieve(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "admin", user.RoleAdmin)
	prof := env.createUser(t, "prof", user.RoleInstructor)
	student := env.createUser(t, "hero", user.RoleStudent)
	outsider := env.createUser(t, "outsider", user.RoleStudent)

	maths := env.createCourse(t, "MATH101", prof, true)
	draft := env.createCourse(t, "DRAFT101", prof, false)
	env.enroll(t, maths, student, course.RoleStudent)
	env.enroll(t, draft, student, course.RoleStudent)

	notFound := marchallObj(t, httpErr{Error: "not found"})
	runHTTPTests(t, env, []httpTest{
		{name: "member", path: "/v1/courses/" + maths.ID, token: getToken(t, env.conf, student), wantData: marchallObj(t, maths)},
		{name: "non member", path: "/v1/courses/" + maths.ID, token: getToken(t, env.conf, outsider), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unpublished (student)", path: "/v1/courses/" + draft.ID, token: getToken(t, env.conf, student), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unpublished (owner)", path: "/v1/courses/" + draft.ID, token: getToken(t, env.conf, prof), wantData: marchallObj(t, draft)},
		{name: "admin", path: "/v1/courses/" + draft.ID, token: getToken(t, env.conf, admin), wantData: marchallObj(t, draft)},
		{name: "unknown", path: "/v1/courses/lol", token: getToken(t, env.conf, admin), wantCode: http.StatusNotFound, wantData: notFound},
	})
}

func Test_courseApi_update(t *testing.T) {
	env := setup(t)
	prof := env.createUser(t, "prof", user.RoleInstructor)
	other := env.createUser(t, "other", user.RoleInstructor)
	student := env.createUser(t, "hero", user.RoleStudent)
	maths := env.createCourse(t, "MATH101", prof, true)
	env.enroll(t, maths, student, course.RoleStudent)
	path := "/v1/courses/" + maths.ID

	runHTTPTests(t, env, []httpTest{
		{
			name: "students cannot update", method: http.MethodPut, path: path, token: getToken(t, env.conf, student),
			body: []byte(`{"title": "Lol"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "instructors cannot hand over", method: http.MethodPut, path: path, token: getToken(t, env.conf, prof),
			body: marchallObj(t, map[string]string{"instructor_id": other.ID}), wantCode: http.StatusForbidden,
		},
	})

	var c course.Course
	env.decode(t, http.StatusOK, &c, http.MethodPut, path, getToken(t, env.conf, prof), []byte(`{"title": "Advanced Maths"}`))
	assert.Equal(t, "Advanced Maths", c.Title)
	assert.Equal(t, "MATH101", c.Code)
}

func Test_courseApi_destroy(t *testing.T) {
	env := setup(t)
	prof := env.createUser(t, "prof", user.RoleInstructor)
	assistant := env.createUser(t, "assistant", user.RoleInstructor)
	maths := env.createCourse(t, "MATH101", prof, true)
	env.enroll(t, maths, assistant, course.RoleInstructor)
	path := "/v1/courses/" + maths.ID

	runHTTPTests(t, env, []httpTest{
		{name: "only the owner", method: http.MethodDelete, path: path, token: getToken(t, env.conf, assistant), wantCode: http.StatusForbidden},
		{name: "deleted", method: http.MethodDelete, path: path, token: getToken(t, env.conf, prof), wantCode: http.StatusNoContent},
		{name: "gone", path: path, token: getToken(t, env.conf, prof), wantCode: http.StatusNotFound},
	})
}

func Test_courseApi_enrollments(t *testing.T) {
	env := setup(t)
	prof := env.createUser(t, "prof", user.RoleInstructor)
	student := env.createUser(t, "hero", user.RoleStudent)
	maths := env.createCourse(t, "MATH101", prof, true)
	token := getToken(t, env.conf, prof)
	path := "/v1/courses/" + maths.ID + "/enrollments"

	runHTTPTests(t, env, []httpTest{
		{
			name: "unknown user", method: http.MethodPost, path: path, token: token,
			body: []byte(`{"user_id": "0b6cbf0a-4d9e-4a43-9a3f-2a9f4a0b7c11"}`), wantCode: http.StatusNotFound,
		},
		{
			name: "invalid role", method: http.MethodPost, path: path, token: token,
			body: marchallObj(t, map[string]string{"user_id": student.ID, "role": "lol"}), wantCode: http.StatusBadRequest,
		},
	})

	var e course.Enrollment
	env.decode(t, http.StatusCreated, &e, http.MethodPost, path, token, marchallObj(t, map[string]string{"user_id": student.ID}))
	assert.Equal(t, course.RoleStudent, e.Role)
	assert.Equal(t, student.ID, e.UserID)

	rec := env.do(t, http.MethodPost, path, token, marchallObj(t, map[string]string{"user_id": student.ID}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the student can now see the course but not its roster
	studentToken := getToken(t, env.conf, student)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/courses/"+maths.ID, studentToken).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, path, studentToken).Code)

	var enrollments []course.Enrollment
	env.decode(t, http.StatusOK, &enrollments, http.MethodGet, path, token)
	require.Len(t, enrollments, 1)
	assert.Equal(t, e.ID, enrollments[0].ID)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path+"/"+student.ID, token).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/courses/"+maths.ID, studentToken).Code)
}

func Test_courseApi_modules(t *testing.T) {
	env := setup(t)
	prof := env.createUser(t, "prof", user.RoleInstructor)
	student := env.createUser(t, "hero", user.RoleStudent)
	maths := env.createCourse(t, "MATH101", prof, true)
	env.enroll(t, maths, student, course.RoleStudent)
	token := getToken(t, env.conf, prof)
	studentToken := getToken(t, env.conf, student)
	path := "/v1/courses/" + maths.ID + "/modules"

	var week1, week2 course.Module
	env.decode(t, http.StatusCreated, &week1, http.MethodPost, path, token, []byte(`{"title": "Week 1", "is_published": true}`))
	env.decode(t, http.StatusCreated, &week2, http.MethodPost, path, token, []byte(`{"title": "Week 2"}`))
	assert.Equal(t, 0, week1.Position)
	assert.Equal(t, 1, week2.Position)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, path, studentToken, []byte(`{"title": "Lol"}`)).Code)

	var modules []course.Module
	env.decode(t, http.StatusOK, &modules, http.MethodGet, path, token)
	assert.Len(t, modules, 2)
	env.decode(t, http.StatusOK, &modules, http.MethodGet, path, studentToken)
	require.Len(t, modules, 1)
	assert.Equal(t, week1.ID, modules[0].ID)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path+"/"+week2.ID, studentToken).Code)

	t.Run("items", func(t *testing.T) {
		var p1, p2 course.Page
		env.decode(t, http.StatusCreated, &p1, http.MethodPost, "/v1/courses/"+maths.ID+"/pages", token, []byte(`{"title": "Intro"}`))
		env.decode(t, http.StatusCreated, &p2, http.MethodPost, "/v1/courses/"+maths.ID+"/pages", token, []byte(`{"title": "Limits"}`))

		itemsPath := path + "/" + week1.ID + "/items"
		var it1, it2 course.ModuleItem
		env.decode(t, http.StatusCreated, &it1, http.MethodPost, itemsPath, token, marchallObj(t, course.NewModuleItem{ItemType: course.ItemPage, ItemID: p1.ID}))
		env.decode(t, http.StatusCreated, &it2, http.MethodPost, itemsPath, token, marchallObj(t, course.NewModuleItem{ItemType: course.ItemPage, ItemID: p2.ID}))

		var items []course.ModuleItem
		env.decode(t, http.StatusOK, &items, http.MethodPut, itemsPath+"/order", token, marchallObj(t, course.ReorderItems{ItemIDs: []string{it2.ID, it1.ID}}))
		require.Len(t, items, 2)
		assert.Equal(t, it2.ID, items[0].ID)
		assert.Equal(t, it1.ID, items[1].ID)

		assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, itemsPath+"/"+it1.ID, studentToken).Code)
		assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, itemsPath+"/"+it1.ID, token).Code)
		env.decode(t, http.StatusOK, &items, http.MethodGet, itemsPath, studentToken)
		require.Len(t, items, 1)
		assert.Equal(t, it2.ID, items[0].ID)
	})

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path+"/"+week2.ID, token).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path+"/"+week2.ID, token).Code)
}

func Test_courseApi_pages(t *testing.T) {
	env := setup(t)
	prof := env.createUser(t, "prof", user.RoleInstructor)
	alice := env.createUser(t, "alice", user.RoleStudent)
	bob := env.createUser(t, "bob", user.RoleStudent)
	maths := env.createCourse(t, "MATH101", prof, true)
	env.enroll(t, maths, alice, course.RoleStudent)
	env.enroll(t, maths, bob, course.RoleStudent)
	token := getToken(t, env.conf, prof)
	path := "/v1/courses/" + maths.ID + "/pages"

	var p course.Page
	env.decode(t, http.StatusCreated, &p, http.MethodPost, path, token, []byte(`{"title": "Getting Started!", "is_published": true}`))
	assert.Equal(t, "getting-started", p.Slug)

	rec := env.do(t, http.MethodPost, path, token, []byte(`{"title": "Getting started"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	aliceToken, bobToken := getToken(t, env.conf, alice), getToken(t, env.conf, bob)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path+"/"+p.ID, bobToken).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, path+"/"+p.ID, bobToken, []byte(`{"title": "Lol"}`)).Code)

	t.Run("restricted by acl", func(t *testing.T) {
		var e acl.Entry
		env.decode(t, http.StatusCreated, &e, http.MethodPost, "/v1/courses/"+maths.ID+"/acl", token, marchallObj(t, acl.NewEntry{
			ResourceType: acl.TypePage,
			ResourceID:   p.ID,
			GranteeType:  acl.GranteeUser,
			Grantee:      alice.ID,
			Permission:   acl.PermView,
		}))

		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path+"/"+p.ID, aliceToken).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path+"/"+p.ID, bobToken).Code)

		var pages []course.Page
		env.decode(t, http.StatusOK, &pages, http.MethodGet, path, bobToken)
		assert.Empty(t, pages)

		var entries []acl.Entry
		env.decode(t, http.StatusOK, &entries, http.MethodGet, "/v1/courses/"+maths.ID+"/acl", token)
		require.Len(t, entries, 1)
		assert.Equal(t, e.ID, entries[0].ID)
		assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/v1/courses/"+maths.ID+"/acl", aliceToken).Code)

		assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/v1/courses/"+maths.ID+"/acl/"+e.ID, token).Code)
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path+"/"+p.ID, bobToken).Code)
	})

	t.Run("acl grant on another course", func(t *testing.T) {
		other := env.createCourse(t, "PHY101", prof, true)
		rec := env.do(t, http.MethodPost, "/v1/courses/"+other.ID+"/acl", token, marchallObj(t, acl.NewEntry{
			ResourceType: acl.TypePage,
			ResourceID:   p.ID,
			GranteeType:  acl.GranteeRole,
			Grantee:      course.RoleStudent,
			Permission:   acl.PermView,
		}))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path+"/"+p.ID, token).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path+"/"+p.ID, token).Code)
}
