// Package inmemdb keeps every repository in process memory.
// It backs the tests and the "memory" database engine.
package inmemdb

import (
	"sort"
	"sync"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/announcement"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/discussion"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
)

type (
	DB struct {
		user *table[user.User]

		course     *table[course.Course]
		enrollment *table[course.Enrollment]
		module     *table[course.Module]
		moduleItem *table[course.ModuleItem]
		page       *table[course.Page]

		acl          *table[acl.Entry]
		announcement *table[announcement.Announcement]
		discussion   *table[discussion.Discussion]
		reply        *table[discussion.Reply]
		assignment   *table[assignment.Assignment]
		submission   *table[assignment.Submission]

		quiz     *table[quiz.Quiz]
		question *table[quiz.Question]
		attempt  *table[quiz.Attempt]
	}

	table[T any] struct {
		sync.RWMutex
		rows map[string]T
	}
)

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func Open() (*DB, error) {
	db := &DB{
		user:         newTable[user.User](),
		course:       newTable[course.Course](),
		enrollment:   newTable[course.Enrollment](),
		module:       newTable[course.Module](),
		moduleItem:   newTable[course.ModuleItem](),
		page:         newTable[course.Page](),
		acl:          newTable[acl.Entry](),
		announcement: newTable[announcement.Announcement](),
		discussion:   newTable[discussion.Discussion](),
		reply:        newTable[discussion.Reply](),
		assignment:   newTable[assignment.Assignment](),
		submission:   newTable[assignment.Submission](),
		quiz:         newTable[quiz.Quiz](),
		question:     newTable[quiz.Question](),
		attempt:      newTable[quiz.Attempt](),
	}
	return db, nil
}

// filter returns the rows matching keep, sorted with less. Callers hold the lock.
func (t *table[T]) filter(keep func(T) bool, less func(a, b T) bool) []T {
	out := make([]T, 0)
	for _, row := range t.rows {
		if keep == nil || keep(row) {
			out = append(out, row)
		}
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

// deleteWhere drops the rows matching match and returns how many were dropped. Callers hold the lock.
func (t *table[T]) deleteWhere(match func(T) bool) int {
	var n int
	for id, row := range t.rows {
		if match(row) {
			delete(t.rows, id)
			n++
		}
	}
	return n
}

// sortStable orders rows by each ordering in turn.
func sortStable[T any](rows []T, ordering []core.DBOrdering, compare func(a, b T, field string) int) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(rows[i], rows[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}
