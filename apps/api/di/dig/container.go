package dig_container

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-lms/apps/api/echo"
	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/acl"
	"github.com/trezcool/masomo-lms/core/announcement"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/discussion"
	"github.com/trezcool/masomo-lms/core/gradebook"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
	emailsvc "github.com/trezcool/masomo-lms/services/email"
	logsvc "github.com/trezcool/masomo-lms/services/logger"
	redissvc "github.com/trezcool/masomo-lms/services/redis"
	"github.com/trezcool/masomo-lms/storage/database"
	inmemdb "github.com/trezcool/masomo-lms/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-lms/storage/database/sqlx"
)

// Backends
const (
	BackendRedis = "redis"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	Repositories struct {
		dig.Out
		User         user.Repository
		Course       course.Repository
		ACL          acl.Repository
		Announcement announcement.Repository
		Discussion   discussion.Repository
		Assignment   assignment.Repository
		Quiz         quiz.Repository
	}

	// Resources are the connections to release on shutdown; nil when unused.
	Resources struct {
		dig.In
		DB    *sqlx.DB
		Redis *redis.Client
	}

	serverParams struct {
		dig.In
		Conf            *core.Config
		Logger          core.Logger
		Validate        *validator.Validate
		Translator      ut.Translator
		UserSvc         user.Service
		CourseSvc       course.Service
		ACLSvc          acl.Service
		ACLChecker      acl.Checker
		AnnouncementSvc announcement.Service
		DiscussionSvc   discussion.Service
		AssignmentSvc   assignment.Service
		QuizSvc         quiz.Service
		GradebookSvc    gradebook.Service
	}
)

// Close releases the open connections.
func (r Resources) Close() error {
	var err error
	if r.Redis != nil {
		err = r.Redis.Close()
	}
	if r.DB != nil {
		if dbErr := r.DB.Close(); dbErr != nil {
			err = dbErr
		}
	}
	return err
}

func newLoggerFunc(component string) func(conf *core.Config) core.Logger {
	return func(conf *core.Config) core.Logger {
		return logsvc.NewRollbarLogger(logsvc.NewStdLogger(os.Stdout, component), conf)
	}
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(logsvc.NewStdLogger(os.Stdout, "DB"), conf)
}

// newDB returns a nil DB with the memory engine.
func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, error) {
	if conf.Database.Engine == database.EngineMemory {
		loggerParam.Logger.Warn("using the in memory database, data will not survive a restart")
		return nil, nil
	}
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, errors.Wrap(err, "setting up database")
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newRepositories(db *sqlx.DB) (Repositories, error) {
	if db == nil {
		mem, err := inmemdb.Open()
		if err != nil {
			return Repositories{}, err
		}
		return Repositories{
			User:         inmemdb.NewUserRepository(mem),
			Course:       inmemdb.NewCourseRepository(mem),
			ACL:          inmemdb.NewACLRepository(mem),
			Announcement: inmemdb.NewAnnouncementRepository(mem),
			Discussion:   inmemdb.NewDiscussionRepository(mem),
			Assignment:   inmemdb.NewAssignmentRepository(mem),
			Quiz:         inmemdb.NewQuizRepository(mem),
		}, nil
	}
	return Repositories{
		User:         sqlxrepos.NewUserRepository(db),
		Course:       sqlxrepos.NewCourseRepository(db),
		ACL:          sqlxrepos.NewACLRepository(db),
		Announcement: sqlxrepos.NewAnnouncementRepository(db),
		Discussion:   sqlxrepos.NewDiscussionRepository(db),
		Assignment:   sqlxrepos.NewAssignmentRepository(db),
		Quiz:         sqlxrepos.NewQuizRepository(db),
	}, nil
}

// newRedisClient returns a nil client when neither quiz drafts nor discussion feeds live in Redis.
func newRedisClient(conf *core.Config) (*redis.Client, error) {
	if conf.Quiz.DraftStore != BackendRedis && conf.Feed.Backend != BackendRedis {
		return nil, nil
	}
	return redissvc.NewClient(context.Background(), conf)
}

func newDraftStore(conf *core.Config, client *redis.Client, repo quiz.Repository) quiz.DraftStore {
	if conf.Quiz.DraftStore == BackendRedis {
		return redissvc.NewDraftStore(client, conf)
	}
	return quiz.NewDBDraftStore(repo)
}

func newFeed(conf *core.Config, client *redis.Client, logger core.Logger) discussion.Feed {
	if conf.Feed.Backend == BackendRedis {
		return redissvc.NewFeed(client, logger)
	}
	return discussion.NewLocalFeed()
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	acl.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		CourseSvc:       p.CourseSvc,
		ACLSvc:          p.ACLSvc,
		ACLChecker:      p.ACLChecker,
		AnnouncementSvc: p.AnnouncementSvc,
		DiscussionSvc:   p.DiscussionSvc,
		AssignmentSvc:   p.AssignmentSvc,
		QuizSvc:         p.QuizSvc,
		GradebookSvc:    p.GradebookSvc,
	})
}

// New returns a new dependency injection dig.Container.
// component prefixes the app log lines, e.g. "API" or "ADMIN".
func New(component string, newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLoggerFunc(component)))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newRedisClient))
	must(c.Provide(newDraftStore))
	must(c.Provide(newFeed))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(acl.NewService))
	must(c.Provide(acl.NewChecker))
	must(c.Provide(announcement.NewService))
	must(c.Provide(discussion.NewService))
	must(c.Provide(assignment.NewService))
	must(c.Provide(quiz.NewService))
	must(c.Provide(quiz.NewSweeper))
	must(c.Provide(gradebook.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
