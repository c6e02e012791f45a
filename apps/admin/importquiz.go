package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	dig_container "github.com/trezcool/masomo-lms/apps/api/di/dig"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/quiz"
)

type quizImport struct {
	courseCode string
	path       string
}

func (cli *commandLine) importQuizCmd() *cobra.Command {
	var qi quizImport
	cmd := &cobra.Command{
		Use:   "importquiz",
		Short: "Create a quiz and its questions from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.c.Invoke(func(
				res dig_container.Resources,
				validate *validator.Validate,
				courseRepo course.Repository,
				quizSvc quiz.Service,
			) error {
				defer func() { _ = res.Close() }()

				q, questions, err := importQuiz(cmd.Context(), validate, courseRepo, quizSvc, qi)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported quiz %q (%s) with %d question(s)\n", q.Title, q.ID, len(questions))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&qi.courseCode, "course", "", "code of the course receiving the quiz")
	cmd.Flags().StringVarP(&qi.path, "file", "f", "", "path to the YAML quiz file")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func importQuiz(
	ctx context.Context,
	validate *validator.Validate,
	courseRepo course.Repository,
	quizSvc quiz.Service,
	qi quizImport,
) (quiz.Quiz, []quiz.Question, error) {
	c, err := courseRepo.GetCourseByCode(ctx, strings.ToUpper(strings.TrimSpace(qi.courseCode)))
	if err != nil {
		return quiz.Quiz{}, nil, errors.Wrapf(err, "finding course %s", qi.courseCode)
	}

	f, err := os.Open(qi.path)
	if err != nil {
		return quiz.Quiz{}, nil, errors.Wrap(err, "opening quiz file")
	}
	defer func() { _ = f.Close() }()

	qf, err := quiz.ParseQuizFile(f)
	if err != nil {
		return quiz.Quiz{}, nil, err
	}
	if err = qf.Validate(validate); err != nil {
		return quiz.Quiz{}, nil, errors.Wrap(err, "invalid quiz file")
	}
	return quizSvc.Import(ctx, c.ID, qf)
}
