package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/quiz"
)

// cmdQuiz walks through a unit's questions on the terminal. An empty line
// skips a question; a partial submission asks for confirmation first.
func cmdQuiz(ctx context.Context, e *env, args []string) error {
	unit, err := argInt(args, 0, "unit id")
	if err != nil {
		return err
	}
	c, err := e.app.Quizzes.Open(ctx, unit)
	if err != nil {
		return err
	}
	v := c.View()
	if v.Total == 0 {
		fmt.Fprintln(e.out, "This unit has no quiz")
		return nil
	}
	if best, err := e.app.Quiz.Best(ctx, unit); err == nil && best != nil {
		fmt.Fprintf(e.out, "Your best so far: %.1f%%\n", best.ScorePct.Float())
	}

	for i, q := range v.Questions {
		fmt.Fprintf(e.out, "\n%d/%d. %s\n", i+1, v.Total, q.Text)
		if err := askQuestion(e, c, q); err != nil {
			return err
		}
	}

	res, err := c.Submit(ctx, func(answered, total int) bool {
		a, _ := e.prompt(fmt.Sprintf("\n%d of %d answered. Submit anyway? [y/N] ", answered, total))
		return strings.EqualFold(a, "y") || strings.EqualFold(a, "yes")
	})
	switch {
	case errors.Is(err, quiz.ErrSubmitCancelled):
		fmt.Fprintln(e.out, "Not submitted")
		return nil
	case err != nil:
		return err
	}
	if e.json {
		return e.printJSON(res)
	}
	printResult(e, c.View().Questions, res)
	return nil
}

func askQuestion(e *env, c *quiz.Controller, q quiz.Question) error {
	for {
		if q.Type == quiz.TypeText {
			in, err := e.prompt("answer> ")
			if err != nil {
				return err
			}
			if in == "" {
				return nil
			}
			return c.AnswerText(q.ID, in)
		}
		for j, ch := range q.Choices {
			fmt.Fprintf(e.out, "  %c) %s\n", 'a'+j, ch.Text)
		}
		in, err := e.prompt("choice> ")
		if err != nil {
			return err
		}
		if in == "" {
			return nil
		}
		idx := choiceIndex(in)
		if idx < 0 || idx >= len(q.Choices) {
			fmt.Fprintln(e.out, "pick one of the letters above")
			continue
		}
		return c.SelectChoice(q.ID, q.Choices[idx].ID)
	}
}

// choiceIndex accepts a letter (a, b, ...) or a 1-based number.
func choiceIndex(in string) int {
	in = strings.ToLower(strings.TrimSpace(in))
	if n, err := strconv.Atoi(in); err == nil {
		return n - 1
	}
	if len(in) == 1 && in[0] >= 'a' && in[0] <= 'z' {
		return int(in[0] - 'a')
	}
	return -1
}

func printResult(e *env, questions []quiz.Question, res *quiz.QuizResult) {
	pct := res.ScorePct.Float()
	fmt.Fprintf(e.out, "\nScore: %d/%d (%.1f%%), %s\n", res.CorrectCount, res.TotalQuestions, pct, quiz.Grade(pct))
	text := make(map[int64]string, len(questions))
	for _, q := range questions {
		text[q.ID] = q.Text
	}
	for _, a := range res.Answers {
		mark := "x"
		if a.IsCorrect {
			mark = "v"
		}
		t := a.QuestionText
		if t == "" {
			t = text[a.Question]
		}
		fmt.Fprintf(e.out, "  [%s] %s\n", mark, t)
		if a.Explanation != "" {
			fmt.Fprintf(e.out, "      %s\n", a.Explanation)
		}
	}
}
