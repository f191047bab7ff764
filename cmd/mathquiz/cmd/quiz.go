package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmcleod/mathquiz/quiz"
)

var (
	sortFlag     string
	countFlag    int
	answersFlag  string
	skipAnswered bool
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Take and review quizzes",
}

var quizListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your quizzes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			if _, err := s.ListQuizzes(cmd.Context()); err != nil {
				return err
			}
			s.Quizzes().Sort(quiz.ParseSortMode(sortFlag))
			printQuizTable(cmd.OutOrStdout(), s.Quizzes().All())
			return nil
		})
	},
}

var quizShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one quiz with its answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseQuizID(args[0])
		if err != nil {
			return err
		}
		return withSession(func(s *session) error {
			q, err := s.GetQuiz(cmd.Context(), id)
			if err != nil {
				return err
			}
			printQuiz(cmd.OutOrStdout(), q)
			return nil
		})
	},
}

var quizTakeCmd = &cobra.Command{
	Use:   "take",
	Short: "Generate questions, answer them, and submit the quiz",
	Long: `Generate questions, answer them, and submit the quiz. Answers are read one
per line from stdin (a blank line leaves a question unanswered) unless
--answers supplies them as a comma-separated list such as "4,,-2".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			questions, err := s.GenerateQuestions(cmd.Context(), countFlag)
			if err != nil {
				return err
			}
			answers, err := collectAnswers(cmd, questions, answersFlag)
			if err != nil {
				return err
			}
			q, err := s.CreateQuiz(cmd.Context(), questions, answers)
			if err != nil {
				return err
			}
			printQuiz(cmd.OutOrStdout(), q)
			return nil
		})
	},
}

var quizEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace the answers of a quiz",
	Long: `Replace the answers of a quiz. With --answers the list replaces every
answer; otherwise each question is prompted for on stdin. --skip-answered
keeps existing answers and only prompts for unanswered questions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseQuizID(args[0])
		if err != nil {
			return err
		}
		return withSession(func(s *session) error {
			current, err := s.GetQuiz(cmd.Context(), id)
			if err != nil {
				return err
			}
			var answers []*int
			if answersFlag != "" {
				answers, err = collectAnswers(cmd, current.Questions, answersFlag)
			} else {
				answers, err = promptAnswers(cmd, current.Questions, current.UserAnswers)
			}
			if err != nil {
				return err
			}
			q, err := s.EditQuiz(cmd.Context(), id, answers)
			if err != nil {
				return err
			}
			printQuiz(cmd.OutOrStdout(), q)
			return nil
		})
	},
}

var quizDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a quiz",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseQuizID(args[0])
		if err != nil {
			return err
		}
		return withSession(func(s *session) error {
			if err := s.DeleteQuiz(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted quiz %d\n", id)
			return nil
		})
	},
}

func parseQuizID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid quiz id %q", s)
	}
	return id, nil
}

// collectAnswers parses list when given, and otherwise prompts for every
// question.
func collectAnswers(cmd *cobra.Command, questions []string, list string) ([]*int, error) {
	if list == "" {
		return promptAnswers(cmd, questions, nil)
	}
	answers, err := quiz.ParseAnswerList(list)
	if err != nil {
		return nil, err
	}
	if len(answers) != len(questions) {
		return nil, fmt.Errorf("%w: %d answers for %d questions", quiz.ErrLengthMismatch, len(answers), len(questions))
	}
	return answers, nil
}

// promptAnswers reads one answer per question. With skipAnswered set,
// questions that already have an answer in existing keep it.
func promptAnswers(cmd *cobra.Command, questions []string, existing []*int) ([]*int, error) {
	answers := make([]*int, len(questions))
	for i, question := range questions {
		if i < len(existing) && existing[i] != nil && skipAnswered {
			answers[i] = existing[i]
			continue
		}
		for {
			line, err := readLine(cmd, fmt.Sprintf("%2d) %s = ", i+1, question))
			if err != nil {
				return nil, err
			}
			a, err := quiz.ParseAnswer(line)
			if errors.Is(err, quiz.ErrInvalidAnswer) || errors.Is(err, quiz.ErrAnswerOutOfRange) {
				fmt.Fprintf(cmd.ErrOrStderr(), "    %v\n", err)
				continue
			}
			if err != nil {
				return nil, err
			}
			answers[i] = a
			break
		}
	}
	return answers, nil
}

func scoreSummary(q quiz.Quiz) string {
	return fmt.Sprintf("%d/%d (%.0f%%)", q.Score, len(q.Questions), q.ScorePercentage())
}

func printQuizTable(w io.Writer, quizzes []quiz.Quiz) {
	if len(quizzes) == 0 {
		fmt.Fprintln(w, "No quizzes yet. Start one with: mathquiz quiz take")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSCORE\tANSWERED")
	for _, q := range quizzes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\n",
			q.ID, humanize.Time(q.CreationDateTime), scoreSummary(q), q.Answered(), len(q.Questions))
	}
	tw.Flush()
}

func printQuiz(w io.Writer, q quiz.Quiz) {
	fmt.Fprintf(w, "Quiz %d, created %s, score %s\n", q.ID, humanize.Time(q.CreationDateTime), scoreSummary(q))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tQUESTION\tYOUR ANSWER\tCORRECT\t")
	for i, question := range q.Questions {
		var given *int
		if i < len(q.UserAnswers) {
			given = q.UserAnswers[i]
		}
		correct := ""
		mark := ""
		if i < len(q.CorrectAnswers) {
			correct = strconv.Itoa(q.CorrectAnswers[i])
			if given != nil && *given == q.CorrectAnswers[i] {
				mark = "ok"
			} else {
				mark = "x"
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, question, quiz.FormatAnswer(given), correct, mark)
	}
	tw.Flush()
}

func sortModeNames() string {
	names := make([]string, len(quiz.SortModes))
	for i, m := range quiz.SortModes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func init() {
	quizListCmd.Flags().StringVar(&sortFlag, "sort", string(quiz.DefaultSortMode), "Sort mode: "+sortModeNames())
	quizTakeCmd.Flags().IntVarP(&countFlag, "count", "n", quiz.DefaultQuestionCount, "Number of questions")
	quizTakeCmd.Flags().StringVar(&answersFlag, "answers", "", "Comma-separated answers instead of prompting")
	quizEditCmd.Flags().StringVar(&answersFlag, "answers", "", "Comma-separated answers instead of prompting")
	quizEditCmd.Flags().BoolVar(&skipAnswered, "skip-answered", false, "Only prompt for unanswered questions")

	quizCmd.AddCommand(quizListCmd, quizShowCmd, quizTakeCmd, quizEditCmd, quizDeleteCmd)
	rootCmd.AddCommand(quizCmd)
}
